// Package diag defines the diagnostic model shared by all derivation stages.
//
// # Data model
//
// Diagnostic is the central record: Severity, Code, Message, Primary span and
// optional Notes. Codes are compact numbers with a stable string ID whose
// prefix names the stage that produced them (SHP, ATR, CAP, GATE, INT).
//
// # Error taxonomy
//
// Stages return typed errors rather than writing diagnostics directly:
//
//   - ShapeError: the declaration is malformed (Extractor).
//   - AttributeError: a configuration directive is bad (Interpreter).
//   - CapabilityError: a structural precondition is unmet (Resolver).
//   - InternalInvariantViolation: the Emitter reached a state the Resolver
//     should have excluded. Always fatal, never converted into a user error.
//
// The first three abort derivation of one declaration only. FromError turns
// them into Diagnostics for a Bag; the driver owns the Bag per declaration.
//
// Package diag performs no formatting or IO. Rendering lives in
// internal/diagfmt.
package diag
