package diag

import (
	"errors"
	"fmt"
	"strings"

	"shapegen/internal/source"
)

// NoIndex marks a Location without a positional index.
const NoIndex = -1

// Location pins a user error to a declaration site. Variant and Field are
// empty when the error concerns the declaration as a whole; Index is the
// field position (always set for tuple fields, which have no name).
type Location struct {
	Type    string
	Variant string
	Field   string
	Index   int
	Span    source.Span
}

// At returns a declaration-level location.
func At(typeName string, sp source.Span) Location {
	return Location{Type: typeName, Index: NoIndex, Span: sp}
}

// InVariant narrows the location to a sum variant.
func (l Location) InVariant(name string, sp source.Span) Location {
	if l.Variant != "" {
		name = l.Variant + "." + name
	}
	l.Variant = name
	l.Field = ""
	l.Index = NoIndex
	l.Span = sp
	return l
}

// AtField narrows the location to a field. name is empty for tuple fields.
func (l Location) AtField(name string, index int, sp source.Span) Location {
	l.Field = name
	l.Index = index
	l.Span = sp
	return l
}

func (l Location) String() string {
	var sb strings.Builder
	sb.WriteString(l.Type)
	if l.Variant != "" {
		sb.WriteString(" variant ")
		sb.WriteString(l.Variant)
	}
	switch {
	case l.Field != "" && l.Index >= 0:
		fmt.Fprintf(&sb, " field %s (#%d)", l.Field, l.Index)
	case l.Field != "":
		fmt.Fprintf(&sb, " field %s", l.Field)
	case l.Index >= 0:
		fmt.Fprintf(&sb, " field #%d", l.Index)
	}
	return sb.String()
}

// ShapeError reports a malformed declaration.
type ShapeError struct {
	Code Code
	Loc  Location
	Msg  string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Loc, e.Msg)
}

// NewShapeError builds a ShapeError with a formatted message.
func NewShapeError(code Code, loc Location, format string, args ...any) *ShapeError {
	return &ShapeError{Code: code, Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

// AttributeError reports a bad configuration directive.
type AttributeError struct {
	Code       Code
	Capability string
	Key        string
	Loc        Location
	Msg        string
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("%s: %s option %q: %s", e.Loc, e.Capability, e.Key, e.Msg)
}

// CapabilityError reports an unmet structural precondition.
type CapabilityError struct {
	Code       Code
	Capability string
	Loc        Location
	Rule       string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: cannot derive %s: %s", e.Loc, e.Capability, e.Rule)
}

// InternalInvariantViolation signals an engine bug: the Emitter met input the
// Resolver should have rejected. It is raised with panic and recovered only
// at the driver boundary.
type InternalInvariantViolation struct {
	Type       string
	Capability string
	Mode       string
	Detail     string
}

func (e *InternalInvariantViolation) Error() string {
	return fmt.Sprintf("internal invariant violation: %s/%s (%s): %s", e.Type, e.Capability, e.Mode, e.Detail)
}

// IsUserError reports whether err is a recoverable, declaration-scoped error.
func IsUserError(err error) bool {
	var (
		se *ShapeError
		ae *AttributeError
		ce *CapabilityError
	)
	return errors.As(err, &se) || errors.As(err, &ae) || errors.As(err, &ce)
}

// FromError converts a taxonomy error into a Diagnostic.
func FromError(err error) (Diagnostic, bool) {
	var (
		se *ShapeError
		ae *AttributeError
		ce *CapabilityError
		iv *InternalInvariantViolation
	)
	switch {
	case errors.As(err, &se):
		return NewError(se.Code, se.Loc.Span, se.Error()), true
	case errors.As(err, &ae):
		return NewError(ae.Code, ae.Loc.Span, ae.Error()), true
	case errors.As(err, &ce):
		return NewError(ce.Code, ce.Loc.Span, ce.Error()), true
	case errors.As(err, &iv):
		return NewError(IntInvariant, source.NoSpan, iv.Error()), true
	}
	return Diagnostic{}, false
}
