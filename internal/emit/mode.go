// Package emit turns resolver-approved plans into structured code fragments
// and renders them as Go source.
package emit

import (
	"fmt"
	"strings"
)

// Mode is the target environment of emitted code.
type Mode uint8

const (
	// Hosted targets a full standard library.
	Hosted Mode = 1 << iota
	// Freestanding restricts output to allocation-free core facilities.
	Freestanding
)

// AllModes lists every mode in rendering order.
var AllModes = []Mode{Hosted, Freestanding}

func (m Mode) String() string {
	switch m {
	case Hosted:
		return "hosted"
	case Freestanding:
		return "freestanding"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// BuildTag is the build tag selecting freestanding output.
const BuildTag = "shapegen_freestanding"

// Constraint returns the //go:build expression for files of mode m.
func (m Mode) Constraint() string {
	if m == Freestanding {
		return BuildTag
	}
	return "!" + BuildTag
}

// ParseMode parses "hosted" or "freestanding".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hosted":
		return Hosted, nil
	case "freestanding":
		return Freestanding, nil
	}
	return 0, fmt.Errorf("unknown mode %q (want hosted or freestanding)", s)
}

// ModeSet is a set of modes.
type ModeSet uint8

// NewModeSet builds a set from modes.
func NewModeSet(modes ...Mode) ModeSet {
	var s ModeSet
	for _, m := range modes {
		s |= ModeSet(m)
	}
	return s
}

// Has reports whether m is in s.
func (s ModeSet) Has(m Mode) bool { return s&ModeSet(m) != 0 }

// Empty reports whether s holds no mode.
func (s ModeSet) Empty() bool { return s == 0 }

// Modes returns the members of s in rendering order.
func (s ModeSet) Modes() []Mode {
	var out []Mode
	for _, m := range AllModes {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

func (s ModeSet) String() string {
	names := make([]string, 0, 2)
	for _, m := range s.Modes() {
		names = append(names, m.String())
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
