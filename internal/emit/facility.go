package emit

import (
	"slices"
	"strings"
)

// Facility is an importable package emitted code may reference, together
// with the modes it is available in.
type Facility struct {
	Path  string
	Name  string // package identifier used in emitted code
	Modes ModeSet
}

// Available reports whether f may be used in mode m.
func (f Facility) Available(m Mode) bool { return f.Modes.Has(m) }

var (
	both       = NewModeSet(Hosted, Freestanding)
	hostedOnly = NewModeSet(Hosted)
)

// Facility catalog. Freestanding facilities are a subset of hosted ones.
var (
	Bytes   = Facility{Path: "bytes", Name: "bytes", Modes: hostedOnly}
	Fmt     = Facility{Path: "fmt", Name: "fmt", Modes: hostedOnly}
	Strings = Facility{Path: "strings", Name: "strings", Modes: hostedOnly}
	Slices  = Facility{Path: "slices", Name: "slices", Modes: hostedOnly}
	Maphash = Facility{Path: "hash/maphash", Name: "maphash", Modes: hostedOnly}
	Strconv = Facility{Path: "strconv", Name: "strconv", Modes: both}
	Math    = Facility{Path: "math", Name: "math", Modes: both}
	Bits    = Facility{Path: "math/bits", Name: "bits", Modes: both}
)

// MetaPath is the default import path of the runtime descriptor package.
const MetaPath = "shapegen/meta"

// Meta returns the descriptor facility for the given import path.
func Meta(path string) Facility {
	if path == "" {
		path = MetaPath
	}
	return Facility{Path: path, Name: "meta", Modes: both}
}

// Catalog returns the built-in facilities sorted by import path.
func Catalog() []Facility {
	out := []Facility{Bytes, Fmt, Strings, Slices, Maphash, Strconv, Math, Bits, Meta("")}
	slices.SortFunc(out, func(a, b Facility) int { return strings.Compare(a.Path, b.Path) })
	return out
}
