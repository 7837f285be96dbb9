package emit

import (
	"slices"
	"strings"

	"shapegen/internal/diag"
)

// Unit is the emitted output of one (type, capability, mode) triple. It is
// built once by a Builder and never mutated afterwards.
type Unit struct {
	typeName   string
	capability string
	mode       Mode
	fragments  []Fragment
	facilities []Facility
}

func (u *Unit) Type() string       { return u.typeName }
func (u *Unit) Capability() string { return u.capability }
func (u *Unit) Mode() Mode         { return u.mode }

// Fragments returns a copy of the unit's fragments in emission order.
func (u *Unit) Fragments() []Fragment { return slices.Clone(u.fragments) }

// Facilities returns a copy of the facilities the unit references, sorted
// by import path.
func (u *Unit) Facilities() []Facility { return slices.Clone(u.facilities) }

// Declarations builds a unit that declares a type instead of deriving a
// capability for it. It carries no mode and renders without a build
// constraint.
func Declarations(typeName string, frags []Fragment, imports []Facility) *Unit {
	if len(frags) == 0 {
		panic(&diag.InternalInvariantViolation{Type: typeName, Capability: "-", Mode: "-", Detail: "empty declaration unit"})
	}
	facs := slices.Clone(imports)
	slices.SortFunc(facs, func(a, b Facility) int { return strings.Compare(a.Path, b.Path) })
	return &Unit{typeName: typeName, fragments: slices.Clone(frags), facilities: facs}
}
