package capability

import (
	"fmt"

	"shapegen/internal/attr"
	"shapegen/internal/diag"
	"shapegen/internal/emit"
	"shapegen/internal/shape"
)

func init() {
	Register(&Capability{
		Name:    "key",
		Summary: "identity accessor: Key() K returning the field tagged key:key, SKey(v S) K for sums",
		Modes:   emit.NewModeSet(emit.Hosted, emit.Freestanding),
		Schema: attr.Schema{
			Field: map[string]attr.Spec{
				"key": {Kind: attr.Flag, Effect: "the field identifying the value"},
			},
		},
		MinFields:    1,
		AnyField:     true,
		Precondition: keyPrecondition,
		Emit:         emitKey,
	})
}

// keyField returns the single field flagged key in a product plan.
func keyField(p emit.Plan) (emit.FieldPlan, bool) {
	for _, fp := range p.Fields {
		if fp.Opts.Flag("key") {
			return fp, true
		}
	}
	return emit.FieldPlan{}, false
}

// keyPrecondition requires exactly one key field per record or variant,
// and the same key type across all variants of a sum.
func keyPrecondition(td *shape.TypeDescription, _ emit.Mode, plan emit.Plan) error {
	var (
		keyType string
		keyFrom string
	)
	return walkPlan(td, plan, func(loc diag.Location, _ *shape.Shape, p emit.Plan) error {
		var found *emit.FieldPlan
		for i := range p.Fields {
			fp := &p.Fields[i]
			if !fp.Opts.Flag("key") {
				continue
			}
			if found != nil {
				return &diag.CapabilityError{
					Code:       diag.CapConflictingField,
					Capability: "key",
					Loc:        loc.AtField(fp.Field.Name, fp.Field.Index, fp.Field.Span),
					Rule:       fmt.Sprintf("only one key field allowed, %s is already the key", found.Field.Label()),
				}
			}
			found = fp
		}
		if found == nil {
			return &diag.CapabilityError{
				Code:       diag.CapMissingRequiredField,
				Capability: "key",
				Loc:        loc,
				Rule:       "exactly one field must be tagged key:key",
			}
		}
		here := loc.Type
		if loc.Variant != "" {
			here = loc.Variant
		}
		switch {
		case keyType == "":
			keyType, keyFrom = found.Type.Text, here
		case keyType != found.Type.Text:
			return &diag.CapabilityError{
				Code:       diag.CapConflictingField,
				Capability: "key",
				Loc:        loc.AtField(found.Field.Name, found.Field.Index, found.Field.Span),
				Rule:       fmt.Sprintf("key type %s differs from %s used by %s", found.Type.Text, keyType, keyFrom),
			}
		}
		return nil
	})
}

func emitKey(b *emit.Builder) {
	a := b.Approval()
	td := a.Type
	if td.Shape.Kind != shape.Sum {
		fp, ok := keyField(a.Plan)
		if !ok {
			b.Fail("approved without a key field")
		}
		b.Method("Key returns the identifying field "+fp.Field.Label()+".",
			"Key", nil,
			[]emit.Param{{Type: fp.Type.Text}},
			[]emit.Stmt{emit.Ret(emit.Sel("v", fp.Field.Accessor()))})
		return
	}

	name := emit.SuffixName(td.Name, "Key")
	result := keyType(b, a.Plan)
	zero := "zero"
	var body []emit.Stmt
	if result == "any" {
		// No variants, no key type to speak of.
		body = append(body, emit.Ret("nil"))
	} else {
		body = append(body,
			keySwitch(b, b.Arms(&td.Shape, a.Plan)),
			emit.Var{Name: zero, Type: result},
			emit.Ret(emit.Ident(zero)),
		)
	}
	b.Func(name+" returns the key of whichever variant v holds.",
		name,
		[]emit.Param{{Name: "v", Type: td.Name}},
		[]emit.Param{{Type: result}},
		body)
}

// keyType is the key type shared by the variants, or "any" when there are
// none.
func keyType(b *emit.Builder, p emit.Plan) string {
	if p.Kind != shape.Sum {
		fp, ok := keyField(p)
		if !ok {
			b.Fail("variant approved without a key field")
		}
		return fp.Type.Text
	}
	for _, v := range p.Variants {
		if t := keyType(b, v.Plan); t != "any" {
			return t
		}
	}
	return "any"
}

func keySwitch(b *emit.Builder, arms []emit.Arm) emit.Stmt {
	return typeSwitch("v", "v", bindsValue(arms), arms, func(arm emit.Arm) []emit.Stmt {
		if arm.Plan.Kind == shape.Sum {
			return []emit.Stmt{keySwitch(b, b.Arms(&arm.Variant.Shape, arm.Plan))}
		}
		fp, ok := keyField(arm.Plan)
		if !ok {
			b.Fail("variant %s approved without a key field", arm.Name)
		}
		return []emit.Stmt{emit.Ret(emit.Sel("v", fp.Field.Accessor()))}
	})
}
