package attr

import (
	"strconv"
	"strings"

	"shapegen/internal/decl"
	"shapegen/internal/diag"
	"shapegen/internal/shape"
	"shapegen/internal/source"
)

// Reserved directive verbs understood by the frontends themselves.
var reservedVerbs = map[string]bool{"derive": true, "tuple": true, "variants": true}

// Interpret validates the directives of td that belong to capability and
// returns the declaration and field bags. It is invoked once per
// (declaration, capability) pair; options addressed to other capabilities
// are ignored here.
func Interpret(td *shape.TypeDescription, capability string, schema Schema) (*Options, error) {
	opts := &Options{Capability: capability, fields: make(map[FieldKey]Bag)}
	loc := diag.At(td.Name, td.Span)

	for _, dir := range td.Directives {
		if dir.Verb != capability {
			continue
		}
		for _, a := range dir.Args {
			v, err := validate(capability, schema.Decl, a.Key, a.Value, a.HasValue, a.Quoted, a.Span, loc.AtField("", diag.NoIndex, a.Span))
			if err != nil {
				return nil, err
			}
			if err := opts.Decl.add(capability, v, loc); err != nil {
				return nil, err
			}
		}
	}

	var walkErr error
	td.Walk(func(path []string, s *shape.Shape) {
		if walkErr != nil {
			return
		}
		vloc := loc
		for _, p := range path {
			vloc = vloc.InVariant(p, td.Span)
		}
		for _, f := range s.Fields {
			if f.Tag == "" {
				continue
			}
			bag, err := interpretTag(capability, schema.Field, f, vloc.AtField(f.Name, f.Index, f.Span))
			if err != nil {
				walkErr = err
				return
			}
			if bag.Len() > 0 {
				opts.fields[FieldKey{Variant: joinPath(path), Index: f.Index}] = bag
			}
		}
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return opts, nil
}

// CheckVerbs rejects directives whose verb names neither a reserved verb nor
// a known capability, field tag groups addressed to an unknown capability,
// and derive arguments carrying values.
func CheckVerbs(td *shape.TypeDescription, known func(string) bool) error {
	loc := diag.At(td.Name, td.Span)
	if err := checkTagGroups(td, known, loc); err != nil {
		return err
	}
	for _, dir := range td.Directives {
		if reservedVerbs[dir.Verb] || known(dir.Verb) {
			continue
		}
		return &diag.AttributeError{
			Code:       diag.AtrUnknownCapability,
			Capability: dir.Verb,
			Key:        dir.Verb,
			Loc:        loc.AtField("", diag.NoIndex, dir.Span),
			Msg:        "unknown directive",
		}
	}
	for _, a := range td.Derive {
		if a.HasValue {
			return &diag.AttributeError{
				Code: diag.AtrUnexpectedValue, Capability: "derive", Key: a.Key,
				Loc: loc.AtField("", diag.NoIndex, a.Span), Msg: "capability names take no value",
			}
		}
		if !known(a.Key) {
			return &diag.AttributeError{
				Code: diag.AtrUnknownCapability, Capability: "derive", Key: a.Key,
				Loc: loc.AtField("", diag.NoIndex, a.Span), Msg: "unknown capability",
			}
		}
	}
	return nil
}

func checkTagGroups(td *shape.TypeDescription, known func(string) bool, loc diag.Location) error {
	var err error
	td.Walk(func(path []string, s *shape.Shape) {
		if err != nil {
			return
		}
		vloc := loc
		for _, p := range path {
			vloc = vloc.InVariant(p, td.Span)
		}
		for _, f := range s.Fields {
			for _, g := range splitTag(f.Tag) {
				if g.colon <= 0 || known(g.capability()) {
					continue
				}
				err = &diag.AttributeError{
					Code: diag.AtrUnknownCapability, Capability: g.capability(), Key: g.capability(),
					Loc: vloc.AtField(f.Name, f.Index, tagSpan(f, g.start, g.start+g.colon)),
					Msg: "tag group names an unknown capability",
				}
				return
			}
		}
	})
	return err
}

// tagGroup is one space-separated `cap:options` group of a field tag.
type tagGroup struct {
	text       string
	start, end int // byte offsets in the tag
	colon      int // offset of ':' in text, -1 when absent
}

func (g tagGroup) capability() string { return g.text[:max(g.colon, 0)] }

func splitTag(tag string) []tagGroup {
	var out []tagGroup
	i := 0
	for i < len(tag) {
		for i < len(tag) && tag[i] == ' ' {
			i++
		}
		if i >= len(tag) {
			break
		}
		start := i
		for i < len(tag) && tag[i] != ' ' {
			i++
		}
		text := tag[start:i]
		out = append(out, tagGroup{text: text, start: start, end: i, colon: strings.IndexByte(text, ':')})
	}
	return out
}

// tagSpan maps tag offsets onto the source. Raw string tags map
// byte-for-byte; interpreted ones fall back to the whole tag span.
func tagSpan(f shape.Field, start, end int) source.Span {
	if int(f.TagSpan.Len()) != len(f.Tag) {
		return f.TagSpan
	}
	base := int(f.TagSpan.Start)
	return source.SpanOf(f.TagSpan.File, base+start, base+end)
}

// interpretTag parses `cap:k,k=v other:k` and keeps only capability's group.
func interpretTag(capability string, schema map[string]Spec, f shape.Field, loc diag.Location) (Bag, error) {
	var bag Bag
	for _, g := range splitTag(f.Tag) {
		if g.colon <= 0 {
			return Bag{}, &diag.AttributeError{
				Code: diag.AtrMalformed, Capability: capability, Key: g.text,
				Loc: loc.AtField(loc.Field, loc.Index, tagSpan(f, g.start, g.end)),
				Msg: "tag group must look like capability:option,...",
			}
		}
		if g.capability() != capability {
			continue
		}
		off := g.start + g.colon + 1
		for _, opt := range strings.Split(g.text[g.colon+1:], ",") {
			optStart := off
			off += len(opt) + 1
			if opt == "" {
				continue
			}
			key, value, hasValue := strings.Cut(opt, "=")
			sp := tagSpan(f, optStart, optStart+len(opt))
			optLoc := loc.AtField(loc.Field, loc.Index, sp)
			v, err := validate(capability, schema, key, value, hasValue, false, sp, optLoc)
			if err != nil {
				return Bag{}, err
			}
			if err := bag.add(capability, v, optLoc); err != nil {
				return Bag{}, err
			}
		}
	}
	return bag, nil
}

func (b *Bag) add(capability string, v Value, loc diag.Location) error {
	if b.Has(v.Key) {
		return &diag.AttributeError{
			Code: diag.AtrDuplicateKey, Capability: capability, Key: v.Key,
			Loc: loc.AtField(loc.Field, loc.Index, v.Span), Msg: "option given more than once",
		}
	}
	b.values = append(b.values, v)
	return nil
}

func validate(capability string, schema map[string]Spec, key, value string, hasValue, quoted bool, sp source.Span, loc diag.Location) (Value, error) {
	fail := func(code diag.Code, msg string) (Value, error) {
		return Value{}, &diag.AttributeError{Code: code, Capability: capability, Key: key, Loc: loc, Msg: msg}
	}
	spec, ok := schema[key]
	if !ok {
		return fail(diag.AtrUnknownKey, "not recognized by "+capability)
	}
	switch spec.Kind {
	case Flag:
		if hasValue {
			return fail(diag.AtrUnexpectedValue, "flag takes no value")
		}
	case Ident:
		if !hasValue || value == "" {
			return fail(diag.AtrMissingValue, "expects an identifier")
		}
		if !isQualifiedIdent(value) {
			return fail(diag.AtrKindMismatch, "expects an identifier, got "+strconv.Quote(value))
		}
	case String:
		if !hasValue {
			return fail(diag.AtrMissingValue, "expects a string")
		}
	case Int:
		if !hasValue || value == "" {
			return fail(diag.AtrMissingValue, "expects an integer")
		}
		if _, err := strconv.Atoi(value); err != nil || quoted {
			return fail(diag.AtrKindMismatch, "expects an integer, got "+strconv.Quote(value))
		}
	}
	return Value{Key: key, Kind: spec.Kind, Raw: value, Span: sp}, nil
}

func isQualifiedIdent(s string) bool {
	pkg, name, qualified := strings.Cut(s, ".")
	if !qualified {
		return decl.IsIdent(s)
	}
	return decl.IsIdent(pkg) && decl.IsIdent(name)
}
