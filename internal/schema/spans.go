package schema

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"shapegen/internal/source"
)

// spanIndex remembers where each type, field and variant name sits in the
// schema file. Entries the decoder could not place point at the file start.
type spanIndex struct {
	file  source.FileID
	types []typeSpans
}

type typeSpans struct {
	name     source.Span
	fields   []source.Span
	variants []source.Span
}

func (x spanIndex) typ(i int) source.Span {
	if i < len(x.types) {
		return x.types[i].name
	}
	return source.Span{File: x.file}
}

func (x spanIndex) field(i, j int) source.Span {
	if i < len(x.types) && j < len(x.types[i].fields) {
		return x.types[i].fields[j]
	}
	return x.typ(i)
}

func (x spanIndex) variant(i, k int) source.Span {
	if i < len(x.types) && k < len(x.types[i].variants) {
		return x.types[i].variants[k]
	}
	return x.typ(i)
}

// yamlSpans walks the node tree: types is a sequence of mappings whose
// name, fields[].name and variants[] scalars carry line and column.
func yamlSpans(f *source.File, root *yaml.Node) spanIndex {
	x := spanIndex{file: f.ID}
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	types := mappingValue(doc, "types")
	if types == nil || types.Kind != yaml.SequenceNode {
		return x
	}
	for _, item := range types.Content {
		ts := typeSpans{name: nodeSpan(f, item)}
		if n := mappingValue(item, "name"); n != nil {
			ts.name = nodeSpan(f, n)
		}
		if fields := mappingValue(item, "fields"); fields != nil && fields.Kind == yaml.SequenceNode {
			for _, fn := range fields.Content {
				sp := nodeSpan(f, fn)
				if n := mappingValue(fn, "name"); n != nil {
					sp = nodeSpan(f, n)
				}
				ts.fields = append(ts.fields, sp)
			}
		}
		if vs := mappingValue(item, "variants"); vs != nil && vs.Kind == yaml.SequenceNode {
			for _, vn := range vs.Content {
				ts.variants = append(ts.variants, nodeSpan(f, vn))
			}
		}
		x.types = append(x.types, ts)
	}
	return x
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func nodeSpan(f *source.File, n *yaml.Node) source.Span {
	start := f.Offset(n.Line, n.Column)
	end := start
	if n.Kind == yaml.ScalarNode && n.Style == 0 {
		end = min(start+len(n.Value), len(f.Content))
	}
	return source.SpanOf(f.ID, start, end)
}

// tomlSpans places names by scanning the text for their quoted form, in
// file order. The TOML decoder does not report key positions.
func tomlSpans(f *source.File, file *File) spanIndex {
	x := spanIndex{file: f.ID}
	text := string(f.Content)
	cursor := 0
	find := func(name string) source.Span {
		if name == "" {
			return source.Span{File: f.ID}
		}
		quoted := strconv.Quote(name)
		i := strings.Index(text[cursor:], quoted)
		if i < 0 {
			return source.Span{File: f.ID}
		}
		start := cursor + i
		cursor = start + len(quoted)
		return source.SpanOf(f.ID, start, cursor)
	}
	for _, t := range file.Types {
		ts := typeSpans{name: find(t.Name)}
		typeEnd := cursor
		for _, fd := range t.Fields {
			ts.fields = append(ts.fields, find(fd.Name))
		}
		fieldsEnd := cursor
		cursor = typeEnd
		for _, v := range t.Variants {
			ts.variants = append(ts.variants, find(v))
		}
		cursor = max(cursor, fieldsEnd)
		x.types = append(x.types, ts)
	}
	return x
}
