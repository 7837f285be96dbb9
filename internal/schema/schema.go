// Package schema is the declaration-file frontend. A schema file lists
// types in TOML or YAML; it lowers to the same raw declarations the Go
// source frontend produces, and the engine also emits the Go type
// declarations it describes.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"shapegen/internal/decl"
	"shapegen/internal/diag"
	"shapegen/internal/source"
)

// File is the decoded content of a schema file.
type File struct {
	Package string   `toml:"package" yaml:"package"`
	Path    string   `toml:"path" yaml:"path"`
	Imports []string `toml:"imports" yaml:"imports"`
	Types   []Type   `toml:"types" yaml:"types"`
}

// Type describes one declaration.
type Type struct {
	Name     string                    `toml:"name" yaml:"name"`
	Kind     string                    `toml:"kind" yaml:"kind"`
	Doc      string                    `toml:"doc" yaml:"doc"`
	Derive   []string                  `toml:"derive" yaml:"derive"`
	Options  map[string]map[string]any `toml:"options" yaml:"options"`
	Params   []Param                   `toml:"params" yaml:"params"`
	Fields   []Field                   `toml:"fields" yaml:"fields"`
	Variants []string                  `toml:"variants" yaml:"variants"`
}

// Param is a type parameter with its constraint.
type Param struct {
	Name  string `toml:"name" yaml:"name"`
	Bound string `toml:"bound" yaml:"bound"`
}

// Field is one struct field. Options map a capability to its field options,
// written the way they appear in a struct tag group ("skip", "rename=x").
type Field struct {
	Name    string              `toml:"name" yaml:"name"`
	Type    string              `toml:"type" yaml:"type"`
	Options map[string][]string `toml:"options" yaml:"options"`
}

// Format is a schema file syntax.
type Format uint8

const (
	FormatTOML Format = iota + 1
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// FormatOf picks the syntax from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("%s: schema files must end in .toml, .yaml or .yml", path)
	}
}

// Schema is a decoded file together with the spans of its named entries.
type Schema struct {
	File   File
	FileID source.FileID
	Format Format
	spans  spanIndex
}

// Load reads and decodes a schema file registered in fs. Syntax errors
// become diagnostics in bag and yield a nil schema.
func Load(fs *source.FileSet, path string, bag *diag.Bag) (*Schema, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	id, err := fs.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return decode(fs.Get(id), format, bag), nil
}

// Parse decodes in-memory schema content under a virtual name.
func Parse(fs *source.FileSet, name string, content []byte, bag *diag.Bag) (*Schema, error) {
	format, err := FormatOf(name)
	if err != nil {
		return nil, err
	}
	id := fs.AddVirtual(name, content)
	return decode(fs.Get(id), format, bag), nil
}

func decode(f *source.File, format Format, bag *diag.Bag) *Schema {
	s := &Schema{FileID: f.ID, Format: format}
	var err error
	switch format {
	case FormatTOML:
		err = s.decodeTOML(f)
	case FormatYAML:
		err = s.decodeYAML(f)
	}
	if err != nil {
		bag.Add(diag.NewError(diag.IOParseFile, errorSpan(f, err), err.Error()))
		return nil
	}
	return s
}

func (s *Schema) decodeTOML(f *source.File) error {
	md, err := toml.NewDecoder(bytes.NewReader(f.Content)).Decode(&s.File)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("%s: unknown keys: %s", f.Path, strings.Join(keys, ", "))
	}
	s.spans = tomlSpans(f, &s.File)
	return nil
}

func (s *Schema) decodeYAML(f *source.File) error {
	dec := yaml.NewDecoder(bytes.NewReader(f.Content))
	dec.KnownFields(true)
	if err := dec.Decode(&s.File); err != nil {
		return fmt.Errorf("%s: %w", f.Path, err)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(f.Content, &root); err != nil {
		return fmt.Errorf("%s: %w", f.Path, err)
	}
	s.spans = yamlSpans(f, &root)
	return nil
}

// errorSpan points a decode error at its position when the decoder reports
// one, otherwise at the start of the file.
func errorSpan(f *source.File, err error) source.Span {
	var perr toml.ParseError
	if errors.As(err, &perr) {
		start := min(perr.Position.Start, len(f.Content))
		return source.SpanOf(f.ID, start, min(start+perr.Position.Len, len(f.Content)))
	}
	return source.Span{File: f.ID}
}

// Batch lowers the schema into raw declarations, in file order. Entries the
// lowering cannot express are reported to bag and left out.
func (s *Schema) Batch(bag *diag.Bag) (*decl.Batch, error) {
	pkgName := s.File.Package
	if !decl.IsIdent(pkgName) {
		return nil, fmt.Errorf("schema package name %q is not an identifier", pkgName)
	}
	pkgPath := s.File.Path
	if pkgPath == "" {
		pkgPath = pkgName
	}
	l := lowering{s: s, bag: bag, pkgPath: pkgPath, pkgName: pkgName}
	return decl.NewBatch(pkgPath, pkgName, l.lower()), nil
}
