package shape

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// irSchemaVersion - increment when the TypeDescription layout changes.
const irSchemaVersion uint16 = 1

// IRFile is the on-disk form of extracted descriptions, consumed by a later
// generate --from-ir run.
type IRFile struct {
	Schema  uint16             `msgpack:"schema"`
	PkgPath string             `msgpack:"pkg_path"`
	PkgName string             `msgpack:"pkg_name"`
	Types   []*TypeDescription `msgpack:"types"`
}

// Encode writes descriptions as msgpack.
func Encode(w io.Writer, pkgPath, pkgName string, types []*TypeDescription) error {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	return enc.Encode(&IRFile{Schema: irSchemaVersion, PkgPath: pkgPath, PkgName: pkgName, Types: types})
}

// Decode reads an IR file written by Encode.
func Decode(r io.Reader) (*IRFile, error) {
	var f IRFile
	if err := msgpack.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode IR: %w", err)
	}
	if f.Schema != irSchemaVersion {
		return nil, fmt.Errorf("decode IR: schema version %d, want %d", f.Schema, irSchemaVersion)
	}
	return &f, nil
}
