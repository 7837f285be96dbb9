package source

// FileID identifies a file within a FileSet. Zero means "no file".
type FileID uint32

// FileFlags record how a file's content was obtained.
type FileFlags uint8

const (
	// FileVirtual marks content added from memory rather than read from disk.
	FileVirtual FileFlags = 1 << iota
	// FileHadBOM marks a file whose UTF-8 byte order mark was stripped.
	FileHadBOM
	// FileNormalizedCRLF marks a file whose CRLF line endings were rewritten.
	FileNormalizedCRLF
)

// File is one loaded source: a Go file or a schema file.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	// LineIdx holds the byte offset of every '\n' in Content.
	LineIdx []uint32
	// Hash is the sha256 of Content; the disk cache keys on it.
	Hash  [32]byte
	Flags FileFlags
}

// LineCol is a 1-based line and byte column.
type LineCol struct {
	Line uint32
	Col  uint32
}
