package source

import "fmt"

// Span is a half-open byte range [Start, End) inside one file of a FileSet.
type Span struct {
	File  FileID
	Start uint32
	End   uint32
}

// NoSpan marks diagnostics that have no source location (config, IO).
var NoSpan = Span{}

// Len returns the number of bytes covered.
func (s Span) Len() uint32 {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

func (s Span) String() string {
	if s.File == 0 {
		return "-"
	}
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}
