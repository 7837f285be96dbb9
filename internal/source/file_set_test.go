package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSet_ResolveLineCol(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("a.go", []byte("package a\n\ntype T struct{}\n"))

	tests := []struct {
		name string
		off  uint32
		want LineCol
	}{
		{"start of file", 0, LineCol{Line: 1, Col: 1}},
		{"newline belongs to its line", 9, LineCol{Line: 1, Col: 10}},
		{"empty line", 10, LineCol{Line: 2, Col: 1}},
		{"third line", 16, LineCol{Line: 3, Col: 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := fs.Resolve(Span{File: id, Start: tt.off, End: tt.off})
			if got != tt.want {
				t.Errorf("Resolve(%d) = %+v, want %+v", tt.off, got, tt.want)
			}
		})
	}
}

func TestFileSet_GetLine(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("a.go", []byte("one\ntwo\nthree"))
	f := fs.Get(id)
	if got := f.GetLine(2); got != "two" {
		t.Errorf("GetLine(2) = %q, want %q", got, "two")
	}
	if got := f.GetLine(3); got != "three" {
		t.Errorf("GetLine(3) = %q, want %q", got, "three")
	}
	if got := f.GetLine(4); got != "" {
		t.Errorf("GetLine(4) = %q, want empty", got)
	}
}

func TestFileSet_ZeroIDIsNoFile(t *testing.T) {
	fs := NewFileSet()
	fs.AddVirtual("a.go", nil)
	if fs.Get(0) != nil {
		t.Fatal("FileID 0 must not resolve to a file")
	}
	if fs.Get(1) == nil {
		t.Fatal("first file must get FileID 1")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		flags FileFlags
	}{
		{"untouched", "a\nb", "a\nb", 0},
		{"bom", "\xEF\xBB\xBFa\n", "a\n", FileHadBOM},
		{"crlf keeps lone cr", "a\r\nb\rc", "a\nb\rc", FileNormalizedCRLF},
		{"both", "\xEF\xBB\xBFa\r\n", "a\n", FileHadBOM | FileNormalizedCRLF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, flags := normalize([]byte(tt.in))
			if string(out) != tt.want || flags != tt.flags {
				t.Errorf("normalize(%q) = %q, %b; want %q, %b", tt.in, out, flags, tt.want, tt.flags)
			}
		})
	}
}

func TestFileSet_LoadNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.go")
	if err := os.WriteFile(path, []byte("package w\r\n\r\ntype T int\r\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	f := fs.Get(id)
	if f.Flags != FileNormalizedCRLF || f.GetLine(3) != "type T int" {
		t.Errorf("flags = %b, line 3 = %q", f.Flags, f.GetLine(3))
	}
}

func TestSpan(t *testing.T) {
	if got := (Span{File: 1, Start: 5, End: 12}).Len(); got != 7 {
		t.Errorf("Len = %d, want 7", got)
	}
	if got := (Span{File: 1, Start: 9, End: 3}).Len(); got != 0 {
		t.Errorf("inverted span Len = %d, want 0", got)
	}
	if got := NoSpan.String(); got != "-" {
		t.Errorf("NoSpan.String() = %q", got)
	}
}

func TestFile_Offset(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("a.yaml", []byte("types:\n  - name: P\n"))
	f := fs.Get(id)
	tests := []struct {
		line, col, want int
	}{
		{1, 1, 0},
		{2, 5, 11},
		{2, 11, 17},
		{9, 1, len(f.Content)},
	}
	for _, tt := range tests {
		if got := f.Offset(tt.line, tt.col); got != tt.want {
			t.Errorf("Offset(%d, %d) = %d, want %d", tt.line, tt.col, got, tt.want)
		}
	}
}
