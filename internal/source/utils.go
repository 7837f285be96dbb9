package source

import (
	"bytes"
	"path/filepath"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// normalize strips a UTF-8 byte order mark and rewrites CRLF line endings
// to LF so spans and columns match what go/parser and the schema decoders
// see. Lone '\r' bytes are kept.
func normalize(content []byte) ([]byte, FileFlags) {
	var flags FileFlags
	if bytes.HasPrefix(content, utf8BOM) {
		content = content[len(utf8BOM):]
		flags |= FileHadBOM
	}
	if !bytes.Contains(content, []byte("\r\n")) {
		return content, flags
	}
	return bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n")), flags | FileNormalizedCRLF
}

func buildLineIndex(content []byte) []uint32 {
	out := make([]uint32, 0, len(content)/32+1)
	for i, b := range content {
		if b == '\n' {
			out = append(out, uint32(i)) //nolint:gosec // file sizes are bounded by Add
		}
	}
	return out
}

// toLineCol finds the line of off by binary search over the newline
// offsets: the line starts after the last newline before off.
func toLineCol(lineIdx []uint32, off uint32) LineCol {
	lo, hi := 0, len(lineIdx)-1
	for lo <= hi {
		mid := (lo + hi) >> 1
		if lineIdx[mid] < off {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	line := hi + 1
	var startOff uint32
	if line > 0 {
		startOff = lineIdx[line-1] + 1
	}
	return LineCol{Line: uint32(line + 1), Col: off - startOff + 1} //nolint:gosec // line < len(lineIdx)+1
}

// normalizePath gives paths one slash-separated form across platforms.
func normalizePath(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}
