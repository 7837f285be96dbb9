package goscan

import (
	"strings"

	"shapegen/internal/decl"
	"shapegen/internal/source"
)

// DirectivePrefix starts every engine directive comment.
const DirectivePrefix = "//shapegen:"

// parseDirective splits one comment line into a verb and its args. base is
// the byte offset of the comment's first slash inside file id.
func parseDirective(text string, id source.FileID, base int) (decl.Directive, bool) {
	if !strings.HasPrefix(text, DirectivePrefix) {
		return decl.Directive{}, false
	}
	rest := text[len(DirectivePrefix):]
	off := base + len(DirectivePrefix)
	verbEnd := strings.IndexAny(rest, " \t")
	if verbEnd < 0 {
		verbEnd = len(rest)
	}
	dir := decl.Directive{
		Verb: rest[:verbEnd],
		Span: source.SpanOf(id, base, base+len(text)),
	}
	dir.Args = splitArgs(rest[verbEnd:], id, off+verbEnd)
	return dir, dir.Verb != ""
}

// splitArgs tokenizes `a b=c d="e f", g` into args. Commas outside quotes
// separate like whitespace. An unterminated quote swallows the rest of the
// line; the interpreter reports it through Quoted with a missing close.
func splitArgs(s string, id source.FileID, base int) []decl.Arg {
	var args []decl.Arg
	i := 0
	for i < len(s) {
		for i < len(s) && isSep(s[i]) {
			i++
		}
		if i >= len(s) {
			break
		}
		start := i
		for i < len(s) && !isSep(s[i]) && s[i] != '=' {
			i++
		}
		arg := decl.Arg{Key: s[start:i]}
		if i < len(s) && s[i] == '=' {
			arg.HasValue = true
			i++
			if i < len(s) && s[i] == '"' {
				arg.Quoted = true
				i++
				vstart := i
				for i < len(s) && s[i] != '"' {
					if s[i] == '\\' && i+1 < len(s) {
						i++
					}
					i++
				}
				arg.Value = unescape(s[vstart:i])
				if i < len(s) {
					i++ // closing quote
				}
			} else {
				vstart := i
				for i < len(s) && !isSep(s[i]) {
					i++
				}
				arg.Value = s[vstart:i]
			}
		}
		arg.Span = source.SpanOf(id, base+start, base+i)
		args = append(args, arg)
	}
	return args
}

func isSep(c byte) bool {
	return c == ' ' || c == '\t' || c == ','
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
