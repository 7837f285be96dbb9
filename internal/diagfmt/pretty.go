package diagfmt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"shapegen/internal/diag"
	"shapegen/internal/source"
)

// Pretty writes diagnostics as compiler-style text:
//
//	geo.go:12:2: ERROR SHP1002: Point: embedded field
//	   12 |     Base
//	      |     ^^^^
//
// Diagnostics without a file print the header line only.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) error {
	p := &printer{w: w, fs: fs, opts: opts, pal: newPalette(opts.Color)}
	for _, d := range bag.Items() {
		p.diagnostic(d)
	}
	return p.err
}

// Summary returns "N errors, M warnings" for a bag, or "" when it is empty.
func Summary(bag *diag.Bag) string {
	var errs, warns, infos int
	for _, d := range bag.Items() {
		switch d.Severity {
		case diag.SevError:
			errs++
		case diag.SevWarning:
			warns++
		default:
			infos++
		}
	}
	var parts []string
	for _, c := range []struct {
		n    int
		noun string
	}{{errs, "error"}, {warns, "warning"}, {infos, "note"}} {
		switch {
		case c.n == 1:
			parts = append(parts, "1 "+c.noun)
		case c.n > 1:
			parts = append(parts, strconv.Itoa(c.n)+" "+c.noun+"s")
		}
	}
	return strings.Join(parts, ", ")
}

type palette struct {
	err, warn, info *color.Color
	loc, code       *color.Color
	gutter, marker  *color.Color
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		err:    mk(color.FgRed, color.Bold),
		warn:   mk(color.FgYellow, color.Bold),
		info:   mk(color.FgCyan),
		loc:    mk(color.Bold),
		code:   mk(color.Faint),
		gutter: mk(color.FgBlue),
		marker: mk(color.FgRed, color.Bold),
	}
}

func (pal palette) severity(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return pal.err
	case diag.SevWarning:
		return pal.warn
	}
	return pal.info
}

type printer struct {
	w    io.Writer
	fs   *source.FileSet
	opts PrettyOpts
	pal  palette
	err  error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) diagnostic(d diag.Diagnostic) {
	sev := p.pal.severity(d.Severity).Sprint(d.Severity)
	code := p.pal.code.Sprint(d.Code.ID())
	f := p.fs.Get(d.Primary.File)
	if f == nil {
		p.printf("%s %s: %s\n", sev, code, d.Message)
	} else {
		start, end := p.fs.Resolve(d.Primary)
		p.printf("%s: %s %s: %s\n", p.location(f, start), sev, code, d.Message)
		p.snippet(f, start, end)
	}
	if !p.opts.ShowNotes {
		return
	}
	for _, n := range d.Notes {
		if nf := p.fs.Get(n.Span.File); nf != nil {
			start, _ := p.fs.Resolve(n.Span)
			p.printf("  %s %s: %s\n", p.pal.info.Sprint("note:"), p.location(nf, start), n.Msg)
			continue
		}
		p.printf("  %s %s\n", p.pal.info.Sprint("note:"), n.Msg)
	}
}

func (p *printer) location(f *source.File, pos source.LineCol) string {
	return p.pal.loc.Sprintf("%s:%d:%d", displayPath(p.fs, f, p.opts.PathMode), pos.Line, pos.Col)
}

// snippet prints the primary line with up to Context lines around it and a
// marker under the span. Spans covering several lines are marked up to the
// end of the first one.
func (p *printer) snippet(f *source.File, start, end source.LineCol) {
	lines := uint32(len(f.LineIdx)) + 1 //nolint:gosec // bounded by source.FileSet.Add
	if len(f.Content) > 0 && f.Content[len(f.Content)-1] == '\n' {
		lines--
	}
	if start.Line == 0 || start.Line > lines {
		return
	}
	ctx := uint32(max(p.opts.Context, 0)) //nolint:gosec // non-negative
	first := start.Line - min(ctx, start.Line-1)
	last := min(start.Line+ctx, lines)
	width := len(strconv.FormatUint(uint64(last), 10))

	for n := first; n <= last; n++ {
		text := f.GetLine(n)
		p.printf("%s %s %s\n", p.pal.gutter.Sprintf("%*d", width, n), p.pal.gutter.Sprint("|"), text)
		if n != start.Line {
			continue
		}
		endCol := uint32(len(text)) + 1 //nolint:gosec // one line of a bounded file
		if end.Line == start.Line {
			endCol = min(end.Col, endCol)
		}
		pad, mark := underline(text, int(start.Col), int(endCol))
		p.printf("%s %s %s%s\n", strings.Repeat(" ", width), p.pal.gutter.Sprint("|"), pad, p.pal.marker.Sprint(mark))
	}
}

// underline returns the padding and carets marking bytes [startCol, endCol)
// of line, both 1-based. Padding keeps tabs so the marker lines up however
// the terminal expands them; other runes are padded by display width.
func underline(line string, startCol, endCol int) (string, string) {
	from := min(max(startCol-1, 0), len(line))
	to := min(max(endCol-1, from), len(line))

	var pad strings.Builder
	for _, r := range line[:from] {
		if r == '\t' {
			pad.WriteByte('\t')
			continue
		}
		pad.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
	}
	n := max(runewidth.StringWidth(line[from:to]), 1)
	return pad.String(), strings.Repeat("^", n)
}
