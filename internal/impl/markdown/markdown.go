// Package markdown normalizes message content on its way into storage.
// Stored content may therefore differ from the optimistic copy held by the
// client; identity reconciliation matches by role, not content, for exactly
// this reason.
package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Sanitize strips raw HTML from markdown content and normalizes line endings
// and trailing whitespace. Markdown structure itself is left alone.
func Sanitize(source string) string {
	normalized := strings.ReplaceAll(source, "\r\n", "\n")
	data := []byte(normalized)

	md := goldmark.New()
	reader := text.NewReader(data)
	doc := md.Parser().Parse(reader)

	drop := make([]bool, len(data))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.HTMLBlock:
			for i := 0; i < node.Lines().Len(); i++ {
				markSegment(drop, node.Lines().At(i))
			}
		case *ast.RawHTML:
			for i := 0; i < node.Segments.Len(); i++ {
				markSegment(drop, node.Segments.At(i))
			}
		}
		return ast.WalkContinue, nil
	})

	var b strings.Builder
	b.Grow(len(data))
	for i, c := range data {
		if !drop[i] {
			b.WriteByte(c)
		}
	}

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func markSegment(drop []bool, seg text.Segment) {
	for i := seg.Start; i < seg.Stop && i < len(drop); i++ {
		drop[i] = true
	}
}
