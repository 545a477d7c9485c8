// ABOUTME: Markdown stripping for speech playback
// ABOUTME: Walks the goldmark AST and keeps only the spoken text

package tts

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
)

// StripMarkdown removes markdown syntax for cleaner TTS playback: emphasis
// markers, heading markers, backticks, and list bullets all disappear while
// their text content survives.
func StripMarkdown(input string) string {
	source := []byte(input)
	doc := goldmark.New().Parser().Parse(gtext.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			// Separate block-level nodes with a line break.
			switch n.(type) {
			case *ast.Paragraph, *ast.Heading, *ast.ListItem:
				buf.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.FencedCodeBlock:
			writeLines(&buf, source, node)
		case *ast.CodeBlock:
			writeLines(&buf, source, node)
		}
		return ast.WalkContinue, nil
	})

	return collapseBlankLines(buf.String())
}

// writeLines copies a code block's raw lines into the output.
func writeLines(buf *bytes.Buffer, source []byte, node ast.Node) {
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(source))
	}
}

// collapseBlankLines squeezes runs of blank lines down to one and trims the
// surrounding whitespace.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
