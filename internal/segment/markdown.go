package segment

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table),
)

// sectionsFromMarkdown parses markdown and returns one section per heading,
// with the heading text as the section title. Content before the first
// heading lands in a preamble section.
func sectionsFromMarkdown(content []byte) []section {
	reader := text.NewReader(content)
	doc := markdown.Parser().Parse(reader)

	var sections []section
	var builder strings.Builder
	current := preambleSection

	flush := func() {
		body := strings.TrimSpace(builder.String())
		if body != "" {
			sections = append(sections, section{Title: current, Text: body})
		}
		builder.Reset()
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			flush()
			current = headingText(node, content)
			return ast.WalkSkipChildren, nil

		case *ast.Text:
			builder.Write(node.Segment.Value(content))
			builder.WriteByte(' ')

		case *ast.String:
			builder.Write(node.Value)
			builder.WriteByte(' ')

		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				builder.Write(line.Value(content))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	flush()

	return sections
}

// headingText extracts the plain text of a heading node.
func headingText(n ast.Node, content []byte) string {
	var builder strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			builder.Write(v.Segment.Value(content))
		case *ast.String:
			builder.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(builder.String())
}
