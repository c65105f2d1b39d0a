package preview

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
)

var highlighter = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
)

// Highlight renders markup as a syntax-highlighted HTML code block.
func Highlight(html string) (string, error) {
	fence := codeFence(html)
	src := fence + "html\n" + html + "\n" + fence + "\n"

	var buf bytes.Buffer
	if err := highlighter.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("highlighting markup: %w", err)
	}
	return buf.String(), nil
}

// codeFence returns a backtick fence longer than any backtick run in s, so
// the content cannot close the block early.
func codeFence(s string) string {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	if longest < 3 {
		return "```"
	}
	return strings.Repeat("`", longest+1)
}
