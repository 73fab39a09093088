package htmlutil

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// multipleSpacesPattern matches multiple consecutive whitespace characters.
var multipleSpacesPattern = regexp.MustCompile(`\s{2,}`)

// lineBreakTags end a line of text when they close.
var lineBreakTags = map[string]bool{
	"p": true, "div": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// StripTags reduces an HTML snippet to plain text. Block-level elements end a
// line, entities are decoded and whitespace is collapsed.
func StripTags(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return normalizeLines(b.String())
		case html.TextToken:
			b.WriteString(strings.ReplaceAll(string(z.Text()), "\u00a0", " "))
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "br" || (tt == html.EndTagToken && lineBreakTags[tag]) {
				b.WriteByte('\n')
			}
		default:
			// Comments and doctypes carry no text.
		}
	}
}

func normalizeLines(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(multipleSpacesPattern.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
