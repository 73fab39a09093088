package htmlutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func render(t *testing.T, n *html.Node) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, html.Render(&buf, n))
	return buf.String()
}

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "prepends title heading",
			input:    "<p>Hello</p>",
			expected: "<body><h1>Chapter</h1><p>Hello</p></body>",
		},
		{
			name:     "strips attributes",
			input:    `<p data-p-id="abc" style="color: red" class="x">Hi</p>`,
			expected: "<body><h1>Chapter</h1><p>Hi</p></body>",
		},
		{
			name:     "keeps image source and alt",
			input:    `<p><img src="https://img/x.jpg" alt="x" width="10"/></p>`,
			expected: `<body><h1>Chapter</h1><p><img src="https://img/x.jpg" alt="x"/></p></body>`,
		},
		{
			name:     "drops images without source",
			input:    `<p>a<img alt="x"/>b</p>`,
			expected: "<body><h1>Chapter</h1><p>ab</p></body>",
		},
		{
			name:     "drops scripts and comments",
			input:    `<p>a</p><script>alert(1)</script><!-- note --><style>p{}</style><p>b</p>`,
			expected: "<body><h1>Chapter</h1><p>a</p><p>b</p></body>",
		},
		{
			name:     "keeps links",
			input:    `<p><a href="https://x" target="_blank">x</a></p>`,
			expected: `<body><h1>Chapter</h1><p><a href="https://x">x</a></p></body>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Clean("Chapter", 12, tt.input)
			require.NoError(t, err)
			assert.Equal(t, "Chapter", doc.Title)
			assert.Equal(t, 12, doc.PartID)
			assert.Equal(t, tt.expected, render(t, doc.Body))
		})
	}
}

func TestClean_EscapesTitle(t *testing.T) {
	t.Parallel()

	doc, err := Clean("Tom & <Jerry>", 1, "<p>x</p>")
	require.NoError(t, err)
	assert.Contains(t, render(t, doc.Body), "<h1>Tom &amp; &lt;Jerry&gt;</h1>")
}

func TestClean_EmptyContent(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "  \n "} {
		doc, err := Clean("Chapter", 1, raw)
		require.NoError(t, err)
		assert.Equal(t, "<body><h1>Chapter</h1></body>", render(t, doc.Body))
	}
}
