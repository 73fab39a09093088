package htmlutil

import (
	"strings"

	"github.com/shishobooks/libsync/pkg/errcodes"
	"github.com/shishobooks/libsync/pkg/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// droppedElements are removed together with their content.
var droppedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Embed:    true,
	atom.Form:     true,
	atom.Noscript: true,
	atom.Link:     true,
	atom.Meta:     true,
	atom.Button:   true,
	atom.Input:    true,
}

// allowedAttrs lists the attributes kept per element. Every other attribute
// is stripped.
var allowedAttrs = map[atom.Atom]map[string]bool{
	atom.Img: {"src": true, "alt": true},
	atom.A:   {"href": true},
}

// Clean parses the raw markup of a part and returns its cleaned tree under a
// <body> element, headed by the part title. A part without any text yields
// a document holding only the heading.
func Clean(title string, partID int, raw string) (*models.Document, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

	var nodes []*html.Node
	if strings.TrimSpace(raw) != "" {
		var err error
		nodes, err = html.ParseFragment(strings.NewReader(raw), body)
		if err != nil {
			return nil, errcodes.MalformedContent(err, "failed to parse part markup")
		}
	}

	heading := &html.Node{Type: html.ElementNode, Data: "h1", DataAtom: atom.H1}
	heading.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	body.AppendChild(heading)

	for _, n := range nodes {
		body.AppendChild(n)
	}
	cleanNode(body)

	return &models.Document{
		Title:  title,
		PartID: partID,
		Body:   body,
	}, nil
}

func cleanNode(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling

		switch c.Type {
		case html.CommentNode, html.DoctypeNode:
			n.RemoveChild(c)
		case html.ElementNode:
			if droppedElements[c.DataAtom] || (c.DataAtom == atom.Img && attr(c, "src") == "") {
				n.RemoveChild(c)
				break
			}
			c.Attr = filterAttrs(c)
			cleanNode(c)
		default:
			// Text nodes are kept as is.
		}

		c = next
	}
}

func filterAttrs(n *html.Node) []html.Attribute {
	allowed := allowedAttrs[n.DataAtom]
	if allowed == nil {
		return nil
	}
	var kept []html.Attribute
	for _, a := range n.Attr {
		if a.Namespace == "" && allowed[a.Key] {
			kept = append(kept, a)
		}
	}
	return kept
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}
