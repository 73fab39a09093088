package epub

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Chapter is an entry of the navigation document's table of contents.
type Chapter struct {
	Title    string
	Href     string
	Children []Chapter
}

// NavHTML represents the EPUB 3 navigation document structure.
type NavHTML struct {
	XMLName xml.Name `xml:"html"`
	Body    struct {
		Nav []NavElement `xml:"nav"`
	} `xml:"body"`
}

// NavElement represents a nav element in the navigation document.
type NavElement struct {
	Type string `xml:"type,attr"`
	OL   *NavOL `xml:"ol"`
}

type NavOL struct {
	Items []NavLI `xml:"li"`
}

type NavLI struct {
	A        *NavLink `xml:"a"`
	Span     *NavSpan `xml:"span"`
	Children *NavOL   `xml:"ol"`
}

type NavLink struct {
	Href string `xml:"href,attr"`
	Text string `xml:",chardata"`
}

type NavSpan struct {
	Text string `xml:",chardata"`
}

// parseNavDocument returns the table of contents of a navigation document.
func parseNavDocument(r io.Reader) ([]Chapter, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var nav NavHTML
	d := xml.NewDecoder(strings.NewReader(string(data)))
	// XHTML pages start with an HTML5 doctype and may use named entities.
	d.Strict = false
	d.Entity = xml.HTMLEntity
	if err := d.Decode(&nav); err != nil {
		return nil, errors.Wrap(err, "failed to parse navigation document")
	}

	for _, n := range nav.Body.Nav {
		if n.Type == "toc" && n.OL != nil {
			return parseNavOL(n.OL), nil
		}
	}

	return nil, nil
}

func parseNavOL(ol *NavOL) []Chapter {
	if ol == nil {
		return nil
	}

	chapters := make([]Chapter, 0, len(ol.Items))
	for _, li := range ol.Items {
		var ch Chapter
		if li.A != nil {
			ch.Title = strings.TrimSpace(li.A.Text)
			ch.Href = li.A.Href
		} else if li.Span != nil {
			ch.Title = strings.TrimSpace(li.Span.Text)
		}

		// Skip items without a title
		if ch.Title == "" {
			continue
		}

		if li.Children != nil {
			ch.Children = parseNavOL(li.Children)
		}

		chapters = append(chapters, ch)
	}

	return chapters
}
