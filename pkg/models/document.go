package models

import (
	"golang.org/x/net/html"
)

// Document is the cleaned content of a single part, ready to be encoded.
type Document struct {
	Title  string
	PartID int
	// Body is a <body> element holding the cleaned content.
	Body *html.Node
}

// Image is an image fetched for embedding in an archive. A nil *Image in a
// list of images means the image couldn't be retrieved.
type Image struct {
	URL       string
	Data      []byte
	MimeType  string
	Extension string
}
