package filegen

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/shishobooks/libsync/pkg/htmlutil"
	"github.com/shishobooks/libsync/pkg/models"
	"golang.org/x/net/html"
)

const (
	epubMimetype   = "application/epub+zip"
	contentDir     = "OEBPS"
	opfPath        = contentDir + "/content.opf"
	xhtmlMimeType  = "application/xhtml+xml"
	bookIDRef      = "book-id"
	coverImageID   = "cover-image"
	modifiedLayout = "2006-01-02T15:04:05Z"
)

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="` + opfPath + `" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

// EPUBGenerator builds EPUB 3 archives from cleaned story parts.
type EPUBGenerator struct {
	// now supplies the modification timestamp when the story doesn't carry a
	// parseable one.
	now func() time.Time
}

func NewEPUBGenerator() *EPUBGenerator {
	return &EPUBGenerator{now: time.Now}
}

// SupportedType returns the file type this generator handles.
func (g *EPUBGenerator) SupportedType() string {
	return models.FileTypeEPUB
}

type manifestEntry struct {
	item opfItem
	data []byte
}

// Generate encodes the story into an EPUB. images holds one list per
// document, matching the document's <img> elements in order; images without
// data are dropped from the content. cover may be nil.
func (g *EPUBGenerator) Generate(story *models.Story, docs []*models.Document, cover *models.Image, images [][]*models.Image) ([]byte, error) {
	if story == nil {
		return nil, newGenerationError(models.FileTypeEPUB, nil, "no story")
	}
	if len(docs) == 0 {
		return nil, newGenerationError(models.FileTypeEPUB, nil, "story has no parts")
	}

	modified := g.modified(story)
	lang := languageCode(story.LanguageName())

	var entries []manifestEntry
	var spine []opfItemref

	if cover != nil && len(cover.Data) > 0 {
		entries = append(entries, manifestEntry{
			item: opfItem{
				ID:         coverImageID,
				Href:       "images/cover" + cover.Extension,
				MediaType:  cover.MimeType,
				Properties: "cover-image",
			},
			data: cover.Data,
		})
		page, err := xhtmlPage(story.Title, lang, coverBody(story.Title, "../images/cover"+cover.Extension))
		if err != nil {
			return nil, newGenerationError(models.FileTypeEPUB, err, "failed to render cover page")
		}
		entries = append(entries, manifestEntry{
			item: opfItem{ID: "cover", Href: "text/cover.xhtml", MediaType: xhtmlMimeType},
			data: page,
		})
		spine = append(spine, opfItemref{IDRef: "cover", Linear: "no"})
	}

	embedded := map[string]string{}
	var imageEntries []manifestEntry
	for i, doc := range docs {
		if doc == nil || doc.Body == nil {
			return nil, newGenerationError(models.FileTypeEPUB, nil, fmt.Sprintf("document %d is empty", i))
		}

		var docImages []*models.Image
		if i < len(images) {
			docImages = images[i]
		}
		goquery.NewDocumentFromNode(doc.Body).Find("img").Each(func(j int, s *goquery.Selection) {
			var img *models.Image
			if j < len(docImages) {
				img = docImages[j]
			}
			if img == nil || len(img.Data) == 0 {
				s.Remove()
				return
			}
			href, ok := embedded[img.URL]
			if !ok {
				id := "img-" + strconv.Itoa(len(embedded)+1)
				href = "images/" + id + img.Extension
				embedded[img.URL] = href
				imageEntries = append(imageEntries, manifestEntry{
					item: opfItem{ID: id, Href: href, MediaType: img.MimeType},
					data: img.Data,
				})
			}
			s.SetAttr("src", "../"+href)
		})

		page, err := xhtmlPage(doc.Title, lang, doc.Body)
		if err != nil {
			return nil, newGenerationError(models.FileTypeEPUB, err, fmt.Sprintf("failed to render part %d", doc.PartID))
		}
		id := "part-" + strconv.Itoa(doc.PartID)
		entries = append(entries, manifestEntry{
			item: opfItem{ID: id, Href: "text/" + id + ".xhtml", MediaType: xhtmlMimeType},
			data: page,
		})
		spine = append(spine, opfItemref{IDRef: id})
	}
	entries = append(entries, imageEntries...)

	nav, err := navDocument(story.Title, lang, docs)
	if err != nil {
		return nil, newGenerationError(models.FileTypeEPUB, err, "failed to render navigation")
	}
	entries = append(entries, manifestEntry{
		item: opfItem{ID: "nav", Href: "nav.xhtml", MediaType: xhtmlMimeType, Properties: "nav"},
		data: nav,
	})

	opf, err := g.packageDocument(story, lang, modified, cover != nil && len(cover.Data) > 0, entries, spine)
	if err != nil {
		return nil, newGenerationError(models.FileTypeEPUB, err, "failed to render package document")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// The mimetype entry must come first and be stored uncompressed.
	if err := writeEntry(zw, "mimetype", []byte(epubMimetype), zip.Store, modified); err != nil {
		return nil, newGenerationError(models.FileTypeEPUB, err, "failed to write mimetype")
	}
	if err := writeEntry(zw, "META-INF/container.xml", []byte(containerXML), zip.Deflate, modified); err != nil {
		return nil, newGenerationError(models.FileTypeEPUB, err, "failed to write container")
	}
	if err := writeEntry(zw, opfPath, opf, zip.Deflate, modified); err != nil {
		return nil, newGenerationError(models.FileTypeEPUB, err, "failed to write package document")
	}
	for _, e := range entries {
		method := zip.Deflate
		if strings.HasPrefix(e.item.MediaType, "image/") {
			// Already compressed.
			method = zip.Store
		}
		if err := writeEntry(zw, contentDir+"/"+e.item.Href, e.data, method, modified); err != nil {
			return nil, newGenerationError(models.FileTypeEPUB, err, "failed to write "+e.item.Href)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, newGenerationError(models.FileTypeEPUB, err, "failed to finalize archive")
	}

	return buf.Bytes(), nil
}

func (g *EPUBGenerator) modified(story *models.Story) time.Time {
	if t, err := time.Parse(time.RFC3339, story.ModifyDate); err == nil {
		return t.UTC()
	}
	return g.now().UTC()
}

func (g *EPUBGenerator) packageDocument(story *models.Story, lang string, modified time.Time, hasCover bool, entries []manifestEntry, spine []opfItemref) ([]byte, error) {
	pkg := opfPackage{
		Xmlns:            "http://www.idpf.org/2007/opf",
		Version:          "3.0",
		UniqueIdentifier: bookIDRef,
		Lang:             lang,
		Metadata: opfMetadata{
			XmlnsDC:     "http://purl.org/dc/elements/1.1/",
			Identifier:  opfIdentifier{ID: bookIDRef, Value: "urn:uuid:" + Identifier(story.ID).String()},
			Title:       story.Title,
			Creator:     opfCreator{ID: "creator", Value: story.User.Username},
			Language:    lang,
			Description: strings.TrimSpace(htmlutil.StripTags(story.Description)),
			Date:        story.CreateDate,
			Source:      story.URL,
			Subjects:    story.Tags,
			Meta: []opfMeta{
				{Property: "dcterms:modified", Value: modified.Format(modifiedLayout)},
				{Refines: "#creator", Property: "role", Value: "aut"},
			},
		},
		Spine: opfSpine{Itemrefs: spine},
	}
	if story.User.Name != "" {
		pkg.Metadata.Meta = append(pkg.Metadata.Meta, opfMeta{Refines: "#creator", Property: "file-as", Value: story.User.Name})
	}
	if story.Copyright != 0 {
		pkg.Metadata.Rights = "copyright-" + strconv.Itoa(story.Copyright)
	}
	if hasCover {
		pkg.Metadata.Meta = append(pkg.Metadata.Meta, opfMeta{Name: "cover", Content: coverImageID})
	}
	for _, e := range entries {
		pkg.Manifest.Items = append(pkg.Manifest.Items, e.item)
	}

	out, err := xml.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// Identifier returns the stable EPUB identifier of a story.
func Identifier(storyID int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://www.wattpad.com/story/"+strconv.Itoa(storyID)))
}

// languageCode maps the language names used by the library listing to
// BCP 47 tags.
func languageCode(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "english":
		return "en"
	case "español", "spanish":
		return "es"
	case "français", "french":
		return "fr"
	case "deutsch", "german":
		return "de"
	case "italiano", "italian":
		return "it"
	case "português", "portuguese":
		return "pt"
	case "filipino":
		return "fil"
	case "tagalog":
		return "tl"
	case "bahasa indonesia", "indonesian":
		return "id"
	case "türkçe", "turkish":
		return "tr"
	case "русский", "russian":
		return "ru"
	case "polski", "polish":
		return "pl"
	case "nederlands", "dutch":
		return "nl"
	case "tiếng việt", "vietnamese":
		return "vi"
	case "العربية", "arabic":
		return "ar"
	case "日本語", "japanese":
		return "ja"
	case "한국어", "korean":
		return "ko"
	default:
		return "und"
	}
}

func writeEntry(zw *zip.Writer, name string, data []byte, method uint16, modified time.Time) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: modified,
	})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// xhtmlPage renders body inside an XHTML document.
func xhtmlPage(title, lang string, body *html.Node) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&buf, `<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" lang="%s" xml:lang="%s">`, lang, lang)
	fmt.Fprintf(&buf, "\n<head>\n<meta charset=\"utf-8\"/>\n<title>%s</title>\n</head>\n", html.EscapeString(title))
	if err := html.Render(&buf, body); err != nil {
		return nil, err
	}
	buf.WriteString("\n</html>\n")
	return buf.Bytes(), nil
}

func coverBody(title, src string) *html.Node {
	body := element("body")
	div := element("div")
	img := element("img")
	img.Attr = []html.Attribute{{Key: "src", Val: src}, {Key: "alt", Val: title}}
	div.AppendChild(img)
	body.AppendChild(div)
	return body
}

func navDocument(title, lang string, docs []*models.Document) ([]byte, error) {
	body := element("body")
	nav := element("nav")
	nav.Attr = []html.Attribute{{Key: "epub:type", Val: "toc"}, {Key: "id", Val: "toc"}}
	heading := element("h1")
	heading.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	nav.AppendChild(heading)

	ol := element("ol")
	for _, doc := range docs {
		li := element("li")
		a := element("a")
		a.Attr = []html.Attribute{{Key: "href", Val: "text/part-" + strconv.Itoa(doc.PartID) + ".xhtml"}}
		a.AppendChild(&html.Node{Type: html.TextNode, Data: doc.Title})
		li.AppendChild(a)
		ol.AppendChild(li)
	}
	nav.AppendChild(ol)
	body.AppendChild(nav)

	return xhtmlPage(title, lang, body)
}

func element(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag}
}
