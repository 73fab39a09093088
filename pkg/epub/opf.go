// Package epub reads back the metadata and structure of an EPUB archive.
package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
)

const mimetype = "application/epub+zip"

// Book is the parsed view of an EPUB archive.
type Book struct {
	Identifier    string
	Title         string
	Creators      []string
	Language      string
	Description   string
	Subjects      []string
	Modified      string
	CoverFilepath string
	CoverMimeType string
	CoverData     []byte
	// Spine holds the archive paths of the reading order documents.
	Spine    []string
	Chapters []Chapter
	// Files lists every entry of the archive in order.
	Files []string
}

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type Package struct {
	XMLName          xml.Name `xml:"package"`
	Version          string   `xml:"version,attr"`
	UniqueIdentifier string   `xml:"unique-identifier,attr"`
	Metadata         struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
			Role string `xml:"role,attr"`
		} `xml:"creator"`
		Description string `xml:"description"`
		Identifier  []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"identifier"`
		Language string   `xml:"language"`
		Subject  []string `xml:"subject"`
		Meta     []struct {
			Text     string `xml:",chardata"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Item []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Itemref []struct {
			Idref string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// Parse reads the EPUB at filename.
func Parse(filename string) (*Book, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ParseBytes(data)
}

// ParseBytes reads an EPUB held in memory. The archive must start with a
// stored mimetype entry and name its package document in
// META-INF/container.xml.
func ParseBytes(data []byte) (*Book, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "not a zip archive")
	}
	if err := checkMimetype(zr); err != nil {
		return nil, err
	}

	files := map[string]*zip.File{}
	book := &Book{}
	for _, f := range zr.File {
		files[f.Name] = f
		book.Files = append(book.Files, f.Name)
	}

	var c container
	if err := readXML(files, "META-INF/container.xml", &c); err != nil {
		return nil, err
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return nil, errors.New("container names no package document")
	}
	opfPath := c.Rootfiles[0].FullPath

	pkg := &Package{}
	if err := readXML(files, opfPath, pkg); err != nil {
		return nil, err
	}

	// Manifest hrefs are relative to the package document.
	basePath := path.Dir(opfPath)
	resolve := func(href string) string {
		if basePath == "." {
			return href
		}
		return basePath + "/" + href
	}

	fillMetadata(book, pkg)

	hrefs := map[string]string{}
	var navPath string
	for _, item := range pkg.Manifest.Item {
		hrefs[item.ID] = resolve(item.Href)
		props := strings.Fields(item.Properties)
		for _, p := range props {
			switch p {
			case "nav":
				navPath = resolve(item.Href)
			case "cover-image":
				book.CoverFilepath = resolve(item.Href)
				book.CoverMimeType = item.MediaType
			}
		}
	}
	if book.CoverFilepath == "" {
		for _, m := range pkg.Metadata.Meta {
			if m.Name != "cover" {
				continue
			}
			for _, item := range pkg.Manifest.Item {
				if item.ID == m.Content {
					book.CoverFilepath = resolve(item.Href)
					book.CoverMimeType = item.MediaType
				}
			}
		}
	}

	for _, ref := range pkg.Spine.Itemref {
		href, ok := hrefs[ref.Idref]
		if !ok {
			return nil, errors.Errorf("spine references unknown item %q", ref.Idref)
		}
		book.Spine = append(book.Spine, href)
	}

	if book.CoverFilepath != "" {
		f, ok := files[book.CoverFilepath]
		if !ok {
			return nil, errors.Errorf("cover %s is missing from the archive", book.CoverFilepath)
		}
		book.CoverData, err = readFile(f)
		if err != nil {
			return nil, err
		}
	}

	if f, ok := files[navPath]; ok {
		r, err := f.Open()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		defer r.Close()
		book.Chapters, err = parseNavDocument(r)
		if err != nil {
			return nil, err
		}
	}

	return book, nil
}

func fillMetadata(book *Book, pkg *Package) {
	if len(pkg.Metadata.Title) > 0 {
		book.Title = strings.TrimSpace(pkg.Metadata.Title[0].Text)
	}
	for _, creator := range pkg.Metadata.Creator {
		book.Creators = append(book.Creators, strings.TrimSpace(creator.Text))
	}
	for _, id := range pkg.Metadata.Identifier {
		if id.ID == pkg.UniqueIdentifier || book.Identifier == "" {
			book.Identifier = strings.TrimSpace(id.Text)
		}
	}
	book.Language = strings.TrimSpace(pkg.Metadata.Language)
	book.Description = strings.TrimSpace(pkg.Metadata.Description)
	book.Subjects = pkg.Metadata.Subject
	for _, m := range pkg.Metadata.Meta {
		if m.Property == "dcterms:modified" && m.Refines == "" {
			book.Modified = strings.TrimSpace(m.Text)
		}
	}
}

func checkMimetype(zr *zip.Reader) error {
	if len(zr.File) == 0 || zr.File[0].Name != "mimetype" {
		return errors.New("mimetype must be the first entry")
	}
	f := zr.File[0]
	if f.Method != zip.Store {
		return errors.New("mimetype must be stored uncompressed")
	}
	b, err := readFile(f)
	if err != nil {
		return err
	}
	if string(b) != mimetype {
		return errors.Errorf("unexpected mimetype %q", string(b))
	}
	return nil
}

func readXML(files map[string]*zip.File, name string, v interface{}) error {
	f, ok := files[name]
	if !ok {
		return errors.Errorf("%s not found", name)
	}
	b, err := readFile(f)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(b, v); err != nil {
		return errors.Wrapf(err, "failed to parse %s", name)
	}
	return nil
}

func readFile(f *zip.File) ([]byte, error) {
	r, err := f.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return b, nil
}
