package container

import (
	"archive/zip"
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/shishobooks/libsync/pkg/errcodes"
	"github.com/shishobooks/libsync/pkg/models"
)

// RawPart is the undecoded markup of one part, in reading order.
type RawPart struct {
	ID    int
	Title string
	Text  string
}

// ExtractParts reads the entry of every non-deleted part from the story-text
// archive. Deleted parts are skipped without looking them up. The result
// follows the order of parts, which is the reading order.
func ExtractParts(blob []byte, parts []models.Part) ([]RawPart, error) {
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, errcodes.MalformedContent(err, "story text is not a valid archive")
	}

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}

	raw := make([]RawPart, 0, len(parts))
	for _, part := range parts {
		if part.Deleted {
			continue
		}

		f, ok := entries[part.EntryName()]
		if !ok {
			return nil, errcodes.PartNotFound(part.EntryName())
		}

		data, err := readZipFile(f)
		if err != nil {
			return nil, errcodes.MalformedContent(err, "unreadable part "+part.EntryName())
		}
		if !utf8.Valid(data) {
			return nil, errcodes.MalformedContent(nil, "part "+part.EntryName()+" is not valid UTF-8")
		}

		raw = append(raw, RawPart{
			ID:    part.ID,
			Title: part.Title,
			Text:  string(data),
		})
	}

	return raw, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	r, err := f.Open()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}
