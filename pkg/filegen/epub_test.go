package filegen

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shishobooks/libsync/internal/testgen"
	"github.com/shishobooks/libsync/pkg/epub"
	"github.com/shishobooks/libsync/pkg/errcodes"
	"github.com/shishobooks/libsync/pkg/htmlutil"
	"github.com/shishobooks/libsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntry(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		r, err := f.Open()
		require.NoError(t, err)
		defer r.Close()
		b, err := io.ReadAll(r)
		require.NoError(t, err)
		return string(b)
	}
	t.Fatalf("entry %s not found", name)
	return ""
}

func cleanDocs(t *testing.T, story models.Story, bodies ...string) []*models.Document {
	t.Helper()
	docs := make([]*models.Document, len(bodies))
	for i, body := range bodies {
		doc, err := htmlutil.Clean(story.Parts[i].Title, story.Parts[i].ID, body)
		require.NoError(t, err)
		docs[i] = doc
	}
	return docs
}

func TestEPUBGenerator_Generate(t *testing.T) {
	t.Parallel()

	story := testgen.GenerateStory(testgen.StoryOptions{
		ID:         42,
		Title:      "Tom & Jerry",
		ModifyDate: "2024-03-04T05:06:07Z",
		Username:   "writer",
	})
	story.Tags = []string{"comedy", "cats"}
	story.Description = "<p>A cat &amp; a mouse.</p>"
	docs := cleanDocs(t, story, "<p>First.</p>", "<p>Second.</p>")

	jpg := testgen.GenerateImage(t, "image/jpeg")
	cover := &models.Image{URL: "https://img/cover-512-x.jpg", Data: jpg, MimeType: "image/jpeg", Extension: ".jpg"}

	data, err := NewEPUBGenerator().Generate(&story, docs, cover, nil)
	require.NoError(t, err)

	book, err := epub.ParseBytes(data)
	require.NoError(t, err)

	assert.Equal(t, "Tom & Jerry", book.Title)
	assert.Equal(t, []string{"writer"}, book.Creators)
	assert.Equal(t, "en", book.Language)
	assert.Equal(t, "A cat & a mouse.", book.Description)
	assert.Equal(t, []string{"comedy", "cats"}, book.Subjects)
	assert.Equal(t, "2024-03-04T05:06:07Z", book.Modified)
	assert.Equal(t, "urn:uuid:"+Identifier(42).String(), book.Identifier)
	assert.Equal(t, "image/jpeg", book.CoverMimeType)
	assert.Equal(t, jpg, book.CoverData)
	assert.Equal(t, []string{
		"OEBPS/text/cover.xhtml",
		"OEBPS/text/part-4201.xhtml",
		"OEBPS/text/part-4202.xhtml",
	}, book.Spine)

	require.Len(t, book.Chapters, 2)
	assert.Equal(t, "Chapter 1", book.Chapters[0].Title)
	assert.Equal(t, "text/part-4201.xhtml", book.Chapters[0].Href)

	assert.Equal(t, "mimetype", book.Files[0])

	part := readEntry(t, data, "OEBPS/text/part-4202.xhtml")
	assert.Contains(t, part, `<html xmlns="http://www.w3.org/1999/xhtml"`)
	assert.Contains(t, part, "<h1>Chapter 2</h1><p>Second.</p>")
}

func TestEPUBGenerator_CreatorDisplayName(t *testing.T) {
	t.Parallel()

	story := testgen.GenerateStory(testgen.StoryOptions{ID: 7, Title: "Named"})
	docs := cleanDocs(t, story, "<p>a</p>", "<p>b</p>")

	data, err := NewEPUBGenerator().Generate(&story, docs, nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, readEntry(t, data, "OEBPS/content.opf"), `property="file-as"`)

	story.User.Name = "Jane Writer"
	data, err = NewEPUBGenerator().Generate(&story, docs, nil, nil)
	require.NoError(t, err)
	opf := readEntry(t, data, "OEBPS/content.opf")
	assert.Contains(t, opf, `property="file-as"`)
	assert.Contains(t, opf, "Jane Writer")
}

func TestEPUBGenerator_IdentifierIsStable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Identifier(7), Identifier(7))
	assert.NotEqual(t, Identifier(7), Identifier(8))
}

func TestEPUBGenerator_EmbedsImages(t *testing.T) {
	t.Parallel()

	story := testgen.GenerateStory(testgen.StoryOptions{ID: 5, Title: "Pictures"})
	docs := cleanDocs(t, story,
		`<p>a<img src="https://img/a.png" alt="a"/></p><p><img src="https://img/missing.png"/></p>`,
		`<p><img src="https://img/a.png"/>b</p>`,
	)

	png := testgen.GenerateImage(t, "image/png")
	a := &models.Image{URL: "https://img/a.png", Data: png, MimeType: "image/png", Extension: ".png"}
	images := [][]*models.Image{{a, nil}, {a}}

	data, err := NewEPUBGenerator().Generate(&story, docs, nil, images)
	require.NoError(t, err)

	first := readEntry(t, data, "OEBPS/text/part-501.xhtml")
	assert.Contains(t, first, `<img src="../images/img-1.png" alt="a"/>`)
	assert.NotContains(t, first, "missing.png")

	second := readEntry(t, data, "OEBPS/text/part-502.xhtml")
	assert.Contains(t, second, `<img src="../images/img-1.png"/>b`)

	opf := readEntry(t, data, "OEBPS/content.opf")
	assert.Equal(t, 1, strings.Count(opf, `href="images/img-1.png"`))
	assert.NotContains(t, opf, `name="cover"`)

	book, err := epub.ParseBytes(data)
	require.NoError(t, err)
	assert.Empty(t, book.CoverFilepath)
	assert.Contains(t, book.Files, "OEBPS/images/img-1.png")
}

func TestEPUBGenerator_DropsImagesWhenNotCollected(t *testing.T) {
	t.Parallel()

	story := testgen.GenerateStory(testgen.StoryOptions{ID: 6, Title: "Remote", PartCount: 1})
	docs := cleanDocs(t, story, `<p>x<img src="https://img/a.png"/></p>`)

	data, err := NewEPUBGenerator().Generate(&story, docs, nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, readEntry(t, data, "OEBPS/text/part-601.xhtml"), "<img")
}

func TestEPUBGenerator_FallsBackToNow(t *testing.T) {
	t.Parallel()

	story := testgen.GenerateStory(testgen.StoryOptions{ID: 9, Title: "Undated", PartCount: 1})
	story.ModifyDate = "yesterday"
	docs := cleanDocs(t, story, "<p>x</p>")

	g := &EPUBGenerator{now: func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }}
	data, err := g.Generate(&story, docs, nil, nil)
	require.NoError(t, err)

	book, err := epub.ParseBytes(data)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02T03:04:05Z", book.Modified)
}

func TestEPUBGenerator_Errors(t *testing.T) {
	t.Parallel()

	story := testgen.GenerateStory(testgen.StoryOptions{ID: 1, Title: "Empty"})

	_, err := NewEPUBGenerator().Generate(&story, nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, errcodes.CodeEncoding, errcodes.CodeOf(err))
	assert.True(t, errcodes.IsItemFatal(err))

	_, err = NewEPUBGenerator().Generate(&story, []*models.Document{nil}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, errcodes.CodeEncoding, errcodes.CodeOf(err))
}

func TestGetGenerator(t *testing.T) {
	t.Parallel()

	g, err := GetGenerator(models.FileTypeEPUB)
	require.NoError(t, err)
	assert.Equal(t, models.FileTypeEPUB, g.SupportedType())

	_, err = GetGenerator("pdf")
	assert.Error(t, err)
}

func TestLanguageCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "en", languageCode("English"))
	assert.Equal(t, "es", languageCode(" Español "))
	assert.Equal(t, "und", languageCode(""))
	assert.Equal(t, "und", languageCode("Klingon"))
}
