// Package testgen provides utilities for generating story-text archives,
// library listings and images for tests.
package testgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/shishobooks/libsync/pkg/models"
)

// Entry is one file in a generated story-text archive.
type Entry struct {
	Name string
	Body string
}

// GenerateStoryText builds a story-text archive holding the given entries in
// order.
func GenerateStoryText(t *testing.T, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("failed to create entry %s: %v", e.Name, err)
		}
		if _, err := w.Write([]byte(e.Body)); err != nil {
			t.Fatalf("failed to write entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finalize archive: %v", err)
	}

	return buf.Bytes()
}

// StoryTextFor builds an archive with a short paragraph for every
// non-deleted part of story.
func StoryTextFor(t *testing.T, story models.Story) []byte {
	t.Helper()

	var entries []Entry
	for _, p := range story.Parts {
		if p.Deleted {
			continue
		}
		entries = append(entries, Entry{
			Name: p.EntryName(),
			Body: fmt.Sprintf("<p>Text of %s.</p>", p.Title),
		})
	}
	return GenerateStoryText(t, entries...)
}

// StoryOptions configures a generated library entry.
type StoryOptions struct {
	ID         int
	Title      string
	ModifyDate string
	Username   string
	Cover      string
	PartCount  int // defaults to 2
}

// GenerateStory returns a library entry with sequential part IDs derived from
// the story ID.
func GenerateStory(opts StoryOptions) models.Story {
	if opts.PartCount == 0 {
		opts.PartCount = 2
	}
	if opts.Username == "" {
		opts.Username = "writer"
	}
	if opts.ModifyDate == "" {
		opts.ModifyDate = "2024-01-01T00:00:00Z"
	}

	parts := make([]models.Part, opts.PartCount)
	for i := range parts {
		parts[i] = models.Part{
			ID:    opts.ID*100 + i + 1,
			Title: fmt.Sprintf("Chapter %d", i+1),
		}
	}

	return models.Story{
		ID:         opts.ID,
		Title:      opts.Title,
		ModifyDate: opts.ModifyDate,
		User:       models.User{Username: opts.Username},
		Cover:      opts.Cover,
		Parts:      parts,
		Language:   &models.Language{Name: "English"},
	}
}

// GenerateImage returns a small solid color image encoded as mimeType
// ("image/jpeg" or "image/png").
func GenerateImage(t *testing.T, mimeType string) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	blue := color.RGBA{0, 100, 200, 255}
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, blue)
		}
	}

	var buf bytes.Buffer
	switch mimeType {
	case "image/jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			t.Fatalf("failed to encode JPEG: %v", err)
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			t.Fatalf("failed to encode PNG: %v", err)
		}
	}

	return buf.Bytes()
}
