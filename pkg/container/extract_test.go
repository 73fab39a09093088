package container

import (
	"testing"

	"github.com/shishobooks/libsync/internal/testgen"
	"github.com/shishobooks/libsync/pkg/errcodes"
	"github.com/shishobooks/libsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractParts_SkipsDeletedParts(t *testing.T) {
	t.Parallel()

	// The deleted part has no entry at all; it must not be looked up.
	blob := testgen.GenerateStoryText(t,
		testgen.Entry{Name: "3", Body: "<p>three</p>"},
		testgen.Entry{Name: "1", Body: "<p>one</p>"},
	)
	parts := []models.Part{
		{ID: 1, Title: "One"},
		{ID: 2, Title: "Two", Deleted: true},
		{ID: 3, Title: "Three"},
	}

	raw, err := ExtractParts(blob, parts)
	require.NoError(t, err)

	require.Len(t, raw, 2)
	assert.Equal(t, RawPart{ID: 1, Title: "One", Text: "<p>one</p>"}, raw[0])
	assert.Equal(t, RawPart{ID: 3, Title: "Three", Text: "<p>three</p>"}, raw[1])
}

func TestExtractParts_MissingEntry(t *testing.T) {
	t.Parallel()

	blob := testgen.GenerateStoryText(t, testgen.Entry{Name: "1", Body: "<p>one</p>"})
	parts := []models.Part{{ID: 1}, {ID: 9}}

	raw, err := ExtractParts(blob, parts)
	require.Error(t, err)
	assert.Nil(t, raw)
	assert.Equal(t, errcodes.CodePartNotFound, errcodes.CodeOf(err))
	assert.True(t, errcodes.IsItemFatal(err))
	assert.Contains(t, err.Error(), `"9"`)
}

func TestExtractParts_InvalidArchive(t *testing.T) {
	t.Parallel()

	_, err := ExtractParts([]byte("not a zip"), []models.Part{{ID: 1}})
	require.Error(t, err)
	assert.Equal(t, errcodes.CodeMalformedContent, errcodes.CodeOf(err))
}

func TestExtractParts_InvalidUTF8(t *testing.T) {
	t.Parallel()

	blob := testgen.GenerateStoryText(t, testgen.Entry{Name: "1", Body: "\xff\xfe"})

	_, err := ExtractParts(blob, []models.Part{{ID: 1}})
	require.Error(t, err)
	assert.Equal(t, errcodes.CodeMalformedContent, errcodes.CodeOf(err))
}

func TestExtractParts_AllDeleted(t *testing.T) {
	t.Parallel()

	blob := testgen.GenerateStoryText(t)
	raw, err := ExtractParts(blob, []models.Part{{ID: 1, Deleted: true}})
	require.NoError(t, err)
	assert.Empty(t, raw)
}
