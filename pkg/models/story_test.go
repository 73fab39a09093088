package models

import (
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStory_DecodeListingPayload(t *testing.T) {
	t.Parallel()

	payload := `{
		"id": 123,
		"title": "The Long Road",
		"modifyDate": "2024-01-01T00:00:00Z",
		"user": {"username": "writer_one", "avatar": "https://a/x.png"},
		"cover": "https://img.example.com/cover/123-256-k.jpg",
		"language": {"name": "English"},
		"tags": ["adventure", "road"],
		"completed": true,
		"parts": [
			{"id": 1, "title": "One"},
			{"id": 2, "title": "Two", "deleted": true}
		]
	}`

	var story Story
	require.NoError(t, json.Unmarshal([]byte(payload), &story))

	assert.Equal(t, "123", story.Key())
	assert.Equal(t, "writer_one", story.User.Username)
	assert.Equal(t, "English", story.LanguageName())
	require.Len(t, story.Parts, 2)
	assert.False(t, story.Parts[0].Deleted)
	assert.True(t, story.Parts[1].Deleted)
	assert.Equal(t, "2", story.Parts[1].EntryName())
}

func TestStory_LanguageNameMissing(t *testing.T) {
	t.Parallel()

	s := &Story{}
	assert.Equal(t, "", s.LanguageName())
}
