package models

import (
	"strconv"
)

const (
	FileTypeEPUB = "epub"
)

// Story is one entry of a user's remote library as returned by the library
// listing endpoint. Only ID, Title, ModifyDate, User, Cover and Parts drive
// the sync; the rest is forwarded to the archive encoder untouched.
type Story struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	ModifyDate  string    `json:"modifyDate"`
	CreateDate  string    `json:"createDate,omitempty"`
	User        User      `json:"user"`
	Cover       string    `json:"cover"`
	Parts       []Part    `json:"parts"`
	Tags        []string  `json:"tags,omitempty"`
	Language    *Language `json:"language,omitempty"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	Mature      bool      `json:"mature"`
	URL         string    `json:"url,omitempty"`
	IsPaywalled bool      `json:"isPaywalled"`
	Copyright   int       `json:"copyright,omitempty"`
}

// Key returns the sync state key of the story.
func (s *Story) Key() string {
	return strconv.Itoa(s.ID)
}

// LanguageName returns the language name or "" when the listing omitted it.
func (s *Story) LanguageName() string {
	if s.Language == nil {
		return ""
	}
	return s.Language.Name
}

// Part is a reference to one chapter of a story. The chapter text lives in the
// story-text container under the stringified ID.
type Part struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Deleted bool   `json:"deleted,omitempty"`
}

// EntryName returns the name of the part's entry in the story-text container.
func (p Part) EntryName() string {
	return strconv.Itoa(p.ID)
}

type User struct {
	Username    string `json:"username"`
	Name        string `json:"name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Description string `json:"description,omitempty"`
}

type Language struct {
	Name string `json:"name"`
}
