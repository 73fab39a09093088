package syncstate

import (
	"os"
	"strconv"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/libsync/pkg/fileutils"
	"github.com/shishobooks/libsync/pkg/models"
)

// formatVersion is the version written to the state file. Files without a
// version are the title-keyed history of older releases.
const formatVersion = 2

// Entry is what is remembered about a story after it was written out.
type Entry struct {
	Title      string `json:"title"`
	ModifyDate string `json:"modify_date"`
}

type stateFile struct {
	Version int              `json:"version"`
	Stories map[string]Entry `json:"stories"`
}

// State maps story IDs to the freshness marker of their last successful
// sync. It is loaded once per run, updated in memory as stories are written
// and persisted with Save or Close.
type State struct {
	fs      billy.Filesystem
	path    string
	entries map[string]Entry
	// legacy holds title-keyed entries read from an older history file until
	// they are matched to listed stories by MigrateLegacy.
	legacy map[string]string
	closed bool
}

// Open loads the state at path on fs. A missing file yields an empty state.
func Open(fs billy.Filesystem, path string) (*State, error) {
	s := &State{
		fs:      fs,
		path:    path,
		entries: map[string]Entry{},
		legacy:  map[string]string{},
	}

	data, err := util.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, errors.Wrapf(err, "failed to read sync state: %s", path)
	}

	if len(data) == 0 {
		return s, nil
	}

	if err := s.decode(data); err != nil {
		return nil, errors.Wrapf(err, "failed to parse sync state: %s", path)
	}

	return s, nil
}

func (s *State) decode(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return errors.WithStack(err)
	}

	// A legacy history could hold a story titled "version", but its value is
	// always a string.
	if raw, ok := probe["version"]; ok && len(raw) > 0 && raw[0] >= '0' && raw[0] <= '9' {
		var f stateFile
		if err := json.Unmarshal(data, &f); err != nil {
			return errors.WithStack(err)
		}
		if f.Version > formatVersion {
			return errors.Errorf("unsupported sync state version %d", f.Version)
		}
		for k, v := range f.Stories {
			s.entries[k] = v
		}
		return nil
	}

	var legacy map[string]string
	if err := json.Unmarshal(data, &legacy); err != nil {
		return errors.WithStack(err)
	}
	for title, marker := range legacy {
		s.legacy[title] = marker
	}
	return nil
}

// NeedsSync reports whether story has to be downloaded again. A story is up
// to date only when an entry exists for its ID and the stored marker equals
// the current one exactly. Markers are never compared for ordering.
func (s *State) NeedsSync(story *models.Story) bool {
	entry, ok := s.entries[story.Key()]
	if !ok {
		return true
	}
	return entry.ModifyDate != story.ModifyDate
}

// MigrateLegacy converts title-keyed entries into ID-keyed ones for every
// listed story whose title and marker both match, and drops the remaining
// legacy entries. It returns the number of stories migrated.
func (s *State) MigrateLegacy(stories []models.Story) int {
	if len(s.legacy) == 0 {
		return 0
	}

	migrated := 0
	for i := range stories {
		story := &stories[i]
		if _, ok := s.entries[story.Key()]; ok {
			continue
		}
		marker, ok := s.legacy[story.Title]
		if !ok || marker != story.ModifyDate {
			continue
		}
		s.entries[story.Key()] = Entry{Title: story.Title, ModifyDate: marker}
		migrated++
	}

	s.legacy = map[string]string{}
	return migrated
}

// Commit records that story was written out at its current marker.
func (s *State) Commit(story *models.Story) {
	s.entries[story.Key()] = Entry{Title: story.Title, ModifyDate: story.ModifyDate}
}

// Get returns the entry for a story ID.
func (s *State) Get(id int) (Entry, bool) {
	e, ok := s.entries[strconv.Itoa(id)]
	return e, ok
}

// Len returns the number of tracked stories.
func (s *State) Len() int {
	return len(s.entries)
}

// Save atomically replaces the state file with the in-memory entries.
func (s *State) Save() error {
	data, err := json.MarshalIndent(stateFile{Version: formatVersion, Stories: s.entries}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal sync state")
	}

	if err := fileutils.WriteFileAtomic(s.fs, s.path, data); err != nil {
		return errors.Wrap(err, "failed to write sync state")
	}

	return nil
}

// Close persists the state. It is meant to be deferred right after Open so
// the state is flushed on every exit path; calling it more than once only
// writes once.
func (s *State) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.Save()
}
