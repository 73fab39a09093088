package worker

import (
	"context"

	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/libsync/pkg/models"
)

// ItemState is the position of a story in the sync pipeline.
type ItemState string

const (
	StatePending    ItemState = "pending"
	StateListed     ItemState = "listed"
	StateSkipped    ItemState = "skipped"
	StateFetching   ItemState = "fetching"
	StateExtracting ItemState = "extracting"
	StateAssembling ItemState = "assembling"
	StateWriting    ItemState = "writing"
	StateCommitted  ItemState = "committed"
	StateFailed     ItemState = "failed"
)

// ItemResult is the outcome of one listed story.
type ItemResult struct {
	ID    int
	Title string
	State ItemState
	// Path is the archive path relative to the output directory, set once
	// the story is committed.
	Path string
	Err  error
}

func (r *ItemResult) transition(ctx context.Context, to ItemState) {
	logger.FromContext(ctx).Debug("story state changed", logger.Data{"from": r.State, "to": to})
	r.State = to
}

// Report summarizes a sync pass. Items keep the listing order; stories that
// weren't reached before an interruption stay listed.
type Report struct {
	Items   []ItemResult
	Synced  int
	Skipped int
	Failed  int
}

func newReport(stories []models.Story) *Report {
	r := &Report{Items: make([]ItemResult, len(stories))}
	for i, s := range stories {
		r.Items[i] = ItemResult{ID: s.ID, Title: s.Title, State: StateListed}
	}
	return r
}
