package worker

import (
	"context"

	"github.com/go-git/go-billy/v5"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/libsync/pkg/config"
	"github.com/shishobooks/libsync/pkg/container"
	"github.com/shishobooks/libsync/pkg/errcodes"
	"github.com/shishobooks/libsync/pkg/filegen"
	"github.com/shishobooks/libsync/pkg/fileutils"
	"github.com/shishobooks/libsync/pkg/htmlutil"
	"github.com/shishobooks/libsync/pkg/models"
	"github.com/shishobooks/libsync/pkg/syncstate"
	"github.com/shishobooks/libsync/pkg/transport"
)

// Source is the remote library.
type Source interface {
	Login(ctx context.Context, username, password string) (*transport.Session, error)
	ListLibrary(ctx context.Context, session *transport.Session, username string) ([]models.Story, error)
	FetchContainer(ctx context.Context, session *transport.Session, storyID int) ([]byte, error)
}

// AssetCollector retrieves the cover and inline images of a story.
type AssetCollector interface {
	Cover(ctx context.Context, url string) (*models.Image, error)
	Images(ctx context.Context, docs []*models.Document) [][]*models.Image
}

// Worker mirrors a user's library into archives under the root of fs. It is
// the only component that touches the sync state.
type Worker struct {
	config    *config.Config
	source    Source
	assets    AssetCollector
	generator filegen.Generator
	fs        billy.Filesystem

	// onCommit is called after a story is recorded in the state.
	onCommit func(ctx context.Context, story *models.Story)
}

func New(cfg *config.Config, source Source, assets AssetCollector, generator filegen.Generator, fs billy.Filesystem) *Worker {
	return &Worker{
		config:    cfg,
		source:    source,
		assets:    assets,
		generator: generator,
		fs:        fs,
	}
}

// Run performs one sync pass. Authentication and listing failures abort the
// run before any story is processed. Every other failure only fails the story
// it happened in. Once the library is listed, the state is saved on every
// return path, including cancellation, and the report is returned alongside
// any error.
func (w *Worker) Run(ctx context.Context) (report *Report, err error) {
	log := logger.FromContext(ctx)

	log.Info("logging in", logger.Data{"username": w.config.Username})
	session, err := w.source.Login(ctx, w.config.Username, w.config.Password)
	if err != nil {
		return nil, err
	}

	log.Info("fetching library")
	stories, err := w.source.ListLibrary(ctx, session, w.config.Username)
	if err != nil {
		return nil, err
	}
	log.Info("fetched library", logger.Data{"count": len(stories)})

	state, err := syncstate.Open(w.fs, w.config.StateFilename)
	if err != nil {
		return nil, errcodes.FilesystemError(err, w.config.StateFilename)
	}
	defer func() {
		if cerr := state.Close(); cerr != nil {
			cerr = errcodes.FilesystemError(cerr, w.config.StateFilename)
			if err == nil {
				err = cerr
			} else {
				log.Err(cerr).Error("failed to save sync state")
			}
		}
	}()

	if n := state.MigrateLegacy(stories); n > 0 {
		log.Info("migrated title-keyed history", logger.Data{"count": n})
	}
	log.Debug("loaded sync state", logger.Data{"tracked": state.Len()})

	report = newReport(stories)
	for i := range stories {
		if err := ctx.Err(); err != nil {
			log.Warn("sync interrupted", logger.Data{"remaining": len(stories) - i})
			return report, errors.WithStack(err)
		}

		story := &stories[i]
		item := &report.Items[i]
		ilog := log.Root(logger.Data{"story_id": story.ID, "title": story.Title})
		ictx := ilog.WithContext(ctx)

		if !state.NeedsSync(story) {
			item.transition(ictx, StateSkipped)
			report.Skipped++
			continue
		}

		data := logger.Data{"position": i + 1, "total": len(stories)}
		if prev, ok := state.Get(story.ID); ok {
			data["previous_modify_date"] = prev.ModifyDate
		}
		ilog.Info("downloading story", data)
		path, err := w.syncStory(ictx, session, story, item)
		if err != nil {
			failedIn := item.State
			item.transition(ictx, StateFailed)
			item.Err = err
			report.Failed++
			ilog.Err(err).Warn("failed to sync story", logger.Data{
				"state":     failedIn,
				"code":      errcodes.CodeOf(err),
				"transient": errcodes.IsTransient(err),
			})
			if !errcodes.IsItemFatal(err) {
				return report, err
			}
			if cerr := ctx.Err(); cerr != nil {
				return report, errors.WithStack(cerr)
			}
			continue
		}

		state.Commit(story)
		item.Path = path
		item.transition(ictx, StateCommitted)
		report.Synced++
		ilog.Info("synced story", logger.Data{"path": path})

		if w.onCommit != nil {
			w.onCommit(ctx, story)
		}
	}

	log.Info("sync finished", logger.Data{"synced": report.Synced, "skipped": report.Skipped, "failed": report.Failed, "tracked": state.Len()})
	return report, nil
}

// syncStory downloads, assembles and writes one story. Panics are turned into
// errors so that one broken story can't take the run down.
func (w *Worker) syncStory(ctx context.Context, session *transport.Session, story *models.Story, item *ItemResult) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic while syncing story %d: %v", story.ID, r)
		}
	}()

	item.transition(ctx, StateFetching)
	cover, err := w.assets.Cover(ctx, story.Cover)
	if err != nil {
		return "", err
	}
	blob, err := w.source.FetchContainer(ctx, session, story.ID)
	if err != nil {
		return "", err
	}

	item.transition(ctx, StateExtracting)
	parts, err := container.ExtractParts(blob, story.Parts)
	if err != nil {
		return "", err
	}
	docs := make([]*models.Document, 0, len(parts))
	for _, p := range parts {
		doc, err := htmlutil.Clean(p.Title, p.ID, p.Text)
		if err != nil {
			return "", errors.Wrapf(err, "part %d", p.ID)
		}
		docs = append(docs, doc)
	}

	item.transition(ctx, StateAssembling)
	var images [][]*models.Image
	if w.config.DownloadImages {
		images = w.assets.Images(ctx, docs)
	}
	// Images that were skipped because of an interruption would be missing
	// from a story that is then never downloaded again.
	if err := ctx.Err(); err != nil {
		return "", errors.WithStack(err)
	}
	data, err := w.generator.Generate(story, docs, cover, images)
	if err != nil {
		return "", err
	}

	item.transition(ctx, StateWriting)
	path = fileutils.ResolvePath("", story.User.Username, story.Title, w.generator.SupportedType())
	if exists, err := fileutils.FileExists(w.fs, path); err == nil && exists {
		logger.FromContext(ctx).Debug("replacing existing archive", logger.Data{"path": path})
	}
	if err := fileutils.WriteFileAtomic(w.fs, path, data); err != nil {
		return "", errcodes.FilesystemError(err, path)
	}

	return path, nil
}
