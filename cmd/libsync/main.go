package main

import (
	"context"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/robinjoseph08/golib/signals"
	"github.com/shishobooks/libsync/pkg/assets"
	"github.com/shishobooks/libsync/pkg/config"
	"github.com/shishobooks/libsync/pkg/errcodes"
	"github.com/shishobooks/libsync/pkg/filegen"
	"github.com/shishobooks/libsync/pkg/models"
	"github.com/shishobooks/libsync/pkg/transport"
	"github.com/shishobooks/libsync/pkg/version"
	"github.com/shishobooks/libsync/pkg/wattpad"
	"github.com/shishobooks/libsync/pkg/worker"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	app := &cli.App{
		Name:    "libsync",
		Usage:   "mirror a reading library into EPUB files",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Usage: "account to sync (overrides USERNAME)"},
			&cli.StringFlag{Name: "password", Usage: "account password (overrides PASSWORD)"},
			&cli.StringFlag{Name: "output-directory", Aliases: []string{"o"}, Usage: "where archives and the sync state are written (overrides OUTPUT_DIRECTORY)"},
			&cli.BoolFlag{Name: "download-images", Usage: "embed inline images (overrides DOWNLOAD_IMAGES)"},
		},
		Action: func(c *cli.Context) error {
			return run(c, log)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("sync error")
	}
}

func run(c *cli.Context, log logger.Logger) error {
	cfg, err := config.NewWithOverrides(overrides(c))
	if err != nil {
		return err
	}

	log.Info("starting libsync", logger.Data{"version": version.Version, "output_directory": cfg.OutputDirectory})

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	ctx = log.WithContext(ctx)

	graceful := signals.Setup()
	go func() {
		select {
		case <-graceful:
			log.Info("interrupt received, stopping after the current story")
			cancel()
		case <-ctx.Done():
		}
	}()

	client := transport.New(transport.Options{
		Timeout:           cfg.RequestTimeout,
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxElapsed:        cfg.RetryMaxElapsed,
	})
	api := wattpad.New(cfg.BaseURL, client)

	generator, err := filegen.GetGenerator(models.FileTypeEPUB)
	if err != nil {
		return err
	}

	w := worker.New(cfg, api, assets.New(api), generator, osfs.New(cfg.OutputDirectory))
	report, err := w.Run(ctx)
	if report != nil {
		for _, item := range report.Items {
			if item.Err != nil {
				log.Warn("story not synced", logger.Data{"id": item.ID, "title": item.Title, "code": errcodes.CodeOf(item.Err), "error": item.Err.Error()})
			}
		}
		log.Info("summary", logger.Data{"synced": report.Synced, "skipped": report.Skipped, "failed": report.Failed})
	}
	if errors.Is(err, context.Canceled) {
		log.Info("sync interrupted, state saved")
		return nil
	}
	if errcodes.IsRunFatal(err) {
		log.Warn("sync aborted before any story was processed", logger.Data{"code": errcodes.CodeOf(err)})
	}
	return err
}

func overrides(c *cli.Context) config.Overrides {
	var o config.Overrides
	if c.IsSet("username") {
		o.Username = pointerutil.String(c.String("username"))
	}
	if c.IsSet("password") {
		o.Password = pointerutil.String(c.String("password"))
	}
	if c.IsSet("output-directory") {
		o.OutputDirectory = pointerutil.String(c.String("output-directory"))
	}
	if c.IsSet("download-images") {
		images := c.Bool("download-images")
		o.DownloadImages = &images
	}
	return o
}
