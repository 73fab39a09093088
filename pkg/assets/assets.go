// Package assets retrieves the binary resources embedded in a generated
// archive: the story cover and the images referenced by part content.
package assets

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/libsync/pkg/errcodes"
	"github.com/shishobooks/libsync/pkg/models"
	_ "golang.org/x/image/webp" // register decoder
)

// supportedMimeTypes are the image types an EPUB reader is expected to render.
var supportedMimeTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// BlobFetcher downloads a resource by URL. It returns (nil, nil) when the
// resource doesn't exist.
type BlobFetcher interface {
	FetchBlob(ctx context.Context, url string) ([]byte, error)
}

type Collector struct {
	fetcher BlobFetcher
}

func New(fetcher BlobFetcher) *Collector {
	return &Collector{fetcher: fetcher}
}

// CoverURL returns the URL of the larger rendition of a listing cover.
func CoverURL(url string) string {
	return strings.Replace(url, "-256-", "-512-", 1)
}

// Cover fetches the story cover in its larger rendition. A missing or
// unreadable cover is a MissingCover error.
func (c *Collector) Cover(ctx context.Context, url string) (*models.Image, error) {
	if url == "" {
		return nil, errcodes.MissingCover(nil, url)
	}
	url = CoverURL(url)

	data, err := c.fetcher.FetchBlob(ctx, url)
	if err != nil {
		return nil, errcodes.MissingCover(err, url)
	}
	if len(data) == 0 {
		return nil, errcodes.MissingCover(nil, url)
	}

	img, err := Decode(url, data)
	if err != nil {
		return nil, errcodes.MissingCover(err, url)
	}
	return img, nil
}

// Images fetches every image referenced by docs. The result holds one list
// per document, with one entry per <img> in document order. Images that can't
// be fetched or decoded are nil entries.
func (c *Collector) Images(ctx context.Context, docs []*models.Document) [][]*models.Image {
	log := logger.FromContext(ctx)

	cache := map[string]*models.Image{}
	result := make([][]*models.Image, len(docs))
	for i, doc := range docs {
		if doc == nil || doc.Body == nil {
			continue
		}
		goquery.NewDocumentFromNode(doc.Body).Find("img").Each(func(_ int, s *goquery.Selection) {
			src := strings.TrimSpace(s.AttrOr("src", ""))
			img, seen := cache[src]
			if !seen {
				var err error
				img, err = c.fetch(ctx, src)
				if err != nil {
					log.Debug("skipping image", logger.Data{"url": src, "part_id": doc.PartID, "error": err.Error()})
				}
				cache[src] = img
			}
			result[i] = append(result[i], img)
		})
	}
	return result
}

func (c *Collector) fetch(ctx context.Context, url string) (*models.Image, error) {
	if url == "" {
		return nil, errors.New("image has no source")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	data, err := c.fetcher.FetchBlob(ctx, url)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("image not found")
	}
	return Decode(url, data)
}

// Decode sniffs the type of data and checks that it is a readable image of a
// type archives can embed.
func Decode(url string, data []byte) (*models.Image, error) {
	mtype := mimetype.Detect(data)
	ext, ok := supportedMimeTypes[mtype.String()]
	if !ok {
		return nil, errors.Errorf("unsupported image type %s", mtype.String())
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}
	return &models.Image{
		URL:       url,
		Data:      data,
		MimeType:  mtype.String(),
		Extension: ext,
	}, nil
}
