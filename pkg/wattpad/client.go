package wattpad

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/libsync/pkg/errcodes"
	"github.com/shishobooks/libsync/pkg/models"
	"github.com/shishobooks/libsync/pkg/transport"
)

// libraryFields selects the story attributes the listing endpoint returns.
const libraryFields = "stories(tags,id,title,createDate,modifyDate,language(name),description,completed,mature,url,isPaywalled,user(username,name,avatar,description),parts(id,title,deleted),cover,copyright),nextUrl"

const libraryPageSize = 20

// Client talks to the remote library API.
type Client struct {
	baseURL   string
	transport *transport.Client
}

func New(baseURL string, t *transport.Client) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: t,
	}
}

// Login exchanges credentials for a session. The endpoint answers 204 with
// the session cookies on success; anything else is an authentication error.
func (c *Client) Login(ctx context.Context, username, password string) (*transport.Session, error) {
	resp, err := c.transport.Send(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/auth/login?nextUrl=%2F&_data=routes%2Fauth.login",
		Form: url.Values{
			"username": {strings.ToLower(username)},
			"password": {password},
		},
	})
	if err != nil {
		return nil, errcodes.AuthenticationError(err, "login request failed")
	}
	if resp.StatusCode != http.StatusNoContent {
		return nil, errcodes.AuthenticationError(&errcodes.StatusError{StatusCode: resp.StatusCode}, "login rejected")
	}

	session := transport.NewSession(resp.Cookies)
	if session.Empty() {
		return nil, errcodes.AuthenticationError(nil, "login returned no cookies")
	}

	return session, nil
}

type libraryPage struct {
	Stories []models.Story `json:"stories"`
	NextURL string         `json:"nextUrl"`
}

// ListLibrary walks every page of the user's library, following the
// server-provided cursor until it is omitted. The returned stories keep the
// server's order. A failure on any page, or a cursor that points back at a
// page already read, fails the whole listing.
func (c *Client) ListLibrary(ctx context.Context, session *transport.Session, username string) ([]models.Story, error) {
	log := logger.FromContext(ctx)

	next := fmt.Sprintf("%s/api/v3/users/%s/library?fields=%s&limit=%d",
		c.baseURL, url.PathEscape(username), url.QueryEscape(libraryFields), libraryPageSize)

	var stories []models.Story
	seen := map[string]bool{}
	for page := 1; next != ""; page++ {
		if seen[next] {
			return nil, errcodes.PaginationError(errors.New("library cursor repeated"), next)
		}
		seen[next] = true

		var p libraryPage
		if err := c.transport.GetJSON(ctx, next, session, &p); err != nil {
			return nil, errcodes.PaginationError(err, next)
		}

		stories = append(stories, p.Stories...)
		log.Debug("fetched library page", logger.Data{"page": page, "count": len(p.Stories), "total": len(stories)})

		resolved, err := c.resolve(p.NextURL)
		if err != nil {
			return nil, errcodes.PaginationError(err, p.NextURL)
		}
		next = resolved
	}

	return stories, nil
}

// FetchContainer downloads the story-text archive holding one entry per part.
func (c *Client) FetchContainer(ctx context.Context, session *transport.Session, storyID int) ([]byte, error) {
	u := fmt.Sprintf("%s/apiv2/?m=storytext&group_id=%d&output=zip", c.baseURL, storyID)
	data, err := c.transport.GetBytes(ctx, u, session)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch content for story %d", storyID)
	}
	return data, nil
}

// FetchBlob downloads an unauthenticated resource such as an image. A 404 or
// 410 is a normal absence and returns (nil, nil).
func (c *Client) FetchBlob(ctx context.Context, rawURL string) ([]byte, error) {
	resolved, err := c.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	data, err := c.transport.GetBytes(ctx, resolved, nil)
	if err != nil {
		switch errcodes.StatusCodeOf(err) {
		case http.StatusNotFound, http.StatusGone:
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// resolve turns a possibly relative URL into an absolute one against the base
// URL. Protocol-relative URLs get the base URL's scheme.
func (c *Client) resolve(ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", errors.WithStack(err)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", errors.Wrapf(err, "invalid url %q", ref)
	}
	return base.ResolveReference(u).String(), nil
}
