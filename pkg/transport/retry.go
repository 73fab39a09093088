package transport

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/libsync/pkg/errcodes"
)

// retryableError marks a failed attempt that is worth repeating.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Fetch performs req, retrying connection failures, 5xx and 429 responses
// with exponential backoff until the elapsed-time budget runs out. Other
// non-2xx responses fail immediately with a FatalRequestError. An exhausted
// budget surfaces the last failure as a TransientNetworkError.
func (c *Client) Fetch(ctx context.Context, req *Request) (*Response, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	delay := c.baseDelay

	for attempt := 1; ; attempt++ {
		resp, err := c.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}

		var rerr *retryableError
		if !errors.As(err, &rerr) {
			return nil, err
		}

		wait := withJitter(delay)
		if wait > c.maxDelay {
			wait = c.maxDelay
		}
		if time.Since(start)+wait > c.maxElapsed {
			return nil, errcodes.TransientNetworkError(rerr.err, req.URL)
		}

		log.Debug("retrying request", logger.Data{"url": req.URL, "attempt": attempt, "delay": wait.String(), "error": rerr.Error()})

		select {
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		case <-time.After(wait):
		}

		delay *= 2
	}
}

func (c *Client) attempt(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.Send(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WithStack(ctx.Err())
		}
		return nil, &retryableError{err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &retryableError{&errcodes.StatusError{StatusCode: resp.StatusCode}}
	default:
		return nil, errcodes.FatalRequestError(resp.StatusCode, req.URL)
	}
}

// withJitter adds up to 25% of random jitter to delay.
func withJitter(delay time.Duration) time.Duration {
	if delay < 4 {
		return delay
	}
	return delay + time.Duration(rand.Int63n(int64(delay/4)))
}
