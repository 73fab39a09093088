package errcodes

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestScopes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		runFatal  bool
		itemFatal bool
	}{
		{"authentication", AuthenticationError(nil, "login failed"), true, false},
		{"pagination", PaginationError(errors.New("boom"), "next"), true, false},
		{"transient", TransientNetworkError(errors.New("reset"), "http://x"), false, true},
		{"fatal request", FatalRequestError(404, "http://x"), false, true},
		{"part not found", PartNotFound("12"), false, true},
		{"malformed", MalformedContent(nil, "empty"), false, true},
		{"missing cover", MissingCover(nil, "http://x"), false, true},
		{"encoding", EncodingError(nil, "zip"), false, true},
		{"filesystem", FilesystemError(nil, "/tmp/x"), false, true},
		{"plain error", errors.New("plain"), false, true},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.runFatal, IsRunFatal(tt.err))
			assert.Equal(t, tt.itemFatal, IsItemFatal(tt.err))
		})
	}
}

func TestIs_MatchesOnCodeThroughWrapping(t *testing.T) {
	t.Parallel()

	err := errors.Wrap(PartNotFound("3"), "extract")
	assert.True(t, errors.Is(err, PartNotFound("")))
	assert.False(t, errors.Is(err, MissingCover(nil, "")))
	assert.Equal(t, CodePartNotFound, CodeOf(err))
}

func TestError_MessageIncludesCause(t *testing.T) {
	t.Parallel()

	err := TransientNetworkError(errors.New("connection reset"), "http://example.com")
	assert.Equal(t, "request to http://example.com kept failing: connection reset", err.Error())
	assert.True(t, IsTransient(errors.WithStack(err)))
	assert.False(t, IsTransient(FatalRequestError(400, "http://example.com")))
}

func TestStatusCodeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 404, StatusCodeOf(errors.WithStack(FatalRequestError(404, "http://x"))))
	assert.Equal(t, 503, StatusCodeOf(TransientNetworkError(&StatusError{StatusCode: 503}, "http://x")))
	assert.Equal(t, 0, StatusCodeOf(errors.New("connection refused")))
	assert.Equal(t, "request to http://x failed: HTTP 403", FatalRequestError(403, "http://x").Error())
}
