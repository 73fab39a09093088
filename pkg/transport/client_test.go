package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_AttachesSessionAndUserAgent(t *testing.T) {
	var gotCookie, gotUA, gotForm string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("token"); err == nil {
			gotCookie = c.Value
		}
		gotUA = r.UserAgent()
		_ = r.ParseForm()
		gotForm = r.PostForm.Get("username")
		http.SetCookie(w, &http.Cookie{Name: "fresh", Value: "1"})
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Options{UserAgent: "libsync-test"})
	session := NewSession([]*http.Cookie{{Name: "token", Value: "abc"}})

	resp, err := c.Send(context.Background(), &Request{
		Method:  http.MethodPost,
		URL:     srv.URL,
		Form:    url.Values{"username": {"reader"}},
		Session: session,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "abc", gotCookie)
	assert.Equal(t, "libsync-test", gotUA)
	assert.Equal(t, "reader", gotForm)
	require.Len(t, resp.Cookies, 1)
	assert.Equal(t, "fresh", resp.Cookies[0].Name)
}

func TestSend_ReturnsNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	resp, err := New(Options{}).Send(context.Background(), &Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"value"}`))
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	err := New(Options{}).GetJSON(context.Background(), srv.URL, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "value", out.Name)
}

func TestSession_Empty(t *testing.T) {
	var nilSession *Session
	assert.True(t, nilSession.Empty())
	assert.True(t, NewSession(nil).Empty())
	assert.False(t, NewSession([]*http.Cookie{{Name: "a", Value: "b"}}).Empty())
}
