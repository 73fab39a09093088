package transport

import (
	"net/http"
)

// Session is the opaque credential returned by a successful login. It is
// attached to every authenticated request and never modified afterwards.
type Session struct {
	cookies []*http.Cookie
}

func NewSession(cookies []*http.Cookie) *Session {
	cp := make([]*http.Cookie, len(cookies))
	copy(cp, cookies)
	return &Session{cookies: cp}
}

// Empty reports whether the session carries no credentials.
func (s *Session) Empty() bool {
	return s == nil || len(s.cookies) == 0
}

func (s *Session) apply(req *http.Request) {
	if s == nil {
		return
	}
	for _, c := range s.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
}
