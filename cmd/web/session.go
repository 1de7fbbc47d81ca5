package main

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/crucial707/inkwell/internal/models"
	"github.com/crucial707/inkwell/internal/session"
)

const (
	tokenCookie  = "blog_token"
	userCookie   = "blog_user"
	cookieMaxAge = 24 * time.Hour
)

// cookieStore keeps the session of one request in HTTP-only cookies.
// Writes are visible to later loads within the same request.
type cookieStore struct {
	w       http.ResponseWriter
	r       *http.Request
	sess    *session.Session
	cleared bool
}

func newCookieStore(w http.ResponseWriter, r *http.Request) *cookieStore {
	return &cookieStore{w: w, r: r}
}

func (s *cookieStore) Load() (*session.Session, error) {
	if s.cleared {
		return nil, session.ErrNoSession
	}
	if s.sess != nil {
		cp := *s.sess
		return &cp, nil
	}
	tok, err := s.r.Cookie(tokenCookie)
	if err != nil || tok.Value == "" {
		return nil, session.ErrNoSession
	}
	sess := &session.Session{Token: tok.Value}
	if c, err := s.r.Cookie(userCookie); err == nil {
		if raw, err := base64.RawURLEncoding.DecodeString(c.Value); err == nil {
			var u models.User
			if json.Unmarshal(raw, &u) == nil {
				sess.User = &u
			}
		}
	}
	return sess, nil
}

func (s *cookieStore) Save(sess *session.Session) error {
	raw, err := json.Marshal(sess.User)
	if err != nil {
		return err
	}
	s.set(tokenCookie, sess.Token, int(cookieMaxAge.Seconds()))
	s.set(userCookie, base64.RawURLEncoding.EncodeToString(raw), int(cookieMaxAge.Seconds()))
	cp := *sess
	s.sess = &cp
	s.cleared = false
	return nil
}

func (s *cookieStore) Clear() error {
	s.set(tokenCookie, "", -1)
	s.set(userCookie, "", -1)
	s.sess = nil
	s.cleared = true
	return nil
}

func (s *cookieStore) set(name, value string, maxAge int) {
	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.r.TLS != nil,
	})
}
