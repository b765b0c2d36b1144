// Package flash implements one-shot notices carried across a redirect in a
// signed cookie session. A notice is written on the redirecting response and
// consumed by the next rendered view.
package flash

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const sessionName = "admin_portal_flash"

// Kinds of notices a view knows how to display.
const (
	KindSuccess = "success"
	KindError   = "error"
)

type Store struct {
	store *sessions.CookieStore
}

// NewStore builds a cookie-backed flash store. hashKey signs the cookie;
// blockKey, when non-empty, additionally encrypts it.
func NewStore(hashKey, blockKey []byte, secure bool) *Store {
	var s *sessions.CookieStore
	if len(blockKey) > 0 {
		s = sessions.NewCookieStore(hashKey, blockKey)
	} else {
		s = sessions.NewCookieStore(hashKey)
	}
	s.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Store{store: s}
}

// Add queues a notice of the given kind for the next rendered view.
func (s *Store) Add(w http.ResponseWriter, r *http.Request, kind, message string) error {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		// A tampered or stale cookie yields a fresh session; still usable.
		session, _ = s.store.New(r, sessionName)
	}
	session.AddFlash(message, kind)
	return session.Save(r, w)
}

// Pop consumes all pending notices, returning at most one message per kind.
// Reading clears them: the save writes back the emptied session.
func (s *Store) Pop(w http.ResponseWriter, r *http.Request) map[string]string {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		return nil
	}
	notices := make(map[string]string)
	for _, kind := range []string{KindSuccess, KindError} {
		for _, f := range session.Flashes(kind) {
			if msg, ok := f.(string); ok {
				notices[kind] = msg
			}
		}
	}
	if len(notices) == 0 {
		return nil
	}
	_ = session.Save(r, w)
	return notices
}
