package auth

import (
	"net/http"
	"strconv"

	"github.com/gorilla/sessions"
)

const (
	sessionName   = "coffee_scan_session"
	sessionUserID = "user_id"
)

// Sessions manages the login cookie. It is injected into handlers rather
// than held in package state so tests can build isolated instances.
type Sessions struct {
	store sessions.Store
}

// NewSessions builds a cookie-backed session manager signed with secret.
func NewSessions(secret []byte, secure bool) *Sessions {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store}
}

// SignIn records the authenticated user id in the session cookie.
func (s *Sessions) SignIn(w http.ResponseWriter, r *http.Request, userID uint) error {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		// A stale or re-keyed cookie decodes to a fresh session; keep going.
		session, err = s.store.New(r, sessionName)
		if session == nil {
			return err
		}
	}
	session.Values[sessionUserID] = strconv.FormatUint(uint64(userID), 10)
	return session.Save(r, w)
}

// SignOut clears the session cookie.
func (s *Sessions) SignOut(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.store.Get(r, sessionName)
	if session == nil {
		return nil
	}
	delete(session.Values, sessionUserID)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// UserID extracts the authenticated user id from the request's session
// cookie, if any.
func (s *Sessions) UserID(r *http.Request) (uint, bool) {
	session, err := s.store.Get(r, sessionName)
	if err != nil || session == nil {
		return 0, false
	}
	raw, ok := session.Values[sessionUserID].(string)
	if !ok || raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
