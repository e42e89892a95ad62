package auth

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CookieName is the session cookie. Its value is the JSON-serialized Session:
// the cookie itself is the session record, there is no server-side table.
const CookieName = "session"

type SessionUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type Session struct {
	ID   string      `json:"id"`
	User SessionUser `json:"user"`
}

func NewSession(user SessionUser) Session {
	return Session{
		ID:   uuid.NewString(),
		User: user,
	}
}

// EncodeSession serializes a session for the cookie value.
func EncodeSession(s Session) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeSession parses a cookie value. A malformed value is not an error
// worth surfacing; callers treat it as "no session".
func DecodeSession(value string) (Session, bool) {
	var s Session
	if err := json.Unmarshal([]byte(value), &s); err != nil {
		return Session{}, false
	}
	if s.ID == "" || s.User.ID == "" {
		return Session{}, false
	}
	return s, true
}

// SetSessionCookie writes the session cookie: HTTP-only, path=/,
// SameSite=Lax, secure in production, max-age 7 days.
func SetSessionCookie(c *gin.Context, s Session, maxAge int, secure bool) error {
	value, err := EncodeSession(s)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, value, maxAge, "/", "", secure, true)
	return nil
}

// ClearSessionCookie deletes the session cookie.
func ClearSessionCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", secure, true)
}
