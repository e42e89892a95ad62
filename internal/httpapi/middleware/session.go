package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ragbot/ragchat/internal/auth"
)

const (
	SessionKey = "session"
	UserIDKey  = "user_id"
)

// SessionRequired resolves the session cookie through the re-fetching
// variant: the User row is re-read on every request, so profile edits show
// up without re-login and deleted users lose access immediately.
func SessionRequired(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(auth.CookieName)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
			return
		}

		sess, user, ok := svc.Resolve(c.Request.Context(), cookie)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
			return
		}

		c.Set(SessionKey, sess)
		c.Set(UserIDKey, user.ID)
		c.Next()
	}
}

// SessionFromContext returns the resolved session set by SessionRequired.
func SessionFromContext(c *gin.Context) (auth.Session, bool) {
	v, ok := c.Get(SessionKey)
	if !ok {
		return auth.Session{}, false
	}
	s, ok := v.(auth.Session)
	return s, ok
}

// UserIDFromContext returns the authenticated user's numeric id.
func UserIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
