package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type contextKey string

const userIDKey contextKey = "authUserID"

// GetUserID retrieves the authenticated user id from context.
func GetUserID(ctx context.Context) (uint, bool) {
	if ctx == nil {
		return 0, false
	}
	if value, ok := ctx.Value(userIDKey).(uint); ok && value != 0 {
		return value, true
	}
	return 0, false
}

// RequireAuth accepts either a session cookie or a bearer token and injects
// the user identity. API clients get a JSON 401 when neither is present.
func RequireAuth(sessions *Sessions, tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := identify(c.Request, sessions, tokens)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
			return
		}
		attach(c, userID)
		c.Next()
	}
}

// RequirePage guards the static pages: unauthenticated browsers are sent to
// the login page instead of receiving a JSON error.
func RequirePage(sessions *Sessions, tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := identify(c.Request, sessions, tokens)
		if !ok {
			c.Redirect(http.StatusFound, "/users/login")
			c.Abort()
			return
		}
		attach(c, userID)
		c.Next()
	}
}

func attach(c *gin.Context, userID uint) {
	ctx := context.WithValue(c.Request.Context(), userIDKey, userID)
	c.Request = c.Request.WithContext(ctx)
	c.Set(string(userIDKey), userID)
}

func identify(r *http.Request, sessions *Sessions, tokens *Tokens) (uint, bool) {
	if sessions != nil {
		if userID, ok := sessions.UserID(r); ok {
			return userID, true
		}
	}
	if tokens != nil {
		if tokenString, err := extractBearerToken(r.Header.Get("Authorization")); err == nil {
			if userID, err := tokens.Verify(tokenString); err == nil {
				return userID, true
			}
		}
	}
	return 0, false
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}
