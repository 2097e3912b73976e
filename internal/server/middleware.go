package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/stillpoint/sona/internal/observability/context"
)

const contextUserIDKey = "user_id"

// UserRequired authenticates requests with a bearer token of the form
// "<userID>.<signature>", where the signature is an HMAC-SHA256 of the user
// ID under the shared auth secret.
func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		userID, ok := verifyUserToken(parts[1], s.cfg.AuthTokenSecret)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, userID)
		ctx := obscontext.WithUserID(c.Request.Context(), userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func verifyUserToken(token, secret string) (string, bool) {
	if strings.TrimSpace(secret) == "" {
		return "", false
	}

	idx := strings.LastIndex(token, ".")
	if idx <= 0 || idx == len(token)-1 {
		return "", false
	}
	userID := token[:idx]
	signature := token[idx+1:]

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(userID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", false
	}
	return userID, true
}

func userIDFromRequest(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(contextUserIDKey))
}
