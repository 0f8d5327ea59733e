package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messages-api/internal/auth"
)

// userIDKey is the Gin context key holding the authenticated subject. The
// rate limiter and the access logger read it.
const userIDKey = "userID"

// TokenVerifier validates bearer tokens. *auth.Service satisfies it.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// RequireAuth rejects requests without a valid "Authorization: Bearer" token
// with 401 and the JSON error envelope. On success the token subject is stored
// under "userID".
func RequireAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			authFailures.WithLabelValues("missing").Inc()
			unauthorized(c, "missing bearer token")
			return
		}
		id, err := v.Verify(token)
		if err != nil {
			authFailures.WithLabelValues("invalid").Inc()
			unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(userIDKey, id.Subject)
		c.Next()
	}
}

// UserID returns the authenticated subject, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	v, _ := c.Get(userIDKey)
	return asString(v)
}

func bearerToken(h string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(h), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": RequestIDFrom(c),
		"code":       "unauthorized",
		"message":    msg,
	})
}
