package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-backend/internal/auth"
	"chat-backend/internal/errs"
	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

// Context keys set by RequireAuth.
const (
	UserIDKey = "userID"
	UserKey   = "user"
)

// RequireAuth validates the Authorization bearer token, loads the account row
// and gates state-changing requests on an active status. The caller identity
// used downstream comes only from the token.
func RequireAuth(tokens *auth.TokenManager, users repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, errs.CodeAuthenticationFailed, "missing authorization")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, errs.CodeAuthenticationFailed, "invalid authorization header")
			return
		}

		userID, err := tokens.VerifyAccess(parts[1])
		if err != nil {
			abortUnauthorized(c, errs.CodeOf(err), errs.MessageOf(err))
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			abortUnauthorized(c, errs.CodeInvalidToken, "unknown account")
			return
		}

		if c.Request.Method != http.MethodGet && !user.IsActive() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   gin.H{"code": errs.CodeForbidden, "message": "account is not active"},
			})
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(UserKey, user)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}

// UserIDFromContext reads the authenticated caller id set by RequireAuth.
func UserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	val, ok := c.Get(UserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := val.(uuid.UUID)
	return id, ok
}

// UserFromContext reads the authenticated account row set by RequireAuth.
func UserFromContext(c *gin.Context) (models.User, bool) {
	val, ok := c.Get(UserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}
