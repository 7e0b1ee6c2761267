package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"janus-rag/internal/app"
	"janus-rag/internal/model"
	"janus-rag/internal/pkg/jwtutil"
	"janus-rag/internal/transport/http/response"
)

const ContextUserKey = "current_user"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// AuthJWT resolves the bearer token to a stored, active user and exposes it
// through CurrentUser.
func AuthJWT(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, app.ErrInactiveUser):
				response.Error(c, http.StatusUnauthorized, response.CodeInactiveUser, err.Error())
			case errors.Is(err, jwtutil.ErrInvalidToken):
				response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			default:
				response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "authenticate failed")
			}
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}
