package middleware

import (
	"errors"
	"net/http"
	"strings"

	userRepo "anoa.com/forumboard/internal/modules/user/repository"
	user "anoa.com/forumboard/internal/modules/user/service"
	"anoa.com/forumboard/pkg/apperror"
	"anoa.com/forumboard/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AuthMiddleware struct {
	userRepo userRepo.UserRepository
	secret   string
}

func NewAuthMiddleware(userRepo userRepo.UserRepository, secret string) *AuthMiddleware {
	return &AuthMiddleware{
		userRepo: userRepo,
		secret:   secret,
	}
}

// RequireAuth resolves the bearer token to a user and stores "user_id" and
// "role" on the context. The role always comes from the user row.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")

		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// Fallback to query parameter "token" (useful for WebSockets)
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			abort(c, apperror.New(http.StatusUnauthorized, "authorization required", apperror.ErrUnauthorized))
			return
		}

		userID, _, err := user.ParseToken(m.secret, tokenString)
		if err != nil {
			abort(c, err)
			return
		}

		u, err := m.userRepo.FindByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abort(c, apperror.New(http.StatusUnauthorized, "user not found", apperror.ErrUnauthorized))
				return
			}
			abort(c, err)
			return
		}

		c.Set("user_id", u.ID.String())
		c.Set("role", u.Role)
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	response.ResponseError(c, err)
	c.Abort()
}
