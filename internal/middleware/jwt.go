package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vidstream/accounts/internal/constants"
	"github.com/vidstream/accounts/internal/repository"
	"github.com/vidstream/accounts/internal/service"
	ctxutil "github.com/vidstream/accounts/pkg/context"
	"github.com/vidstream/accounts/pkg/logger"
)

// Gin context keys set after successful authentication.
const (
	CtxUserID   = "user_id"
	CtxEmail    = "email"
	CtxUsername = "username"
	CtxFullName = "full_name"
)

type JWTMiddleware struct {
	tokens   *service.TokenService
	userRepo *repository.UserRepository
}

func NewJWTMiddleware(tokens *service.TokenService, userRepo *repository.UserRepository) *JWTMiddleware {
	return &JWTMiddleware{
		tokens:   tokens,
		userRepo: userRepo,
	}
}

// extractToken reads the access token from the Authorization header, falling
// back to the accessToken cookie.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader(constants.HeaderAuthorization)
	if authHeader != "" {
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) == 2 && tokenParts[0] == "Bearer" {
			return tokenParts[1]
		}
		return ""
	}

	if cookie, err := c.Cookie(constants.CookieAccessToken); err == nil {
		return cookie
	}

	return ""
}

// RequireAuth validates the access token and sets user info in context.
func (m *JWTMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			logger.GetLogger().Warn("Missing access token",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method))
			c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
			c.Abort()
			return
		}

		claims, err := m.tokens.ValidateAccessToken(tokenString)
		if err != nil {
			logger.GetLogger().Warn("Invalid or expired access token",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.Error(err))
			c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
			c.Abort()
			return
		}

		// The record must still exist; a deleted user keeps a signed token
		// until expiry otherwise.
		ctx := c.Request.Context()
		if _, err := m.userRepo.GetByID(ctx, claims.UserID); err != nil {
			logger.GetLogger().Warn("Authenticated user not found",
				zap.Uint("user_id", claims.UserID),
				zap.Error(err))
			c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
			c.Abort()
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxEmail, claims.Email)
		c.Set(CtxUsername, claims.Username)
		c.Set(CtxFullName, claims.FullName)

		c.Request = c.Request.WithContext(ctxutil.WithUserID(ctx, claims.UserID))

		c.Next()
	}
}

// UserID pulls the authenticated user id from gin context.
func UserID(c *gin.Context) (uint, bool) {
	val, exists := c.Get(CtxUserID)
	if !exists {
		return 0, false
	}
	id, ok := val.(uint)
	return id, ok
}
