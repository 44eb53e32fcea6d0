package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-demo/matchroom/internal/dto/response"
	apperrors "github.com/go-demo/matchroom/internal/pkg/errors"
	"github.com/go-demo/matchroom/internal/pkg/utils"
)

const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
	TokenQueryParam     = "token"
	UserIDKey           = "user_id"
	UsernameKey         = "username"
	IsAdminKey          = "is_admin"
)

// Auth rejects requests without a valid bearer token and stores the
// caller's identity in the context
func Auth(jwtManager *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c.GetHeader(AuthorizationHeader))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		claims, err := Authenticate(jwtManager, token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		SetIdentity(c, claims)
		c.Next()
	}
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.ErrUnauthorized.WithDetails("missing authorization token")
	}
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", apperrors.ErrUnauthorized.WithDetails("invalid authorization format")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	if token == "" {
		return "", apperrors.ErrUnauthorized.WithDetails("token must not be empty")
	}
	return token, nil
}

// RequestToken looks in the token query parameter first, then the
// Authorization header. Browsers cannot set headers on a WebSocket upgrade.
func RequestToken(c *gin.Context) (string, error) {
	if token := c.Query(TokenQueryParam); token != "" {
		return token, nil
	}
	return BearerToken(c.GetHeader(AuthorizationHeader))
}

// Authenticate validates token and maps failures to 401 app errors
func Authenticate(jwtManager *utils.JWTManager, token string) (*utils.Claims, error) {
	claims, err := jwtManager.ValidateAccessToken(token)
	if err != nil {
		if errors.Is(err, utils.ErrExpiredToken) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// SetIdentity stores the token subject in the context
func SetIdentity(c *gin.Context, claims *utils.Claims) {
	c.Set(UserIDKey, claims.UserID)
	c.Set(UsernameKey, claims.Username)
	c.Set(IsAdminKey, claims.IsAdmin)
}

func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func GetUsername(c *gin.Context) string {
	return c.GetString(UsernameKey)
}

// IsPlatformAdmin reports whether the token carries the platform admin flag
func IsPlatformAdmin(c *gin.Context) bool {
	return c.GetBool(IsAdminKey)
}
