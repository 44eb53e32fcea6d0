package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims carries the identity a request acts as. Tokens are issued by the
// identity service with the shared secret; this service only verifies them.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin,omitempty"`
	jwt.RegisteredClaims
}

// clockSkew tolerates drift between this node and the token issuer
const clockSkew = 30 * time.Second

// JWTManager verifies HS256 tokens against a shared secret
type JWTManager struct {
	secretKey []byte
	tokenTTL  time.Duration
	issuer    string
	parser    *jwt.Parser
}

func NewJWTManager(secretKey string, tokenTTL time.Duration, issuer string) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
		issuer:    issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithLeeway(clockSkew),
		),
	}
}

// GenerateAccessToken signs a token for userID. Used by the seed script and tests.
func (m *JWTManager) GenerateAccessToken(userID, username string, isAdmin bool) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.tokenTTL)

	claims := &Claims{
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return signedToken, expiresAt, nil
}

// ValidateAccessToken verifies signature, expiry and issuer and returns the claims
func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := m.parser.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	// Subject, when present, must agree with the user_id claim
	if claims.Subject != "" && claims.Subject != claims.UserID {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
