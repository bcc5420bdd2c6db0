package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTManager issues and validates the API's bearer tokens. Shelfarr is a
// single-operator application; the token carries only the configured
// username.
type JWTManager struct {
	secret        []byte
	tokenDuration time.Duration
}

// NewJWTManager creates a JWT manager
func NewJWTManager(secret string, tokenDurationHours int) *JWTManager {
	if tokenDurationHours <= 0 {
		tokenDurationHours = 24
	}
	return &JWTManager{
		secret:        []byte(secret),
		tokenDuration: time.Duration(tokenDurationHours) * time.Hour,
	}
}

type apiClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issue creates a signed token for the given username
func (m *JWTManager) Issue(username string) (string, time.Time, error) {
	expiresAt := time.Now().Add(m.tokenDuration)
	claims := apiClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "shelfarr",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate parses a token and returns the username it was issued to
func (m *JWTManager) Validate(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &apiClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*apiClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("invalid token")
	}
	return claims.Username, nil
}

// AuthRequired creates a middleware that requires a valid bearer token
func AuthRequired(manager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		tokenParts := strings.SplitN(authHeader, " ", 2)
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		username, err := manager.Validate(tokenParts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("username", username)
		c.Next()
	}
}
