// jwt.go provides JWT authentication middleware.
// Every route except health, register and login requires a Bearer token.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

const userContextKey = "user"

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 72 * time.Hour

// JWTClaims extends standard JWT claims with user info.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// UserLookup resolves the user named by a token. *database.DB implements it.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// GenerateJWT creates a new JWT token for a user.
func GenerateJWT(user *models.User, secret string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseJWT validates and parses a JWT token string. Only HS256 is accepted.
func ParseJWT(tokenString, secret string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

// JWTAuth returns middleware that validates JWT Bearer tokens and stores
// the authenticated user in the context.
func JWTAuth(users UserLookup, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			unauthorized(c, "Missing or invalid Authorization header. Use 'Bearer <token>'")
			return
		}

		claims, err := ParseJWT(strings.TrimPrefix(authHeader, "Bearer "), jwtSecret)
		if err != nil {
			unauthorized(c, "Invalid or expired token")
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			unauthorized(c, "User not found")
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: msg,
		Code:    http.StatusUnauthorized,
	})
}

// GetUser retrieves the authenticated user from the request context.
func GetUser(c *gin.Context) *models.User {
	val, exists := c.Get(userContextKey)
	if !exists {
		return nil
	}
	user, ok := val.(*models.User)
	if !ok {
		return nil
	}
	return user
}
