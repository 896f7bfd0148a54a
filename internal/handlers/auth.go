// auth.go handles user registration, login and token refresh.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Shimizu-Technology/docvault-api/internal/database"
	"github.com/Shimizu-Technology/docvault-api/internal/middleware"
	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

// Register creates a new user account.
// POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Email, password (min 8 chars), and name are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Logger.Error("failed to hash password", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "server_error", "Failed to create account")
		return
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Name:         req.Name,
	}
	if err := h.DB.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, database.ErrConflict) {
			respondError(c, http.StatusConflict, "email_taken", "An account with this email already exists")
			return
		}
		h.Logger.Error("failed to create user", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to create account")
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

// Login authenticates a user and returns a JWT token.
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Email and password are required")
		return
	}

	user, err := h.DB.GetUserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		respondError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

// GetMe returns the current authenticated user.
// GET /api/v1/auth/me
func (h *Handler) GetMe(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "unauthorized", "Not authenticated")
		return
	}
	c.JSON(http.StatusOK, user)
}

// RefreshToken issues a new JWT token for an authenticated user.
// POST /api/v1/auth/refresh
func (h *Handler) RefreshToken(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "unauthorized", "Not authenticated")
		return
	}
	h.respondWithToken(c, http.StatusOK, user)
}

func (h *Handler) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := middleware.GenerateJWT(user, h.JWTSecret)
	if err != nil {
		h.Logger.Error("failed to generate token", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "token_error", "Failed to generate token")
		return
	}
	c.JSON(status, models.AuthResponse{
		Token: token,
		User:  *user,
	})
}
