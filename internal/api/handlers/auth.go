package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mailhaven/core/internal/api/middleware"
	"github.com/mailhaven/core/internal/database/models"
	"github.com/mailhaven/core/internal/services"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// AuthHandler handles authentication related requests
type AuthHandler struct {
	userService *services.UserService
	jwtManager  *middleware.JWTManager
	logService  *services.LogService
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(userService *services.UserService, jwtManager *middleware.JWTManager, logService *services.LogService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		jwtManager:  jwtManager,
		logService:  logService,
	}
}

// Login handles user login requests
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err)
		return
	}

	user, err := h.userService.Authenticate(req.Username, req.Password)
	if err != nil {
		h.logService.LogWarn(0, models.LogModuleAuth, "login", "Login failed", map[string]interface{}{
			"username": req.Username,
			"ip":       c.ClientIP(),
		})
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "Invalid username or password")
		return
	}

	token, expiresAt, err := h.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token")
		return
	}

	h.logService.LogInfo(user.ID, models.LogModuleAuth, "login", "Login successful", map[string]interface{}{
		"ip": c.ClientIP(),
	})

	respondOK(c, LoginResponse{Token: token, ExpiresAt: expiresAt})
}

// RefreshToken issues a fresh token for the authenticated user
// POST /api/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}
	username, _ := middleware.GetUsernameFromContext(c)

	token, expiresAt, err := h.jwtManager.GenerateToken(userID, username)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token")
		return
	}

	respondOK(c, LoginResponse{Token: token, ExpiresAt: expiresAt})
}

// Logout handles user logout requests. Tokens are stateless, so logout only
// records the event; the client discards the token.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if userID, exists := middleware.GetUserIDFromContext(c); exists {
		h.logService.LogInfo(userID, models.LogModuleAuth, "logout", "User logged out", nil)
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logged out successfully",
	})
}

// GetCurrentUser returns the authenticated user's profile
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}

	respondOK(c, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"nickname":   user.Nickname,
		"created_at": user.CreatedAt.Unix(),
	})
}

// ChangePasswordRequest represents the change password request body
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePassword updates the authenticated user's password after verifying
// the current one
// PUT /api/auth/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err)
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}

	if _, err := h.userService.Authenticate(user.Username, req.OldPassword); err != nil {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "Current password is incorrect")
		return
	}

	if err := h.userService.ResetPassword(user.Username, req.NewPassword); err != nil {
		if err == services.ErrPasswordTooShort {
			respondBadRequest(c, err.Error(), nil)
			return
		}
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update password")
		return
	}

	h.logService.LogInfo(userID, models.LogModuleAuth, "change_password", "Password changed", nil)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Password updated",
	})
}
