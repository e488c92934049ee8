package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mailhaven/core/internal/api/middleware"
	"github.com/mailhaven/core/internal/database/models"
	"github.com/mailhaven/core/internal/notify"
	"github.com/mailhaven/core/internal/services"
)

// NotifyHandler handles the Slack install flow and notification settings
type NotifyHandler struct {
	notifier   *notify.SlackNotifier
	jwtManager *middleware.JWTManager
	logService *services.LogService
}

// NewNotifyHandler creates a new NotifyHandler instance
func NewNotifyHandler(notifier *notify.SlackNotifier, jwtManager *middleware.JWTManager, logService *services.LogService) *NotifyHandler {
	return &NotifyHandler{
		notifier:   notifier,
		jwtManager: jwtManager,
		logService: logService,
	}
}

// GetConfig reports whether Slack notifications are available
// GET /api/slack/config
func (h *NotifyHandler) GetConfig(c *gin.Context) {
	respondOK(c, gin.H{
		"configured": h.notifier.IsConfigured(),
	})
}

// GetInstallURL returns the workspace authorization URL. The caller's token
// rides along as OAuth state so the callback can identify the user without
// a session.
// GET /api/slack/install
func (h *NotifyHandler) GetInstallURL(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}

	authHeader := c.GetHeader(middleware.AuthorizationHeader)
	token := ""
	if len(authHeader) > len(middleware.BearerPrefix) {
		token = authHeader[len(middleware.BearerPrefix):]
	}

	url, err := h.notifier.InstallURL(token)
	if err != nil {
		if errors.Is(err, notify.ErrNotConfigured) {
			respondError(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "Slack integration is not configured")
			return
		}
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"url": url})
}

// Callback completes the OAuth exchange after the user authorizes the
// workspace. Slack calls this without our API key, so it sits outside the
// protected group; the state token authenticates the user instead.
// GET /api/slack/callback
func (h *NotifyHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		respondBadRequest(c, "Missing code or state parameter", nil)
		return
	}

	claims, err := h.jwtManager.ValidateToken(state)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "Invalid state token")
		return
	}

	install, err := h.notifier.CompleteInstall(c.Request.Context(), claims.UserID, code)
	if err != nil {
		h.logService.LogError(claims.UserID, models.LogModuleNotify, "install", "Slack install failed", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(c, http.StatusBadGateway, "OAUTH_FAILED", "Slack authorization failed")
		return
	}

	h.logService.LogInfo(claims.UserID, models.LogModuleNotify, "install", "Slack workspace installed", map[string]interface{}{
		"team_id":   install.TeamID,
		"team_name": install.TeamName,
	})

	respondOK(c, gin.H{
		"team_id":   install.TeamID,
		"team_name": install.TeamName,
		"channel":   install.Channel,
	})
}

// GetStatus returns the caller's Slack installation, if any
// GET /api/slack/status
func (h *NotifyHandler) GetStatus(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	install, err := h.notifier.GetInstall(userID)
	if err != nil {
		if errors.Is(err, notify.ErrNoInstall) {
			respondOK(c, gin.H{"installed": false})
			return
		}
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{
		"installed": true,
		"team_id":   install.TeamID,
		"team_name": install.TeamName,
		"channel":   install.Channel,
	})
}
