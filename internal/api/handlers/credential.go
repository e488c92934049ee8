package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mailhaven/core/internal/api/middleware"
	"github.com/mailhaven/core/internal/database/models"
	"github.com/mailhaven/core/internal/services"
)

// CredentialHandler handles mail credential requests
type CredentialHandler struct {
	credentialService *services.CredentialService
	syncService       *services.SyncService
	logService        *services.LogService
}

// NewCredentialHandler creates a new CredentialHandler instance
func NewCredentialHandler(credentialService *services.CredentialService, syncService *services.SyncService, logService *services.LogService) *CredentialHandler {
	return &CredentialHandler{
		credentialService: credentialService,
		syncService:       syncService,
		logService:        logService,
	}
}

// CredentialResponse is the API view of a credential; the password never
// leaves the server
type CredentialResponse struct {
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	IMAPHost    string `json:"imap_host"`
	IMAPPort    int    `json:"imap_port"`
	SMTPHost    string `json:"smtp_host"`
	SMTPPort    int    `json:"smtp_port"`
	Username    string `json:"username"`
	UseSSL      bool   `json:"use_ssl"`
	Enabled     bool   `json:"enabled"`
	SyncDays    int    `json:"sync_days"`
	LastSyncAt  int64  `json:"last_sync_at,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

func toCredentialResponse(credential *models.Credential) CredentialResponse {
	resp := CredentialResponse{
		ID:          credential.ID,
		Email:       credential.Email,
		DisplayName: credential.DisplayName,
		IMAPHost:    credential.IMAPHost,
		IMAPPort:    credential.IMAPPort,
		SMTPHost:    credential.SMTPHost,
		SMTPPort:    credential.SMTPPort,
		Username:    credential.Username,
		UseSSL:      credential.UseSSL,
		Enabled:     credential.Enabled,
		SyncDays:    credential.SyncDays,
		CreatedAt:   credential.CreatedAt.Unix(),
	}
	if !credential.LastSyncAt.IsZero() {
		resp.LastSyncAt = credential.LastSyncAt.Unix()
	}
	return resp
}

// requireUser pulls the authenticated user id or aborts with 401
func requireUser(c *gin.Context) (uint, bool) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "AUTH_FAILED", "User not authenticated")
		return 0, false
	}
	return userID, true
}

// parseIDParam parses a numeric path parameter
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "Invalid "+name+" parameter", err)
		return 0, false
	}
	return uint(id), true
}

// CreateCredentialRequest represents the create credential request body
type CreateCredentialRequest struct {
	Email       string `json:"email" binding:"required"`
	DisplayName string `json:"display_name"`
	IMAPHost    string `json:"imap_host" binding:"required"`
	IMAPPort    int    `json:"imap_port" binding:"required"`
	SMTPHost    string `json:"smtp_host" binding:"required"`
	SMTPPort    int    `json:"smtp_port" binding:"required"`
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	UseSSL      *bool  `json:"use_ssl"`
	SyncDays    int    `json:"sync_days"`
}

// ListCredentials returns the caller's credentials
// GET /api/credentials
func (h *CredentialHandler) ListCredentials(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	credentials, err := h.credentialService.GetCredentialsByUserID(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	responses := make([]CredentialResponse, 0, len(credentials))
	for i := range credentials {
		responses = append(responses, toCredentialResponse(&credentials[i]))
	}
	respondOK(c, gin.H{"credentials": responses})
}

// CreateCredential adds a mail credential for the caller
// POST /api/credentials
func (h *CredentialHandler) CreateCredential(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req CreateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err)
		return
	}

	useSSL := true
	if req.UseSSL != nil {
		useSSL = *req.UseSSL
	}

	credential, err := h.credentialService.CreateCredential(services.CreateCredentialInput{
		UserID:      userID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		IMAPHost:    req.IMAPHost,
		IMAPPort:    req.IMAPPort,
		SMTPHost:    req.SMTPHost,
		SMTPPort:    req.SMTPPort,
		Username:    req.Username,
		Password:    req.Password,
		UseSSL:      useSSL,
		SyncDays:    req.SyncDays,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    toCredentialResponse(credential),
	})
}

// GetCredential returns one credential owned by the caller
// GET /api/credentials/:id
func (h *CredentialHandler) GetCredential(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	credential, err := h.credentialService.GetCredentialByIDAndUserID(id, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toCredentialResponse(credential))
}

// UpdateCredentialRequest represents the update credential request body
type UpdateCredentialRequest struct {
	DisplayName *string `json:"display_name"`
	IMAPHost    *string `json:"imap_host"`
	IMAPPort    *int    `json:"imap_port"`
	SMTPHost    *string `json:"smtp_host"`
	SMTPPort    *int    `json:"smtp_port"`
	Username    *string `json:"username"`
	Password    *string `json:"password"`
	UseSSL      *bool   `json:"use_ssl"`
	Enabled     *bool   `json:"enabled"`
	SyncDays    *int    `json:"sync_days"`
}

// UpdateCredential updates a credential owned by the caller
// PUT /api/credentials/:id
func (h *CredentialHandler) UpdateCredential(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err)
		return
	}

	credential, err := h.credentialService.UpdateCredential(id, userID, services.UpdateCredentialInput{
		DisplayName: req.DisplayName,
		IMAPHost:    req.IMAPHost,
		IMAPPort:    req.IMAPPort,
		SMTPHost:    req.SMTPHost,
		SMTPPort:    req.SMTPPort,
		Username:    req.Username,
		Password:    req.Password,
		UseSSL:      req.UseSSL,
		Enabled:     req.Enabled,
		SyncDays:    req.SyncDays,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toCredentialResponse(credential))
}

// DeleteCredential removes a credential and all of its messages
// DELETE /api/credentials/:id
func (h *CredentialHandler) DeleteCredential(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.credentialService.DeleteCredential(id, userID); err != nil {
		respondServiceError(c, err)
		return
	}

	h.logService.LogInfo(userID, models.LogModuleCredential, "delete", "Mail credential deleted", map[string]interface{}{
		"credential_id": id,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Credential deleted",
	})
}

// TestCredential probes the credential's IMAP and SMTP servers
// POST /api/credentials/:id/test
func (h *CredentialHandler) TestCredential(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.credentialService.TestConnection(id, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, result)
}

// SyncCredential triggers an immediate sync for one credential
// POST /api/credentials/:id/sync
func (h *CredentialHandler) SyncCredential(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.syncService.SyncCredential(c.Request.Context(), userID, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, result)
}
