package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mailhaven/core/internal/database/models"
	"github.com/mailhaven/core/internal/services"
	"github.com/mailhaven/core/internal/store"
)

// MessageHandler handles message listing, sending, transitions and counts
type MessageHandler struct {
	messageService *services.MessageService
	ingestService  *services.IngestService
	logService     *services.LogService
}

// NewMessageHandler creates a new MessageHandler instance
func NewMessageHandler(messageService *services.MessageService, ingestService *services.IngestService, logService *services.LogService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		ingestService:  ingestService,
		logService:     logService,
	}
}

// MessageResponse is the API view of a message
type MessageResponse struct {
	ID             uint               `json:"id"`
	CredentialID   uint               `json:"credential_id"`
	MessageID      string             `json:"message_id"`
	Subject        string             `json:"subject"`
	FromName       string             `json:"from_name"`
	FromAddr       string             `json:"from_addr"`
	To             []models.Recipient `json:"to"`
	Snippet        string             `json:"snippet"`
	Body           string             `json:"body,omitempty"`
	ReceivedAt     int64              `json:"received_at"`
	Folder         string             `json:"folder"`
	Read           bool               `json:"read"`
	Starred        bool               `json:"starred"`
	Categories     gin.H              `json:"categories"`
	HasAttachments bool               `json:"has_attachments"`
	Attachments    []string           `json:"attachments,omitempty"`
}

// toMessageResponse converts a message model; withBody controls whether the
// full body is included (lists carry only the snippet)
func toMessageResponse(msg *models.Message, withBody bool) MessageResponse {
	var to []models.Recipient
	if msg.ToAddrs != "" {
		json.Unmarshal([]byte(msg.ToAddrs), &to)
	}
	var attachments []string
	if msg.Attachments != "" {
		json.Unmarshal([]byte(msg.Attachments), &attachments)
	}

	resp := MessageResponse{
		ID:           msg.ID,
		CredentialID: msg.CredentialID,
		MessageID:    msg.MessageID,
		Subject:      msg.Subject,
		FromName:     msg.FromName,
		FromAddr:     msg.FromAddr,
		To:           to,
		Snippet:      msg.Snippet,
		ReceivedAt:   msg.ReceivedAt.Unix(),
		Folder:       msg.Folder,
		Read:         msg.Read,
		Starred:      msg.Starred,
		Categories: gin.H{
			"purpose":         msg.Purpose,
			"senderType":      msg.SenderType,
			"contentType":     msg.ContentType,
			"priority":        msg.Priority,
			"actionRequired":  msg.ActionRequired,
			"topicDepartment": msg.TopicDepartment,
			"timeSensitivity": msg.TimeSensitivity,
		},
		HasAttachments: msg.HasAttachments,
		Attachments:    attachments,
	}
	if withBody {
		resp.Body = msg.Body
	}
	return resp
}

// credentialIDFromQuery parses the mandatory credential_id query parameter
func credentialIDFromQuery(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Query("credential_id"), 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "credential_id query parameter is required", err)
		return 0, false
	}
	return uint(id), true
}

// ListMessages returns one page of messages for a credential and folder
// GET /api/messages
func (h *MessageHandler) ListMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	credentialID, ok := credentialIDFromQuery(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.messageService.ListMessages(userID, credentialID, store.ListOptions{
		Folder:   c.DefaultQuery("folder", models.FolderInbox),
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	messages := make([]MessageResponse, 0, len(result.Messages))
	for i := range result.Messages {
		messages = append(messages, toMessageResponse(&result.Messages[i], false))
	}

	respondOK(c, gin.H{
		"messages":    messages,
		"total":       result.TotalCount,
		"total_pages": result.TotalPages,
		"page":        result.Page,
		"page_size":   result.PageSize,
	})
}

// GetMessage returns one message with its full body
// GET /api/messages/:id
func (h *MessageHandler) GetMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	credentialID, ok := credentialIDFromQuery(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	msg, err := h.messageService.GetMessage(userID, credentialID, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, toMessageResponse(msg, true))
}

// SendMessageRequest represents the send request body
type SendMessageRequest struct {
	CredentialID uint     `json:"credential_id" binding:"required"`
	To           []string `json:"to" binding:"required"`
	Subject      string   `json:"subject" binding:"required"`
	Body         string   `json:"body"`
}

// SendMessage sends an outbound message and stores it in the sent folder
// POST /api/messages/send
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err)
		return
	}

	msg, err := h.ingestService.SendMessage(c.Request.Context(), userID, req.CredentialID, req.To, req.Subject, req.Body)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    toMessageResponse(msg, true),
	})
}

// ActionRequest represents the transition request body
type ActionRequest struct {
	CredentialID uint   `json:"credential_id" binding:"required"`
	Action       string `json:"action" binding:"required"`
}

// ApplyAction applies one organization transition to a message. Delete
// returns a null message body.
// PATCH /api/messages/:id/action
func (h *MessageHandler) ApplyAction(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err)
		return
	}

	msg, err := h.messageService.ApplyAction(userID, req.CredentialID, id, req.Action)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if msg == nil {
		respondOK(c, nil)
		return
	}
	respondOK(c, toMessageResponse(msg, false))
}

// BulkMoveRequest represents the bulk move request body
type BulkMoveRequest struct {
	CredentialID uint   `json:"credential_id" binding:"required"`
	MessageIDs   []uint `json:"message_ids" binding:"required"`
	Target       string `json:"target" binding:"required"`
}

// BulkMove moves a set of messages to a target folder and reports how many
// records changed
// POST /api/messages/bulk-move
func (h *MessageHandler) BulkMove(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req BulkMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err)
		return
	}

	modified, err := h.messageService.BulkMove(userID, req.CredentialID, req.MessageIDs, req.Target)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{
		"requested":      len(req.MessageIDs),
		"modified_count": modified,
	})
}

// GetCounts returns folder counts plus per-category histograms for one folder
// GET /api/messages/counts
func (h *MessageHandler) GetCounts(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	credentialID, ok := credentialIDFromQuery(c)
	if !ok {
		return
	}

	counts, err := h.messageService.GetCounts(userID, credentialID, c.Query("folder"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, counts)
}
