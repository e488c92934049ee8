package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mailhaven/core/internal/classifier"
	"github.com/mailhaven/core/internal/database/models"
	"github.com/mailhaven/core/internal/mailbox"
	"github.com/mailhaven/core/internal/mailer"
	"github.com/mailhaven/core/internal/store"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

var (
	// ErrInvalidSendInput indicates missing recipient or subject data
	ErrInvalidSendInput = errors.New("invalid send input")
)

const (
	snippetMaxLen   = 200
	classifyTimeout = 25 * time.Second
)

// Notifier delivers a best-effort notification about a newly stored message.
// Failures are the notifier's problem; ingestion never waits on it.
type Notifier interface {
	NotifyNewMessage(msg *models.Message)
}

// Transport sends one outbound message and returns its generated message id
type Transport interface {
	Send(credential *models.Credential, password string, to []string, subject, body string) (string, error)
}

// IngestService turns raw fetched messages into classified, stored records
// and drives the outbound send path. Classification failures never block
// persistence; the message is stored with default categories instead.
type IngestService struct {
	db                *gorm.DB
	store             *store.MessageStore
	credentialService *CredentialService
	classifier        *classifier.Client
	mailer            Transport
	logService        *LogService
	notifier          Notifier
	sanitizer         *bluemonday.Policy
	dataDir           string
}

// NewIngestService creates a new IngestService instance
func NewIngestService(db *gorm.DB, credentialService *CredentialService, client *classifier.Client, dataDir string) *IngestService {
	return &IngestService{
		db:                db,
		store:             store.NewMessageStore(db),
		credentialService: credentialService,
		classifier:        client,
		mailer:            mailer.NewMailer(),
		logService:        NewLogService(db),
		sanitizer:         bluemonday.StrictPolicy(),
		dataDir:           dataDir,
	}
}

// SetNotifier attaches an optional notifier for newly ingested messages
func (s *IngestService) SetNotifier(n Notifier) {
	s.notifier = n
}

// Ingest stores one fetched message for a credential. Re-ingesting a message
// already known by its external id is an idempotent upsert: envelope and body
// fields are refreshed, while folder, read, starred and category fields keep
// their stored values.
func (s *IngestService) Ingest(ctx context.Context, credential *models.Credential, raw mailbox.RawMessage) (*models.Message, error) {
	// An empty external id carries no identity, so it never matches a
	// stored record; such messages always insert
	var existing *models.Message
	if raw.MessageID != "" {
		var err error
		existing, err = s.store.FindByMessageID(credential.ID, raw.MessageID)
		if err != nil && !errors.Is(err, store.ErrMessageNotFound) {
			return nil, err
		}
	}

	body := raw.Body
	if body == "" && raw.HTMLBody != "" {
		body = raw.HTMLBody
	}
	snippet := s.buildSnippet(raw.Body, raw.HTMLBody)

	toJSON, _ := json.Marshal(raw.To)
	attachmentsJSON, _ := json.Marshal(raw.Attachments)

	receivedAt := raw.Date
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	if existing != nil {
		updates := map[string]interface{}{
			"subject":         raw.Subject,
			"from_name":       raw.FromName,
			"from_addr":       raw.FromAddr,
			"to_addrs":        string(toJSON),
			"body":            body,
			"snippet":         snippet,
			"received_at":     receivedAt,
			"has_attachments": raw.HasAttachments,
			"attachments":     string(attachmentsJSON),
		}
		return s.store.UpdateOne(credential.ID, existing.ID, updates)
	}

	msg := &models.Message{
		CredentialID:   credential.ID,
		MessageID:      raw.MessageID,
		Subject:        raw.Subject,
		FromName:       raw.FromName,
		FromAddr:       raw.FromAddr,
		ToAddrs:        string(toJSON),
		Body:           body,
		Snippet:        snippet,
		ReceivedAt:     receivedAt,
		Folder:         models.FolderInbox,
		HasAttachments: raw.HasAttachments,
		Attachments:    string(attachmentsJSON),
	}
	msg.SetCategories(s.classify(ctx, credential, body))

	if path, err := s.storeRaw(credential.ID, raw); err == nil {
		msg.RawFilePath = path
	}

	if err := s.store.Create(msg); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		go s.notifier.NotifyNewMessage(msg)
	}

	return msg, nil
}

// classify runs one bounded classification attempt and falls back to the
// default record on any failure
func (s *IngestService) classify(ctx context.Context, credential *models.Credential, body string) models.CategoryRecord {
	if !s.classifier.IsConfigured() {
		return models.DefaultCategories()
	}

	cctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	record, err := s.classifier.Classify(cctx, body)
	if err != nil {
		s.logService.LogError(credential.UserID, models.LogModuleClassify, "classify", "Classification failed, using defaults", map[string]interface{}{
			"credential_id": credential.ID,
			"error":         err.Error(),
		})
		return models.DefaultCategories()
	}
	return record
}

// buildSnippet derives a short plain-text preview. HTML bodies are stripped
// of markup before truncation.
func (s *IngestService) buildSnippet(plain, htmlBody string) string {
	text := plain
	if strings.TrimSpace(text) == "" && htmlBody != "" {
		text = html.UnescapeString(s.sanitizer.Sanitize(htmlBody))
	}

	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > snippetMaxLen {
		text = string(runes[:snippetMaxLen])
	}
	return text
}

// storeRaw writes the original message source to disk for later retrieval
func (s *IngestService) storeRaw(credentialID uint, raw mailbox.RawMessage) (string, error) {
	if s.dataDir == "" || len(raw.RawContent) == 0 {
		return "", nil
	}

	dir := filepath.Join(s.dataDir, "raw", fmt.Sprintf("%d", credentialID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(raw.MessageID))
	path := filepath.Join(dir, hex.EncodeToString(sum[:16])+".eml")
	if err := os.WriteFile(path, raw.RawContent, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// SendMessage sends an outbound message through the credential's SMTP
// settings and persists it to the sent folder. A transport failure aborts
// before anything is stored.
func (s *IngestService) SendMessage(ctx context.Context, userID, credentialID uint, to []string, subject, body string) (*models.Message, error) {
	if len(to) == 0 || strings.TrimSpace(subject) == "" {
		return nil, ErrInvalidSendInput
	}
	for _, addr := range to {
		if !strings.Contains(addr, "@") {
			return nil, fmt.Errorf("%w: bad recipient %q", ErrInvalidSendInput, addr)
		}
	}

	credential, err := s.credentialService.GetCredentialByIDAndUserID(credentialID, userID)
	if err != nil {
		return nil, err
	}
	password, err := s.credentialService.GetDecryptedPassword(credential)
	if err != nil {
		return nil, err
	}

	messageID, err := s.mailer.Send(credential, password, to, subject, body)
	if err != nil {
		s.logService.LogError(userID, models.LogModuleMessage, "send", "Outbound send failed", map[string]interface{}{
			"credential_id": credentialID,
			"error":         err.Error(),
		})
		return nil, err
	}

	recipients := make([]models.Recipient, 0, len(to))
	for _, addr := range to {
		recipients = append(recipients, models.Recipient{Email: addr})
	}
	toJSON, _ := json.Marshal(recipients)

	msg := &models.Message{
		CredentialID: credential.ID,
		MessageID:    messageID,
		Subject:      subject,
		FromName:     credential.DisplayName,
		FromAddr:     credential.Email,
		ToAddrs:      string(toJSON),
		Body:         body,
		Snippet:      s.buildSnippet(body, ""),
		ReceivedAt:   time.Now(),
		Folder:       models.FolderSent,
		Read:         true,
	}
	msg.SetCategories(s.classify(ctx, credential, body))

	if err := s.store.Create(msg); err != nil {
		return nil, err
	}

	s.logService.LogInfo(userID, models.LogModuleMessage, "send", "Outbound message sent", map[string]interface{}{
		"credential_id": credentialID,
		"message_id":    msg.ID,
		"recipients":    len(to),
	})

	return msg, nil
}
