package services

import (
	"errors"
	"fmt"

	"github.com/mailhaven/core/internal/database/models"
	"github.com/mailhaven/core/internal/organize"
	"github.com/mailhaven/core/internal/store"
	"gorm.io/gorm"
)

var (
	// ErrInvalidFolder indicates an unknown folder name was requested
	ErrInvalidFolder = errors.New("invalid folder")
)

// MessageService answers listing, transition and faceted-count requests over
// a credential's messages. Credential ownership is verified here, at the
// boundary; the store and the transition table below it never see user ids.
type MessageService struct {
	store             *store.MessageStore
	credentialService *CredentialService
	logService        *LogService
}

// NewMessageService creates a new MessageService instance
func NewMessageService(db *gorm.DB, credentialService *CredentialService) *MessageService {
	return &MessageService{
		store:             store.NewMessageStore(db),
		credentialService: credentialService,
		logService:        NewLogService(db),
	}
}

// ListMessages returns one page of a credential's messages
func (s *MessageService) ListMessages(userID, credentialID uint, opts store.ListOptions) (*store.ListResult, error) {
	if _, err := s.credentialService.GetCredentialByIDAndUserID(credentialID, userID); err != nil {
		return nil, err
	}
	return s.store.ListByCredential(credentialID, opts)
}

// GetMessage returns a single message owned by the user's credential
func (s *MessageService) GetMessage(userID, credentialID, messageID uint) (*models.Message, error) {
	if _, err := s.credentialService.GetCredentialByIDAndUserID(credentialID, userID); err != nil {
		return nil, err
	}
	return s.store.GetByID(credentialID, messageID)
}

// ApplyAction applies a named organization transition to one message.
// The returned message is nil when the action deleted it. Unknown action
// names are rejected before any lookup, so they can never mutate state.
func (s *MessageService) ApplyAction(userID, credentialID, messageID uint, actionName string) (*models.Message, error) {
	kind, err := organize.ParseAction(actionName)
	if err != nil {
		return nil, err
	}

	if _, err := s.credentialService.GetCredentialByIDAndUserID(credentialID, userID); err != nil {
		return nil, err
	}

	if kind.IsDelete() {
		deleted, err := s.store.DeleteOne(credentialID, messageID)
		if err != nil {
			return nil, err
		}
		s.logService.LogInfo(userID, models.LogModuleMessage, "delete", "Message permanently deleted", map[string]interface{}{
			"credential_id": credentialID,
			"message_id":    deleted.ID,
		})
		return nil, nil
	}

	updated, err := s.store.UpdateOne(credentialID, messageID, kind.Patch())
	if err != nil {
		return nil, err
	}

	s.logService.LogDebug(userID, models.LogModuleMessage, "action", "Transition applied", map[string]interface{}{
		"credential_id": credentialID,
		"message_id":    updated.ID,
		"action":        kind.String(),
	})

	return updated, nil
}

// BulkMove moves a set of messages to a target folder in one store mutation
// and returns how many records actually changed. Ids that do not exist or
// belong to another credential are skipped, not errors.
func (s *MessageService) BulkMove(userID, credentialID uint, messageIDs []uint, target string) (int64, error) {
	folder, err := organize.ParseBulkTarget(target)
	if err != nil {
		return 0, err
	}

	if _, err := s.credentialService.GetCredentialByIDAndUserID(credentialID, userID); err != nil {
		return 0, err
	}

	modified, err := s.store.UpdateMany(credentialID, messageIDs, map[string]interface{}{"folder": folder})
	if err != nil {
		return 0, err
	}

	s.logService.LogInfo(userID, models.LogModuleMessage, "bulk_move", "Bulk move applied", map[string]interface{}{
		"credential_id":  credentialID,
		"target":         folder,
		"requested":      len(messageIDs),
		"modified_count": modified,
	})

	return modified, nil
}

// CountsResult carries the folder tab counters plus, for the selected
// folder, one value histogram per category field.
type CountsResult struct {
	Folders    map[string]int64            `json:"folders"`
	Folder     string                      `json:"folder"`
	Categories map[string]map[string]int64 `json:"categories"`
}

// GetCounts computes folder counts and per-category value counts for one
// folder. Both aggregations read the live record set used for listing, so a
// transition is reflected in the next call with no cache to invalidate.
func (s *MessageService) GetCounts(userID, credentialID uint, folder string) (*CountsResult, error) {
	if _, err := s.credentialService.GetCredentialByIDAndUserID(credentialID, userID); err != nil {
		return nil, err
	}

	if folder == "" {
		folder = models.FolderInbox
	}
	if !models.IsValidFolder(folder) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFolder, folder)
	}

	folders, err := s.store.CountByFolder(credentialID)
	if err != nil {
		return nil, err
	}

	categories := make(map[string]map[string]int64, len(models.CategoryFields))
	for _, field := range models.CategoryFields {
		counts, err := s.store.CountByCategory(credentialID, folder, field)
		if err != nil {
			return nil, err
		}
		categories[field.Name] = counts
	}

	return &CountsResult{
		Folders:    folders,
		Folder:     folder,
		Categories: categories,
	}, nil
}
