package store

import (
	"errors"
	"strings"

	"github.com/mailhaven/core/internal/database/models"
	"gorm.io/gorm"
)

var (
	// ErrMessageNotFound indicates the message was not found for the credential
	ErrMessageNotFound = errors.New("message not found")
)

// MessageStore persists and queries messages. Every operation is scoped to a
// single credential; cross-credential reads and writes are impossible here.
type MessageStore struct {
	db *gorm.DB
}

// NewMessageStore creates a new MessageStore instance
func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

// escapeLike neutralizes LIKE pattern metacharacters so search text matches
// literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ListOptions represents options for listing messages
type ListOptions struct {
	Folder   string
	Search   string
	Page     int
	PageSize int
}

// ListResult represents one page of messages plus pre-pagination totals
type ListResult struct {
	Messages   []models.Message `json:"messages"`
	TotalCount int64            `json:"total_count"`
	TotalPages int              `json:"total_pages"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
}

// ListByCredential returns one page of a credential's messages, newest
// first. The folder filter always applies; the search filter is a
// case-insensitive substring match on subject. TotalCount reflects the same
// filter before pagination.
func (s *MessageStore) ListByCredential(credentialID uint, opts ListOptions) (*ListResult, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 20
	}
	if opts.PageSize > 1000 {
		opts.PageSize = 1000
	}
	if opts.Folder == "" {
		opts.Folder = models.FolderInbox
	}

	query := s.db.Model(&models.Message{}).
		Where("credential_id = ?", credentialID).
		Where("folder = ?", opts.Folder)

	if opts.Search != "" {
		// SQLite LIKE is case-insensitive for ASCII; LOWER keeps the
		// comparison explicit and portable
		query = query.Where(`LOWER(subject) LIKE LOWER(?) ESCAPE '\'`, "%"+escapeLike(opts.Search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var messages []models.Message
	offset := (opts.Page - 1) * opts.PageSize
	if err := query.Order("received_at DESC").Offset(offset).Limit(opts.PageSize).Find(&messages).Error; err != nil {
		return nil, err
	}

	totalPages := int((total + int64(opts.PageSize) - 1) / int64(opts.PageSize))

	return &ListResult{
		Messages:   messages,
		TotalCount: total,
		TotalPages: totalPages,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
	}, nil
}

// Create persists a new message record
func (s *MessageStore) Create(message *models.Message) error {
	return s.db.Create(message).Error
}

// GetByID returns a credential's message by id
func (s *MessageStore) GetByID(credentialID, id uint) (*models.Message, error) {
	var message models.Message
	err := s.db.Where("credential_id = ? AND id = ?", credentialID, id).First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

// FindByMessageID returns a credential's message by its external message id
func (s *MessageStore) FindByMessageID(credentialID uint, messageID string) (*models.Message, error) {
	var message models.Message
	err := s.db.Where("credential_id = ? AND message_id = ?", credentialID, messageID).First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

// UpdateOne applies a patch to a single message and returns the updated
// record. A message outside the credential scope reports ErrMessageNotFound.
func (s *MessageStore) UpdateOne(credentialID, id uint, patch map[string]interface{}) (*models.Message, error) {
	result := s.db.Model(&models.Message{}).
		Where("credential_id = ? AND id = ?", credentialID, id).
		Updates(patch)
	if result.Error != nil {
		return nil, result.Error
	}
	// RowsAffected can be zero for an idempotent no-op patch, so existence
	// is checked by the follow-up read rather than the affected count
	return s.GetByID(credentialID, id)
}

// UpdateMany applies a patch to every listed message in one set-scoped
// mutation and returns how many rows actually changed. Ids that do not exist
// or belong to another credential are silently skipped.
func (s *MessageStore) UpdateMany(credentialID uint, ids []uint, patch map[string]interface{}) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := s.db.Model(&models.Message{}).
		Where("credential_id = ? AND id IN ?", credentialID, ids).
		Updates(patch)
	return result.RowsAffected, result.Error
}

// DeleteOne permanently removes a message and returns the deleted record
func (s *MessageStore) DeleteOne(credentialID, id uint) (*models.Message, error) {
	message, err := s.GetByID(credentialID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.Unscoped().Delete(&models.Message{}, message.ID).Error; err != nil {
		return nil, err
	}
	return message, nil
}

// folderCount is the scan target for the grouped folder query
type folderCount struct {
	Folder string
	Count  int64
}

// CountByFolder returns the number of messages per folder for a credential.
// Folders without messages are reported with a zero count.
func (s *MessageStore) CountByFolder(credentialID uint) (map[string]int64, error) {
	var rows []folderCount
	err := s.db.Model(&models.Message{}).
		Select("folder, COUNT(*) as count").
		Where("credential_id = ?", credentialID).
		Group("folder").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(models.Folders))
	for _, folder := range models.Folders {
		counts[folder] = 0
	}
	for _, row := range rows {
		counts[row.Folder] = row.Count
	}
	return counts, nil
}

// valueCount is the scan target for the grouped category query
type valueCount struct {
	Value string
	Count int64
}

// UnknownCategoryValue groups messages whose category field is absent or empty
const UnknownCategoryValue = "unknown"

// CountByCategory returns, for one category column, the number of a
// credential's messages per value. An empty folder counts across all
// folders. Empty values are grouped under UnknownCategoryValue.
func (s *MessageStore) CountByCategory(credentialID uint, folder string, field models.CategoryField) (map[string]int64, error) {
	query := s.db.Model(&models.Message{}).
		Select(field.Column+" as value, COUNT(*) as count").
		Where("credential_id = ?", credentialID)
	if folder != "" {
		query = query.Where("folder = ?", folder)
	}

	var rows []valueCount
	if err := query.Group(field.Column).Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		value := row.Value
		if value == "" {
			value = UnknownCategoryValue
		}
		counts[value] += row.Count
	}
	return counts, nil
}
