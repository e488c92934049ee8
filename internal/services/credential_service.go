package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"time"

	"github.com/mailhaven/core/internal/database/models"
	"gorm.io/gorm"
)

var (
	// ErrCredentialNotFound indicates the credential was not found or is not
	// owned by the caller
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrCredentialAlreadyExists indicates the address is already configured
	// for this user
	ErrCredentialAlreadyExists = errors.New("credential already exists for this user")
	// ErrInvalidCredentialData indicates invalid credential data
	ErrInvalidCredentialData = errors.New("invalid credential data")
	// ErrEncryptionFailed indicates password encryption failed
	ErrEncryptionFailed = errors.New("password encryption failed")
	// ErrDecryptionFailed indicates password decryption failed
	ErrDecryptionFailed = errors.New("password decryption failed")
)

// CredentialService handles mail credential business logic
type CredentialService struct {
	db            *gorm.DB
	encryptionKey []byte // 32 bytes for AES-256
	logService    *LogService
}

// NewCredentialService creates a new CredentialService instance
func NewCredentialService(db *gorm.DB, encryptionKey []byte) *CredentialService {
	key := make([]byte, 32)
	copy(key, encryptionKey)
	return &CredentialService{
		db:            db,
		encryptionKey: key,
		logService:    NewLogService(db),
	}
}

// encryptPassword encrypts a password using AES-256-GCM
func (s *CredentialService) encryptPassword(password string) (string, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", ErrEncryptionFailed
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrEncryptionFailed
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ErrEncryptionFailed
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(password), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decryptPassword decrypts a password using AES-256-GCM
func (s *CredentialService) decryptPassword(encryptedPassword string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encryptedPassword)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", ErrDecryptionFailed
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// CreateCredentialInput represents the input for creating a credential
type CreateCredentialInput struct {
	UserID      uint
	Email       string
	DisplayName string
	IMAPHost    string
	IMAPPort    int
	SMTPHost    string
	SMTPPort    int
	Username    string
	Password    string
	UseSSL      bool
	SyncDays    int
}

// CreateCredential creates a new mail credential for a user
func (s *CredentialService) CreateCredential(input CreateCredentialInput) (*models.Credential, error) {
	if input.Email == "" || input.IMAPHost == "" || input.SMTPHost == "" || input.Username == "" || input.Password == "" {
		return nil, ErrInvalidCredentialData
	}

	var existing models.Credential
	if err := s.db.Where("user_id = ? AND email = ?", input.UserID, input.Email).First(&existing).Error; err == nil {
		return nil, ErrCredentialAlreadyExists
	}

	encrypted, err := s.encryptPassword(input.Password)
	if err != nil {
		return nil, err
	}

	if input.SyncDays == 0 {
		input.SyncDays = 30
	}

	credential := &models.Credential{
		UserID:            input.UserID,
		Email:             input.Email,
		DisplayName:       input.DisplayName,
		IMAPHost:          input.IMAPHost,
		IMAPPort:          input.IMAPPort,
		SMTPHost:          input.SMTPHost,
		SMTPPort:          input.SMTPPort,
		Username:          input.Username,
		PasswordEncrypted: encrypted,
		UseSSL:            input.UseSSL,
		Enabled:           true,
		SyncDays:          input.SyncDays,
	}

	if err := s.db.Create(credential).Error; err != nil {
		return nil, err
	}

	s.logService.LogInfo(input.UserID, models.LogModuleCredential, "create", "Mail credential created", map[string]interface{}{
		"credential_id": credential.ID,
		"email":         credential.Email,
	})

	return credential, nil
}

// GetCredentialByIDAndUserID returns a credential only if the user owns it
func (s *CredentialService) GetCredentialByIDAndUserID(id, userID uint) (*models.Credential, error) {
	var credential models.Credential
	err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&credential).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}
	return &credential, nil
}

// GetCredentialsByUserID returns all credentials owned by a user
func (s *CredentialService) GetCredentialsByUserID(userID uint) ([]models.Credential, error) {
	var credentials []models.Credential
	if err := s.db.Where("user_id = ?", userID).Find(&credentials).Error; err != nil {
		return nil, err
	}
	return credentials, nil
}

// GetEnabledCredentials returns every enabled credential across users, for
// the sync scheduler
func (s *CredentialService) GetEnabledCredentials() ([]models.Credential, error) {
	var credentials []models.Credential
	if err := s.db.Where("enabled = ?", true).Find(&credentials).Error; err != nil {
		return nil, err
	}
	return credentials, nil
}

// GetDecryptedPassword returns a credential's cleartext password
func (s *CredentialService) GetDecryptedPassword(credential *models.Credential) (string, error) {
	return s.decryptPassword(credential.PasswordEncrypted)
}

// UpdateCredentialInput represents the fields that may be updated
type UpdateCredentialInput struct {
	DisplayName *string
	IMAPHost    *string
	IMAPPort    *int
	SMTPHost    *string
	SMTPPort    *int
	Username    *string
	Password    *string
	UseSSL      *bool
	Enabled     *bool
	SyncDays    *int
}

// UpdateCredential updates a credential owned by the user
func (s *CredentialService) UpdateCredential(id, userID uint, input UpdateCredentialInput) (*models.Credential, error) {
	credential, err := s.GetCredentialByIDAndUserID(id, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.DisplayName != nil {
		updates["display_name"] = *input.DisplayName
	}
	if input.IMAPHost != nil {
		updates["imap_host"] = *input.IMAPHost
	}
	if input.IMAPPort != nil {
		updates["imap_port"] = *input.IMAPPort
	}
	if input.SMTPHost != nil {
		updates["smtp_host"] = *input.SMTPHost
	}
	if input.SMTPPort != nil {
		updates["smtp_port"] = *input.SMTPPort
	}
	if input.Username != nil {
		updates["username"] = *input.Username
	}
	if input.Password != nil {
		encrypted, err := s.encryptPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		updates["password_encrypted"] = encrypted
	}
	if input.UseSSL != nil {
		updates["use_ssl"] = *input.UseSSL
	}
	if input.Enabled != nil {
		updates["enabled"] = *input.Enabled
	}
	if input.SyncDays != nil {
		updates["sync_days"] = *input.SyncDays
	}

	if len(updates) > 0 {
		if err := s.db.Model(credential).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	s.logService.LogInfo(userID, models.LogModuleCredential, "update", "Mail credential updated", map[string]interface{}{
		"credential_id": credential.ID,
		"email":         credential.Email,
	})

	return credential, nil
}

// DeleteCredential removes a credential and all of its messages
func (s *CredentialService) DeleteCredential(id, userID uint) error {
	credential, err := s.GetCredentialByIDAndUserID(id, userID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("credential_id = ?", credential.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(&models.Credential{}, credential.ID).Error; err != nil {
			return err
		}
		return nil
	})
}

// TouchLastSync records the start time of a completed sync run
func (s *CredentialService) TouchLastSync(credentialID uint, at time.Time) error {
	return s.db.Model(&models.Credential{}).Where("id = ?", credentialID).Update("last_sync_at", at).Error
}
