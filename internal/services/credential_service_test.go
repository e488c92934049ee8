package services

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/mailhaven/core/internal/database/models"
)

// Property: any stored password decrypts back to the original through the
// credential roundtrip.
func TestProperty_PasswordEncryptionRoundtrip(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	credentialService := NewCredentialService(db, testEncryptionKey)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("encrypt_decrypt_roundtrip", prop.ForAll(
		func(password string) bool {
			if password == "" {
				return true
			}
			encrypted, err := credentialService.encryptPassword(password)
			if err != nil {
				return false
			}
			// Ciphertext never equals the plaintext
			if encrypted == password {
				return false
			}
			decrypted, err := credentialService.decryptPassword(encrypted)
			return err == nil && decrypted == password
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestCreateCredentialStoresEncryptedPassword(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	user, credential, credentialService := setupUserAndCredential(t, db, "enc")
	_ = user

	if credential.PasswordEncrypted == "mailpass" {
		t.Error("password must not be stored in cleartext")
	}

	password, err := credentialService.GetDecryptedPassword(credential)
	if err != nil {
		t.Fatalf("GetDecryptedPassword failed: %v", err)
	}
	if password != "mailpass" {
		t.Errorf("decrypted password = %q, want mailpass", password)
	}
}

func TestCreateCredentialRejectsDuplicates(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	user, _, credentialService := setupUserAndCredential(t, db, "dup")

	_, err := credentialService.CreateCredential(CreateCredentialInput{
		UserID:   user.ID,
		Email:    "dup@example.com",
		IMAPHost: "imap.example.com",
		IMAPPort: 993,
		SMTPHost: "smtp.example.com",
		SMTPPort: 465,
		Username: "dup@example.com",
		Password: "another",
	})
	if !errors.Is(err, ErrCredentialAlreadyExists) {
		t.Errorf("expected ErrCredentialAlreadyExists, got %v", err)
	}
}

func TestCreateCredentialValidatesInput(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	credentialService := NewCredentialService(db, testEncryptionKey)

	_, err := credentialService.CreateCredential(CreateCredentialInput{
		UserID: 1,
		Email:  "missing@example.com",
	})
	if !errors.Is(err, ErrInvalidCredentialData) {
		t.Errorf("expected ErrInvalidCredentialData, got %v", err)
	}
}

func TestUpdateCredentialReencryptsPassword(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	user, credential, credentialService := setupUserAndCredential(t, db, "upd")

	newPassword := "rotated-secret"
	if _, err := credentialService.UpdateCredential(credential.ID, user.ID, UpdateCredentialInput{
		Password: &newPassword,
	}); err != nil {
		t.Fatalf("UpdateCredential failed: %v", err)
	}

	reloaded, err := credentialService.GetCredentialByIDAndUserID(credential.ID, user.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	decrypted, err := credentialService.GetDecryptedPassword(reloaded)
	if err != nil {
		t.Fatalf("GetDecryptedPassword failed: %v", err)
	}
	if decrypted != newPassword {
		t.Errorf("decrypted = %q, want %q", decrypted, newPassword)
	}
}

func TestDeleteCredentialRemovesMessages(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	user, credential, credentialService := setupUserAndCredential(t, db, "cascade")
	seedServiceMessages(t, db, credential.ID, 3)

	if err := credentialService.DeleteCredential(credential.ID, user.ID); err != nil {
		t.Fatalf("DeleteCredential failed: %v", err)
	}

	var count int64
	db.Model(&models.Message{}).Where("credential_id = ?", credential.ID).Count(&count)
	if count != 0 {
		t.Errorf("messages left behind after credential delete: %d", count)
	}
}

func TestCredentialOwnershipEnforced(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	_, credential, credentialService := setupUserAndCredential(t, db, "mine")
	other, _, _ := setupUserAndCredential(t, db, "yours")

	if _, err := credentialService.GetCredentialByIDAndUserID(credential.ID, other.ID); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("expected ErrCredentialNotFound, got %v", err)
	}
	if err := credentialService.DeleteCredential(credential.ID, other.ID); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("expected ErrCredentialNotFound on delete, got %v", err)
	}
}
