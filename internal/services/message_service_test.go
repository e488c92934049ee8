package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/mailhaven/core/internal/database/models"
	"github.com/mailhaven/core/internal/organize"
	"github.com/mailhaven/core/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupServiceTestDB creates a test database for service tests
func setupServiceTestDB(t *testing.T) (*gorm.DB, func()) {
	tempDir, err := os.MkdirTemp("", "service_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tempDir, "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to open database: %v", err)
	}

	db.AutoMigrate(&models.User{}, &models.Credential{}, &models.Message{}, &models.SlackInstall{}, &models.Log{})

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.RemoveAll(tempDir)
	}

	return db, cleanup
}

var testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

// setupUserAndCredential creates a user with one mail credential
func setupUserAndCredential(t *testing.T, db *gorm.DB, username string) (*models.User, *models.Credential, *CredentialService) {
	userService := NewUserService(db)
	user, err := userService.CreateUser(username, "secret123", username)
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	credentialService := NewCredentialService(db, testEncryptionKey)
	credential, err := credentialService.CreateCredential(CreateCredentialInput{
		UserID:   user.ID,
		Email:    username + "@example.com",
		IMAPHost: "imap.example.com",
		IMAPPort: 993,
		SMTPHost: "smtp.example.com",
		SMTPPort: 465,
		Username: username + "@example.com",
		Password: "mailpass",
		UseSSL:   true,
	})
	if err != nil {
		t.Fatalf("Failed to create credential: %v", err)
	}

	return user, credential, credentialService
}

// seedServiceMessages creates n inbox messages for a credential
func seedServiceMessages(t *testing.T, db *gorm.DB, credentialID uint, n int) []uint {
	messageStore := store.NewMessageStore(db)
	ids := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		msg := &models.Message{
			CredentialID: credentialID,
			MessageID:    fmt.Sprintf("<svc-%d-%d@test>", credentialID, i),
			Subject:      fmt.Sprintf("Subject %d", i),
			Folder:       models.FolderInbox,
			ReceivedAt:   time.Now().Add(time.Duration(i) * time.Second),
		}
		msg.SetCategories(models.DefaultCategories())
		if err := messageStore.Create(msg); err != nil {
			t.Fatalf("Failed to seed message: %v", err)
		}
		ids = append(ids, msg.ID)
	}
	return ids
}

// Property: every non-delete transition is idempotent; applying it twice
// leaves the message in the same state as applying it once.
func TestProperty_TransitionsAreIdempotent(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	user, credential, credentialService := setupUserAndCredential(t, db, "idem")
	messageService := NewMessageService(db, credentialService)

	actions := []string{"star", "unstar", "trash", "archive", "restore", "read"}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("apply_twice_equals_once", prop.ForAll(
		func(actionIdx int8) bool {
			action := actions[int(actionIdx)%len(actions)]
			ids := seedServiceMessages(t, db, credential.ID, 1)

			first, err := messageService.ApplyAction(user.ID, credential.ID, ids[0], action)
			if err != nil {
				return false
			}
			second, err := messageService.ApplyAction(user.ID, credential.ID, ids[0], action)
			if err != nil {
				return false
			}

			return first.Folder == second.Folder &&
				first.Read == second.Read &&
				first.Starred == second.Starred
		},
		gen.Int8Range(0, 5),
	))

	properties.TestingRun(t)
}

// Property: an unknown action name is rejected before any lookup and leaves
// the message untouched.
func TestProperty_UnknownActionNeverMutates(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	user, credential, credentialService := setupUserAndCredential(t, db, "noop")
	messageService := NewMessageService(db, credentialService)
	messageStore := store.NewMessageStore(db)

	ids := seedServiceMessages(t, db, credential.ID, 1)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	known := map[string]bool{
		"star": true, "starred": true, "unstar": true, "unstarred": true,
		"trash": true, "archive": true, "restore": true, "removetrash": true,
		"removearchive": true, "read": true, "delete": true,
	}

	properties.Property("invalid_action_rejected", prop.ForAll(
		func(name string) bool {
			if known[name] {
				return true
			}

			before, err := messageStore.GetByID(credential.ID, ids[0])
			if err != nil {
				return false
			}

			_, err = messageService.ApplyAction(user.ID, credential.ID, ids[0], name)
			if !errors.Is(err, organize.ErrInvalidAction) {
				return false
			}

			after, err := messageStore.GetByID(credential.ID, ids[0])
			if err != nil {
				return false
			}
			return before.Folder == after.Folder &&
				before.Read == after.Read &&
				before.Starred == after.Starred
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestApplyActionFolderAndFlagsIndependent(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	user, credential, credentialService := setupUserAndCredential(t, db, "axes")
	messageService := NewMessageService(db, credentialService)

	ids := seedServiceMessages(t, db, credential.ID, 1)

	starred, err := messageService.ApplyAction(user.ID, credential.ID, ids[0], "star")
	if err != nil {
		t.Fatalf("star failed: %v", err)
	}
	if !starred.Starred || starred.Folder != models.FolderInbox {
		t.Errorf("star should not move the message: %+v", starred)
	}

	trashed, err := messageService.ApplyAction(user.ID, credential.ID, ids[0], "trash")
	if err != nil {
		t.Fatalf("trash failed: %v", err)
	}
	if trashed.Folder != models.FolderTrash || !trashed.Starred {
		t.Errorf("trash should keep the star flag: %+v", trashed)
	}

	restored, err := messageService.ApplyAction(user.ID, credential.ID, ids[0], "restore")
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored.Folder != models.FolderInbox || !restored.Starred {
		t.Errorf("restore should return to inbox with flags intact: %+v", restored)
	}
}

func TestApplyActionDelete(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	user, credential, credentialService := setupUserAndCredential(t, db, "del")
	messageService := NewMessageService(db, credentialService)
	messageStore := store.NewMessageStore(db)

	ids := seedServiceMessages(t, db, credential.ID, 1)

	msg, err := messageService.ApplyAction(user.ID, credential.ID, ids[0], "delete")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if msg != nil {
		t.Errorf("delete should return nil message, got %+v", msg)
	}

	if _, err := messageStore.GetByID(credential.ID, ids[0]); !errors.Is(err, store.ErrMessageNotFound) {
		t.Errorf("message should be gone after delete, got %v", err)
	}

	// Deleting again reports not found
	if _, err := messageService.ApplyAction(user.ID, credential.ID, ids[0], "delete"); !errors.Is(err, store.ErrMessageNotFound) {
		t.Errorf("second delete should report not found, got %v", err)
	}
}

func TestApplyActionForeignCredentialRejected(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	_, credential, credentialService := setupUserAndCredential(t, db, "owner")
	other, _, _ := setupUserAndCredential(t, db, "intruder")
	messageService := NewMessageService(db, credentialService)

	ids := seedServiceMessages(t, db, credential.ID, 1)

	_, err := messageService.ApplyAction(other.ID, credential.ID, ids[0], "star")
	if !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("expected ErrCredentialNotFound for foreign credential, got %v", err)
	}
}

func TestBulkMoveReportsModifiedCount(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	user, credential, credentialService := setupUserAndCredential(t, db, "bulk")
	messageService := NewMessageService(db, credentialService)

	ids := seedServiceMessages(t, db, credential.ID, 4)

	requested := append(append([]uint{}, ids[:3]...), 424242)
	modified, err := messageService.BulkMove(user.ID, credential.ID, requested, models.FolderArchive)
	if err != nil {
		t.Fatalf("BulkMove failed: %v", err)
	}
	if modified != 3 {
		t.Errorf("modified = %d, want 3", modified)
	}

	// Invalid target is rejected without touching anything
	if _, err := messageService.BulkMove(user.ID, credential.ID, ids, "sent"); !errors.Is(err, organize.ErrInvalidBulkTarget) {
		t.Errorf("expected ErrInvalidBulkTarget for sent, got %v", err)
	}
}

func TestGetCountsReflectsTransitions(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	user, credential, credentialService := setupUserAndCredential(t, db, "counts")
	messageService := NewMessageService(db, credentialService)

	ids := seedServiceMessages(t, db, credential.ID, 5)

	before, err := messageService.GetCounts(user.ID, credential.ID, "")
	if err != nil {
		t.Fatalf("GetCounts failed: %v", err)
	}
	if before.Folder != models.FolderInbox {
		t.Errorf("default folder = %q, want inbox", before.Folder)
	}
	if before.Folders[models.FolderInbox] != 5 {
		t.Errorf("inbox count = %d, want 5", before.Folders[models.FolderInbox])
	}

	if _, err := messageService.ApplyAction(user.ID, credential.ID, ids[0], "trash"); err != nil {
		t.Fatalf("trash failed: %v", err)
	}

	after, err := messageService.GetCounts(user.ID, credential.ID, "")
	if err != nil {
		t.Fatalf("GetCounts failed: %v", err)
	}
	if after.Folders[models.FolderInbox] != 4 || after.Folders[models.FolderTrash] != 1 {
		t.Errorf("counts not updated after transition: %+v", after.Folders)
	}

	// Each category histogram sums to the folder total
	for name, histogram := range after.Categories {
		var sum int64
		for _, c := range histogram {
			sum += c
		}
		if sum != after.Folders[models.FolderInbox] {
			t.Errorf("category %q sums to %d, want %d", name, sum, after.Folders[models.FolderInbox])
		}
	}
}

func TestGetCountsInvalidFolder(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	user, credential, credentialService := setupUserAndCredential(t, db, "badfolder")
	messageService := NewMessageService(db, credentialService)

	if _, err := messageService.GetCounts(user.ID, credential.ID, "spam"); !errors.Is(err, ErrInvalidFolder) {
		t.Errorf("expected ErrInvalidFolder, got %v", err)
	}
}
