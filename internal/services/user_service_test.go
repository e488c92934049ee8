package services

import (
	"errors"
	"testing"
)

func TestCreateUserAndAuthenticate(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	userService := NewUserService(db)

	user, err := userService.CreateUser("alice", "secret123", "Alice")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.PasswordHash == "secret123" {
		t.Error("password must not be stored in cleartext")
	}

	authed, err := userService.Authenticate("alice", "secret123")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if authed.ID != user.ID {
		t.Errorf("authenticated wrong user: %d != %d", authed.ID, user.ID)
	}

	if _, err := userService.Authenticate("alice", "wrong"); !errors.Is(err, ErrInvalidLogin) {
		t.Errorf("expected ErrInvalidLogin for wrong password, got %v", err)
	}
	if _, err := userService.Authenticate("nobody", "secret123"); !errors.Is(err, ErrInvalidLogin) {
		t.Errorf("expected ErrInvalidLogin for unknown user, got %v", err)
	}
}

func TestCreateUserRejectsDuplicatesAndShortPasswords(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	userService := NewUserService(db)

	if _, err := userService.CreateUser("bob", "12345", "Bob"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("expected ErrPasswordTooShort, got %v", err)
	}

	if _, err := userService.CreateUser("bob", "longenough", "Bob"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if _, err := userService.CreateUser("bob", "different", "Bob II"); !errors.Is(err, ErrUserAlreadyExists) {
		t.Errorf("expected ErrUserAlreadyExists, got %v", err)
	}
}

func TestResetPassword(t *testing.T) {
	db, cleanup := setupServiceTestDB(t)
	defer cleanup()

	userService := NewUserService(db)

	if _, err := userService.CreateUser("carol", "oldpassword", "Carol"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := userService.ResetPassword("carol", "newpassword"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	if _, err := userService.Authenticate("carol", "oldpassword"); !errors.Is(err, ErrInvalidLogin) {
		t.Error("old password should no longer work")
	}
	if _, err := userService.Authenticate("carol", "newpassword"); err != nil {
		t.Errorf("new password should work, got %v", err)
	}

	if err := userService.ResetPassword("ghost", "whatever123"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
