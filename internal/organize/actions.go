package organize

import (
	"errors"
	"fmt"

	"github.com/mailhaven/core/internal/database/models"
)

var (
	// ErrInvalidAction indicates an unrecognized transition name
	ErrInvalidAction = errors.New("invalid action")
	// ErrInvalidBulkTarget indicates a bulk move target outside the legal set
	ErrInvalidBulkTarget = errors.New("invalid bulk move target")
)

// ActionKind enumerates the legal organization transitions. Folder and flag
// axes are independent: folder changes never touch flags and flag changes
// never touch the folder. Every transition is idempotent.
type ActionKind int

const (
	// ActionStar sets starred = true
	ActionStar ActionKind = iota
	// ActionUnstar sets starred = false
	ActionUnstar
	// ActionTrash moves the message to the trash folder
	ActionTrash
	// ActionArchive moves the message to the archive folder
	ActionArchive
	// ActionRestore moves the message back to the inbox from trash or archive
	ActionRestore
	// ActionMarkRead sets read = true
	ActionMarkRead
	// ActionDelete permanently removes the message
	ActionDelete
)

// String returns the canonical wire name of the action kind
func (k ActionKind) String() string {
	switch k {
	case ActionStar:
		return "star"
	case ActionUnstar:
		return "unstar"
	case ActionTrash:
		return "trash"
	case ActionArchive:
		return "archive"
	case ActionRestore:
		return "restore"
	case ActionMarkRead:
		return "read"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

// ParseAction resolves a wire action name to its kind. The removetrash and
// removearchive aliases map to restore; both had identical semantics in the
// flat action set this replaces.
func ParseAction(name string) (ActionKind, error) {
	switch name {
	case "star", "starred":
		return ActionStar, nil
	case "unstar", "unstarred":
		return ActionUnstar, nil
	case "trash":
		return ActionTrash, nil
	case "archive":
		return ActionArchive, nil
	case "restore", "removetrash", "removearchive":
		return ActionRestore, nil
	case "read":
		return ActionMarkRead, nil
	case "delete":
		return ActionDelete, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAction, name)
}

// IsDelete reports whether the action removes the message instead of
// patching it
func (k ActionKind) IsDelete() bool {
	return k == ActionDelete
}

// Patch returns the single-field update the action applies. Delete has no
// patch; callers must branch on IsDelete first.
func (k ActionKind) Patch() map[string]interface{} {
	switch k {
	case ActionStar:
		return map[string]interface{}{"starred": true}
	case ActionUnstar:
		return map[string]interface{}{"starred": false}
	case ActionTrash:
		return map[string]interface{}{"folder": models.FolderTrash}
	case ActionArchive:
		return map[string]interface{}{"folder": models.FolderArchive}
	case ActionRestore:
		return map[string]interface{}{"folder": models.FolderInbox}
	case ActionMarkRead:
		return map[string]interface{}{"read": true}
	}
	return nil
}

// ParseBulkTarget validates a bulk move target. Only inbox, archive and
// trash are reachable in bulk; sent is assigned exclusively at send time.
func ParseBulkTarget(target string) (string, error) {
	switch target {
	case models.FolderInbox, models.FolderArchive, models.FolderTrash:
		return target, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBulkTarget, target)
}
