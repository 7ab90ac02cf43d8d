package user

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_UserDataIsolation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	manager := NewManager(t.TempDir())

	properties.Property("users_can_only_access_own_data", prop.ForAll(
		func(requestingID, targetID uint) bool {
			err := manager.ValidateUserAccess(requestingID, targetID)
			if requestingID == targetID {
				return err == nil
			}
			return errors.Is(err, ErrUserDataAccessDenied)
		},
		gen.UIntRange(1, 1000),
		gen.UIntRange(1, 1000),
	))

	properties.Property("user_directories_are_disjoint", prop.ForAll(
		func(userA, userB uint) bool {
			if userA == userB {
				return true
			}
			dirA, errA := manager.GetUserDataDir(userA)
			dirB, errB := manager.GetUserDataDir(userB)
			return errA == nil && errB == nil && dirA != dirB
		},
		gen.UIntRange(1, 1000),
		gen.UIntRange(1, 1000),
	))

	properties.Property("own_paths_validate_foreign_paths_rejected", prop.ForAll(
		func(userA, userB uint) bool {
			if userA == userB {
				return true
			}
			dirA, err := manager.GetRawMessagesDir(userA)
			if err != nil {
				return false
			}
			ownPath := filepath.Join(dirA, "1", "msg.json")
			if manager.ValidatePathBelongsToUser(userA, ownPath) != nil {
				return false
			}
			return errors.Is(manager.ValidatePathBelongsToUser(userB, ownPath), ErrUserDataAccessDenied)
		},
		gen.UIntRange(1, 1000),
		gen.UIntRange(1, 1000),
	))

	properties.Property("traversal_paths_rejected", prop.ForAll(
		func(userID uint) bool {
			dir, err := manager.GetUserDataDir(userID)
			if err != nil {
				return false
			}
			escape := filepath.Join(dir, "..", "..", "other")
			return errors.Is(manager.ValidatePathBelongsToUser(userID, escape), ErrUserDataAccessDenied)
		},
		gen.UIntRange(1, 1000),
	))

	properties.TestingRun(t)
}

func TestProperty_UserDirectoryLifecycle(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("create_then_exists_then_delete", prop.ForAll(
		func(userID uint) bool {
			manager := NewManager(t.TempDir())

			exists, err := manager.UserDirectoriesExist(userID)
			if err != nil || exists {
				return false
			}

			if err := manager.CreateUserDirectories(userID); err != nil {
				return false
			}
			exists, err = manager.UserDirectoriesExist(userID)
			if err != nil || !exists {
				return false
			}

			if err := manager.DeleteUserDirectories(userID); err != nil {
				return false
			}
			exists, err = manager.UserDirectoriesExist(userID)
			return err == nil && !exists
		},
		gen.UIntRange(1, 1000),
	))

	properties.TestingRun(t)
}

func TestManagerRejectsZeroUserID(t *testing.T) {
	manager := NewManager(t.TempDir())

	if _, err := manager.GetUserDataDir(0); !errors.Is(err, ErrInvalidUserID) {
		t.Errorf("expected ErrInvalidUserID, got %v", err)
	}
	if err := manager.CreateUserDirectories(0); !errors.Is(err, ErrInvalidUserID) {
		t.Errorf("expected ErrInvalidUserID, got %v", err)
	}
	if err := manager.ValidateUserAccess(0, 1); !errors.Is(err, ErrInvalidUserID) {
		t.Errorf("expected ErrInvalidUserID, got %v", err)
	}
}

func TestManagerDirectoryLayout(t *testing.T) {
	base := t.TempDir()
	manager := NewManager(base)

	userDir, err := manager.GetUserDataDir(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userDir != filepath.Join(base, "users", "7") {
		t.Errorf("unexpected user dir %q", userDir)
	}

	accountDir, err := manager.GetRawMessagesAccountDir(7, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accountDir != filepath.Join(base, "users", "7", "raw_messages", "3") {
		t.Errorf("unexpected account dir %q", accountDir)
	}
}

func TestManagerDataDirAccessor(t *testing.T) {
	base := t.TempDir()
	if got := NewManager(base).GetDataDir(); got != base {
		t.Errorf("expected %q, got %q", base, got)
	}
}
