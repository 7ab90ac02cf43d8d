package user

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidUserID indicates an invalid user ID was provided
	ErrInvalidUserID = errors.New("invalid user ID")
	// ErrUserDataAccessDenied indicates unauthorized access to user data
	ErrUserDataAccessDenied = errors.New("access to user data denied")
	// ErrDirectoryCreationFailed indicates directory creation failed
	ErrDirectoryCreationFailed = errors.New("failed to create directory")
)

// Manager handles per-user data directory management. Each user gets an
// isolated subtree under the data directory holding raw message archives.
type Manager struct {
	dataDir string
}

// NewManager creates a new user Manager instance
func NewManager(dataDir string) *Manager {
	return &Manager{dataDir: dataDir}
}

// GetUserDataDir returns the base data directory for a specific user
func (m *Manager) GetUserDataDir(userID uint) (string, error) {
	if userID == 0 {
		return "", ErrInvalidUserID
	}
	return filepath.Join(m.dataDir, "users", fmt.Sprintf("%d", userID)), nil
}

// GetRawMessagesDir returns the raw message archive directory for a user
func (m *Manager) GetRawMessagesDir(userID uint) (string, error) {
	userDir, err := m.GetUserDataDir(userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(userDir, "raw_messages"), nil
}

// GetRawMessagesAccountDir returns the raw message archive for one account
func (m *Manager) GetRawMessagesAccountDir(userID, accountID uint) (string, error) {
	rawDir, err := m.GetRawMessagesDir(userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(rawDir, fmt.Sprintf("%d", accountID)), nil
}

// CreateUserDirectories creates all necessary directories for a user
func (m *Manager) CreateUserDirectories(userID uint) error {
	if userID == 0 {
		return ErrInvalidUserID
	}

	userDir := filepath.Join(m.dataDir, "users", fmt.Sprintf("%d", userID))
	dirs := []string{
		userDir,
		filepath.Join(userDir, "raw_messages"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %s", ErrDirectoryCreationFailed, err.Error())
		}
	}

	return nil
}

// ValidateUserAccess ensures a requesting user can only touch their own data
func (m *Manager) ValidateUserAccess(requestingUserID, targetUserID uint) error {
	if requestingUserID == 0 || targetUserID == 0 {
		return ErrInvalidUserID
	}
	if requestingUserID != targetUserID {
		return ErrUserDataAccessDenied
	}
	return nil
}

// ValidatePathBelongsToUser rejects paths outside the user's subtree
func (m *Manager) ValidatePathBelongsToUser(userID uint, path string) error {
	if userID == 0 {
		return ErrInvalidUserID
	}

	userDir, err := m.GetUserDataDir(userID)
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return ErrUserDataAccessDenied
	}
	absUserDir, err := filepath.Abs(userDir)
	if err != nil {
		return ErrUserDataAccessDenied
	}

	if !strings.HasPrefix(absPath, absUserDir+string(filepath.Separator)) && absPath != absUserDir {
		return ErrUserDataAccessDenied
	}

	return nil
}

// UserDirectoriesExist checks if user directories already exist
func (m *Manager) UserDirectoriesExist(userID uint) (bool, error) {
	userDir, err := m.GetUserDataDir(userID)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(userDir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return info.IsDir(), nil
}

// DeleteUserDirectories removes all directories for a user
func (m *Manager) DeleteUserDirectories(userID uint) error {
	userDir, err := m.GetUserDataDir(userID)
	if err != nil {
		return err
	}
	return os.RemoveAll(userDir)
}

// GetDataDir returns the base data directory
func (m *Manager) GetDataDir() string {
	return m.dataDir
}
