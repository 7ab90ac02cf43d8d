package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrFileNotFound indicates the requested file was not found
	ErrFileNotFound = errors.New("file not found")
	// ErrFileWriteFailed indicates a file write failed
	ErrFileWriteFailed = errors.New("failed to write file")
	// ErrFileReadFailed indicates a file read failed
	ErrFileReadFailed = errors.New("failed to read file")
)

// Storage archives raw messages on disk, one JSON document per message,
// keyed by the namespaced message id.
type Storage struct {
	manager *Manager
}

// NewStorage creates a new user Storage instance
func NewStorage(manager *Manager) *Storage {
	return &Storage{manager: manager}
}

// SaveRawMessage archives the raw form of an ingested message
func (s *Storage) SaveRawMessage(userID, accountID uint, messageID string, raw interface{}) (string, error) {
	dir, err := s.manager.GetRawMessagesAccountDir(userID, accountID)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileWriteFailed, err.Error())
	}

	filename := sanitizeFilename(messageID) + ".json"
	filePath := filepath.Join(dir, filename)

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileWriteFailed, err.Error())
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileWriteFailed, err.Error())
	}

	return filePath, nil
}

// GetRawMessage loads an archived raw message into out
func (s *Storage) GetRawMessage(userID, accountID uint, messageID string, out interface{}) error {
	dir, err := s.manager.GetRawMessagesAccountDir(userID, accountID)
	if err != nil {
		return err
	}

	filename := sanitizeFilename(messageID) + ".json"
	filePath := filepath.Join(dir, filename)

	if err := s.manager.ValidatePathBelongsToUser(userID, filePath); err != nil {
		return err
	}

	content, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return ErrFileNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFileReadFailed, err.Error())
	}

	if err := json.Unmarshal(content, out); err != nil {
		return fmt.Errorf("%w: %s", ErrFileReadFailed, err.Error())
	}

	return nil
}

// ListRawMessages lists archived message files for one account
func (s *Storage) ListRawMessages(userID, accountID uint) ([]string, error) {
	dir, err := s.manager.GetRawMessagesAccountDir(userID, accountID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileReadFailed, err.Error())
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}

	return files, nil
}

// sanitizeFilename replaces unsafe characters so message ids are usable as
// filenames and cannot traverse directories.
func sanitizeFilename(name string) string {
	unsafe := "/\\:*?\"<>|\x00"
	result := []byte(name)
	for i := 0; i < len(result); i++ {
		for j := 0; j < len(unsafe); j++ {
			if result[i] == unsafe[j] {
				result[i] = '_'
				break
			}
		}
	}
	return filepath.Base(string(result))
}
