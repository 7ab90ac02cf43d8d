package services

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/kritiqo/core/internal/database/models"
)

// LogService persists audit log entries
type LogService struct {
	db *gorm.DB
}

// NewLogService creates a new LogService instance
func NewLogService(db *gorm.DB) *LogService {
	return &LogService{db: db}
}

// Log writes a log entry to the database. Logging never fails the caller.
func (s *LogService) Log(userID uint, level models.LogLevel, module models.LogModule, action, message string, details map[string]interface{}) {
	detailsJSON := ""
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			detailsJSON = string(data)
		}
	}

	entry := models.Log{
		UserID:  userID,
		Level:   string(level),
		Module:  string(module),
		Action:  action,
		Message: message,
		Details: detailsJSON,
	}

	s.db.Create(&entry)
}

// LogInfo writes an INFO level log entry
func (s *LogService) LogInfo(userID uint, module models.LogModule, action, message string, details map[string]interface{}) {
	s.Log(userID, models.LogLevelInfo, module, action, message, details)
}

// LogWarn writes a WARN level log entry
func (s *LogService) LogWarn(userID uint, module models.LogModule, action, message string, details map[string]interface{}) {
	s.Log(userID, models.LogLevelWarn, module, action, message, details)
}

// LogError writes an ERROR level log entry
func (s *LogService) LogError(userID uint, module models.LogModule, action, message string, details map[string]interface{}) {
	s.Log(userID, models.LogLevelError, module, action, message, details)
}

// LogAccountConnected records a mailbox being linked
func (s *LogService) LogAccountConnected(userID, accountID uint, provider models.Provider, email string) {
	s.LogInfo(userID, models.LogModuleAccount, "account_connected", "Mailbox connected", map[string]interface{}{
		"account_id": accountID,
		"provider":   string(provider),
		"email":      email,
	})
}

// LogAccountDeleted records a mailbox being unlinked
func (s *LogService) LogAccountDeleted(userID, accountID uint, email string) {
	s.LogInfo(userID, models.LogModuleAccount, "account_deleted", "Mailbox removed", map[string]interface{}{
		"account_id": accountID,
		"email":      email,
	})
}

// LogImportCompleted records an ingestion run
func (s *LogService) LogImportCompleted(userID, accountID uint, extracted int) {
	s.LogInfo(userID, models.LogModuleIngest, "import_completed", "Mailbox import completed", map[string]interface{}{
		"account_id": accountID,
		"extracted":  extracted,
	})
}

// LogTriageCompleted records a triage batch
func (s *LogService) LogTriageCompleted(userID uint, jobID string, classified, cacheHits, failed int) {
	s.LogInfo(userID, models.LogModuleTriage, "triage_completed", "Triage batch completed", map[string]interface{}{
		"job_id":     jobID,
		"classified": classified,
		"cache_hits": cacheHits,
		"failed":     failed,
	})
}

// LogLogin records a successful login
func (s *LogService) LogLogin(userID uint, username string) {
	s.LogInfo(userID, models.LogModuleAuth, "login", "User logged in", map[string]interface{}{
		"username": username,
	})
}

// LogQuery describes a filtered log listing
type LogQuery struct {
	UserID uint
	Level  string
	Module string
	Since  time.Time
	Limit  int
	Offset int
}

// GetLogs returns log entries matching the query, newest first
func (s *LogService) GetLogs(query LogQuery) ([]models.Log, int64, error) {
	db := s.db.Model(&models.Log{})

	if query.UserID != 0 {
		db = db.Where("user_id = ?", query.UserID)
	}
	if query.Level != "" {
		db = db.Where("level = ?", query.Level)
	}
	if query.Module != "" {
		db = db.Where("module = ?", query.Module)
	}
	if !query.Since.IsZero() {
		db = db.Where("created_at >= ?", query.Since)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := query.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logs []models.Log
	err := db.Order("created_at DESC").Limit(limit).Offset(query.Offset).Find(&logs).Error
	return logs, total, err
}

// CleanupOldLogs deletes log entries older than the retention window
func (s *LogService) CleanupOldLogs(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.Log{})
	return result.RowsAffected, result.Error
}
