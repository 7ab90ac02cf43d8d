package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kritiqo/core/internal/database/models"
)

func TestProperty_LogEntryCompleteness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("import_completion_creates_complete_log_entry", prop.ForAll(
		func(userID, accountID uint, extracted int) bool {
			db := setupServiceTestDB(t)
			service := NewLogService(db)
			beforeTime := time.Now().Add(-time.Second)

			service.LogImportCompleted(userID, accountID, extracted)

			afterTime := time.Now().Add(time.Second)

			var entry models.Log
			if err := db.Where("module = ? AND action = ?", "ingest", "import_completed").First(&entry).Error; err != nil {
				return false
			}

			var details map[string]interface{}
			if err := json.Unmarshal([]byte(entry.Details), &details); err != nil {
				return false
			}

			return entry.UserID == userID &&
				entry.Level == "INFO" &&
				int(details["extracted"].(float64)) == extracted &&
				entry.CreatedAt.After(beforeTime) &&
				entry.CreatedAt.Before(afterTime)
		},
		gen.UIntRange(1, 1000),
		gen.UIntRange(1, 100),
		gen.IntRange(0, 500),
	))

	properties.Property("triage_completion_creates_complete_log_entry", prop.ForAll(
		func(userID uint, classified, cacheHits, failed int) bool {
			db := setupServiceTestDB(t)
			service := NewLogService(db)

			service.LogTriageCompleted(userID, "job-1", classified, cacheHits, failed)

			var entry models.Log
			if err := db.Where("module = ? AND action = ?", "triage", "triage_completed").First(&entry).Error; err != nil {
				return false
			}

			var details map[string]interface{}
			if err := json.Unmarshal([]byte(entry.Details), &details); err != nil {
				return false
			}

			return entry.UserID == userID &&
				entry.Level == "INFO" &&
				details["job_id"] == "job-1" &&
				int(details["classified"].(float64)) == classified &&
				int(details["cache_hits"].(float64)) == cacheHits &&
				int(details["failed"].(float64)) == failed
		},
		gen.UIntRange(1, 1000),
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
	))

	properties.Property("account_connection_creates_complete_log_entry", prop.ForAll(
		func(userID, accountID uint) bool {
			db := setupServiceTestDB(t)
			service := NewLogService(db)

			service.LogAccountConnected(userID, accountID, models.ProviderGoogle, "pro@example.fr")

			var entry models.Log
			if err := db.Where("module = ? AND action = ?", "account", "account_connected").First(&entry).Error; err != nil {
				return false
			}
			return entry.UserID == userID && entry.Level == "INFO"
		},
		gen.UIntRange(1, 1000),
		gen.UIntRange(1, 100),
	))

	properties.Property("login_creates_complete_log_entry", prop.ForAll(
		func(userID uint) bool {
			db := setupServiceTestDB(t)
			service := NewLogService(db)

			service.LogLogin(userID, "jean")

			var entry models.Log
			if err := db.Where("module = ? AND action = ?", "auth", "login").First(&entry).Error; err != nil {
				return false
			}
			return entry.UserID == userID && entry.Level == "INFO"
		},
		gen.UIntRange(1, 1000),
	))

	properties.TestingRun(t)
}

func TestProperty_LogQueryFiltering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("user_filter_scopes_results", prop.ForAll(
		func(userA, userB uint) bool {
			if userA == userB {
				return true
			}
			db := setupServiceTestDB(t)
			service := NewLogService(db)

			service.LogInfo(userA, models.LogModuleIngest, "test", "message a", nil)
			service.LogInfo(userB, models.LogModuleIngest, "test", "message b", nil)

			logs, total, err := service.GetLogs(LogQuery{UserID: userA})
			if err != nil || total != 1 || len(logs) != 1 {
				return false
			}
			return logs[0].UserID == userA
		},
		gen.UIntRange(1, 500),
		gen.UIntRange(501, 1000),
	))

	properties.Property("level_filter_scopes_results", prop.ForAll(
		func(userID uint) bool {
			db := setupServiceTestDB(t)
			service := NewLogService(db)

			service.LogInfo(userID, models.LogModuleTriage, "test", "info", nil)
			service.LogWarn(userID, models.LogModuleTriage, "test", "warn", nil)
			service.LogError(userID, models.LogModuleTriage, "test", "error", nil)

			logs, total, err := service.GetLogs(LogQuery{UserID: userID, Level: "ERROR"})
			if err != nil || total != 1 {
				return false
			}
			return len(logs) == 1 && logs[0].Level == "ERROR"
		},
		gen.UIntRange(1, 1000),
	))

	properties.Property("limit_caps_results_but_not_total", prop.ForAll(
		func(userID uint) bool {
			db := setupServiceTestDB(t)
			service := NewLogService(db)

			for i := 0; i < 5; i++ {
				service.LogInfo(userID, models.LogModuleAPI, "test", "entry", nil)
			}

			logs, total, err := service.GetLogs(LogQuery{UserID: userID, Limit: 2})
			return err == nil && total == 5 && len(logs) == 2
		},
		gen.UIntRange(1, 1000),
	))

	properties.TestingRun(t)
}

func TestCleanupOldLogs(t *testing.T) {
	db := setupServiceTestDB(t)
	service := NewLogService(db)

	old := models.Log{UserID: 1, Level: "INFO", Module: "api", Action: "test", Message: "old"}
	db.Create(&old)
	db.Model(&old).Update("created_at", time.Now().Add(-48*time.Hour))

	service.LogInfo(1, models.LogModuleAPI, "test", "recent", nil)

	deleted, err := service.CleanupOldLogs(24 * time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted entry, got %d", deleted)
	}

	var count int64
	db.Model(&models.Log{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 remaining entry, got %d", count)
	}
}
