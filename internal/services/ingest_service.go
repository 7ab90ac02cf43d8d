package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/kritiqo/core/internal/database/models"
	"github.com/kritiqo/core/internal/mail"
	"github.com/kritiqo/core/internal/user"
)

// ImportResult reports one ingestion run. Extracted counts only rows that
// were actually inserted; re-importing an unchanged mailbox yields 0.
type ImportResult struct {
	Success   bool `json:"success"`
	Extracted int  `json:"extracted"`
}

// IngestService pulls messages from connected mailboxes into the database
type IngestService struct {
	db             *gorm.DB
	accountService *AccountService
	logService     *LogService
	storage        *user.Storage
	logger         *logrus.Logger

	// sourceFor builds the mail adapter for an account. Tests swap it for a
	// stub source.
	sourceFor func(ctx context.Context, account *models.ConnectedAccount) (mail.Source, error)
}

// NewIngestService creates a new IngestService instance
func NewIngestService(db *gorm.DB, accountService *AccountService, storage *user.Storage, logger *logrus.Logger) *IngestService {
	return &IngestService{
		db:             db,
		accountService: accountService,
		logService:     NewLogService(db),
		storage:        storage,
		logger:         logger,
		sourceFor:      accountService.SourceFor,
	}
}

// ImportAccount fetches the most recent messages for one account and stores
// the new ones. The run is idempotent: messages already present are skipped
// by their namespaced id.
func (s *IngestService) ImportAccount(ctx context.Context, userID, accountID uint) (ImportResult, error) {
	account, err := s.accountService.GetAccountByIDAndUserID(accountID, userID)
	if err != nil {
		return ImportResult{}, err
	}

	src, err := s.sourceFor(ctx, account)
	if err != nil {
		return ImportResult{}, err
	}

	rawMessages, err := src.Fetch(ctx)
	if err != nil {
		s.logService.LogWarn(userID, models.LogModuleIngest, "import_failed", "Mailbox import failed", map[string]interface{}{
			"account_id": accountID,
			"error":      err.Error(),
		})
		return ImportResult{}, err
	}

	extracted := 0
	for _, raw := range rawMessages {
		normalized := mail.Normalize(raw)
		inserted, err := s.storeMessage(account, normalized)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"message_id": normalized.MessageID,
				"error":      err.Error(),
			}).Warn("Failed to store message, skipping")
			continue
		}
		if inserted {
			extracted++
			if s.storage != nil {
				if _, err := s.storage.SaveRawMessage(userID, accountID, normalized.MessageID, raw); err != nil {
					s.logger.WithField("message_id", normalized.MessageID).
						Debug("Raw message archive failed")
				}
			}
		}
	}

	if err := s.accountService.MarkSynced(accountID); err != nil {
		s.logger.WithField("account_id", accountID).Warn("Failed to update last sync time")
	}

	s.logService.LogImportCompleted(userID, accountID, extracted)
	return ImportResult{Success: true, Extracted: extracted}, nil
}

// storeMessage inserts a normalized message unless it already exists.
// Returns whether a new row was created.
func (s *IngestService) storeMessage(account *models.ConnectedAccount, normalized mail.NormalizedMessage) (bool, error) {
	var existing models.Message
	err := s.db.Where("message_id = ?", normalized.MessageID).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	msg := models.Message{
		UserID:     account.UserID,
		AccountID:  account.ID,
		MessageID:  normalized.MessageID,
		Source:     normalized.Source,
		Subject:    normalized.Subject,
		FromName:   normalized.Sender.Name,
		FromAddr:   normalized.Sender.Address,
		ReceivedAt: normalized.ReceivedAt,
		Body:       normalized.Body,
		Snippet:    normalized.Snippet,
	}

	if err := s.db.Create(&msg).Error; err != nil {
		return false, err
	}
	return true, nil
}

// MessageQuery describes a filtered message listing
type MessageQuery struct {
	UserID    uint
	AccountID uint
	Source    string
	Category  string
	Since     time.Time
	Limit     int
	Offset    int
}

// ListMessages returns messages for a user, newest first, with their triage
// results preloaded.
func (s *IngestService) ListMessages(query MessageQuery) ([]models.Message, int64, error) {
	db := s.db.Model(&models.Message{}).Where("messages.user_id = ?", query.UserID)

	if query.AccountID != 0 {
		db = db.Where("account_id = ?", query.AccountID)
	}
	if query.Source != "" {
		db = db.Where("source = ?", query.Source)
	}
	if query.Category != "" {
		db = db.Joins("JOIN triage_results ON triage_results.message_id = messages.message_id AND triage_results.user_id = messages.user_id").
			Where("triage_results.category = ?", query.Category)
	}
	if !query.Since.IsZero() {
		db = db.Where("received_at >= ?", query.Since)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := query.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var messages []models.Message
	err := db.Preload("TriageResult").
		Order("received_at DESC").
		Limit(limit).Offset(query.Offset).
		Find(&messages).Error
	return messages, total, err
}

// GetMessage returns one message scoped to its owner
func (s *IngestService) GetMessage(id, userID uint) (*models.Message, error) {
	var msg models.Message
	err := s.db.Preload("TriageResult").
		Where("id = ? AND user_id = ?", id, userID).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &msg, nil
}
