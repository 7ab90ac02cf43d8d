package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/kritiqo/core/internal/database/models"
	"github.com/kritiqo/core/internal/mail"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestIngestService(t *testing.T) (*IngestService, *gorm.DB) {
	t.Helper()
	db := setupServiceTestDB(t)
	accountService := NewAccountService(db, testEncryptionKey())
	return NewIngestService(db, accountService, nil, discardLogger()), db
}

func testAccount(db *gorm.DB, userID uint) *models.ConnectedAccount {
	account := &models.ConnectedAccount{
		UserID:   userID,
		Provider: models.ProviderIMAP,
		Email:    "box@example.fr",
		Enabled:  true,
	}
	db.Create(account)
	return account
}

func normalizedMessage(id string, receivedAt time.Time) mail.NormalizedMessage {
	return mail.NormalizedMessage{
		MessageID:  id,
		Source:     models.SourceIMAP,
		Subject:    "Objet",
		Sender:     mail.Sender{Name: "Jean", Address: "jean@exemple.fr"},
		ReceivedAt: receivedAt,
		Body:       "Corps du message",
		Snippet:    "Corps du message",
	}
}

// stubSource feeds ImportAccount a fixed mailbox
type stubSource struct {
	messages []mail.RawMessage
	err      error
}

func (s *stubSource) Fetch(ctx context.Context) ([]mail.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.messages, nil
}

func useStubSource(service *IngestService, src *stubSource) {
	service.sourceFor = func(ctx context.Context, account *models.ConnectedAccount) (mail.Source, error) {
		return src, nil
	}
}

func TestImportAccountEmptyMailbox(t *testing.T) {
	service, db := newTestIngestService(t)
	account := testAccount(db, 1)
	useStubSource(service, &stubSource{})

	result, err := service.ImportAccount(context.Background(), 1, account.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.Extracted != 0 {
		t.Errorf("expected success with 0 extracted, got %+v", result)
	}
}

func TestImportAccountCountsOnlyNewMessages(t *testing.T) {
	service, db := newTestIngestService(t)
	account := testAccount(db, 1)
	useStubSource(service, &stubSource{messages: []mail.RawMessage{
		{ProviderID: "uid-1", Source: models.SourceIMAP, Subject: "Bonjour", FromHeader: "jean@exemple.fr"},
		{ProviderID: "uid-2", Source: models.SourceIMAP, Subject: "Commande", FromHeader: "paul@exemple.fr"},
	}})

	first, err := service.ImportAccount(context.Background(), 1, account.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Success || first.Extracted != 2 {
		t.Fatalf("expected 2 extracted, got %+v", first)
	}

	// Same mailbox again: everything already stored
	second, err := service.ImportAccount(context.Background(), 1, account.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Success || second.Extracted != 0 {
		t.Errorf("expected success with 0 extracted on re-import, got %+v", second)
	}
}

func TestProperty_StoreMessageIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	idGen := gen.SliceOfN(12, gen.AlphaLowerChar()).Map(func(chars []rune) string {
		return "imap:" + string(chars)
	})

	properties.Property("second_store_is_a_noop", prop.ForAll(
		func(messageID string, userID uint) bool {
			service, db := newTestIngestService(t)
			account := testAccount(db, userID)
			msg := normalizedMessage(messageID, time.Now())

			inserted, err := service.storeMessage(account, msg)
			if err != nil || !inserted {
				return false
			}
			inserted, err = service.storeMessage(account, msg)
			if err != nil || inserted {
				return false
			}

			var count int64
			db.Model(&models.Message{}).Where("message_id = ?", messageID).Count(&count)
			return count == 1
		},
		idGen,
		gen.UIntRange(1, 1000),
	))

	properties.TestingRun(t)
}

func TestListMessagesFilters(t *testing.T) {
	service, db := newTestIngestService(t)
	account := testAccount(db, 1)
	otherAccount := testAccount(db, 2)

	now := time.Now()
	mustStore := func(account *models.ConnectedAccount, id string, at time.Time) {
		if _, err := service.storeMessage(account, normalizedMessage(id, at)); err != nil {
			t.Fatalf("store %s: %v", id, err)
		}
	}

	mustStore(account, "imap:old", now.Add(-48*time.Hour))
	mustStore(account, "imap:recent", now.Add(-time.Hour))
	mustStore(otherAccount, "imap:foreign", now)

	t.Run("scoped to owner", func(t *testing.T) {
		messages, total, err := service.ListMessages(MessageQuery{UserID: 1})
		if err != nil || total != 2 {
			t.Fatalf("expected 2 messages, got %d (err %v)", total, err)
		}
		for _, m := range messages {
			if m.UserID != 1 {
				t.Errorf("foreign message leaked: %+v", m)
			}
		}
	})

	t.Run("newest first", func(t *testing.T) {
		messages, _, err := service.ListMessages(MessageQuery{UserID: 1})
		if err != nil || len(messages) != 2 {
			t.Fatalf("unexpected listing: %v", err)
		}
		if messages[0].MessageID != "imap:recent" {
			t.Errorf("expected newest first, got %s", messages[0].MessageID)
		}
	})

	t.Run("since filter", func(t *testing.T) {
		_, total, err := service.ListMessages(MessageQuery{UserID: 1, Since: now.Add(-24 * time.Hour)})
		if err != nil || total != 1 {
			t.Errorf("expected 1 recent message, got %d (err %v)", total, err)
		}
	})

	t.Run("category filter joins triage results", func(t *testing.T) {
		db.Create(&models.TriageResult{
			MessageID:    "imap:recent",
			UserID:       1,
			Category:     models.CategoryReview,
			Priority:     models.PriorityUrgent,
			Action:       models.ActionReply,
			ClassifiedBy: models.ClassifiedByPrefilter,
			AnalyzedAt:   now,
		})

		messages, total, err := service.ListMessages(MessageQuery{UserID: 1, Category: string(models.CategoryReview)})
		if err != nil || total != 1 || len(messages) != 1 {
			t.Fatalf("expected 1 categorized message, got %d (err %v)", total, err)
		}
		if messages[0].MessageID != "imap:recent" {
			t.Errorf("unexpected message %s", messages[0].MessageID)
		}
		if messages[0].TriageResult == nil || messages[0].TriageResult.Category != models.CategoryReview {
			t.Error("expected triage result preloaded")
		}
	})
}

func TestGetMessageScopedToOwner(t *testing.T) {
	service, db := newTestIngestService(t)
	account := testAccount(db, 1)

	if _, err := service.storeMessage(account, normalizedMessage("imap:mine", time.Now())); err != nil {
		t.Fatalf("store: %v", err)
	}

	var stored models.Message
	if err := db.Where("message_id = ?", "imap:mine").First(&stored).Error; err != nil {
		t.Fatalf("lookup: %v", err)
	}

	if _, err := service.GetMessage(stored.ID, 1); err != nil {
		t.Errorf("owner should read the message, got %v", err)
	}
	if _, err := service.GetMessage(stored.ID, 2); err == nil {
		t.Error("foreign user must not read the message")
	}
}
