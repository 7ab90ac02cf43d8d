package services

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/kritiqo/core/internal/database/models"
	"github.com/kritiqo/core/internal/logging"
	"github.com/kritiqo/core/internal/triage"
)

const (
	// triageWorkerLimit bounds concurrent classifications in a batch
	triageWorkerLimit = 5
	// llmRequestsPerSecond throttles calls to the LLM provider
	llmRequestsPerSecond = 5
)

// TriageService classifies stored messages through the triage pipeline
type TriageService struct {
	db          *gorm.DB
	userService *UserService
	logService  *LogService
	logger      *logrus.Logger
	dedup       *logging.DedupLogger
	llmLimiter  *rate.Limiter
}

// NewTriageService creates a new TriageService instance
func NewTriageService(db *gorm.DB, userService *UserService, logger *logrus.Logger) *TriageService {
	return &TriageService{
		db:          db,
		userService: userService,
		logService:  NewLogService(db),
		logger:      logger,
		dedup:       logging.NewDedupLogger(logger, 5*time.Minute),
		llmLimiter:  rate.NewLimiter(rate.Limit(llmRequestsPerSecond), llmRequestsPerSecond),
	}
}

// classifierFor builds an LLM classifier from the user's settings, falling
// back to environment credentials. An unconfigured classifier is still
// returned: the pipeline degrades to prefilter plus fallback.
func (s *TriageService) classifierFor(userID uint) triage.Classifier {
	client := triage.NewClient()

	settings, err := s.userService.GetUserSettings(userID)
	if err != nil {
		s.dedup.Warnf("settings-load", "Failed to load settings for user %d: %v", userID, err)
		settings = &models.UserSettings{}
	}

	provider := settings.LLMProvider
	apiKey := settings.LLMAPIKey
	model := settings.LLMModel
	baseURL := settings.LLMBaseURL

	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
		if provider == "" {
			provider = "openai"
		}
	}

	client.ConfigureWithBaseURL(provider, apiKey, model, baseURL)
	return &limitedClassifier{inner: client, limiter: s.llmLimiter}
}

// limitedClassifier throttles LLM calls with a token bucket. The limiter is
// only consulted when a classification actually reaches the LLM stage.
type limitedClassifier struct {
	inner   triage.Classifier
	limiter *rate.Limiter
}

func (l *limitedClassifier) Classify(ctx context.Context, sender, subject, body string) (triage.Result, error) {
	if l.inner.IsConfigured() {
		if err := l.limiter.Wait(ctx); err != nil {
			return triage.Result{}, err
		}
	}
	return l.inner.Classify(ctx, sender, subject, body)
}

func (l *limitedClassifier) IsConfigured() bool {
	return l.inner.IsConfigured()
}

// TriageInput carries a classification request for one message
type TriageInput struct {
	MessageID string
	Sender    string
	Subject   string
	Body      string
	Force     bool
}

// TriageMessage classifies one message and returns the stored verdict
func (s *TriageService) TriageMessage(ctx context.Context, userID uint, input TriageInput) (triage.Outcome, error) {
	pipeline := triage.NewPipeline(s.db, s.classifierFor(userID), s.logger)
	return pipeline.Triage(ctx, triage.Request{
		MessageID: input.MessageID,
		UserID:    userID,
		Sender:    input.Sender,
		Subject:   input.Subject,
		Body:      input.Body,
		Force:     input.Force,
	})
}

// BatchResult reports one triage batch over an account's messages
type BatchResult struct {
	JobID      string `json:"job_id"`
	Total      int    `json:"total"`
	Classified int    `json:"classified"`
	CacheHits  int    `json:"cache_hits"`
	Failed     int    `json:"failed"`
}

// TriageAccount classifies every stored message of one account. Work runs
// on a bounded worker pool; one failed message never aborts the batch.
func (s *TriageService) TriageAccount(ctx context.Context, userID, accountID uint, force bool) (BatchResult, error) {
	var messages []models.Message
	err := s.db.Where("user_id = ? AND account_id = ?", userID, accountID).
		Order("received_at DESC").
		Find(&messages).Error
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{
		JobID: uuid.NewString(),
		Total: len(messages),
	}
	if len(messages) == 0 {
		return result, nil
	}

	pipeline := triage.NewPipeline(s.db, s.classifierFor(userID), s.logger)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(triageWorkerLimit)

	for _, msg := range messages {
		msg := msg
		g.Go(func() error {
			outcome, err := pipeline.Triage(gctx, triage.Request{
				MessageID: msg.MessageID,
				UserID:    userID,
				Sender:    msg.FromAddr,
				Subject:   msg.Subject,
				Body:      msg.Body,
				Force:     force,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				s.dedup.Errorf("triage-persist", "Failed to persist verdict for %s: %v", msg.MessageID, err)
				return nil
			}
			if outcome.CacheHit {
				result.CacheHits++
			} else {
				result.Classified++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	s.logService.LogTriageCompleted(userID, result.JobID, result.Classified, result.CacheHits, result.Failed)
	return result, nil
}

// GetTriageResult returns the stored verdict for one message id
func (s *TriageService) GetTriageResult(userID uint, messageID string) (*models.TriageResult, error) {
	var verdict models.TriageResult
	err := s.db.Where("user_id = ? AND message_id = ?", userID, messageID).First(&verdict).Error
	if err != nil {
		return nil, err
	}
	return &verdict, nil
}
