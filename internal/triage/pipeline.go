package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/kritiqo/core/internal/database/models"
)

// Classifier produces a triage verdict for one message
type Classifier interface {
	Classify(ctx context.Context, sender, subject, body string) (Result, error)
	IsConfigured() bool
}

// Request carries one message through the pipeline
type Request struct {
	MessageID string
	UserID    uint
	Sender    string
	Subject   string
	Body      string

	// Force skips the cache lookup and reclassifies
	Force bool
}

// Outcome reports the stored verdict and whether it came from cache
type Outcome struct {
	Result   models.TriageResult
	CacheHit bool
}

// Pipeline runs the triage stages in order: cache, prefilter, LLM, fallback.
// Every message gets a verdict; only persistence failures surface as errors.
type Pipeline struct {
	db         *gorm.DB
	classifier Classifier
	logger     *logrus.Logger
}

// NewPipeline creates a triage pipeline over the given store and classifier
func NewPipeline(db *gorm.DB, classifier Classifier, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		db:         db,
		classifier: classifier,
		logger:     logger,
	}
}

// Triage classifies one message and persists the verdict. A cached complete
// verdict short-circuits everything unless the request forces a refresh.
func (p *Pipeline) Triage(ctx context.Context, req Request) (Outcome, error) {
	if req.MessageID == "" {
		return Outcome{}, fmt.Errorf("triage: empty message id")
	}

	if !req.Force {
		if cached, ok := p.lookupCache(req.MessageID, req.UserID); ok {
			return Outcome{Result: cached, CacheHit: true}, nil
		}
	}

	verdict := models.TriageResult{
		MessageID: req.MessageID,
		UserID:    req.UserID,
	}

	if r := Prefilter(req.Sender, req.Subject, req.Body); r != nil {
		p.apply(&verdict, *r, models.ClassifiedByPrefilter, false)
	} else {
		r, err := p.classifier.Classify(ctx, req.Sender, req.Subject, req.Body)
		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"message_id": req.MessageID,
				"error":      err.Error(),
			}).Warn("Classification failed, using fallback verdict")
			p.apply(&verdict, FallbackResult(), models.ClassifiedByFallback, true)
		} else {
			p.apply(&verdict, r, models.ClassifiedByLLM, false)
		}
	}

	if err := p.persist(&verdict); err != nil {
		return Outcome{}, fmt.Errorf("triage: persist verdict: %w", err)
	}

	return Outcome{Result: verdict}, nil
}

func (p *Pipeline) apply(verdict *models.TriageResult, r Result, by string, degraded bool) {
	verdict.Category = r.Category
	verdict.Priority = r.Priority
	verdict.Action = r.Action
	verdict.Suggestion = r.Suggestion
	verdict.ClassifiedBy = by
	verdict.Degraded = degraded
	verdict.AnalyzedAt = time.Now()
}

// lookupCache returns the user's stored verdict only when it is complete.
// Partial rows (no analyzed timestamp) are reclassified.
func (p *Pipeline) lookupCache(messageID string, userID uint) (models.TriageResult, bool) {
	var cached models.TriageResult
	err := p.db.Where("message_id = ? AND user_id = ?", messageID, userID).First(&cached).Error
	if err != nil || !cached.IsComplete() {
		return models.TriageResult{}, false
	}
	return cached, true
}

// persist upserts the verdict keyed on message id and user, last write wins
func (p *Pipeline) persist(verdict *models.TriageResult) error {
	var existing models.TriageResult
	err := p.db.Where("message_id = ? AND user_id = ?", verdict.MessageID, verdict.UserID).First(&existing).Error
	if err == nil {
		verdict.ID = existing.ID
		return p.db.Save(verdict).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return p.db.Create(verdict).Error
}
