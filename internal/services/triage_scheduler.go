package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/kritiqo/core/internal/database/models"
)

// TriageScheduler periodically imports and classifies every enabled account.
// Each cycle fetches new mail, then runs the triage pipeline over the
// account's messages.
type TriageScheduler struct {
	db             *gorm.DB
	ingestService  *IngestService
	triageService  *TriageService
	accountService *AccountService
	logger         *logrus.Logger
	interval       time.Duration
	stopChan       chan struct{}
	running        bool
	mu             sync.Mutex
	cycling        sync.Mutex // prevents overlapping cycles
	accountLocks   sync.Map   // per-account lock, guards against concurrent runs

	// Per-provider fetch throttles. IMAP servers tolerate far less
	// concurrency than the REST APIs.
	fetchLimiters map[models.Provider]*rate.Limiter
}

// NewTriageScheduler creates a new triage scheduler
func NewTriageScheduler(db *gorm.DB, ingestService *IngestService, triageService *TriageService, accountService *AccountService, logger *logrus.Logger, interval time.Duration) *TriageScheduler {
	return &TriageScheduler{
		db:             db,
		ingestService:  ingestService,
		triageService:  triageService,
		accountService: accountService,
		logger:         logger,
		interval:       interval,
		stopChan:       make(chan struct{}),
		fetchLimiters: map[models.Provider]*rate.Limiter{
			models.ProviderIMAP:    rate.NewLimiter(rate.Every(2*time.Second), 1),
			models.ProviderGoogle:  rate.NewLimiter(rate.Limit(5), 5),
			models.ProviderAzureAD: rate.NewLimiter(rate.Limit(5), 5),
		},
	}
}

// Start begins the periodic triage process
func (s *TriageScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.WithField("interval", s.interval.String()).Info("Triage scheduler starting")

	go func() {
		// Let the service finish starting before the first cycle
		select {
		case <-time.After(10 * time.Second):
			s.runCycle()
		case <-s.stopChan:
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runCycle()
			case <-s.stopChan:
				s.logger.Info("Triage scheduler stopping")
				return
			}
		}
	}()
}

// Stop stops the scheduler
func (s *TriageScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopChan)
	s.running = false
}

// IsAccountBusy reports whether an account is mid-cycle (for manual runs)
func (s *TriageScheduler) IsAccountBusy(accountID uint) bool {
	_, loaded := s.accountLocks.Load(accountID)
	return loaded
}

// TryLockAccount locks an account so manual and scheduled runs never overlap
func (s *TriageScheduler) TryLockAccount(accountID uint) bool {
	_, loaded := s.accountLocks.LoadOrStore(accountID, true)
	return !loaded
}

// UnlockAccount releases an account lock
func (s *TriageScheduler) UnlockAccount(accountID uint) {
	s.accountLocks.Delete(accountID)
}

// runCycle imports and classifies all enabled accounts
func (s *TriageScheduler) runCycle() {
	if !s.cycling.TryLock() {
		s.logger.Warn("Previous triage cycle still running, skipping")
		return
	}
	defer s.cycling.Unlock()

	accounts, err := s.accountService.GetEnabledAccounts()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list accounts")
		return
	}
	if len(accounts) == 0 {
		return
	}

	s.logger.WithField("accounts", len(accounts)).Info("Triage cycle started")

	var wg sync.WaitGroup
	for _, account := range accounts {
		if !s.TryLockAccount(account.ID) {
			s.logger.WithField("account_id", account.ID).Debug("Account busy, skipping")
			continue
		}

		wg.Add(1)
		go func(acc models.ConnectedAccount) {
			defer wg.Done()
			defer s.UnlockAccount(acc.ID)

			s.processAccount(acc)
		}(account)
	}
	wg.Wait()

	s.logger.Info("Triage cycle completed")
}

// processAccount imports then classifies one account, with retries on the
// import step.
func (s *TriageScheduler) processAccount(account models.ConnectedAccount) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if limiter, ok := s.fetchLimiters[account.Provider]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
	}

	const maxRetries = 2
	var lastErr error
	var imported ImportResult

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			select {
			case <-time.After(backoff):
			case <-s.stopChan:
				return
			}
		}

		result, err := s.ingestService.ImportAccount(ctx, account.UserID, account.ID)
		if err == nil {
			imported = result
			lastErr = nil
			break
		}
		lastErr = err
		s.logger.WithFields(logrus.Fields{
			"account_id": account.ID,
			"attempt":    attempt + 1,
			"error":      err.Error(),
		}).Warn("Account import attempt failed")
	}

	if lastErr != nil {
		s.logger.WithFields(logrus.Fields{
			"account_id": account.ID,
			"email":      account.Email,
			"error":      lastErr.Error(),
		}).Error("Account import failed after retries")
		return
	}

	batch, err := s.triageService.TriageAccount(ctx, account.UserID, account.ID, false)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"account_id": account.ID,
			"error":      err.Error(),
		}).Error("Account triage failed")
		return
	}

	if imported.Extracted > 0 || batch.Classified > 0 {
		s.logger.WithFields(logrus.Fields{
			"account_id": account.ID,
			"extracted":  imported.Extracted,
			"classified": batch.Classified,
			"cache_hits": batch.CacheHits,
		}).Info("Account processed")
	}
}
