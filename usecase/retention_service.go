package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/speakfix/adapters/audio"
	"github.com/satriahrh/speakfix/domain/repositories"
	"github.com/satriahrh/speakfix/internal/saga"
)

const (
	initialRetentionDelay = time.Minute
	defaultRetentionTick  = time.Hour
	// abandoned workspaces older than this are swept
	staleWorkspaceAge = time.Hour
)

// RetentionService handles background cleanup of history, pipeline status
// and leftover workspaces
type RetentionService struct {
	repository   repositories.CorrectionRepository
	sagaManager  *saga.Manager
	workDir      string
	retention    time.Duration
	interval     time.Duration
	pipelineTTL  time.Duration
	initialDelay time.Duration
	logger       *zap.Logger
	stopChan     chan struct{}
	stopOnce     sync.Once
	done         chan struct{}
}

// NewRetentionService creates a new retention service. A retention of zero
// keeps history forever.
func NewRetentionService(
	repository repositories.CorrectionRepository,
	sagaManager *saga.Manager,
	workDir string,
	retention time.Duration,
	interval time.Duration,
	logger *zap.Logger,
) *RetentionService {
	if interval <= 0 {
		interval = defaultRetentionTick
	}
	return &RetentionService{
		repository:   repository,
		sagaManager:  sagaManager,
		workDir:      workDir,
		retention:    retention,
		interval:     interval,
		pipelineTTL:  interval,
		initialDelay: initialRetentionDelay,
		logger:       logger,
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *RetentionService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Retention service started",
		zap.Duration("interval", s.interval),
		zap.Duration("retention", s.retention))
}

// Stop gracefully stops the cleanup loop and waits for it to exit
func (s *RetentionService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		<-s.done
		s.logger.Info("Retention service stopped")
	})
}

// cleanupLoop runs the cleanup process periodically
func (s *RetentionService) cleanupLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run initial cleanup shortly after startup
	initialTimer := time.NewTimer(s.initialDelay)
	defer initialTimer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-initialTimer.C:
			s.RunOnce()
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// RunOnce performs one cleanup pass
func (s *RetentionService) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if s.retention > 0 {
		deleted, err := s.repository.DeleteOlderThan(ctx, time.Now().Add(-s.retention))
		if err != nil {
			s.logger.Error("Failed to delete old corrections", zap.Error(err))
		} else if deleted > 0 {
			s.logger.Info("Deleted old corrections", zap.Int64("count", deleted))
		}
	}

	if pruned := s.sagaManager.Prune(s.pipelineTTL); pruned > 0 {
		s.logger.Debug("Pruned finished pipelines", zap.Int("count", pruned))
	}

	swept, err := audio.SweepStale(s.workDir, WorkspacePrefix, staleWorkspaceAge)
	if err != nil {
		s.logger.Error("Failed to sweep workspaces", zap.Error(err))
	} else if swept > 0 {
		s.logger.Info("Removed stale workspaces", zap.Int("count", swept))
	}
}
