package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/storefront/internal/auth/domain"
	"github.com/aussiebroadwan/storefront/internal/auth/store"
)

// HousekeepingService periodically purges refresh tokens that are past
// their maximum age but were never presented again. Presented tokens are
// expired lazily by RefreshTokenStore.Validate.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Timeout  time.Duration
	Now      func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping worker. A non-positive
// interval defaults to one hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		Timeout:  DefaultStorageTimeout,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background until Stop is called.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress purge has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Purge()

	for {
		select {
		case <-ticker.C:
			s.Purge()
		case <-s.stopCh:
			return
		}
	}
}

// Purge deletes every refresh token created more than the maximum age ago
// and returns how many went.
func (s *HousekeepingService) Purge() int64 {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultStorageTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := s.Store.RefreshTokens().DeleteRefreshTokensCreatedBefore(ctx, now.Add(-domain.RefreshTokenMaxAge))
	if err != nil {
		s.Logger.Error("failed to purge expired refresh tokens", "error", err)
		return 0
	}
	s.Logger.Info("housekeeping purge completed", "deleted_refresh_tokens", n)
	return n
}
