// Package worker runs periodic maintenance tasks alongside the HTTP server.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/idunn/internal/domain"
)

// SessionSweeper deletes expired sessions on an interval. The auth path
// already treats expired sessions as invalid; the sweeper just keeps the
// table from growing without bound.
type SessionSweeper struct {
	sessions domain.SessionStore
	interval time.Duration
	logger   *slog.Logger
}

// DefaultSweepInterval is how often expired sessions are removed.
const DefaultSweepInterval = time.Hour

// NewSessionSweeper creates a session sweeper.
func NewSessionSweeper(sessions domain.SessionStore, interval time.Duration, logger *slog.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSweeper{
		sessions: sessions,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps until the context is canceled. Call it in its own goroutine.
func (s *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	deleted, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("session sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("expired sessions removed", "count", deleted)
	}
}
