package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/idunn/internal/domain"
)

type stubSessionStore struct {
	mu     sync.Mutex
	sweeps int
}

func (s *stubSessionStore) Create(context.Context, domain.Session) error { panic("not used") }

func (s *stubSessionStore) GetByToken(context.Context, string) (*domain.Session, error) {
	panic("not used")
}

func (s *stubSessionStore) Delete(context.Context, string) error { panic("not used") }

func (s *stubSessionStore) DeleteExpired(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweeps++
	return 2, nil
}

func (s *stubSessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps
}

func TestSessionSweeper_Run(t *testing.T) {
	store := &stubSessionStore{}
	sweeper := NewSessionSweeper(store, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sweeper.Run(ctx)
	}()

	assert.Eventually(t, func() bool { return store.count() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestNewSessionSweeper_Defaults(t *testing.T) {
	sweeper := NewSessionSweeper(&stubSessionStore{}, 0, nil)
	assert.Equal(t, DefaultSweepInterval, sweeper.interval)
}
