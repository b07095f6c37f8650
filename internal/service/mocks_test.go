package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/idunn/internal/domain"
)

// In-memory store implementations for service tests. They honor the same
// contracts as the postgres implementations, including upsert-by-provider-id
// and set-once canceled_at.

type memSubscriptionStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.Subscription

	// writes counts mutating calls, for no-writes assertions.
	writes int
}

func newMemSubscriptionStore() *memSubscriptionStore {
	return &memSubscriptionStore{rows: make(map[uuid.UUID]*domain.Subscription)}
}

func (m *memSubscriptionStore) FindActiveByUser(_ context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.UserID == userID && row.Status == domain.SubscriptionStatusActive {
			cp := *row
			return &cp, nil
		}
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (m *memSubscriptionStore) FindByProviderID(_ context.Context, providerID string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ProviderSubscriptionID == providerID && providerID != "" {
			cp := *row
			return &cp, nil
		}
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (m *memSubscriptionStore) Upsert(_ context.Context, sub domain.Subscription) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++

	for id, row := range m.rows {
		if row.ProviderSubscriptionID == sub.ProviderSubscriptionID && sub.ProviderSubscriptionID != "" {
			sub.ID = id
			sub.CreatedAt = row.CreatedAt
			sub.UpdatedAt = time.Now()
			m.rows[id] = &sub
			cp := sub
			return &cp, nil
		}
	}

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	m.rows[sub.ID] = &sub
	cp := sub
	return &cp, nil
}

func (m *memSubscriptionStore) UpdateStatus(_ context.Context, providerID string, update domain.SubscriptionStatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++

	for _, row := range m.rows {
		if row.ProviderSubscriptionID == providerID {
			row.Status = update.Status
			if update.CancelAtPeriodEnd != nil {
				row.CancelAtPeriodEnd = *update.CancelAtPeriodEnd
			}
			if update.CanceledAt != nil && row.CanceledAt == nil {
				row.CanceledAt = update.CanceledAt
			}
			return nil
		}
	}
	return domain.ErrSubscriptionNotFound
}

func (m *memSubscriptionStore) Create(_ context.Context, sub domain.Subscription) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++

	sub.ID = uuid.New()
	sub.CreatedAt = time.Now()
	m.rows[sub.ID] = &sub
	cp := sub
	return &cp, nil
}

func (m *memSubscriptionStore) RetireActiveForUser(_ context.Context, userID uuid.UUID, exceptProviderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++

	now := time.Now()
	for _, row := range m.rows {
		if row.UserID == userID &&
			row.Status == domain.SubscriptionStatusActive &&
			row.ProviderSubscriptionID != exceptProviderID {
			row.Status = domain.SubscriptionStatusCanceled
			if row.CanceledAt == nil {
				t := now
				row.CanceledAt = &t
			}
		}
	}
	return nil
}

// rowsForUser returns copies of all rows for a user.
func (m *memSubscriptionStore) rowsForUser(userID uuid.UUID) []domain.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Subscription
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	return out
}

type memPlanStore struct {
	plans []domain.Plan
}

func newMemPlanStore(plans ...domain.Plan) *memPlanStore {
	return &memPlanStore{plans: plans}
}

func (m *memPlanStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Plan, error) {
	for _, p := range m.plans {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrPlanNotFound
}

func (m *memPlanStore) GetByCode(_ context.Context, code string) (*domain.Plan, error) {
	for _, p := range m.plans {
		if p.Code == code {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrPlanNotFound
}

func (m *memPlanStore) List(_ context.Context) ([]domain.Plan, error) {
	return append([]domain.Plan(nil), m.plans...), nil
}

type memStoreRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.Store
}

func newMemStoreRepo() *memStoreRepo {
	return &memStoreRepo{rows: make(map[uuid.UUID]*domain.Store)}
}

func (m *memStoreRepo) Create(_ context.Context, store domain.Store) (*domain.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Slug == store.Slug {
			return nil, domain.ErrStoreSlugExists
		}
	}
	store.ID = uuid.New()
	store.CreatedAt = time.Now()
	store.UpdatedAt = store.CreatedAt
	m.rows[store.ID] = &store
	cp := store
	return &cp, nil
}

func (m *memStoreRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrStoreNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *memStoreRepo) GetBySlug(_ context.Context, slug string) (*domain.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Slug == slug {
			cp := *row
			return &cp, nil
		}
	}
	return nil, domain.ErrStoreNotFound
}

func (m *memStoreRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Store
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *memStoreRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	stores, _ := m.ListByUser(ctx, userID)
	return int64(len(stores)), nil
}

func (m *memStoreRepo) Update(_ context.Context, store domain.Store) (*domain.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[store.ID]; !ok {
		return nil, domain.ErrStoreNotFound
	}
	store.UpdatedAt = time.Now()
	m.rows[store.ID] = &store
	cp := store
	return &cp, nil
}

func (m *memStoreRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return domain.ErrStoreNotFound
	}
	delete(m.rows, id)
	return nil
}

type memNotificationStore struct {
	mu   sync.Mutex
	rows []domain.Notification
}

func newMemNotificationStore() *memNotificationStore {
	return &memNotificationStore{}
}

func (m *memNotificationStore) Create(_ context.Context, n domain.Notification) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	m.rows = append(m.rows, n)
	cp := n
	return &cp, nil
}

func (m *memNotificationStore) ListByUser(_ context.Context, userID uuid.UUID, limit int32) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	if limit > 0 && int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memNotificationStore) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].UserID == userID {
			m.rows[i].Read = true
			return nil
		}
	}
	return domain.NotFound("notification.mark_read", "notification", id.String())
}

type memWebhookEventStore struct {
	mu   sync.Mutex
	rows map[string]domain.WebhookEvent
}

func newMemWebhookEventStore() *memWebhookEventStore {
	return &memWebhookEventStore{rows: make(map[string]domain.WebhookEvent)}
}

func (m *memWebhookEventStore) GetByProviderEventID(_ context.Context, provider, eventID string) (*domain.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.rows[provider+":"+eventID]
	if !ok {
		return nil, domain.ErrWebhookEventNotFound
	}
	cp := ev
	return &cp, nil
}

func (m *memWebhookEventStore) Create(_ context.Context, ev domain.WebhookEvent) (*domain.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ev.Provider + ":" + ev.ProviderEventID
	if _, ok := m.rows[key]; ok {
		return nil, domain.Conflict("webhook_event.create", "event already recorded")
	}
	ev.ID = int64(len(m.rows) + 1)
	ev.CreatedAt = time.Now()
	m.rows[key] = ev
	cp := ev
	return &cp, nil
}

type memUserStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.Account
}

func newMemUserStore() *memUserStore {
	return &memUserStore{rows: make(map[uuid.UUID]*domain.Account)}
}

func (m *memUserStore) Create(_ context.Context, account domain.Account) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == account.Email {
			return nil, domain.ErrUserExists
		}
	}
	account.ID = uuid.New()
	account.CreatedAt = time.Now()
	m.rows[account.ID] = &account
	cp := account
	return &cp, nil
}

func (m *memUserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *memUserStore) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == email {
			cp := *row
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

type memSessionStore struct {
	mu   sync.Mutex
	rows map[string]domain.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{rows: make(map[string]domain.Session)}
}

func (m *memSessionStore) Create(_ context.Context, session domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session.CreatedAt = time.Now()
	m.rows[session.Token] = session
	return nil
}

func (m *memSessionStore) GetByToken(_ context.Context, token string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.rows[token]
	if !ok {
		return nil, domain.NotFound("session.get", "session", token)
	}
	cp := session
	return &cp, nil
}

func (m *memSessionStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, token)
	return nil
}

func (m *memSessionStore) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for token, session := range m.rows {
		if now.After(session.ExpiresAt) {
			delete(m.rows, token)
			n++
		}
	}
	return n, nil
}
