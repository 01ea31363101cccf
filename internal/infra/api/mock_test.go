//go:build !integration

package api_test

import (
	"context"
	"time"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/adapter"
	"community-subscription-bot/internal/domain/ports/repository"
	"community-subscription-bot/internal/usecase"
)

// --- Users ---

type mockUserUC struct {
	RegisterFunc func(ctx context.Context, p usecase.TelegramProfile) (*model.User, error)
}

func (m *mockUserUC) RegisterOrFetch(ctx context.Context, p usecase.TelegramProfile) (*model.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, p)
	}
	return &model.User{ID: "5b0e8f34-93a4-4d4e-9c55-1d2f3a4b5c6d", TelegramID: p.TelegramID, Username: p.Username}, nil
}

func (m *mockUserUC) GetByTelegramID(context.Context, int64) (*model.User, error) {
	return nil, domain.ErrNotFound
}

func (m *mockUserUC) GetByID(context.Context, string) (*model.User, error) {
	return nil, domain.ErrNotFound
}

func (m *mockUserUC) Count(context.Context) (int, error) { return 0, nil }

// --- Entitlements ---

type mockEntUC struct {
	SubscribeFunc    func(ctx context.Context, userID string, tier model.Tier, months int, now time.Time) (*model.Subscription, error)
	ExtendByPlanFunc func(ctx context.Context, userID string, planID int, now time.Time) (*model.Subscription, error)
	StatusFunc       func(ctx context.Context, userID string, now time.Time) (*usecase.SubscriptionStatus, error)
}

func (m *mockEntUC) CurrentSubscription(context.Context, string) (*model.Subscription, error) {
	return nil, domain.ErrNotFound
}

func (m *mockEntUC) Extend(context.Context, repository.Tx, string, model.Tier, int, time.Time, string) (*model.Subscription, error) {
	return nil, domain.ErrOperationFailed
}

func (m *mockEntUC) Subscribe(ctx context.Context, userID string, tier model.Tier, months int, now time.Time) (*model.Subscription, error) {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, userID, tier, months, now)
	}
	return nil, domain.ErrOperationFailed
}

func (m *mockEntUC) ExtendByPlan(ctx context.Context, userID string, planID int, now time.Time) (*model.Subscription, error) {
	if m.ExtendByPlanFunc != nil {
		return m.ExtendByPlanFunc(ctx, userID, planID, now)
	}
	return nil, domain.ErrOperationFailed
}

func (m *mockEntUC) Status(ctx context.Context, userID string, now time.Time) (*usecase.SubscriptionStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, userID, now)
	}
	return nil, domain.ErrNotFound
}

// --- Payments ---

type reconcileCall struct {
	provider string
	in       adapter.InboundNotification
}

type mockPaymentUC struct {
	CreateLinkFunc func(ctx context.Context, provider string, req adapter.CheckoutRequest) (string, error)
	ReconcileErr   error
	Reconciled     []reconcileCall
}

func (m *mockPaymentUC) Checkout(context.Context, string, string, model.Tier, int, string) (string, error) {
	return "", domain.ErrOperationFailed
}

func (m *mockPaymentUC) CreateLink(ctx context.Context, provider string, req adapter.CheckoutRequest) (string, error) {
	if m.CreateLinkFunc != nil {
		return m.CreateLinkFunc(ctx, provider, req)
	}
	return "https://orders.example.com/1", nil
}

func (m *mockPaymentUC) Reconcile(_ context.Context, provider string, in adapter.InboundNotification) (adapter.Ack, error) {
	m.Reconciled = append(m.Reconciled, reconcileCall{provider: provider, in: in})
	if m.ReconcileErr != nil {
		return adapter.Ack{}, m.ReconcileErr
	}
	if provider == "cloudpayments" {
		return adapter.Ack{ContentType: "application/json", Body: []byte(`{"code":0}`)}, nil
	}
	return adapter.Ack{ContentType: "text/plain; charset=utf-8", Body: []byte("OK")}, nil
}

func (m *mockPaymentUC) Providers() []string { return []string{"cloudpayments", "payform"} }

// --- Materials ---

type mockMaterialUC struct {
	items      map[int64]*model.Material
	nextID     int64
	lastFilter model.MaterialFilter
	ListErr    error
}

func newMockMaterialUC() *mockMaterialUC {
	return &mockMaterialUC{items: map[int64]*model.Material{}, nextID: 1}
}

func (m *mockMaterialUC) List(_ context.Context, f model.MaterialFilter) ([]*model.Material, error) {
	m.lastFilter = f
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]*model.Material, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	return out, nil
}

func (m *mockMaterialUC) Get(_ context.Context, id int64) (*model.Material, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return it, nil
}

func (m *mockMaterialUC) Create(_ context.Context, mat *model.Material) (*model.Material, error) {
	if err := mat.Validate(); err != nil {
		return nil, err
	}
	mat.ID = m.nextID
	m.nextID++
	m.items[mat.ID] = mat
	return mat, nil
}

func (m *mockMaterialUC) Update(_ context.Context, mat *model.Material) (*model.Material, error) {
	if _, ok := m.items[mat.ID]; !ok {
		return nil, domain.ErrNotFound
	}
	m.items[mat.ID] = mat
	return mat, nil
}

func (m *mockMaterialUC) Delete(_ context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

// --- Stats ---

type mockStatsUC struct{}

func (mockStatsUC) Totals(context.Context, time.Time) (*usecase.Totals, error) {
	return &usecase.Totals{Users: 3, ActiveByTier: map[model.Tier]int{model.TierChannel: 2, model.TierChannelChat: 1}}, nil
}
