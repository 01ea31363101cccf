//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/adapter"
	"community-subscription-bot/internal/domain/ports/repository"
	"community-subscription-bot/internal/infra/i18n"
)

// =============================
// Adapters
// =============================

// ---- Mock Messenger (bot + group admin) ----

type SentMessage struct {
	TelegramID int64
	Text       string
	Rows       [][]adapter.InlineButton
}

type MockMessenger struct {
	mu       sync.Mutex
	Sent     []SentMessage
	Invites  []int64 // chat ids links were issued for
	Banned   []int64
	Statuses map[int64]string // tg id -> member status; missing means "member"

	SendMessageFunc      func(ctx context.Context, tgID int64, text string) error
	CreateInviteLinkFunc func(ctx context.Context, chatID int64, ttl time.Duration) (string, error)
	GetMemberStatusFunc  func(ctx context.Context, chatID, tgID int64) (string, error)
	BanMemberFunc        func(ctx context.Context, chatID, tgID int64) error
}

var _ adapter.Messenger = (*MockMessenger)(nil)

func NewMockMessenger() *MockMessenger {
	return &MockMessenger{Statuses: map[int64]string{}}
}

func (m *MockMessenger) SendMessage(ctx context.Context, tgID int64, text string) error {
	if m.SendMessageFunc != nil {
		if err := m.SendMessageFunc(ctx, tgID, text); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMessage{TelegramID: tgID, Text: text})
	return nil
}

func (m *MockMessenger) SendButtons(ctx context.Context, tgID int64, text string, rows [][]adapter.InlineButton) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMessage{TelegramID: tgID, Text: text, Rows: rows})
	return nil
}

func (m *MockMessenger) CreateInviteLink(ctx context.Context, chatID int64, ttl time.Duration) (string, error) {
	if m.CreateInviteLinkFunc != nil {
		return m.CreateInviteLinkFunc(ctx, chatID, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invites = append(m.Invites, chatID)
	return fmt.Sprintf("https://t.me/+invite%d_%d", chatID, len(m.Invites)), nil
}

func (m *MockMessenger) GetMemberStatus(ctx context.Context, chatID, tgID int64) (string, error) {
	if m.GetMemberStatusFunc != nil {
		return m.GetMemberStatusFunc(ctx, chatID, tgID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.Statuses[tgID]; ok {
		return s, nil
	}
	return adapter.MemberMember, nil
}

func (m *MockMessenger) BanMember(ctx context.Context, chatID, tgID int64) error {
	if m.BanMemberFunc != nil {
		return m.BanMemberFunc(ctx, chatID, tgID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Banned = append(m.Banned, tgID)
	return nil
}

func (m *MockMessenger) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.Sent...)
}

// ---- Mock PaymentProvider ----

type MockPaymentProvider struct {
	NameVal string

	CreatePaymentFunc      func(ctx context.Context, req adapter.CheckoutRequest) (string, error)
	VerifyNotificationFunc func(in adapter.InboundNotification) (*model.PaymentNotification, error)

	mu       sync.Mutex
	Requests []adapter.CheckoutRequest
}

var _ adapter.PaymentProvider = (*MockPaymentProvider)(nil)

func (m *MockPaymentProvider) Name() string {
	if m.NameVal == "" {
		return "mockpay"
	}
	return m.NameVal
}

func (m *MockPaymentProvider) CreatePayment(ctx context.Context, req adapter.CheckoutRequest) (string, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, req)
	}
	return "https://pay.example/" + uuid.NewString(), nil
}

func (m *MockPaymentProvider) VerifyNotification(in adapter.InboundNotification) (*model.PaymentNotification, error) {
	if m.VerifyNotificationFunc != nil {
		return m.VerifyNotificationFunc(in)
	}
	return nil, domain.ErrAuthenticationFailed
}

func (m *MockPaymentProvider) Ack() adapter.Ack {
	return adapter.Ack{ContentType: "text/plain", Body: []byte("OK")}
}

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	byID map[string]*model.User
	byTG map[int64]*model.User

	SaveFunc             func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByTelegramIDFunc func(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error)
	FindByIDFunc         func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
	ListPageFunc         func(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error)
	CountUsersFunc       func(ctx context.Context, tx repository.Tx) (int, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{byID: map[string]*model.User{}, byTG: map[int64]*model.User{}}
}

// seedUser stores a user with a fresh uuid and returns it.
func (r *MockUserRepo) seedUser(tgID int64) *model.User {
	u, _ := model.NewUser("", tgID, fmt.Sprintf("user%d", tgID), "Test", "")
	_ = r.Save(context.Background(), repository.NoTX, u)
	return u
}

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, u)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	r.byID[cp.ID] = &cp
	r.byTG[cp.TelegramID] = &cp
	return nil
}

func (r *MockUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	if r.FindByTelegramIDFunc != nil {
		return r.FindByTelegramIDFunc(ctx, tx, tgID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byTG[tgID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) ListPage(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error) {
	if r.ListPageFunc != nil {
		return r.ListPageFunc(ctx, tx, offset, limit)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*model.User, 0, len(r.byID))
	for _, u := range r.byID {
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TelegramID < all[j].TelegramID })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *MockUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	if r.CountUsersFunc != nil {
		return r.CountUsersFunc(ctx, tx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID), nil
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	data map[string]*model.Subscription // by id

	SaveFunc                    func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	FindLatestByUserFunc        func(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error)
	FindLatestEndingBetweenFunc func(ctx context.Context, tx repository.Tx, from, to time.Time) ([]*model.Subscription, error)
	CountActiveByTierFunc       func(ctx context.Context, tx repository.Tx, now time.Time) (map[model.Tier]int, error)
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{data: map[string]*model.Subscription{}}
}

func (r *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	cp := *s
	r.data[s.ID] = &cp
	return nil
}

func (r *MockSubscriptionRepo) latest(userID string) *model.Subscription {
	var best *model.Subscription
	for _, s := range r.data {
		if s.UserID != userID {
			continue
		}
		if best == nil || s.EndDate.After(best.EndDate) {
			best = s
		}
	}
	return best
}

func (r *MockSubscriptionRepo) FindLatestByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	if r.FindLatestByUserFunc != nil {
		return r.FindLatestByUserFunc(ctx, tx, userID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.latest(userID); s != nil {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) FindLatestEndingBetween(ctx context.Context, tx repository.Tx, from, to time.Time) ([]*model.Subscription, error) {
	if r.FindLatestEndingBetweenFunc != nil {
		return r.FindLatestEndingBetweenFunc(ctx, tx, from, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []*model.Subscription
	for _, s := range r.data {
		if seen[s.UserID] {
			continue
		}
		seen[s.UserID] = true
		l := r.latest(s.UserID)
		if l.EndDate.Before(from) || l.EndDate.After(to) {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

func (r *MockSubscriptionRepo) CountActiveByTier(ctx context.Context, tx repository.Tx, now time.Time) (map[model.Tier]int, error) {
	if r.CountActiveByTierFunc != nil {
		return r.CountActiveByTierFunc(ctx, tx, now)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	res := map[model.Tier]int{model.TierChannel: 0, model.TierChannelChat: 0}
	seen := map[string]bool{}
	for _, s := range r.data {
		if seen[s.UserID] {
			continue
		}
		seen[s.UserID] = true
		if l := r.latest(s.UserID); l.IsActive(now) {
			res[l.Tier]++
		}
	}
	return res, nil
}

// ---- Mock PaymentLedgerRepository ----

type MockLedgerRepo struct {
	mu   sync.Mutex
	data map[string]*model.ProcessedPayment // provider:txid

	InsertFunc func(ctx context.Context, tx repository.Tx, p *model.ProcessedPayment) error
}

var _ repository.PaymentLedgerRepository = (*MockLedgerRepo)(nil)

func NewMockLedgerRepo() *MockLedgerRepo {
	return &MockLedgerRepo{data: map[string]*model.ProcessedPayment{}}
}

func (r *MockLedgerRepo) Insert(ctx context.Context, tx repository.Tx, p *model.ProcessedPayment) error {
	if r.InsertFunc != nil {
		return r.InsertFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := p.Provider + ":" + p.TransactionID
	if _, ok := r.data[key]; ok {
		return domain.ErrDuplicateTransaction
	}
	cp := *p
	r.data[key] = &cp
	return nil
}

func (r *MockLedgerRepo) Find(ctx context.Context, tx repository.Tx, provider, transactionID string) (*model.ProcessedPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[provider+":"+transactionID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockLedgerRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// ---- Mock NotificationLogRepository ----

type MockNotificationLogRepo struct {
	mu sync.Mutex
	// The key is a composite: "subscriptionID:kind:thresholdDays"
	entries map[string]struct{}

	SaveFunc   func(ctx context.Context, tx repository.Tx, subscriptionID, userID, kind string, thresholdDays int) error
	ExistsFunc func(ctx context.Context, tx repository.Tx, subscriptionID, kind string, thresholdDays int) (bool, error)
}

var _ repository.NotificationLogRepository = (*MockNotificationLogRepo)(nil)

func NewMockNotificationLogRepo() *MockNotificationLogRepo {
	return &MockNotificationLogRepo{entries: make(map[string]struct{})}
}

func (r *MockNotificationLogRepo) makeKey(subscriptionID, kind string, thresholdDays int) string {
	return fmt.Sprintf("%s:%s:%d", subscriptionID, kind, thresholdDays)
}

func (r *MockNotificationLogRepo) Save(ctx context.Context, tx repository.Tx, subscriptionID, userID, kind string, thresholdDays int) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, subscriptionID, userID, kind, thresholdDays)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.makeKey(subscriptionID, kind, thresholdDays)] = struct{}{}
	return nil
}

func (r *MockNotificationLogRepo) Exists(ctx context.Context, tx repository.Tx, subscriptionID, kind string, thresholdDays int) (bool, error) {
	if r.ExistsFunc != nil {
		return r.ExistsFunc(ctx, tx, subscriptionID, kind, thresholdDays)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.entries[r.makeKey(subscriptionID, kind, thresholdDays)]
	return exists, nil
}

// ---- Mock MaterialRepository ----

type MockMaterialRepo struct {
	mu     sync.Mutex
	nextID int64
	data   map[int64]*model.Material

	ListFunc func(ctx context.Context, tx repository.Tx, f model.MaterialFilter) ([]*model.Material, error)
}

var _ repository.MaterialRepository = (*MockMaterialRepo)(nil)

func NewMockMaterialRepo() *MockMaterialRepo {
	return &MockMaterialRepo{data: map[int64]*model.Material{}}
}

func (r *MockMaterialRepo) List(ctx context.Context, tx repository.Tx, f model.MaterialFilter) ([]*model.Material, error) {
	if r.ListFunc != nil {
		return r.ListFunc(ctx, tx, f)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Material, 0, len(r.data))
	for _, m := range r.data {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MockMaterialRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.data[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockMaterialRepo) Create(ctx context.Context, tx repository.Tx, m *model.Material) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = r.nextID
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	cp := *m
	r.data[m.ID] = &cp
	return nil
}

func (r *MockMaterialRepo) Update(ctx context.Context, tx repository.Tx, m *model.Material) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[m.ID]; !ok {
		return domain.ErrNotFound
	}
	m.UpdatedAt = time.Now()
	cp := *m
	r.data[m.ID] = &cp
	return nil
}

func (r *MockMaterialRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.data, id)
	return nil
}

// =============================
// Infra helpers for tests
// =============================

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
	Keys  []string
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Keys = append(l.Keys, key)
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", errors.Join(domain.ErrTransientIO, errors.New("locked"))
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

// ---- Synchronous task runner ----

type SyncSubmitter struct {
	Reject bool
}

func (s *SyncSubmitter) Submit(task func(ctx context.Context) error) error {
	if s.Reject {
		return errors.New("queue full")
	}
	return task(context.Background())
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestTranslator() *i18n.Translator {
	testFS := fstest.MapFS{
		"locales/ru.yaml": {
			Data: []byte(`
invite_channel: "channel: %s"
invite_chat: "\nchat: %s"
payment_success: "paid"
expiry_reminder: "expires in %d"
`),
		},
	}
	translator, _ := i18n.NewTranslator(testFS, "ru")
	return translator
}
