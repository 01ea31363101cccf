package payment

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*NoopPaymentProvider)(nil)

// NoopPaymentProvider is an in-memory provider for dev runs and tests.
// It has no signature: any notification carrying an order it issued is trusted.
type NoopPaymentProvider struct {
	mu     sync.Mutex
	seq    int64
	orders map[string]int64 // order id -> amount
}

func NewNoopPaymentProvider() *NoopPaymentProvider {
	return &NoopPaymentProvider{orders: make(map[string]int64)}
}

func (g *NoopPaymentProvider) Name() string { return "noop" }

func (g *NoopPaymentProvider) CreatePayment(_ context.Context, req adapter.CheckoutRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("noop-%d", g.seq)
	g.orders[id] = req.Amount
	return "https://example.test/pay/" + id + "?description=" + url.QueryEscape(req.Description), nil
}

// VerifyNotification reads fields order (the noop-N id), transaction_id,
// status, amount and description.
func (g *NoopPaymentProvider) VerifyNotification(in adapter.InboundNotification) (*model.PaymentNotification, error) {
	g.mu.Lock()
	_, known := g.orders[in.Fields["order"]]
	g.mu.Unlock()
	if !known {
		return nil, fmt.Errorf("%w: unknown noop order", domain.ErrAuthenticationFailed)
	}
	txID := in.Fields["transaction_id"]
	if txID == "" {
		return nil, fmt.Errorf("%w: missing transaction_id", domain.ErrInvalidArgument)
	}
	amount, _ := strconv.ParseFloat(in.Fields["amount"], 64)
	return &model.PaymentNotification{
		Provider:      "noop",
		TransactionID: txID,
		Succeeded:     in.Fields["status"] == "success",
		Status:        in.Fields["status"],
		Amount:        amount,
		Currency:      model.Currency,
		Description:   in.Fields["description"],
	}, nil
}

func (g *NoopPaymentProvider) Ack() adapter.Ack {
	return adapter.Ack{ContentType: "text/plain; charset=utf-8", Body: []byte("OK")}
}
