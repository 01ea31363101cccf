package adapter

import (
	"context"

	"community-subscription-bot/internal/domain/model"
)

// CheckoutRequest describes a payment the user is about to make.
type CheckoutRequest struct {
	Amount      int64
	Currency    string
	Description string // correlation string echoed back in the callback
	Email       string
}

// InboundNotification is a raw provider callback, detached from net/http.
type InboundNotification struct {
	ContentType string
	Body        []byte
	Headers     map[string]string // canonical header names
	Fields      map[string]string // query / form values
}

// Ack is the exact response a provider expects to stop retrying.
type Ack struct {
	ContentType string
	Body        []byte
}

// PaymentProvider is the port every payment integration implements.
type PaymentProvider interface {
	Name() string
	// CreatePayment returns a URL the user is redirected to.
	CreatePayment(ctx context.Context, req CheckoutRequest) (payURL string, err error)
	// VerifyNotification authenticates and decodes a callback.
	// It returns domain.ErrAuthenticationFailed on a bad or missing signature.
	VerifyNotification(in InboundNotification) (*model.PaymentNotification, error)
	Ack() Ack
}
