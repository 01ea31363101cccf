package payment

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/adapter"
	"community-subscription-bot/internal/infra/metrics"
)

var _ adapter.PaymentProvider = (*SignedRedirect)(nil)

const (
	SignedRedirectName = "payform"
	signatureField     = "signature"
	redirectStatusOK   = "success"
)

// SignedRedirect builds checkout URLs locally and signs them with a shared
// secret. The gateway posts the result back with the same signature scheme.
//
// Redirect fields: merchant_id, order_id (the correlation string), sum,
// currency, customer_email, url_notification.
// Result fields: order_id, transaction_id (required), sum, currency, payment_status,
// customer_email, signature.
type SignedRedirect struct {
	merchantID string
	secret     string
	payURL     string
	resultURL  string
}

func NewSignedRedirect(merchantID, secret, payURL, resultURL string) (*SignedRedirect, error) {
	if merchantID == "" || secret == "" {
		return nil, errors.New("signed redirect: merchant id and secret are required")
	}
	if _, err := url.ParseRequestURI(payURL); err != nil {
		return nil, fmt.Errorf("signed redirect: invalid pay url: %w", err)
	}
	return &SignedRedirect{merchantID: merchantID, secret: secret, payURL: payURL, resultURL: resultURL}, nil
}

func (s *SignedRedirect) Name() string { return SignedRedirectName }

func (s *SignedRedirect) CreatePayment(_ context.Context, req adapter.CheckoutRequest) (string, error) {
	if req.Description == "" || req.Amount <= 0 {
		return "", domain.ErrInvalidArgument
	}
	fields := map[string]string{
		"merchant_id": s.merchantID,
		"order_id":    req.Description,
		"sum":         strconv.FormatInt(req.Amount, 10),
		"currency":    req.Currency,
	}
	if req.Email != "" {
		fields["customer_email"] = req.Email
	}
	if s.resultURL != "" {
		fields["url_notification"] = s.resultURL
	}

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set(signatureField, Sign(fields, s.secret))

	u, err := url.Parse(s.payURL)
	if err != nil {
		return "", err
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *SignedRedirect) VerifyNotification(in adapter.InboundNotification) (*model.PaymentNotification, error) {
	fields := make(map[string]string, len(in.Fields))
	for k, v := range in.Fields {
		fields[k] = v
	}
	got := strings.ToLower(strings.TrimSpace(fields[signatureField]))
	delete(fields, signatureField)
	if got == "" {
		metrics.IncSignatureCheck(SignedRedirectName, "missing")
		return nil, fmt.Errorf("%w: missing signature", domain.ErrAuthenticationFailed)
	}
	want := Sign(fields, s.secret)
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		metrics.IncSignatureCheck(SignedRedirectName, "mismatch")
		return nil, fmt.Errorf("%w: signature mismatch", domain.ErrAuthenticationFailed)
	}
	metrics.IncSignatureCheck(SignedRedirectName, "ok")

	amount, _ := strconv.ParseFloat(fields["sum"], 64)
	status := fields["payment_status"]
	txID := strings.TrimSpace(fields["transaction_id"])
	if txID == "" {
		return nil, fmt.Errorf("%w: missing transaction_id", domain.ErrInvalidArgument)
	}
	return &model.PaymentNotification{
		Provider:      SignedRedirectName,
		TransactionID: txID,
		Succeeded:     status == redirectStatusOK,
		Status:        status,
		Amount:        amount,
		Currency:      fields["currency"],
		Description:   fields["order_id"],
		Email:         fields["customer_email"],
	}, nil
}

func (s *SignedRedirect) Ack() adapter.Ack {
	return adapter.Ack{ContentType: "text/plain; charset=utf-8", Body: []byte("OK")}
}

// Sign returns hex(SHA-256(k1:v1;k2:v2;...;secret)) with keys sorted.
func Sign(fields map[string]string, secret string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(fields[k])
		b.WriteByte(';')
	}
	b.WriteString(secret)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
