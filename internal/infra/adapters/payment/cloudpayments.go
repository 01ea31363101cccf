package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/adapter"
	"community-subscription-bot/internal/infra/metrics"
)

var _ adapter.PaymentProvider = (*CloudPayments)(nil)

const (
	CloudPaymentsName    = "cloudpayments"
	cloudPaymentsBaseURL = "https://api.cloudpayments.ru"
	cpStatusCompleted    = "Completed"
)

// CloudPayments creates hosted orders through the CloudPayments API and
// authenticates its Pay notifications by the Content-HMAC header.
type CloudPayments struct {
	publicID string
	secret   string
	baseURL  string
	client   *http.Client
}

func NewCloudPayments(publicID, apiSecret, baseURL string, client *http.Client) (*CloudPayments, error) {
	if publicID == "" || apiSecret == "" {
		return nil, errors.New("cloudpayments: public id and api secret are required")
	}
	if baseURL == "" {
		baseURL = cloudPaymentsBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("cloudpayments: invalid base url: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &CloudPayments{
		publicID: publicID,
		secret:   apiSecret,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
	}, nil
}

func (c *CloudPayments) Name() string { return CloudPaymentsName }

// CreatePayment calls POST /orders/create and returns Model.Url.
func (c *CloudPayments) CreatePayment(ctx context.Context, req adapter.CheckoutRequest) (string, error) {
	start := time.Now()
	result := "error"
	defer func() {
		metrics.ObserveProviderCall(CloudPaymentsName, "orders_create", result, time.Since(start).Seconds())
	}()

	payload := map[string]any{
		"Amount":              req.Amount,
		"Currency":            req.Currency,
		"Description":         req.Description,
		"Email":               req.Email,
		"RequireConfirmation": false,
	}
	b, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders/create", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.publicID, c.secret)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", errors.Join(domain.ErrTransientIO, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: cloudpayments http %d", domain.ErrTransientIO, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("cloudpayments http %d", resp.StatusCode)
	}

	var out struct {
		Success bool    `json:"Success"`
		Message *string `json:"Message"`
		Model   struct {
			ID  string `json:"Id"`
			URL string `json:"Url"`
		} `json:"Model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("cloudpayments: decode order: %w", err)
	}
	if !out.Success || out.Model.URL == "" {
		msg := "no url returned"
		if out.Message != nil {
			msg = *out.Message
		}
		return "", fmt.Errorf("cloudpayments order rejected: %s", msg)
	}
	result = "ok"
	return out.Model.URL, nil
}

// VerifyNotification checks the Content-HMAC header, the base64
// HMAC-SHA256 of the raw body, then decodes either a form or a JSON payload.
// X-Content-HMAC is signed over the decoded parameters and is not accepted.
func (c *CloudPayments) VerifyNotification(in adapter.InboundNotification) (*model.PaymentNotification, error) {
	sig := header(in.Headers, "Content-HMAC")
	if sig == "" {
		metrics.IncSignatureCheck(CloudPaymentsName, "missing")
		return nil, fmt.Errorf("%w: missing Content-HMAC", domain.ErrAuthenticationFailed)
	}
	if !hmac.Equal([]byte(sig), []byte(SignCloudPaymentsBody(c.secret, in.Body))) {
		metrics.IncSignatureCheck(CloudPaymentsName, "mismatch")
		return nil, fmt.Errorf("%w: Content-HMAC mismatch", domain.ErrAuthenticationFailed)
	}

	fields, err := cloudPaymentsFields(in.ContentType, in.Body)
	if err != nil {
		metrics.IncSignatureCheck(CloudPaymentsName, "bad_body")
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}
	metrics.IncSignatureCheck(CloudPaymentsName, "ok")

	txID := strings.TrimSpace(fields["TransactionId"])
	if txID == "" {
		return nil, fmt.Errorf("%w: missing TransactionId", domain.ErrInvalidArgument)
	}
	amount, _ := strconv.ParseFloat(fields["Amount"], 64)
	status := fields["Status"]
	return &model.PaymentNotification{
		Provider:      CloudPaymentsName,
		TransactionID: txID,
		Succeeded:     status == cpStatusCompleted,
		Status:        status,
		Amount:        amount,
		Currency:      fields["Currency"],
		Description:   fields["Description"],
		Email:         fields["Email"],
	}, nil
}

// Ack is the body CloudPayments expects from a notification handler.
func (c *CloudPayments) Ack() adapter.Ack {
	return adapter.Ack{ContentType: "application/json", Body: []byte(`{"code":0}`)}
}

// SignCloudPaymentsBody returns base64(HMAC-SHA256(secret, body)).
func SignCloudPaymentsBody(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func cloudPaymentsFields(contentType string, body []byte) (map[string]string, error) {
	if strings.Contains(contentType, "json") {
		var raw map[string]any
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode json body: %w", err)
		}
		out := make(map[string]string, len(raw))
		for k, v := range raw {
			if v == nil {
				continue
			}
			out[k] = fmt.Sprint(v)
		}
		return out, nil
	}
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("decode form body: %w", err)
	}
	out := make(map[string]string, len(vals))
	for k := range vals {
		out[k] = vals.Get(k)
	}
	return out, nil
}

func header(h map[string]string, name string) string {
	if v, ok := h[http.CanonicalHeaderKey(name)]; ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(h[name])
}
