package api

import (
	"bytes"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"community-subscription-bot/internal/domain/ports/adapter"
	"community-subscription-bot/internal/infra/logging"
	"community-subscription-bot/internal/infra/metrics"
)

const (
	providerCloudPayments  = "cloudpayments"
	providerSignedRedirect = "payform"

	maxNotificationBody = 1 << 20
)

type paymentLinkRequest struct {
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Currency    string  `json:"currency" validate:"required,len=3"`
	Description string  `json:"description" validate:"required,max=250"`
	Email       string  `json:"email" validate:"omitempty,email"`
}

// handleCreatePaymentLink creates a hosted CloudPayments order for a raw amount.
func (s *Server) handleCreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	var req paymentLinkRequest
	if !decodeAndValidate(w, r, s.validate, &req) {
		return
	}
	// orders are priced in whole rubles
	if req.Amount != math.Trunc(req.Amount) {
		fail(w, r, http.StatusUnprocessableEntity, "field Amount must be a whole number")
		return
	}
	link, err := s.deps.Payments.CreateLink(r.Context(), providerCloudPayments, adapter.CheckoutRequest{
		Amount:      int64(req.Amount),
		Currency:    req.Currency,
		Description: req.Description,
		Email:       req.Email,
	})
	if err != nil {
		failErr(w, r, s.log, "payments.link", err)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"paymentLink": link})
}

func (s *Server) handleProviderNotification(w http.ResponseWriter, r *http.Request) {
	s.handleNotification(chi.URLParam(r, "provider"))(w, r)
}

// handleNotification hands the raw request to the reconciliation pipeline and
// writes the provider's ack on success. Duplicates are acked as well.
func (s *Server) handleNotification(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		in, err := inbound(r)
		if err != nil {
			metrics.ObserveWebhook(provider, "bad_request", time.Since(start).Seconds())
			fail(w, r, http.StatusBadRequest, "invalid request body")
			return
		}

		ack, err := s.deps.Payments.Reconcile(r.Context(), provider, in)
		if err != nil {
			metrics.ObserveWebhook(provider, "error", time.Since(start).Seconds())
			failErr(w, r, s.log, "payments.notify."+provider, err)
			return
		}
		metrics.ObserveWebhook(provider, "ok", time.Since(start).Seconds())
		logging.With(r.Context(), s.log).Debug().Str("provider", provider).Msg("notification acknowledged")

		w.Header().Set("Content-Type", ack.ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(ack.Body)
	}
}

// inbound captures the raw body, canonical headers and the merged query/form fields.
func inbound(r *http.Request) (adapter.InboundNotification, error) {
	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBody))
		if err != nil {
			return adapter.InboundNotification{}, err
		}
		body = b
		r.Body = io.NopCloser(bytes.NewReader(b))
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[http.CanonicalHeaderKey(k)] = r.Header.Get(k)
	}

	fields := map[string]string{}
	for k := range r.URL.Query() {
		fields[k] = r.URL.Query().Get(k)
	}
	ct := r.Header.Get("Content-Type")
	if mt, _, _ := mime.ParseMediaType(ct); mt == "application/x-www-form-urlencoded" && len(body) > 0 {
		vals, err := url.ParseQuery(string(body))
		if err != nil {
			return adapter.InboundNotification{}, err
		}
		for k := range vals {
			fields[k] = vals.Get(k)
		}
	}

	return adapter.InboundNotification{
		ContentType: ct,
		Body:        body,
		Headers:     headers,
		Fields:      fields,
	}, nil
}
