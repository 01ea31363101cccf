package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"community-subscription-bot/internal/domain"

	"github.com/google/uuid"
)

// MaxCorrelationMonths bounds the duration a single payment can grant.
const MaxCorrelationMonths = 36

// PaymentNotification is an authenticated, provider-neutral view of an inbound callback.
type PaymentNotification struct {
	Provider      string
	TransactionID string
	Succeeded     bool
	Status        string // raw provider status, for logs
	Amount        float64
	Currency      string
	Description   string // correlation string
	Email         string
}

// Correlation is the decoded "{userId}_{tier}_{months}" string a payment carries.
type Correlation struct {
	UserID string
	Tier   Tier
	Months int
}

func (c Correlation) String() string {
	return fmt.Sprintf("%s_%d_%d", c.UserID, c.Tier, c.Months)
}

// ParseCorrelation decodes a correlation string. Anything that is not exactly
// three well-typed tokens yields domain.ErrMalformedCorrelation.
func ParseCorrelation(s string) (Correlation, error) {
	parts := strings.Split(strings.TrimSpace(s), "_")
	if len(parts) != 3 {
		return Correlation{}, fmt.Errorf("%w: want 3 tokens, got %d", domain.ErrMalformedCorrelation, len(parts))
	}
	if _, err := uuid.Parse(parts[0]); err != nil {
		return Correlation{}, fmt.Errorf("%w: user id %q", domain.ErrMalformedCorrelation, parts[0])
	}
	tier, err := strconv.Atoi(parts[1])
	if err != nil || !Tier(tier).Valid() {
		return Correlation{}, fmt.Errorf("%w: tier %q", domain.ErrMalformedCorrelation, parts[1])
	}
	months, err := strconv.Atoi(parts[2])
	if err != nil || months <= 0 || months > MaxCorrelationMonths {
		return Correlation{}, fmt.Errorf("%w: months %q", domain.ErrMalformedCorrelation, parts[2])
	}
	return Correlation{UserID: parts[0], Tier: Tier(tier), Months: months}, nil
}

// ProcessedPayment is the ledger row that makes a transaction apply at most once.
type ProcessedPayment struct {
	Provider       string
	TransactionID  string
	UserID         string
	Tier           Tier
	Months         int
	Amount         float64
	Currency       string
	SubscriptionID string
	ProcessedAt    time.Time
}
