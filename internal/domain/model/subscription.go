package model

import (
	"math"
	"time"

	"community-subscription-bot/internal/domain"

	"github.com/google/uuid"
)

// Subscription is one entitlement grant. A user may own many rows over time;
// the current entitlement is always the row with the latest EndDate.
type Subscription struct {
	ID        string
	UserID    string
	Tier      Tier
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
	Source    string // "api", "payment:cloudpayments", ...
}

// NewSubscription builds a grant covering [start, end].
func NewSubscription(userID string, tier Tier, start, end time.Time, source string) (*Subscription, error) {
	if userID == "" || !tier.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if end.Before(start) {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		Tier:      tier,
		StartDate: start,
		EndDate:   end,
		CreatedAt: time.Now(),
		Source:    source,
	}, nil
}

// IsActive reports whether the grant still covers now.
func (s *Subscription) IsActive(now time.Time) bool {
	return s != nil && s.EndDate.After(now)
}

// DaysRemaining is the ceiling of the whole days left until EndDate; 0 once expired.
func (s *Subscription) DaysRemaining(now time.Time) int {
	if !s.IsActive(now) {
		return 0
	}
	left := s.EndDate.Sub(now)
	return int(math.Ceil(left.Hours() / 24))
}

// AddMonths adds n calendar months to t. When the target month is shorter
// than t's day, the result is clamped to the last day of that month
// (Jan 31 + 1 month = Feb 28/29). Time of day and location are kept.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()

	total := int(m) - 1 + n
	y += total / 12
	total %= 12
	if total < 0 {
		total += 12
		y--
	}
	month := time.Month(total + 1)

	if last := daysIn(y, month, t.Location()); d > last {
		d = last
	}
	return time.Date(y, month, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

// ExtensionEnd is the end of a grant of n months stacked on current. A live
// grant (current after now) is extended from its end, otherwise the grant
// starts at now. Clamping keeps the time of day, so a later base can land
// earlier in the target month; the result never falls below AddMonths(now, n).
func ExtensionEnd(current, now time.Time, n int) time.Time {
	floor := AddMonths(now, n)
	if !current.After(now) {
		return floor
	}
	if end := AddMonths(current, n); end.After(floor) {
		return end
	}
	return floor
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
