package repository

import (
	"context"

	"community-subscription-bot/internal/domain/model"
)

// -----------------------------
// Processed payments
// -----------------------------

type PaymentLedgerRepository interface {
	// Insert records a transaction as applied. A second insert of the same
	// (provider, transaction id) fails with domain.ErrDuplicateTransaction.
	Insert(ctx context.Context, tx Tx, p *model.ProcessedPayment) error
	Find(ctx context.Context, tx Tx, provider, transactionID string) (*model.ProcessedPayment, error)
}
