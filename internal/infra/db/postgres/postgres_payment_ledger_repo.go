package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/repository"
)

var _ repository.PaymentLedgerRepository = (*paymentLedgerRepo)(nil)

type paymentLedgerRepo struct{ pool *pgxpool.Pool }

func NewPaymentLedgerRepo(pool *pgxpool.Pool) *paymentLedgerRepo {
	return &paymentLedgerRepo{pool: pool}
}

const ledgerColumns = `provider, transaction_id, user_id, tier, months, amount, currency, subscription_id, processed_at`

// Insert relies on the (provider, transaction_id) primary key; there is no
// read-then-write window for two deliveries of the same transaction.
func (r *paymentLedgerRepo) Insert(ctx context.Context, tx repository.Tx, p *model.ProcessedPayment) error {
	const q = `INSERT INTO processed_payments (` + ledgerColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	var subID interface{}
	if p.SubscriptionID != "" {
		subID = p.SubscriptionID
	}
	_, err := execSQL(ctx, r.pool, tx, q, p.Provider, p.TransactionID, p.UserID, int(p.Tier), p.Months, p.Amount, p.Currency, subID, p.ProcessedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateTransaction
	}
	return mapErr("processed_payments.insert", err)
}

func (r *paymentLedgerRepo) Find(ctx context.Context, tx repository.Tx, provider, transactionID string) (*model.ProcessedPayment, error) {
	const q = `SELECT ` + ledgerColumns + ` FROM processed_payments WHERE provider=$1 AND transaction_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, provider, transactionID)
	if err != nil {
		return nil, err
	}
	var (
		p     model.ProcessedPayment
		tier  int
		subID *string
	)
	if err := row.Scan(&p.Provider, &p.TransactionID, &p.UserID, &tier, &p.Months, &p.Amount, &p.Currency, &subID, &p.ProcessedAt); err != nil {
		return nil, mapErr("processed_payments.find", err)
	}
	p.Tier = model.Tier(tier)
	if subID != nil {
		p.SubscriptionID = *subID
	}
	return &p, nil
}
