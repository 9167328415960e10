package repositories

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// LedgerRepos are bill and payment repositories bound to one transaction.
type LedgerRepos struct {
	Bills    BillRepository
	Payments PaymentRepository
}

// LedgerTxRunner runs a unit of work over bills and payments that commits or
// rolls back as a whole.
type LedgerTxRunner interface {
	InLedgerTx(ctx context.Context, fn func(repos LedgerRepos) error) error
}

type pgLedgerTxRunner struct {
	db DB
}

func NewLedgerTxRunner(db DB) LedgerTxRunner {
	return &pgLedgerTxRunner{db: db}
}

func (r *pgLedgerTxRunner) InLedgerTx(ctx context.Context, fn func(repos LedgerRepos) error) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(LedgerRepos{
			Bills:    NewBillRepository(tx),
			Payments: NewPaymentRepository(tx),
		})
	})
}
