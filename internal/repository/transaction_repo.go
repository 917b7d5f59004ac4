package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawjob/backend/internal/models"
)

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

func (r *TransactionRepo) Create(ctx context.Context, t *models.Transaction) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO transactions (account_id, delta, kind, ref_id, remark, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, t.AccountID, t.Delta, t.Kind, t.RefID, t.Remark, t.BalanceAfter).Scan(&t.ID, &t.CreatedAt)
}

// CreateTx inserts a ledger entry inside the given transaction.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO transactions (account_id, delta, kind, ref_id, remark, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, t.AccountID, t.Delta, t.Kind, t.RefID, t.Remark, t.BalanceAfter).Scan(&t.ID, &t.CreatedAt)
}

// ListByAccountID returns entries newest first, optionally filtered by kind.
func (r *TransactionRepo) ListByAccountID(ctx context.Context, accountID int64, kind string, skip, limit int) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, delta, kind, ref_id, remark, balance_after, created_at
		FROM transactions
		WHERE account_id = $1 AND ($2 = '' OR kind = $2)
		ORDER BY created_at DESC, id DESC OFFSET $3 LIMIT $4
	`, accountID, kind, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Delta, &t.Kind, &t.RefID, &t.Remark, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// ListByRefID returns the entries tied to one task or order.
func (r *TransactionRepo) ListByRefID(ctx context.Context, refID int64) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, delta, kind, ref_id, remark, balance_after, created_at
		FROM transactions WHERE ref_id = $1 ORDER BY created_at DESC, id DESC
	`, refID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Delta, &t.Kind, &t.RefID, &t.Remark, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
