package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawjob/backend/internal/models"
)

const accountCols = `id, username, email, password_hash, balance, commission_balance, receiving_account_type, receiving_account_name, receiving_account_number, is_active, created_at, updated_at`

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Balance, &a.CommissionBalance, &a.ReceivingAccountType, &a.ReceivingAccountName, &a.ReceivingAccountNumber, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) Create(ctx context.Context, a *models.Account) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO accounts (username, email, password_hash, balance, commission_balance, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, a.Username, a.Email, a.PasswordHash, a.Balance, a.CommissionBalance, a.IsActive).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id))
}

func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE username = $1`, username))
}

// GetForUpdate locks the account row. Call within a transaction.
func (r *AccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*models.Account, error) {
	return scanAccount(tx.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

// Debit atomically deducts amount when the balance covers it. Returns false
// (and no change) otherwise.
func (r *AccountRepo) Debit(ctx context.Context, tx pgx.Tx, id, amount int64) (newBalance int64, ok bool, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET balance = balance - $1, updated_at = now()
		WHERE id = $2 AND balance >= $1
		RETURNING balance
	`, amount, id).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return newBalance, true, nil
}

// Credit adds amount to the main balance and returns the new balance.
func (r *AccountRepo) Credit(ctx context.Context, tx pgx.Tx, id, amount int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET balance = balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

// CreditCommission adds amount to the commission balance and returns the new
// commission balance.
func (r *AccountRepo) CreditCommission(ctx context.Context, tx pgx.Tx, id, amount int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET commission_balance = commission_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING commission_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}

func (r *AccountRepo) UpdateReceivingAccount(ctx context.Context, id int64, typ, name, number string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET receiving_account_type = $2, receiving_account_name = $3, receiving_account_number = $4, updated_at = now()
		WHERE id = $1
	`, id, typ, name, number)
	return err
}
