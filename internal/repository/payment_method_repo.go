package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawjob/backend/internal/models"
)

type PaymentMethodRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentMethodRepo(pool *pgxpool.Pool) *PaymentMethodRepo {
	return &PaymentMethodRepo{pool: pool}
}

func (r *PaymentMethodRepo) Create(ctx context.Context, m *models.PaymentMethod) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO payment_methods (account_id, type, masked_info, is_default)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, m.AccountID, m.Type, m.MaskedInfo, m.IsDefault).Scan(&m.ID, &m.CreatedAt)
}

func (r *PaymentMethodRepo) ListByAccountID(ctx context.Context, accountID int64) ([]*models.PaymentMethod, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, type, masked_info, is_default, created_at
		FROM payment_methods WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.PaymentMethod
	for rows.Next() {
		var m models.PaymentMethod
		if err := rows.Scan(&m.ID, &m.AccountID, &m.Type, &m.MaskedInfo, &m.IsDefault, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}

// Delete removes the method only when it belongs to the account. Returns
// false when nothing matched.
func (r *PaymentMethodRepo) Delete(ctx context.Context, accountID, id int64) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		DELETE FROM payment_methods WHERE id = $1 AND account_id = $2
	`, id, accountID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
