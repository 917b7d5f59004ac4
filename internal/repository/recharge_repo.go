package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clawjob/backend/internal/models"
)

const orderCols = `id, account_id, amount, payment_method_type, status, gateway_order_id, payment_url, payment_qr, btc_address, paid_at, created_at`

type RechargeOrderRepo struct {
	pool *pgxpool.Pool
}

func NewRechargeOrderRepo(pool *pgxpool.Pool) *RechargeOrderRepo {
	return &RechargeOrderRepo{pool: pool}
}

func scanOrder(row pgx.Row) (*models.RechargeOrder, error) {
	var o models.RechargeOrder
	err := row.Scan(&o.ID, &o.AccountID, &o.Amount, &o.PaymentMethodType, &o.Status, &o.GatewayOrderID, &o.PaymentURL, &o.PaymentQR, &o.BTCAddress, &o.PaidAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *RechargeOrderRepo) Create(ctx context.Context, o *models.RechargeOrder) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO recharge_orders (account_id, amount, payment_method_type, status, gateway_order_id, payment_url, payment_qr, btc_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, o.AccountID, o.Amount, o.PaymentMethodType, o.Status, o.GatewayOrderID, o.PaymentURL, o.PaymentQR, o.BTCAddress).Scan(&o.ID, &o.CreatedAt)
}

func (r *RechargeOrderRepo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.RechargeOrder, error) {
	return scanOrder(r.pool.QueryRow(ctx, `
		SELECT `+orderCols+` FROM recharge_orders WHERE gateway_order_id = $1
	`, gatewayOrderID))
}

// Confirm flips a pending order to confirmed inside the given transaction.
// Returns false when the order is not pending, without touching it.
func (r *RechargeOrderRepo) Confirm(ctx context.Context, tx pgx.Tx, orderID int64, paidAt time.Time) (bool, error) {
	ct, err := tx.Exec(ctx, `
		UPDATE recharge_orders SET status = 'confirmed', paid_at = $2
		WHERE id = $1 AND status = 'pending'
	`, orderID, paidAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// GetForUpdate locks the order row. Call within a transaction.
func (r *RechargeOrderRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, gatewayOrderID string) (*models.RechargeOrder, error) {
	o, err := scanOrder(tx.QueryRow(ctx, `
		SELECT `+orderCols+` FROM recharge_orders WHERE gateway_order_id = $1 FOR UPDATE
	`, gatewayOrderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (r *RechargeOrderRepo) ListByAccountID(ctx context.Context, accountID int64) ([]*models.RechargeOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderCols+` FROM recharge_orders WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.RechargeOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}
