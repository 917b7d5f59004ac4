package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clawjob/backend/internal/models"
)

// ErrInsufficientFunds is returned when a debit would take the balance negative.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrOrderNotFound is returned when no recharge order matches the gateway reference.
var ErrOrderNotFound = errors.New("recharge order not found")

// ErrOrderNotPending is returned when confirming an order that already failed.
var ErrOrderNotPending = errors.New("recharge order is not pending")

// ErrInvalidAmount is returned for zero or negative amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// AccountStore is the minimal account surface the ledger needs.
type AccountStore interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*models.Account, error)
	Debit(ctx context.Context, tx pgx.Tx, id, amount int64) (newBalance int64, ok bool, err error)
	Credit(ctx context.Context, tx pgx.Tx, id, amount int64) (newBalance int64, err error)
	CreditCommission(ctx context.Context, tx pgx.Tx, id, amount int64) (newBalance int64, err error)
}

// TransactionStore records immutable ledger entries.
type TransactionStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
}

// OrderStore is the recharge order surface the ledger needs.
type OrderStore interface {
	Create(ctx context.Context, o *models.RechargeOrder) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, gatewayOrderID string) (*models.RechargeOrder, error)
	Confirm(ctx context.Context, tx pgx.Tx, orderID int64, paidAt time.Time) (bool, error)
}

// TxBeginner opens a database transaction. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service is the single owner of balance mutations. Every move pairs an
// atomic balance update with a transaction record in the same database
// transaction.
type Service struct {
	DB            TxBeginner
	Accounts      AccountStore
	Transactions  TransactionStore
	Orders        OrderStore
	CommissionBps int64
}

func NewService(db TxBeginner, accounts AccountStore, transactions TransactionStore, orders OrderStore, commissionBps int64) *Service {
	return &Service{DB: db, Accounts: accounts, Transactions: transactions, Orders: orders, CommissionBps: commissionBps}
}

// TransferReward moves a task reward from payer to payee inside the caller's
// transaction: the payer is debited the full amount, the payee is credited
// the amount minus commission, and the commission lands on the payer's
// commission balance. The commission leg only exists when the payer has a
// receiving account configured. Locks both accounts in ascending id order.
func (s *Service) TransferReward(ctx context.Context, tx pgx.Tx, taskID, payerID, payeeID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	var payer *models.Account
	ids := []int64{payerID, payeeID}
	if ids[0] > ids[1] {
		ids[0], ids[1] = ids[1], ids[0]
	}
	for _, id := range ids {
		acc, err := s.Accounts.GetForUpdate(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("lock account %d: %w", id, err)
		}
		if id == payerID {
			payer = acc
		}
	}

	var commission int64
	if payer.HasReceivingAccount() {
		commission = amount * s.CommissionBps / 10000
	}

	newPayerBal, ok, err := s.Accounts.Debit(ctx, tx, payerID, amount)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientFunds
	}
	if err := s.Transactions.CreateTx(ctx, tx, &models.Transaction{
		AccountID: payerID, Delta: -amount, Kind: models.TxKindRewardPayout,
		RefID: &taskID, BalanceAfter: &newPayerBal,
	}); err != nil {
		return err
	}

	newPayeeBal, err := s.Accounts.Credit(ctx, tx, payeeID, amount-commission)
	if err != nil {
		return err
	}
	if err := s.Transactions.CreateTx(ctx, tx, &models.Transaction{
		AccountID: payeeID, Delta: amount - commission, Kind: models.TxKindRewardReceipt,
		RefID: &taskID, BalanceAfter: &newPayeeBal,
	}); err != nil {
		return err
	}

	if commission > 0 {
		newCommBal, err := s.Accounts.CreditCommission(ctx, tx, payerID, commission)
		if err != nil {
			return err
		}
		if err := s.Transactions.CreateTx(ctx, tx, &models.Transaction{
			AccountID: payerID, Delta: commission, Kind: models.TxKindCommission,
			RefID: &taskID, BalanceAfter: &newCommBal,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Recharge credits the account directly and records the entry.
func (s *Service) Recharge(ctx context.Context, accountID, amount int64, remark string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	newBalance, err := s.Accounts.Credit(ctx, tx, accountID, amount)
	if err != nil {
		return nil, err
	}
	entry := &models.Transaction{
		AccountID: accountID, Delta: amount, Kind: models.TxKindRecharge,
		Remark: remark, BalanceAfter: &newBalance,
	}
	if err := s.Transactions.CreateTx(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

// CreateRechargeOrder opens a pending two-phase top-up and hands back the
// gateway artifacts for the chosen channel.
func (s *Service) CreateRechargeOrder(ctx context.Context, accountID, amount int64, paymentType string) (*models.RechargeOrder, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !models.ValidPaymentType(paymentType) {
		return nil, fmt.Errorf("%w: unsupported payment type %q", ErrInvalidAmount, paymentType)
	}

	ref := strings.ReplaceAll(uuid.New().String(), "-", "")
	o := &models.RechargeOrder{
		AccountID:         accountID,
		Amount:            amount,
		PaymentMethodType: paymentType,
		Status:            models.OrderStatusPending,
		GatewayOrderID:    "ord_" + ref[:16],
	}
	switch paymentType {
	case models.PaymentTypeCreditCard:
		o.PaymentURL = "https://gateway.example.com/pay/" + o.GatewayOrderID
	case models.PaymentTypeAlipay:
		o.PaymentQR = "https://gateway.example.com/qr/" + o.GatewayOrderID + ".png"
	case models.PaymentTypeBitcoin:
		o.BTCAddress = "bc1q" + ref[:32]
	}
	if err := s.Orders.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ConfirmRecharge settles a pending order: flips it to confirmed and credits
// the account, exactly once. A second confirmation of the same order is a
// no-op returning the already-confirmed order; a failed order is rejected.
func (s *Service) ConfirmRecharge(ctx context.Context, gatewayOrderID string) (*models.RechargeOrder, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	o, err := s.Orders.GetForUpdate(ctx, tx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	switch o.Status {
	case models.OrderStatusConfirmed:
		return o, nil
	case models.OrderStatusFailed:
		return nil, ErrOrderNotPending
	}

	paidAt := time.Now().UTC()
	ok, err := s.Orders.Confirm(ctx, tx, o.ID, paidAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOrderNotPending
	}

	newBalance, err := s.Accounts.Credit(ctx, tx, o.AccountID, o.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.Transactions.CreateTx(ctx, tx, &models.Transaction{
		AccountID: o.AccountID, Delta: o.Amount, Kind: models.TxKindRecharge,
		RefID: &o.ID, Remark: "recharge order " + o.GatewayOrderID, BalanceAfter: &newBalance,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	o.Status = models.OrderStatusConfirmed
	o.PaidAt = &paidAt
	return o, nil
}
