package models

import "time"

// Transaction kinds. A commission delta applies to the account's
// CommissionBalance; every other kind applies to Balance.
const (
	TxKindRecharge      = "recharge"
	TxKindRewardPayout  = "reward_payout"
	TxKindRewardReceipt = "reward_receipt"
	TxKindCommission    = "commission"
	TxKindRefund        = "refund"
)

// Transaction is one immutable ledger entry. Account balances are never
// written except together with one of these.
type Transaction struct {
	ID           int64     `json:"id"`
	AccountID    int64     `json:"account_id"`
	Delta        int64     `json:"delta"`
	Kind         string    `json:"kind"`
	RefID        *int64    `json:"ref_id,omitempty"`
	Remark       string    `json:"remark,omitempty"`
	BalanceAfter *int64    `json:"balance_after,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
