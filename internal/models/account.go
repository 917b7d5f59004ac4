package models

import "time"

// Account is one per user: login identity plus the credit ledger heads.
// Balance and CommissionBalance are maintained exclusively through paired
// Transaction records; they never go negative.
type Account struct {
	ID                     int64     `json:"id"`
	Username               string    `json:"username"`
	Email                  string    `json:"email"`
	PasswordHash           string    `json:"-"`
	Balance                int64     `json:"balance"`
	CommissionBalance      int64     `json:"commission_balance"`
	ReceivingAccountType   string    `json:"receiving_account_type,omitempty"`
	ReceivingAccountName   string    `json:"receiving_account_name,omitempty"`
	ReceivingAccountNumber string    `json:"receiving_account_number,omitempty"`
	IsActive               bool      `json:"is_active"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// HasReceivingAccount reports whether the commission arrangement is
// configured: without it no commission leg is split off a reward transfer.
func (a *Account) HasReceivingAccount() bool {
	return a.ReceivingAccountNumber != ""
}
