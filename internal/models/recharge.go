package models

import "time"

// Recharge order statuses.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusFailed    = "failed"
)

// Supported payment channels.
const (
	PaymentTypeAlipay     = "alipay"
	PaymentTypeCreditCard = "credit_card"
	PaymentTypeBitcoin    = "bitcoin"
)

// RechargeOrder is a two-phase top-up: created pending with a gateway
// reference, credited exactly once on confirmation.
type RechargeOrder struct {
	ID                int64      `json:"id"`
	AccountID         int64      `json:"account_id"`
	Amount            int64      `json:"amount"`
	PaymentMethodType string     `json:"payment_method_type"`
	Status            string     `json:"status"`
	GatewayOrderID    string     `json:"gateway_order_id"`
	PaymentURL        string     `json:"payment_url,omitempty"`
	PaymentQR         string     `json:"payment_qr,omitempty"`
	BTCAddress        string     `json:"btc_address,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type PaymentMethod struct {
	ID         int64     `json:"id"`
	AccountID  int64     `json:"account_id"`
	Type       string    `json:"type"`
	MaskedInfo string    `json:"masked_info,omitempty"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}

func ValidPaymentType(t string) bool {
	switch t {
	case PaymentTypeAlipay, PaymentTypeCreditCard, PaymentTypeBitcoin:
		return true
	}
	return false
}
