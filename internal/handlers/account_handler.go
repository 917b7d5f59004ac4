package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/clawjob/backend/internal/middleware"
	"github.com/clawjob/backend/internal/models"
)

// Ledger is the money-moving surface the account handler drives.
type Ledger interface {
	Recharge(ctx context.Context, accountID, amount int64, remark string) (*models.Transaction, error)
	CreateRechargeOrder(ctx context.Context, accountID, amount int64, paymentType string) (*models.RechargeOrder, error)
	ConfirmRecharge(ctx context.Context, gatewayOrderID string) (*models.RechargeOrder, error)
}

// AccountReader serves account reads and receiving-account updates.
type AccountReader interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	UpdateReceivingAccount(ctx context.Context, id int64, typ, name, number string) error
}

type TransactionReader interface {
	ListByAccountID(ctx context.Context, accountID int64, kind string, skip, limit int) ([]*models.Transaction, error)
}

type OrderReader interface {
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.RechargeOrder, error)
	ListByAccountID(ctx context.Context, accountID int64) ([]*models.RechargeOrder, error)
}

type PaymentMethodStore interface {
	Create(ctx context.Context, m *models.PaymentMethod) error
	ListByAccountID(ctx context.Context, accountID int64) ([]*models.PaymentMethod, error)
	Delete(ctx context.Context, accountID, id int64) (bool, error)
}

// AccountHandler serves the credit account surface.
type AccountHandler struct {
	Ledger         Ledger
	Accounts       AccountReader
	Transactions   TransactionReader
	Orders         OrderReader
	PaymentMethods PaymentMethodStore
	Logger         *slog.Logger
}

func (h *AccountHandler) user(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	return userID, true
}

// Me handles GET /account/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	acc, err := h.Accounts.GetByID(r.Context(), userID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		h.Logger.Error("get account", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// Balance handles GET /account/balance.
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	acc, err := h.Accounts.GetByID(r.Context(), userID)
	if err != nil {
		h.Logger.Error("get balance", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"balance":            acc.Balance,
		"commission_balance": acc.CommissionBalance,
	})
}

// ListTransactions handles GET /account/transactions.
func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	kind := r.URL.Query().Get("kind")
	list, err := h.Transactions.ListByAccountID(r.Context(), userID, kind, skip, limit)
	if err != nil {
		h.Logger.Error("list transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*models.Transaction{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Commission handles GET /account/commission.
func (h *AccountHandler) Commission(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	acc, err := h.Accounts.GetByID(r.Context(), userID)
	if err != nil {
		h.Logger.Error("get account", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	records, err := h.Transactions.ListByAccountID(r.Context(), userID, models.TxKindCommission, 0, 200)
	if err != nil {
		h.Logger.Error("list commission records", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []*models.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"commission_balance": acc.CommissionBalance,
		"records":            records,
	})
}

type rechargeRequest struct {
	Amount int64  `json:"amount"`
	Remark string `json:"remark"`
}

// Recharge handles POST /account/recharge, the direct top-up.
func (h *AccountHandler) Recharge(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req rechargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	entry, err := h.Ledger.Recharge(r.Context(), userID, req.Amount, req.Remark)
	if err != nil {
		writeDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type createOrderRequest struct {
	Amount            int64  `json:"amount"`
	PaymentMethodType string `json:"payment_method_type"`
}

// CreateRechargeOrder handles POST /account/recharge/orders.
func (h *AccountHandler) CreateRechargeOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	order, err := h.Ledger.CreateRechargeOrder(r.Context(), userID, req.Amount, req.PaymentMethodType)
	if err != nil {
		writeDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

type confirmOrderRequest struct {
	GatewayOrderID string `json:"gateway_order_id"`
}

// ConfirmRecharge handles POST /account/recharge/confirm. Replays of an
// already-confirmed order return 200 without crediting again.
func (h *AccountHandler) ConfirmRecharge(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req confirmOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GatewayOrderID == "" {
		writeError(w, http.StatusBadRequest, "gateway_order_id is required")
		return
	}
	existing, err := h.Orders.GetByGatewayOrderID(r.Context(), req.GatewayOrderID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "recharge order not found")
		return
	}
	if err != nil {
		h.Logger.Error("get recharge order", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing.AccountID != userID {
		writeError(w, http.StatusForbidden, "recharge order belongs to another account")
		return
	}
	order, err := h.Ledger.ConfirmRecharge(r.Context(), req.GatewayOrderID)
	if err != nil {
		writeDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// ListRechargeOrders handles GET /account/recharge/orders.
func (h *AccountHandler) ListRechargeOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	list, err := h.Orders.ListByAccountID(r.Context(), userID)
	if err != nil {
		h.Logger.Error("list recharge orders", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*models.RechargeOrder{}
	}
	writeJSON(w, http.StatusOK, list)
}

type createPaymentMethodRequest struct {
	Type       string `json:"type"`
	MaskedInfo string `json:"masked_info"`
	IsDefault  bool   `json:"is_default"`
}

// CreatePaymentMethod handles POST /account/payment-methods.
func (h *AccountHandler) CreatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req createPaymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !models.ValidPaymentType(req.Type) {
		writeError(w, http.StatusBadRequest, "unsupported payment method type")
		return
	}
	m := &models.PaymentMethod{
		AccountID:  userID,
		Type:       req.Type,
		MaskedInfo: req.MaskedInfo,
		IsDefault:  req.IsDefault,
	}
	if err := h.PaymentMethods.Create(r.Context(), m); err != nil {
		h.Logger.Error("create payment method", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// ListPaymentMethods handles GET /account/payment-methods.
func (h *AccountHandler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	list, err := h.PaymentMethods.ListByAccountID(r.Context(), userID)
	if err != nil {
		h.Logger.Error("list payment methods", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*models.PaymentMethod{}
	}
	writeJSON(w, http.StatusOK, list)
}

// DeletePaymentMethod handles DELETE /account/payment-methods/{id}.
func (h *AccountHandler) DeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "/account/payment-methods/")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid payment method id")
		return
	}
	deleted, err := h.PaymentMethods.Delete(r.Context(), userID, id)
	if err != nil {
		h.Logger.Error("delete payment method", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "payment method not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type receivingAccountRequest struct {
	Type   string `json:"receiving_account_type"`
	Name   string `json:"receiving_account_name"`
	Number string `json:"receiving_account_number"`
}

// GetReceivingAccount handles GET /account/receiving-account.
func (h *AccountHandler) GetReceivingAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	acc, err := h.Accounts.GetByID(r.Context(), userID)
	if err != nil {
		h.Logger.Error("get account", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"receiving_account_type":   acc.ReceivingAccountType,
		"receiving_account_name":   acc.ReceivingAccountName,
		"receiving_account_number": acc.ReceivingAccountNumber,
		"configured":               acc.HasReceivingAccount(),
	})
}

// UpdateReceivingAccount handles PATCH /account/receiving-account.
func (h *AccountHandler) UpdateReceivingAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req receivingAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Number == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "receiving_account_name and receiving_account_number are required")
		return
	}
	if err := h.Accounts.UpdateReceivingAccount(r.Context(), userID, req.Type, req.Name, req.Number); err != nil {
		h.Logger.Error("update receiving account", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
