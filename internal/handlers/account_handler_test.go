package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clawjob/backend/internal/ledger"
	"github.com/clawjob/backend/internal/models"
)

type stubLedger struct {
	entry *models.Transaction
	order *models.RechargeOrder
	err   error

	confirmedGatewayID string
}

func (s *stubLedger) Recharge(_ context.Context, _ int64, _ int64, _ string) (*models.Transaction, error) {
	return s.entry, s.err
}

func (s *stubLedger) CreateRechargeOrder(_ context.Context, _ int64, _ int64, _ string) (*models.RechargeOrder, error) {
	return s.order, s.err
}

func (s *stubLedger) ConfirmRecharge(_ context.Context, gatewayOrderID string) (*models.RechargeOrder, error) {
	s.confirmedGatewayID = gatewayOrderID
	return s.order, s.err
}

type stubAccountReader struct {
	accounts map[int64]*models.Account
	updated  bool
}

func (s *stubAccountReader) GetByID(_ context.Context, id int64) (*models.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return a, nil
}

func (s *stubAccountReader) UpdateReceivingAccount(_ context.Context, id int64, typ, name, number string) error {
	a, ok := s.accounts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.ReceivingAccountType = typ
	a.ReceivingAccountName = name
	a.ReceivingAccountNumber = number
	s.updated = true
	return nil
}

type stubTxReader struct{ list []*models.Transaction }

func (s *stubTxReader) ListByAccountID(_ context.Context, _ int64, kind string, _, _ int) ([]*models.Transaction, error) {
	if kind == "" {
		return s.list, nil
	}
	var out []*models.Transaction
	for _, tx := range s.list {
		if tx.Kind == kind {
			out = append(out, tx)
		}
	}
	return out, nil
}

type stubOrderReader struct{ orders map[string]*models.RechargeOrder }

func (s *stubOrderReader) GetByGatewayOrderID(_ context.Context, id string) (*models.RechargeOrder, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return o, nil
}

func (s *stubOrderReader) ListByAccountID(_ context.Context, accountID int64) ([]*models.RechargeOrder, error) {
	var out []*models.RechargeOrder
	for _, o := range s.orders {
		if o.AccountID == accountID {
			out = append(out, o)
		}
	}
	return out, nil
}

type stubPaymentMethods struct {
	methods []*models.PaymentMethod
	nextID  int64
}

func (s *stubPaymentMethods) Create(_ context.Context, m *models.PaymentMethod) error {
	s.nextID++
	m.ID = s.nextID
	s.methods = append(s.methods, m)
	return nil
}

func (s *stubPaymentMethods) ListByAccountID(_ context.Context, accountID int64) ([]*models.PaymentMethod, error) {
	var out []*models.PaymentMethod
	for _, m := range s.methods {
		if m.AccountID == accountID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubPaymentMethods) Delete(_ context.Context, accountID, id int64) (bool, error) {
	for i, m := range s.methods {
		if m.ID == id && m.AccountID == accountID {
			s.methods = append(s.methods[:i], s.methods[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func newAccountHandler(l *stubLedger) (*AccountHandler, *stubAccountReader) {
	accounts := &stubAccountReader{accounts: map[int64]*models.Account{
		7: {ID: 7, Username: "alice", Balance: 1000, CommissionBalance: 30},
	}}
	if l == nil {
		l = &stubLedger{}
	}
	h := &AccountHandler{
		Ledger:         l,
		Accounts:       accounts,
		Transactions:   &stubTxReader{},
		Orders:         &stubOrderReader{orders: map[string]*models.RechargeOrder{}},
		PaymentMethods: &stubPaymentMethods{},
		Logger:         discard(),
	}
	return h, accounts
}

func TestBalance(t *testing.T) {
	h, _ := newAccountHandler(nil)
	rec := httptest.NewRecorder()
	h.Balance(rec, authedRequest(http.MethodGet, "/account/balance", "", 7))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var resp map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["balance"] != 1000 || resp["commission_balance"] != 30 {
		t.Errorf("balances: %+v", resp)
	}
}

func TestRecharge(t *testing.T) {
	l := &stubLedger{entry: &models.Transaction{ID: 1, AccountID: 7, Delta: 500, Kind: models.TxKindRecharge}}
	h, _ := newAccountHandler(l)

	rec := httptest.NewRecorder()
	h.Recharge(rec, authedRequest(http.MethodPost, "/account/recharge", `{"amount":500}`, 7))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestRechargeInvalidAmount(t *testing.T) {
	l := &stubLedger{err: fmt.Errorf("amount must be positive: %w", ledger.ErrInvalidAmount)}
	h, _ := newAccountHandler(l)

	rec := httptest.NewRecorder()
	h.Recharge(rec, authedRequest(http.MethodPost, "/account/recharge", `{"amount":-5}`, 7))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func TestConfirmRechargeOwnership(t *testing.T) {
	paid := time.Now()
	l := &stubLedger{order: &models.RechargeOrder{ID: 1, AccountID: 7, Status: models.OrderStatusConfirmed, PaidAt: &paid}}
	h, _ := newAccountHandler(l)
	h.Orders = &stubOrderReader{orders: map[string]*models.RechargeOrder{
		"ord_mine":   {ID: 1, AccountID: 7, GatewayOrderID: "ord_mine", Status: models.OrderStatusPending},
		"ord_theirs": {ID: 2, AccountID: 8, GatewayOrderID: "ord_theirs", Status: models.OrderStatusPending},
	}}

	rec := httptest.NewRecorder()
	h.ConfirmRecharge(rec, authedRequest(http.MethodPost, "/account/recharge/confirm", `{"gateway_order_id":"ord_mine"}`, 7))
	if rec.Code != http.StatusOK {
		t.Errorf("own order: got %d, body %s", rec.Code, rec.Body.String())
	}
	if l.confirmedGatewayID != "ord_mine" {
		t.Errorf("confirmed: %q", l.confirmedGatewayID)
	}

	rec = httptest.NewRecorder()
	h.ConfirmRecharge(rec, authedRequest(http.MethodPost, "/account/recharge/confirm", `{"gateway_order_id":"ord_theirs"}`, 7))
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign order: got %d, want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ConfirmRecharge(rec, authedRequest(http.MethodPost, "/account/recharge/confirm", `{"gateway_order_id":"ord_missing"}`, 7))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing order: got %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ConfirmRecharge(rec, authedRequest(http.MethodPost, "/account/recharge/confirm", `{}`, 7))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing id: got %d, want 400", rec.Code)
	}
}

func TestConfirmRechargeNotPending(t *testing.T) {
	l := &stubLedger{err: fmt.Errorf("order failed: %w", ledger.ErrOrderNotPending)}
	h, _ := newAccountHandler(l)
	h.Orders = &stubOrderReader{orders: map[string]*models.RechargeOrder{
		"ord_failed": {ID: 1, AccountID: 7, GatewayOrderID: "ord_failed", Status: models.OrderStatusFailed},
	}}

	rec := httptest.NewRecorder()
	h.ConfirmRecharge(rec, authedRequest(http.MethodPost, "/account/recharge/confirm", `{"gateway_order_id":"ord_failed"}`, 7))
	if rec.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", rec.Code)
	}
}

func TestPaymentMethods(t *testing.T) {
	h, _ := newAccountHandler(nil)

	rec := httptest.NewRecorder()
	h.CreatePaymentMethod(rec, authedRequest(http.MethodPost, "/account/payment-methods", `{"type":"alipay","masked_info":"ali***"}`, 7))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.CreatePaymentMethod(rec, authedRequest(http.MethodPost, "/account/payment-methods", `{"type":"barter"}`, 7))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported type: got %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.DeletePaymentMethod(rec, authedRequest(http.MethodDelete, "/account/payment-methods/1", "", 7))
	if rec.Code != http.StatusOK {
		t.Errorf("delete own: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.DeletePaymentMethod(rec, authedRequest(http.MethodDelete, "/account/payment-methods/1", "", 8))
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete missing: got %d, want 404", rec.Code)
	}
}

func TestReceivingAccount(t *testing.T) {
	h, accounts := newAccountHandler(nil)

	rec := httptest.NewRecorder()
	h.GetReceivingAccount(rec, authedRequest(http.MethodGet, "/account/receiving-account", "", 7))
	var before map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &before); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if before["configured"] != false {
		t.Errorf("configured before setup: %v", before["configured"])
	}

	body := `{"receiving_account_type":"alipay","receiving_account_name":"Alice","receiving_account_number":"alice@pay"}`
	rec = httptest.NewRecorder()
	h.UpdateReceivingAccount(rec, authedRequest(http.MethodPatch, "/account/receiving-account", body, 7))
	if rec.Code != http.StatusOK {
		t.Fatalf("update: got %d", rec.Code)
	}
	if !accounts.updated {
		t.Error("store not updated")
	}

	rec = httptest.NewRecorder()
	h.GetReceivingAccount(rec, authedRequest(http.MethodGet, "/account/receiving-account", "", 7))
	var after map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &after); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if after["configured"] != true {
		t.Errorf("configured after setup: %v", after["configured"])
	}

	rec = httptest.NewRecorder()
	h.UpdateReceivingAccount(rec, authedRequest(http.MethodPatch, "/account/receiving-account", `{"receiving_account_name":"Alice"}`, 7))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing number: got %d, want 400", rec.Code)
	}
}
