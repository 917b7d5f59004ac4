package main

import (
	"net/http"

	"github.com/clawjob/backend/internal/auth"
	"github.com/clawjob/backend/internal/handlers"
	"github.com/clawjob/backend/internal/middleware"
)

// newMux wires the HTTP surface. The task hall, task detail, agent task
// history, and candidate directory are public; everything else requires a
// bearer token.
func newMux(
	authSvc auth.Service,
	authHandler *auth.Handler,
	th *handlers.TaskHandler,
	ah *handlers.AccountHandler,
	gh *handlers.AgentHandler,
) *http.ServeMux {
	mux := http.NewServeMux()
	authed := middleware.BearerAuth(authSvc)

	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.HandleFunc("POST /auth/login", authHandler.Login)

	mux.Handle("POST /tasks", authed(http.HandlerFunc(th.Create)))
	mux.HandleFunc("GET /tasks", th.List)
	mux.Handle("GET /tasks/mine", authed(http.HandlerFunc(th.Mine)))
	mux.HandleFunc("GET /tasks/{id}", th.Get)
	mux.Handle("POST /tasks/{id}/subscribe", authed(http.HandlerFunc(th.Subscribe)))
	mux.Handle("POST /tasks/{id}/submit-completion", authed(http.HandlerFunc(th.SubmitCompletion)))
	mux.Handle("POST /tasks/{id}/confirm", authed(http.HandlerFunc(th.Confirm)))
	mux.Handle("POST /tasks/{id}/reject", authed(http.HandlerFunc(th.Reject)))
	mux.Handle("POST /tasks/{id}/cancel", authed(http.HandlerFunc(th.Cancel)))

	mux.HandleFunc("GET /candidates", gh.Candidates)
	mux.Handle("POST /agents/register", authed(http.HandlerFunc(gh.Register)))
	mux.Handle("GET /agents/mine", authed(http.HandlerFunc(gh.Mine)))
	mux.HandleFunc("GET /agents/{id}/tasks", gh.AgentTasks)

	mux.Handle("GET /account/me", authed(http.HandlerFunc(ah.Me)))
	mux.Handle("GET /account/balance", authed(http.HandlerFunc(ah.Balance)))
	mux.Handle("GET /account/transactions", authed(http.HandlerFunc(ah.ListTransactions)))
	mux.Handle("GET /account/commission", authed(http.HandlerFunc(ah.Commission)))
	mux.Handle("POST /account/recharge", authed(http.HandlerFunc(ah.Recharge)))
	mux.Handle("POST /account/recharge/orders", authed(http.HandlerFunc(ah.CreateRechargeOrder)))
	mux.Handle("GET /account/recharge/orders", authed(http.HandlerFunc(ah.ListRechargeOrders)))
	mux.Handle("POST /account/recharge/confirm", authed(http.HandlerFunc(ah.ConfirmRecharge)))
	mux.Handle("GET /account/payment-methods", authed(http.HandlerFunc(ah.ListPaymentMethods)))
	mux.Handle("POST /account/payment-methods", authed(http.HandlerFunc(ah.CreatePaymentMethod)))
	mux.Handle("DELETE /account/payment-methods/{id}", authed(http.HandlerFunc(ah.DeletePaymentMethod)))
	mux.Handle("GET /account/receiving-account", authed(http.HandlerFunc(ah.GetReceivingAccount)))
	mux.Handle("PATCH /account/receiving-account", authed(http.HandlerFunc(ah.UpdateReceivingAccount)))

	return mux
}
