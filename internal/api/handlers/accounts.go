package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/kids-bank/internal/api/middleware"
	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/ledger"
	"github.com/dvloznov/kids-bank/internal/state"
)

// DefaultGraphDays is the graph window when the request does not set one.
const DefaultGraphDays = 30

// AccountView is an account as returned by the API, with derived balances.
type AccountView struct {
	ID      string         `json:"id"`
	Balance float64        `json:"balance"`
	Goals   []GoalView     `json:"goals"`
	Account domain.Account `json:"account"`
}

// GoalView is a goal with its current balance and progress percentage.
type GoalView struct {
	domain.Goal
	Balance  float64 `json:"balance"`
	Progress float64 `json:"progress"`
}

func newAccountView(id string, acc domain.Account) AccountView {
	goals := make([]GoalView, 0, len(acc.Goals))
	for _, g := range acc.Goals {
		goals = append(goals, GoalView{
			Goal:     g,
			Balance:  ledger.GoalBalance(acc.Transactions, g.ID),
			Progress: ledger.GoalProgress(acc.Transactions, g),
		})
	}
	return AccountView{
		ID:      id,
		Balance: ledger.Balance(acc.Transactions),
		Goals:   goals,
		Account: acc,
	}
}

// AccountsHandler handles account, transaction, goal and allowance endpoints.
type AccountsHandler struct {
	state *state.State
	now   func() time.Time
	log   zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(st *state.State, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{state: st, now: time.Now, log: log}
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := h.state.Accounts()
	views := make([]AccountView, 0, len(accounts))
	for _, id := range accounts.IDs() {
		views = append(views, newAccountView(id, accounts[id]))
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": views,
		"count":    len(views),
	})
}

// GetAccount handles GET /api/accounts/{id}
func (h *AccountsHandler) GetAccount(w http.ResponseWriter, r *http.Request, accountID string) {
	acc, err := h.state.Account(accountID)
	if err != nil {
		writeStateError(w, h.log, err, "Failed to get account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newAccountView(accountID, acc))
}

// CreateAccount handles POST /api/accounts
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Image string `json:"image"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := h.state.AddAccount(r.Context(), req.Name, req.Image)
	if err != nil {
		writeStateError(w, h.log, err, "Failed to create account")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// UpdateAccount handles PUT /api/accounts/{id}. Absent fields are unchanged.
func (h *AccountsHandler) UpdateAccount(w http.ResponseWriter, r *http.Request, accountID string) {
	var req struct {
		Name  *string `json:"name"`
		Image *string `json:"image"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	if req.Name != nil {
		if *req.Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Name cannot be empty")
			return
		}
		if err := h.state.RenameAccount(ctx, accountID, *req.Name); err != nil {
			writeStateError(w, h.log, err, "Failed to rename account")
			return
		}
	}
	if req.Image != nil {
		if err := h.state.SetAccountImage(ctx, accountID, *req.Image); err != nil {
			writeStateError(w, h.log, err, "Failed to update account image")
			return
		}
	}
	h.GetAccount(w, r, accountID)
}

// DeleteAccount handles DELETE /api/accounts/{id}
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request, accountID string) {
	if err := h.state.RemoveAccount(r.Context(), accountID); err != nil {
		writeStateError(w, h.log, err, "Failed to delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddTransaction handles POST /api/accounts/{id}/transactions
func (h *AccountsHandler) AddTransaction(w http.ResponseWriter, r *http.Request, accountID string) {
	var req struct {
		Date        string  `json:"date"`
		Amount      float64 `json:"amount"`
		Description string  `json:"description"`
		Category    string  `json:"category"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Amount == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Amount is required")
		return
	}
	if req.Date != "" && ledger.ParseDate(req.Date).IsZero() {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid date format")
		return
	}

	tx, err := h.state.AddTransaction(r.Context(), accountID, domain.Transaction{
		Date:        req.Date,
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		writeStateError(w, h.log, err, "Failed to add transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// DeleteTransaction handles DELETE /api/accounts/{id}/transactions/{txID}
func (h *AccountsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, accountID, txID string) {
	if err := h.state.DeleteTransaction(r.Context(), accountID, txID); err != nil {
		writeStateError(w, h.log, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Graph handles GET /api/accounts/{id}/graph?days=N
func (h *AccountsHandler) Graph(w http.ResponseWriter, r *http.Request, accountID string) {
	days := DefaultGraphDays
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 366 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid days")
			return
		}
		days = n
	}

	acc, err := h.state.Account(accountID)
	if err != nil {
		writeStateError(w, h.log, err, "Failed to get account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ledger.GraphData(acc.Transactions, days, h.now()))
}

// AddGoal handles POST /api/accounts/{id}/goals
func (h *AccountsHandler) AddGoal(w http.ResponseWriter, r *http.Request, accountID string) {
	var req struct {
		Name   string  `json:"name"`
		Target float64 `json:"target"`
		Icon   string  `json:"icon"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	goal, err := h.state.AddGoal(r.Context(), accountID, req.Name, req.Target, req.Icon)
	if err != nil {
		writeStateError(w, h.log, err, "Failed to add goal")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, goal)
}

// TransferGoal handles POST /api/accounts/{id}/goals/{goalID}/transfer
func (h *AccountsHandler) TransferGoal(w http.ResponseWriter, r *http.Request, accountID, goalID string) {
	var req struct {
		Amount  float64 `json:"amount"`
		Deposit bool    `json:"deposit"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	tx, err := h.state.TransferGoal(r.Context(), accountID, goalID, req.Amount, req.Deposit)
	if err != nil {
		writeStateError(w, h.log, err, "Failed to transfer goal funds")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// CloseGoal handles DELETE /api/accounts/{id}/goals/{goalID}, refunding the
// goal balance, and POST .../complete, which keeps the money spent.
func (h *AccountsHandler) CloseGoal(w http.ResponseWriter, r *http.Request, accountID, goalID string, complete bool) {
	var err error
	if complete {
		err = h.state.CompleteGoal(r.Context(), accountID, goalID)
	} else {
		err = h.state.RemoveGoal(r.Context(), accountID, goalID)
	}
	if err != nil {
		writeStateError(w, h.log, err, "Failed to close goal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetAllowance handles PUT /api/accounts/{id}/allowance. A zero amount
// clears the allowance.
func (h *AccountsHandler) SetAllowance(w http.ResponseWriter, r *http.Request, accountID string) {
	var req domain.Allowance
	if !decodeBody(w, r, &req) {
		return
	}

	var al *domain.Allowance
	if req.Amount != 0 {
		if req.Interval != domain.AllowanceWeekly && req.Interval != domain.AllowanceMonthly {
			middleware.WriteError(w, http.StatusBadRequest, "Interval must be weekly or monthly")
			return
		}
		al = &req
	}

	if err := h.state.SetAllowance(r.Context(), accountID, al); err != nil {
		writeStateError(w, h.log, err, "Failed to set allowance")
		return
	}
	h.GetAccount(w, r, accountID)
}

// PayAllowances handles POST /api/allowances/pay
func (h *AccountsHandler) PayAllowances(w http.ResponseWriter, r *http.Request) {
	paid, err := h.state.PayAllowances(r.Context())
	if err != nil {
		writeStateError(w, h.log, err, "Failed to pay allowances")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"paid": paid})
}
