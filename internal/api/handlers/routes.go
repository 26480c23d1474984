package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/kids-bank/internal/api/middleware"
)

// Handlers groups the endpoint handlers served by the API.
type Handlers struct {
	Accounts   *AccountsHandler
	Sync       *SyncHandler
	Export     *ExportHandler
	Categories *CategoriesHandler
}

// NewRouter registers every route and wraps the mux in the middleware chain.
func NewRouter(h Handlers, authToken string, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Accounts
	mux.HandleFunc("GET /api/accounts", h.Accounts.ListAccounts)
	mux.HandleFunc("POST /api/accounts", h.Accounts.CreateAccount)
	mux.HandleFunc("GET /api/accounts/{id}", func(w http.ResponseWriter, r *http.Request) {
		h.Accounts.GetAccount(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("PUT /api/accounts/{id}", func(w http.ResponseWriter, r *http.Request) {
		h.Accounts.UpdateAccount(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("DELETE /api/accounts/{id}", func(w http.ResponseWriter, r *http.Request) {
		h.Accounts.DeleteAccount(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /api/accounts/{id}/graph", func(w http.ResponseWriter, r *http.Request) {
		h.Accounts.Graph(w, r, r.PathValue("id"))
	})

	// Transactions
	mux.HandleFunc("POST /api/accounts/{id}/transactions", func(w http.ResponseWriter, r *http.Request) {
		h.Accounts.AddTransaction(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("DELETE /api/accounts/{id}/transactions/{txID}", func(w http.ResponseWriter, r *http.Request) {
		h.Accounts.DeleteTransaction(w, r, r.PathValue("id"), r.PathValue("txID"))
	})

	// Goals and allowance
	mux.HandleFunc("POST /api/accounts/{id}/goals", func(w http.ResponseWriter, r *http.Request) {
		h.Accounts.AddGoal(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /api/accounts/{id}/goals/{goalID}/transfer", func(w http.ResponseWriter, r *http.Request) {
		h.Accounts.TransferGoal(w, r, r.PathValue("id"), r.PathValue("goalID"))
	})
	mux.HandleFunc("POST /api/accounts/{id}/goals/{goalID}/complete", func(w http.ResponseWriter, r *http.Request) {
		h.Accounts.CloseGoal(w, r, r.PathValue("id"), r.PathValue("goalID"), true)
	})
	mux.HandleFunc("DELETE /api/accounts/{id}/goals/{goalID}", func(w http.ResponseWriter, r *http.Request) {
		h.Accounts.CloseGoal(w, r, r.PathValue("id"), r.PathValue("goalID"), false)
	})
	mux.HandleFunc("PUT /api/accounts/{id}/allowance", func(w http.ResponseWriter, r *http.Request) {
		h.Accounts.SetAllowance(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /api/allowances/pay", h.Accounts.PayAllowances)

	// Sync
	mux.HandleFunc("POST /api/sync", h.Sync.TriggerSync)
	mux.HandleFunc("GET /api/sync/status", h.Sync.GetStatus)
	mux.HandleFunc("GET /api/sync/runs", h.Sync.ListRuns)
	mux.HandleFunc("PUT /api/sync/enabled", h.Sync.SetEnabled)
	mux.HandleFunc("POST /api/sync/keys", h.Sync.GenerateKeys)
	mux.HandleFunc("GET /api/sync/pairing", h.Sync.GetPairing)
	mux.HandleFunc("POST /api/sync/pairing", h.Sync.ImportPairing)
	mux.HandleFunc("GET /api/sync/config", h.Sync.GetCloudConfig)
	mux.HandleFunc("PUT /api/sync/config", h.Sync.SetCloudConfig)
	mux.HandleFunc("POST /api/device/{event}", func(w http.ResponseWriter, r *http.Request) {
		h.Sync.DeviceEvent(w, r, r.PathValue("event"))
	})

	// Export and import
	mux.HandleFunc("GET /api/export/json", h.Export.ExportJSON)
	mux.HandleFunc("GET /api/export/csv", h.Export.ExportCSV)
	mux.HandleFunc("POST /api/import", h.Export.Import)

	// Categories
	mux.HandleFunc("GET /api/categories", h.Categories.ListCategories)
	mux.HandleFunc("POST /api/categories/suggest", h.Categories.Suggest)

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(authToken)(mux),
				),
			),
		),
	)
}
