package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/optifi/internal/api/middleware"
	"github.com/dvloznov/optifi/internal/jobs"
	"github.com/dvloznov/optifi/internal/oracle"
	"github.com/dvloznov/optifi/internal/store"
	"github.com/rs/zerolog"
)

// Deps are the services the API is built from. Matcher and Reconciler may be
// nil when no oracle is configured.
type Deps struct {
	Repo       store.Repository
	Publisher  jobs.Publisher
	JobStore   jobs.JobStore
	Matcher    oracle.Matcher
	Reconciler Reconciler
}

// NewRouter registers every route and wraps them in the standard middleware.
func NewRouter(d Deps, log zerolog.Logger) http.Handler {
	proxy := NewProxyHandler(d.Matcher, log)
	bank := NewBankTransactionsHandler(d.Repo, d.Publisher, log)
	recon := NewReconcileHandler(d.Reconciler, log)
	fin := NewFinancialsHandler(d.Repo, log)
	jobsHandler := NewJobsHandler(d.JobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok":   true,
			"time": time.Now().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/reconcile", only(http.MethodPost, proxy.Reconcile))

	mux.HandleFunc("/api/bank-transactions", only(http.MethodGet, bank.List))
	mux.HandleFunc("/api/bank-transactions/preview", only(http.MethodGet, bank.Preview))
	mux.HandleFunc("/api/bank-transactions/sync", only(http.MethodPost, bank.EnqueueSync))

	mux.HandleFunc("/api/reconcile", only(http.MethodPost, recon.Run))
	mux.HandleFunc("/api/financials", only(http.MethodGet, fin.Summary))

	mux.HandleFunc("/api/jobs", only(http.MethodGet, jobsHandler.ListJobs))
	mux.HandleFunc("/api/jobs/", only(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	}))

	return middleware.Chain(mux,
		middleware.RequestID(log),
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.CORS,
	)
}

func only(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
