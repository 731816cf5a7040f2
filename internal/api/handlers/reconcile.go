package handlers

import (
	"context"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/optifi/internal/api/middleware"
	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/financials"
	"github.com/dvloznov/optifi/internal/reconcile"
	"github.com/dvloznov/optifi/internal/store"
	"github.com/rs/zerolog"
)

// Reconciler runs a full-table reconciliation.
type Reconciler interface {
	Run(ctx context.Context) (*reconcile.Result, error)
}

// ReconcileHandler handles reconciliation of the stored tables.
type ReconcileHandler struct {
	reconciler Reconciler
	log        zerolog.Logger
}

// NewReconcileHandler creates a reconcile handler. A nil reconciler means no
// oracle is configured.
func NewReconcileHandler(reconciler Reconciler, log zerolog.Logger) *ReconcileHandler {
	return &ReconcileHandler{reconciler: reconciler, log: log}
}

// Run handles POST /api/reconcile
func (h *ReconcileHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.reconciler == nil {
		middleware.WriteError(w, http.StatusInternalServerError, msgMissingKey)
		return
	}

	res, err := h.reconciler.Run(r.Context())
	if err != nil {
		if res != nil {
			// The partition exists; only export or publish failed.
			h.log.Warn().Err(err).Str("reconcile_id", res.RunID).Msg("Reconciliation follow-up failed")
			middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
				"result":  res,
				"warning": err.Error(),
			})
			return
		}
		writeOracleError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"result": res})
}

// FinancialsHandler serves the monthly summary.
type FinancialsHandler struct {
	src store.SourceReader
	log zerolog.Logger
	now func() time.Time
}

// NewFinancialsHandler creates a new financials handler.
func NewFinancialsHandler(src store.SourceReader, log zerolog.Logger) *FinancialsHandler {
	return &FinancialsHandler{src: src, log: log, now: time.Now}
}

// Summary handles GET /api/financials?month=YYYY-MM
func (h *FinancialsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	day := civil.DateOf(h.now())
	if m := r.URL.Query().Get("month"); m != "" {
		t, err := time.Parse("2006-01", m)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid month format, expected YYYY-MM")
			return
		}
		day = civil.DateOf(t)
	}

	summary, err := financials.MonthlySummary(r.Context(), h.src, domain.MonthOf(day))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute monthly summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute monthly summary")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}
