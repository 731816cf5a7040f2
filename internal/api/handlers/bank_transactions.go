package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/optifi/internal/api/middleware"
	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/jobs"
	"github.com/dvloznov/optifi/internal/pipeline"
	"github.com/dvloznov/optifi/internal/store"
	"github.com/rs/zerolog"
)

// BankTransactionsHandler serves the bank view and enqueues syncs.
type BankTransactionsHandler struct {
	repo      store.Repository
	publisher jobs.Publisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewBankTransactionsHandler creates a new bank transactions handler.
func NewBankTransactionsHandler(repo store.Repository, publisher jobs.Publisher, log zerolog.Logger) *BankTransactionsHandler {
	return &BankTransactionsHandler{
		repo:      repo,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

type syncRequest struct {
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Days         int    `json:"days"`
	StartDaysAgo *int   `json:"start_days_ago"`
	DryRun       bool   `json:"dry_run"`
	Atomic       bool   `json:"atomic"`
}

// EnqueueSync handles POST /api/bank-transactions/sync
func (h *BankTransactionsHandler) EnqueueSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	window, err := h.syncWindow(req)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := &jobs.SyncJob{
		StartDate: window.Start.String(),
		EndDate:   window.End.String(),
		DryRun:    req.DryRun,
		Atomic:    req.Atomic,
	}
	if err := h.publisher.PublishSync(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue sync job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue sync job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("window", window.String()).Msg("Sync job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"status":     string(job.Status),
		"start_date": job.StartDate,
		"end_date":   job.EndDate,
	})
}

func (h *BankTransactionsHandler) syncWindow(req syncRequest) (domain.DateRange, error) {
	if req.StartDate != "" || req.EndDate != "" {
		return domain.ParseDateRange(req.StartDate, req.EndDate)
	}
	days := req.Days
	if days == 0 {
		days = pipeline.DefaultWindowDays
	}
	startDaysAgo := domain.DefaultStartDaysAgo
	if req.StartDaysAgo != nil {
		if *req.StartDaysAgo < 0 {
			return domain.DateRange{}, fmt.Errorf("%w: start_days_ago must not be negative", domain.ErrInvalidWindow)
		}
		startDaysAgo = *req.StartDaysAgo
	}
	return domain.LastNDays(h.now(), days, startDaysAgo)
}

// List handles GET /api/bank-transactions
func (h *BankTransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.repo.ListBankTransactions(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list bank transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list bank transactions")
		return
	}

	view := pipeline.RecentView(rows, limit)
	if view == nil {
		view = []domain.BankTransaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": view,
		"count":        len(view),
		"total":        len(rows),
	})
}

// Preview handles GET /api/bank-transactions/preview
// It runs the pipeline without writing and returns the most recent rows.
func (h *BankTransactionsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var window domain.DateRange
	var err error
	if query.Get("start_date") != "" || query.Get("end_date") != "" {
		window, err = domain.ParseDateRange(query.Get("start_date"), query.Get("end_date"))
	} else {
		window, err = domain.LastNDays(h.now(), pipeline.DefaultWindowDays, domain.DefaultStartDaysAgo)
	}
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := queryInt(r, "limit", pipeline.DefaultRecentViewSize)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := pipeline.Prepare(r.Context(), h.repo, window)
	if err != nil {
		h.log.Error().Err(err).Str("window", window.String()).Msg("Failed to prepare bank view")
		var fetchErr *pipeline.FetchError
		if errors.As(err, &fetchErr) {
			middleware.WriteError(w, http.StatusBadGateway, err.Error())
			return
		}
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to prepare bank view")
		return
	}

	view := pipeline.RecentView(state.Batch, limit)
	if view == nil {
		view = []domain.BankTransaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"window":           window,
		"deposit_count":    len(state.Deposits),
		"withdrawal_count": len(state.Withdrawals),
		"total":            len(state.Batch),
		"transactions":     view,
	})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}
