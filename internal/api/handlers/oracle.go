package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dvloznov/optifi/internal/api/middleware"
	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/oracle"
	"github.com/rs/zerolog"
)

// MaxProxyBodyBytes caps the /reconcile request body.
const MaxProxyBodyBytes = 5 << 20

const (
	msgMissingKey    = "Missing GEMINI_API_KEY"
	msgArraysMissing = "bank_transactions and app_transactions arrays required"
	msgParseFailed   = "Failed to parse model output"
)

// ProxyHandler exposes a Matcher as the POST /reconcile contract.
type ProxyHandler struct {
	matcher oracle.Matcher
	log     zerolog.Logger
}

// NewProxyHandler creates a proxy handler. A nil matcher means no API key is
// configured and every request fails with 500.
func NewProxyHandler(matcher oracle.Matcher, log zerolog.Logger) *ProxyHandler {
	return &ProxyHandler{matcher: matcher, log: log}
}

// Reconcile handles POST /reconcile
func (h *ProxyHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if h.matcher == nil {
		middleware.WriteError(w, http.StatusInternalServerError, msgMissingKey)
		return
	}

	var body struct {
		BankTransactions json.RawMessage `json:"bank_transactions"`
		AppTransactions  json.RawMessage `json:"app_transactions"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxProxyBodyBytes)).Decode(&body); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, msgArraysMissing)
		return
	}
	if !isJSONArray(body.BankTransactions) || !isJSONArray(body.AppTransactions) {
		middleware.WriteError(w, http.StatusBadRequest, msgArraysMissing)
		return
	}

	var req oracle.Request
	if err := json.Unmarshal(body.BankTransactions, &req.BankTransactions); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid bank_transactions: "+err.Error())
		return
	}
	if err := json.Unmarshal(body.AppTransactions, &req.AppTransactions); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid app_transactions: "+err.Error())
		return
	}
	if req.BankTransactions == nil {
		req.BankTransactions = []domain.BankTransaction{}
	}
	if req.AppTransactions == nil {
		req.AppTransactions = []domain.LedgerEntry{}
	}

	partition, err := h.matcher.Match(r.Context(), req)
	if err != nil {
		writeOracleError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, partition)
}

func isJSONArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

// writeOracleError maps matcher failures onto the proxy contract: upstream
// statuses pass through, unparseable output is a 502 carrying the raw text,
// anything else is a 500.
func writeOracleError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var statusErr *oracle.StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode
		if code < 400 || code > 599 {
			code = http.StatusBadGateway
		}
		log.Warn().Int("upstream_status", statusErr.StatusCode).Msg("Match oracle returned an error")
		middleware.WriteError(w, code, statusErr.Body)
		return
	}

	var parseErr *oracle.ParseError
	if errors.As(err, &parseErr) {
		log.Warn().Err(parseErr.Err).Msg("Match oracle output could not be parsed")
		middleware.WriteJSON(w, http.StatusBadGateway, map[string]string{
			"error": msgParseFailed,
			"raw":   parseErr.Raw,
		})
		return
	}

	if errors.Is(err, oracle.ErrMissingCredential) {
		middleware.WriteError(w, http.StatusInternalServerError, msgMissingKey)
		return
	}

	log.Error().Err(err).Msg("Reconciliation failed")
	middleware.WriteError(w, http.StatusInternalServerError, err.Error())
}
