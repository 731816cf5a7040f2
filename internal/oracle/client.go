package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/logger"
)

// ReconcilePath is the oracle's match endpoint.
const ReconcilePath = "/reconcile"

// maxResponseBytes bounds how much of an oracle response is read.
const maxResponseBytes = 10 << 20

// HTTPClient calls a remote oracle that speaks the /reconcile contract.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the oracle at baseURL. A nil httpClient
// uses http.DefaultClient; callers set timeouts there or on ctx.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  httpClient,
	}
}

// Match implements Matcher.
func (c *HTTPClient) Match(ctx context.Context, req Request) (*Partition, error) {
	body, err := json.Marshal(normalizeRequest(req))
	if err != nil {
		return nil, fmt.Errorf("Match: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ReconcilePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("Match: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log := logger.FromContext(ctx)
	log.Debug().
		Int("bank_transactions", len(req.BankTransactions)).
		Int("app_transactions", len(req.AppTransactions)).
		Str("url", httpReq.URL.String()).
		Msg("Calling match oracle")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("Match: post: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("Match: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(payload)}
	}

	return ParsePartition(string(payload))
}

// normalizeRequest replaces nil slices so both arrays are always sent.
func normalizeRequest(req Request) Request {
	if req.BankTransactions == nil {
		req.BankTransactions = []domain.BankTransaction{}
	}
	if req.AppTransactions == nil {
		req.AppTransactions = []domain.LedgerEntry{}
	}
	return req
}

var _ Matcher = (*HTTPClient)(nil)
