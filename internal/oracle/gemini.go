package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvloznov/optifi/internal/logger"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// SystemPrompt instructs the model how to match and what to return.
const SystemPrompt = "You are an expert accounting assistant. Given two datasets (bank transactions and app transactions), " +
	"match items that likely represent the same payment using date proximity (±3 days) and amount similarity " +
	"(exact or small rounding deltas). Return strict JSON with keys: matched (array of {bank, app}), " +
	"unmatched_bank (array of bank items), unmatched_app (array of app items). Do not include any text outside JSON."

// contentGenerator is the slice of *genai.Models the matcher uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiMatcher asks Gemini to partition the rows directly.
type GeminiMatcher struct {
	models contentGenerator
	model  string
}

// NewGeminiMatcher creates a matcher backed by the Gemini API. An empty model
// selects DefaultModelName.
func NewGeminiMatcher(ctx context.Context, apiKey, model string) (*GeminiMatcher, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiMatcher: create genai client: %w", err)
	}
	return newGeminiMatcher(client.Models, model), nil
}

func newGeminiMatcher(models contentGenerator, model string) *GeminiMatcher {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiMatcher{models: models, model: model}
}

// Match implements Matcher.
func (m *GeminiMatcher) Match(ctx context.Context, req Request) (*Partition, error) {
	payload, err := json.Marshal(normalizeRequest(req))
	if err != nil {
		return nil, fmt.Errorf("Match: marshal request: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(string(payload), genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		ResponseMIMEType:  "application/json",
	}

	resp, err := m.models.GenerateContent(ctx, m.model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &StatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
		}
		var apiErrPtr *genai.APIError
		if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
			return nil, &StatusError{StatusCode: apiErrPtr.Code, Body: apiErrPtr.Message}
		}
		return nil, fmt.Errorf("Match: generate content: %w", err)
	}

	raw := resp.Text()
	log := logger.FromContext(ctx)
	log.Debug().
		Str("model", m.model).
		Int("response_bytes", len(raw)).
		Msg("Match oracle responded")

	return ParsePartition(raw)
}

var _ Matcher = (*GeminiMatcher)(nil)
