package oracle

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// mockGenerator is a mock implementation of contentGenerator.
type mockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func TestNewGeminiMatcher_MissingKey(t *testing.T) {
	_, err := NewGeminiMatcher(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestGeminiMatcher_Match(t *testing.T) {
	var gotModel string
	var gotConfig *genai.GenerateContentConfig
	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel = model
			gotConfig = config
			require.Len(t, contents, 1)
			require.Len(t, contents[0].Parts, 1)
			assert.Contains(t, contents[0].Parts[0].Text, `"bank_transactions"`)
			return textResponse("```json\n" + validPartition + "\n```"), nil
		},
	}

	p, err := newGeminiMatcher(gen, "").Match(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Len(t, p.Matched, 1)

	assert.Equal(t, DefaultModelName, gotModel)
	require.NotNil(t, gotConfig.Temperature)
	assert.Equal(t, float32(0), *gotConfig.Temperature)
	assert.Contains(t, gotConfig.SystemInstruction.Parts[0].Text, "±3 days")
}

func TestGeminiMatcher_Match_APIError(t *testing.T) {
	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, genai.APIError{Code: http.StatusServiceUnavailable, Message: "overloaded"}
		},
	}

	_, err := newGeminiMatcher(gen, "custom-model").Match(context.Background(), sampleRequest())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "overloaded", se.Body)
}

func TestGeminiMatcher_Match_Unparseable(t *testing.T) {
	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse("Sorry, I cannot help with that."), nil
		},
	}

	_, err := newGeminiMatcher(gen, "").Match(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrNoJSONObject)
}
