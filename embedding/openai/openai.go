package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"llm_proxy/embedding"
)

// Service implements embedding.Service against an OpenAI-compatible API
type Service struct {
	endpoint   string
	model      string
	apiKeyEnv  string
	client     *http.Client
	dimensions int
}

// New creates a new OpenAI embedding service
func New(endpoint string, model string, apiKeyEnvName string, dimensions int) *Service {
	return &Service{
		endpoint:   endpoint,
		model:      model,
		apiKeyEnv:  apiKeyEnvName,
		client:     &http.Client{Timeout: 30 * time.Second},
		dimensions: dimensions,
	}
}

// Get implements embedding.Service
func (s *Service) Get(ctx context.Context, text string) ([]float32, error) {
	requestBody := EmbeddingRequest{
		Model:          s.model,
		Input:          text,
		EncodingFormat: "float",
		Dimensions:     int32(s.dimensions),
	}
	requestBodyBytes, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("fail to marshal embedding request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("fail to create embedding request: %w", err)
	}
	apiKey := os.Getenv(s.apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: empty api key from env %s", embedding.ErrModelUnavailable, s.apiKeyEnv)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", embedding.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fail to read embedding response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding request fail: (%d) %s", resp.StatusCode, body)
	}
	var respBody EmbeddingResponse
	if err := json.Unmarshal(body, &respBody); err != nil {
		return nil, fmt.Errorf("fail to unmarshal embedding response: %w", err)
	}
	if len(respBody.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response data")
	}
	vec := respBody.Data[0].Embedding
	if s.dimensions > 0 && len(vec) != s.dimensions {
		return nil, fmt.Errorf("embedding dimension mismatch: want %d, got %d", s.dimensions, len(vec))
	}
	return embedding.Normalize(vec), nil
}
