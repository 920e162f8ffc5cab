// internal/generator/http_generator.go
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPGenerator calls a JSON completion endpoint that accepts the campaign
// prompt plus recipient context and responds with {subject, body}.
type HTTPGenerator struct {
	URL    string
	APIKey string
	Model  string
	Client *http.Client
}

func NewHTTPGenerator(url, apiKey, model string) *HTTPGenerator {
	return &HTTPGenerator{
		URL:    url,
		APIKey: apiKey,
		Model:  model,
		Client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *HTTPGenerator) Generate(ctx context.Context, p Prompt, rc Context) (*Draft, error) {
	payload := struct {
		Model     string  `json:"model"`
		Prompt    Prompt  `json:"prompt"`
		Recipient Context `json:"recipient"`
	}{
		Model:     g.Model,
		Prompt:    p,
		Recipient: rc,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.APIKey)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("generator returned %d: %s", resp.StatusCode, string(b))
	}

	var draft Draft
	if err := json.NewDecoder(resp.Body).Decode(&draft); err != nil {
		return nil, fmt.Errorf("failed to decode generator response: %w", err)
	}
	if draft.Subject == "" || draft.Body == "" {
		return nil, fmt.Errorf("generator returned empty subject or body")
	}
	return &draft, nil
}

var _ ContentGenerator = (*HTTPGenerator)(nil)
