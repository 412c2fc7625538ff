package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/typerace-go/internal/model"
)

// Character-count bounds per length category
func lengthBounds(length model.QuoteLength) (min, max int) {
	switch length {
	case model.QuoteLengthShort:
		return 1, 100
	case model.QuoteLengthLong:
		return 250, 430
	default:
		return 100, 250
	}
}

// HTTPProvider fetches passages from a quotable-style HTTP API
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPProvider creates a provider against the given API base URL
func NewHTTPProvider(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With(slog.String("component", "quote-provider")),
	}
}

var _ Provider = (*HTTPProvider)(nil)

type quoteResponse struct {
	Content string `json:"content"`
}

// Fetch requests a random quote within the category's character bounds
func (p *HTTPProvider) Fetch(ctx context.Context, length model.QuoteLength) (string, error) {
	min, max := lengthBounds(length)
	url := fmt.Sprintf("%s/quotes/random?minLength=%d&maxLength=%d", p.baseURL, min, max)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("quote API returned status %d: %s", resp.StatusCode, string(body))
	}

	// The random endpoint returns an array with a single quote
	var quotes []quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return "", fmt.Errorf("failed to decode quote response: %w", err)
	}
	if len(quotes) == 0 || quotes[0].Content == "" {
		return "", model.ErrNoQuote
	}

	p.logger.Debug("quote fetched",
		slog.String("length", string(length)),
		slog.Int("chars", len(quotes[0].Content)),
	)

	return quotes[0].Content, nil
}
