package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPClient talks to the model service and the news API. It implements
// both Analyzer and HeadlineSource.
type HTTPClient struct {
	client *resty.Client
	apiKey string
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(time.Second)

	return &HTTPClient{client: client, apiKey: apiKey}
}

func (h *HTTPClient) Estimate(ctx context.Context, text string) (Sentiment, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"text": text}).
		Post("/classify")
	if err != nil {
		return Neutral(), fmt.Errorf("failed to classify text: %w", err)
	}
	if resp.StatusCode() != 200 {
		return Neutral(), fmt.Errorf("sentiment API error %d: %s", resp.StatusCode(), resp.String())
	}

	var s Sentiment
	if err := json.Unmarshal(resp.Body(), &s); err != nil {
		return Neutral(), fmt.Errorf("failed to parse sentiment response: %w", err)
	}

	s.Label = strings.ToLower(s.Label)
	switch s.Label {
	case LabelPositive, LabelNegative, LabelNeutral:
	default:
		return Neutral(), fmt.Errorf("unknown sentiment label: %s", s.Label)
	}
	return s, nil
}

func (h *HTTPClient) Headlines(ctx context.Context, symbol string) ([]string, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"token":  h.apiKey,
		}).
		Get("/news")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news for %s: %w", symbol, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("news API error %d for %s: %s", resp.StatusCode(), symbol, resp.String())
	}

	var articles []struct {
		Headline string `json:"headline"`
	}
	if err := json.Unmarshal(resp.Body(), &articles); err != nil {
		return nil, fmt.Errorf("failed to parse news response for %s: %w", symbol, err)
	}

	headlines := make([]string, 0, len(articles))
	for _, a := range articles {
		if a.Headline != "" {
			headlines = append(headlines, a.Headline)
		}
	}
	return headlines, nil
}
