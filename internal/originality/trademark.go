// internal/originality/trademark.go
package originality

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trendmint/internal/common/errors"
	"trendmint/internal/common/httpx"
)

// TrademarkMatch is one registered-mark hit for a keyword.
type TrademarkMatch struct {
	Serial string `json:"serial"`
	Mark   string `json:"mark"`
}

// TrademarkScreen checks candidate keywords against a trademark search
// API before the asset ever reaches the originality gate. A hit is a
// terminal compliance rejection for that candidate only.
type TrademarkScreen struct {
	enabled bool
	baseURL string
	apiKey  string
	client  *httpx.Client
}

func NewTrademarkScreen(enabled bool, baseURL, apiKey string, timeout time.Duration) *TrademarkScreen {
	return &TrademarkScreen{
		enabled: enabled,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpx.NewClient(timeout),
	}
}

// Check returns the registered marks conflicting with keyword. A nil,
// empty result means the keyword is safe. Service outages surface as a
// retryable EXTERNAL_SERVICE_ERROR.
func (s *TrademarkScreen) Check(ctx context.Context, keyword string) ([]TrademarkMatch, error) {
	if !s.enabled {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/v1/trademarks/search?q=%s", s.baseURL, url.QueryEscape(keyword))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.NewExternalServiceError("trademark-search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewExternalServiceError("trademark-search",
			fmt.Errorf("trademark search returned %d", resp.StatusCode))
	}

	var parsed struct {
		Results []TrademarkMatch `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.NewExternalServiceError("trademark-search", err)
	}
	return parsed.Results, nil
}
