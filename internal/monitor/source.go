// Package monitor implements the post-publication takedown scanner:
// a periodic sweep of published listings for copyright complaints
// raised on the marketplaces, with legal notification on each hit.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"trendmint/internal/common/errors"
	"trendmint/internal/common/httpx"
)

// Notice is one pending takedown complaint on a marketplace.
type Notice struct {
	Platform string `json:"platform"`
	AssetID  string `json:"assetId"`
	Reason   string `json:"reason"`
}

// NoticeSource lists the pending takedown complaints for one platform.
type NoticeSource interface {
	Name() string
	PendingTakedowns(ctx context.Context) ([]Notice, error)
}

// HTTPNoticeSource polls a marketplace takedown endpoint.
type HTTPNoticeSource struct {
	name    string
	baseURL string
	apiKey  string
	client  *httpx.Client
}

func NewHTTPNoticeSource(name, baseURL, apiKey string, timeout time.Duration) *HTTPNoticeSource {
	return &HTTPNoticeSource{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpx.NewClient(timeout),
	}
}

func (s *HTTPNoticeSource) Name() string { return s.name }

func (s *HTTPNoticeSource) PendingTakedowns(ctx context.Context) ([]Notice, error) {
	endpoint := s.baseURL + "/v1/takedowns?status=pending"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.NewExternalServiceError(s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewExternalServiceError(s.name,
			fmt.Errorf("takedown endpoint returned %d", resp.StatusCode))
	}

	var parsed struct {
		Notices []struct {
			AssetID string `json:"asset_id"`
			Reason  string `json:"reason"`
		} `json:"notices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.NewExternalServiceError(s.name, err)
	}

	notices := make([]Notice, 0, len(parsed.Notices))
	for _, n := range parsed.Notices {
		notices = append(notices, Notice{Platform: s.name, AssetID: n.AssetID, Reason: n.Reason})
	}
	return notices, nil
}
