// internal/originality/tineye.go
package originality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trendmint/internal/common/httpx"
)

// TinEyeClient is the HTTP reverse-image search collaborator. Request by
// file content, response {matches: [{url, score}]}.
type TinEyeClient struct {
	baseURL string
	apiKey  string
	client  *httpx.Client
}

func NewTinEyeClient(baseURL, apiKey string, timeout time.Duration) *TinEyeClient {
	return &TinEyeClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpx.NewClient(timeout),
	}
}

type searchResponse struct {
	Matches []struct {
		URL   string  `json:"url"`
		Score float64 `json:"score"`
	} `json:"matches"`
}

func (t *TinEyeClient) Search(ctx context.Context, image []byte) ([]MatchRecord, error) {
	body, contentType, err := httpx.MultipartForm("image_upload", "asset.jpg", bytes.NewReader(image), nil)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/rest/search/", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("search returned %d: %s", resp.StatusCode, string(data))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	matches := make([]MatchRecord, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		matches = append(matches, MatchRecord{SourceURL: m.URL, SimilarityScore: m.Score})
	}
	return matches, nil
}
