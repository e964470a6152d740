// internal/platform/shutterstock.go
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"trendmint/internal/common/config"
	"trendmint/internal/common/errors"
	"trendmint/internal/common/httpx"
	"trendmint/internal/common/logger"
	"trendmint/internal/models"
	"trendmint/internal/pricing"
)

// ShutterstockAdapter uploads stock listings. Keywords are joined with
// commas and the listing is always flagged as AI generated.
type ShutterstockAdapter struct {
	uploadURL string
	apiKey    string
	client    *httpx.Client
	logger    logger.Logger
}

func NewShutterstockAdapter(cfg config.PlatformConfig, timeout time.Duration, log logger.Logger) *ShutterstockAdapter {
	return &ShutterstockAdapter{
		uploadURL: cfg.UploadURL,
		apiKey:    cfg.APIKey,
		client:    httpx.NewClient(timeout),
		logger:    log.WithFields(map[string]interface{}{"platform": TargetShutterstock}),
	}
}

func (a *ShutterstockAdapter) Name() string { return TargetShutterstock }
func (a *ShutterstockAdapter) Kind() Kind   { return KindStock }

func (a *ShutterstockAdapter) Upload(ctx context.Context, asset models.AssetCandidate, quote pricing.PriceQuote, meta Metadata) (*PlatformRef, error) {
	file, err := os.Open(asset.FilePath)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("open asset file: %v", err))
	}
	defer file.Close()

	fields := map[string]string{
		"title":        meta.Title,
		"description":  meta.Description,
		"keywords":     strings.Join(meta.Keywords, ","),
		"price":        strconv.FormatFloat(quote.Amount, 'f', 2, 64),
		"license":      "enhanced",
		"ai_generated": "true",
	}
	body, contentType, err := httpx.MultipartForm("file", filepath.Base(asset.FilePath), file, fields)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("build upload request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.uploadURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.NewTransientError(TargetShutterstock, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, classifyStatus(TargetShutterstock, resp)
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.NewTransientError(TargetShutterstock, fmt.Errorf("decode upload response: %w", err))
	}

	a.logger.Info("uploaded stock image", map[string]interface{}{
		"keyword": asset.Keyword,
		"assetId": parsed.ID,
	})
	return &PlatformRef{Platform: TargetShutterstock, AssetID: parsed.ID}, nil
}
