// internal/platform/adobestock.go
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

// AdobeStockAdapter uploads stock listings. Keywords are joined with
// semicolons and generative provenance is declared in a JSON field.
type AdobeStockAdapter struct {
	uploadURL string
	apiKey    string
	client    *httpx.Client
	logger    logger.Logger
}

func NewAdobeStockAdapter(cfg config.PlatformConfig, timeout time.Duration, log logger.Logger) *AdobeStockAdapter {
	return &AdobeStockAdapter{
		uploadURL: cfg.UploadURL,
		apiKey:    cfg.APIKey,
		client:    httpx.NewClient(timeout),
		logger:    log.WithFields(map[string]interface{}{"platform": TargetAdobeStock}),
	}
}

func (a *AdobeStockAdapter) Name() string { return TargetAdobeStock }
func (a *AdobeStockAdapter) Kind() Kind   { return KindStock }

func (a *AdobeStockAdapter) Upload(ctx context.Context, asset models.AssetCandidate, quote pricing.PriceQuote, meta Metadata) (*PlatformRef, error) {
	file, err := os.Open(asset.FilePath)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("open asset file: %v", err))
	}
	defer file.Close()

	provenance, _ := json.Marshal(map[string]bool{"is_generated": true})
	fields := map[string]string{
		"title":         meta.Title,
		"keywords":      strings.Join(meta.Keywords, ";"),
		"content_type":  "image",
		"price":         strconv.FormatFloat(quote.Amount, 'f', 2, 64),
		"ai_generation": string(provenance),
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
	req.Header.Set("X-API-Key", a.apiKey)
	req.Header.Set("X-Product", "trendmint")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.NewTransientError(TargetAdobeStock, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, classifyStatus(TargetAdobeStock, resp)
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.NewTransientError(TargetAdobeStock, fmt.Errorf("decode upload response: %w", err))
	}

	a.logger.Info("uploaded stock image", map[string]interface{}{
		"keyword": asset.Keyword,
		"assetId": parsed.ID,
	})
	return &PlatformRef{Platform: TargetAdobeStock, AssetID: parsed.ID}, nil
}
