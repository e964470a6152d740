// internal/platform/opensea.go
package platform

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trendmint/internal/common/config"
	"trendmint/internal/common/errors"
	"trendmint/internal/common/httpx"
	"trendmint/internal/common/logger"
	"trendmint/internal/models"
	"trendmint/internal/pricing"
)

// OpenSeaAdapter mints NFT listings. When a pinning endpoint is
// configured the image is pinned to IPFS first and the mint references
// the returned hash; otherwise the mint carries the content digest.
type OpenSeaAdapter struct {
	uploadURL      string
	apiKey         string
	collectionSlug string
	pinURL         string
	pinJWT         string
	client         *httpx.Client
	logger         logger.Logger
}

func NewOpenSeaAdapter(cfg config.PlatformConfig, timeout time.Duration, log logger.Logger) *OpenSeaAdapter {
	return &OpenSeaAdapter{
		uploadURL:      strings.TrimSuffix(cfg.UploadURL, "/"),
		apiKey:         cfg.APIKey,
		collectionSlug: cfg.CollectionSlug,
		pinURL:         cfg.PinURL,
		pinJWT:         cfg.PinJWT,
		client:         httpx.NewClient(timeout),
		logger:         log.WithFields(map[string]interface{}{"platform": TargetOpenSea}),
	}
}

func (a *OpenSeaAdapter) Name() string { return TargetOpenSea }
func (a *OpenSeaAdapter) Kind() Kind   { return KindNFT }

type mintRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Price       float64         `json:"price"`
	Attributes  []mintAttribute `json:"attributes"`
}

type mintAttribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

func (a *OpenSeaAdapter) Upload(ctx context.Context, asset models.AssetCandidate, quote pricing.PriceQuote, meta Metadata) (*PlatformRef, error) {
	data, err := os.ReadFile(asset.FilePath)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("read asset file: %v", err))
	}

	imageRef, err := a.imageReference(ctx, asset, data)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(mintRequest{
		Name:        meta.Title,
		Description: meta.Description,
		Image:       imageRef,
		Price:       quote.Amount,
		Attributes: []mintAttribute{
			{TraitType: "keyword", Value: asset.Keyword},
			{TraitType: "version", Value: asset.Version},
			{TraitType: "license", Value: meta.License},
		},
	})
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("encode mint request: %v", err))
	}

	endpoint := fmt.Sprintf("%s/collections/%s/nfts", a.uploadURL, a.collectionSlug)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.NewTransientError(TargetOpenSea, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, classifyStatus(TargetOpenSea, resp)
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.NewTransientError(TargetOpenSea, fmt.Errorf("decode mint response: %w", err))
	}

	a.logger.Info("minted NFT", map[string]interface{}{
		"keyword": asset.Keyword,
		"assetId": parsed.ID,
		"image":   imageRef,
	})
	return &PlatformRef{Platform: TargetOpenSea, AssetID: parsed.ID}, nil
}

// imageReference pins the image when a pinning endpoint is configured,
// falling back to the content digest otherwise.
func (a *OpenSeaAdapter) imageReference(ctx context.Context, asset models.AssetCandidate, data []byte) (string, error) {
	if a.pinURL == "" {
		digest := sha256.Sum256(data)
		return "sha256:" + hex.EncodeToString(digest[:]), nil
	}

	body, contentType, err := httpx.MultipartForm("file", filepath.Base(asset.FilePath), bytes.NewReader(data), nil)
	if err != nil {
		return "", errors.NewValidationError(fmt.Sprintf("build pin request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.pinURL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+a.pinJWT)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", errors.NewTransientError(TargetOpenSea, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(TargetOpenSea, resp)
	}

	var parsed struct {
		IpfsHash string `json:"IpfsHash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.NewTransientError(TargetOpenSea, fmt.Errorf("decode pin response: %w", err))
	}
	return "ipfs://" + parsed.IpfsHash, nil
}
