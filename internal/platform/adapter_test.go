// internal/platform/adapter_test.go
package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendmint/internal/common/config"
	"trendmint/internal/common/errors"
	"trendmint/internal/common/logger"
	"trendmint/internal/models"
	"trendmint/internal/pricing"
)

// ==========================
// Test Helper Functions
// ==========================

func testAsset(t *testing.T) models.AssetCandidate {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sunset-v1.png")
	require.NoError(t, os.WriteFile(path, []byte("image-bytes"), 0o644))
	return models.AssetCandidate{
		Keyword:      "sunset",
		Version:      1,
		FilePath:     path,
		SearchVolume: 900,
	}
}

func testQuote() pricing.PriceQuote {
	return pricing.PriceQuote{Amount: 120, Keyword: "sunset", ComputedAt: time.Now()}
}

func testMetadata() Metadata {
	return Metadata{
		Title:       "sunset, AI Artwork v1",
		Description: "AI generated artwork",
		Keywords:    []string{"sunset", "ai", "art"},
		License:     "enhanced",
	}
}

// ==========================
// Registry Tests
// ==========================

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewShutterstockAdapter(config.PlatformConfig{}, time.Second, logger.NewNoOpLogger()))
	registry.Register(NewOpenSeaAdapter(config.PlatformConfig{}, time.Second, logger.NewNoOpLogger()))

	adapter, err := registry.Resolve(TargetShutterstock)
	require.NoError(t, err)
	assert.Equal(t, TargetShutterstock, adapter.Name())
	assert.Equal(t, KindStock, adapter.Kind())

	_, err = registry.Resolve("UNKNOWN")
	assert.Error(t, err)

	assert.Equal(t, []string{TargetOpenSea, TargetShutterstock}, registry.Targets())
}

// ==========================
// Shutterstock Adapter Tests
// ==========================

func TestShutterstockUpload_FieldMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer stock-key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "sunset,ai,art", r.FormValue("keywords"))
		assert.Equal(t, "120.00", r.FormValue("price"))
		assert.Equal(t, "enhanced", r.FormValue("license"))
		assert.Equal(t, "true", r.FormValue("ai_generated"))

		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "sunset-v1.png", header.Filename)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "shs-42"}`))
	}))
	defer srv.Close()

	adapter := NewShutterstockAdapter(config.PlatformConfig{
		UploadURL: srv.URL,
		APIKey:    "stock-key",
	}, time.Second, logger.NewNoOpLogger())

	ref, err := adapter.Upload(context.Background(), testAsset(t), testQuote(), testMetadata())
	require.NoError(t, err)
	assert.Equal(t, TargetShutterstock, ref.Platform)
	assert.Equal(t, "shs-42", ref.AssetID)
}

func TestShutterstockUpload_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  errors.ErrorCode
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, errors.ErrCodeAuth, false},
		{"forbidden", http.StatusForbidden, errors.ErrCodeAuth, false},
		{"bad request", http.StatusBadRequest, errors.ErrCodeValidation, false},
		{"unprocessable", http.StatusUnprocessableEntity, errors.ErrCodeValidation, false},
		{"rate limited", http.StatusTooManyRequests, errors.ErrCodeRateLimit, true},
		{"server error", http.StatusInternalServerError, errors.ErrCodeTransient, true},
		{"bad gateway", http.StatusBadGateway, errors.ErrCodeTransient, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			adapter := NewShutterstockAdapter(config.PlatformConfig{
				UploadURL: srv.URL,
				APIKey:    "stock-key",
			}, time.Second, logger.NewNoOpLogger())

			_, err := adapter.Upload(context.Background(), testAsset(t), testQuote(), testMetadata())
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))
			assert.Equal(t, tt.retryable, errors.IsRetryable(err))
		})
	}
}

func TestShutterstockUpload_MissingFileIsValidationError(t *testing.T) {
	adapter := NewShutterstockAdapter(config.PlatformConfig{
		UploadURL: "http://unused",
	}, time.Second, logger.NewNoOpLogger())

	asset := testAsset(t)
	asset.FilePath = filepath.Join(t.TempDir(), "missing.png")

	_, err := adapter.Upload(context.Background(), asset, testQuote(), testMetadata())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
}

// ==========================
// Adobe Stock Adapter Tests
// ==========================

func TestAdobeStockUpload_FieldMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "adobe-key", r.Header.Get("X-API-Key"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "sunset;ai;art", r.FormValue("keywords"))
		assert.Equal(t, "image", r.FormValue("content_type"))

		var provenance map[string]bool
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("ai_generation")), &provenance))
		assert.True(t, provenance["is_generated"])

		w.Write([]byte(`{"id": "adb-7"}`))
	}))
	defer srv.Close()

	adapter := NewAdobeStockAdapter(config.PlatformConfig{
		UploadURL: srv.URL,
		APIKey:    "adobe-key",
	}, time.Second, logger.NewNoOpLogger())

	ref, err := adapter.Upload(context.Background(), testAsset(t), testQuote(), testMetadata())
	require.NoError(t, err)
	assert.Equal(t, TargetAdobeStock, ref.Platform)
	assert.Equal(t, "adb-7", ref.AssetID)
	assert.Equal(t, KindStock, adapter.Kind())
}

// ==========================
// OpenSea Adapter Tests
// ==========================

func TestOpenSeaUpload_MintWithoutPinning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "nft-key", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "/collections/trendmint/nfts", r.URL.Path)

		var mint struct {
			Name  string  `json:"name"`
			Image string  `json:"image"`
			Price float64 `json:"price"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&mint))
		assert.True(t, strings.HasPrefix(mint.Image, "sha256:"))
		assert.Equal(t, 120.0, mint.Price)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": "nft-99"}`))
	}))
	defer srv.Close()

	adapter := NewOpenSeaAdapter(config.PlatformConfig{
		UploadURL:      srv.URL,
		APIKey:         "nft-key",
		CollectionSlug: "trendmint",
	}, time.Second, logger.NewNoOpLogger())

	ref, err := adapter.Upload(context.Background(), testAsset(t), testQuote(), testMetadata())
	require.NoError(t, err)
	assert.Equal(t, "nft-99", ref.AssetID)
	assert.Equal(t, KindNFT, adapter.Kind())
}

func TestOpenSeaUpload_PinsBeforeMint(t *testing.T) {
	pinned := false
	pinSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pin-jwt", r.Header.Get("Authorization"))
		pinned = true
		w.Write([]byte(`{"IpfsHash": "QmTest123"}`))
	}))
	defer pinSrv.Close()

	mintSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var mint struct {
			Image string `json:"image"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&mint))
		assert.Equal(t, "ipfs://QmTest123", mint.Image)
		w.Write([]byte(`{"id": "nft-100"}`))
	}))
	defer mintSrv.Close()

	adapter := NewOpenSeaAdapter(config.PlatformConfig{
		UploadURL:      mintSrv.URL,
		APIKey:         "nft-key",
		CollectionSlug: "trendmint",
		PinURL:         pinSrv.URL,
		PinJWT:         "pin-jwt",
	}, time.Second, logger.NewNoOpLogger())

	ref, err := adapter.Upload(context.Background(), testAsset(t), testQuote(), testMetadata())
	require.NoError(t, err)
	assert.True(t, pinned)
	assert.Equal(t, "nft-100", ref.AssetID)
}

func TestOpenSeaUpload_AuthFailureIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	adapter := NewOpenSeaAdapter(config.PlatformConfig{
		UploadURL:      srv.URL,
		APIKey:         "bad-key",
		CollectionSlug: "trendmint",
	}, time.Second, logger.NewNoOpLogger())

	_, err := adapter.Upload(context.Background(), testAsset(t), testQuote(), testMetadata())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAuth, errors.CodeOf(err))
	assert.False(t, errors.IsRetryable(err))
}
