// Package platform provides a uniform interface over heterogeneous
// upload targets. Each adapter owns its own field mapping and must
// classify every error it raises so the orchestrator can apply the
// correct retry policy. Adding a marketplace means adding one adapter;
// nothing upstream knows the platform count.
package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"

	"trendmint/internal/common/errors"
	"trendmint/internal/models"
	"trendmint/internal/pricing"
)

// Target names. Each must match a key under `platforms:` in config.
const (
	TargetOpenSea      = "OPENSEA"
	TargetShutterstock = "SHUTTERSTOCK"
	TargetAdobeStock   = "ADOBE_STOCK"
)

// Kind distinguishes NFT mints from stock uploads for audit record
// typing (MINT_ERROR vs STOCK_ERROR).
type Kind string

const (
	KindNFT   Kind = "nft"
	KindStock Kind = "stock"
)

// Metadata is the platform-independent listing description. Adapters
// reshape it into their own field formats.
type Metadata struct {
	Title       string
	Description string
	Keywords    []string
	Categories  []string
	License     string
}

// PlatformRef identifies a successfully published listing.
type PlatformRef struct {
	Platform string `json:"platform"`
	AssetID  string `json:"assetId"`
}

// Adapter is one marketplace upload capability.
type Adapter interface {
	Name() string
	Kind() Kind
	Upload(ctx context.Context, asset models.AssetCandidate, quote pricing.PriceQuote, meta Metadata) (*PlatformRef, error)
}

// Registry resolves publication targets to adapters.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(adapter Adapter) {
	r.adapters[adapter.Name()] = adapter
}

// Resolve returns the adapter bound to target.
func (r *Registry) Resolve(target string) (Adapter, error) {
	adapter, ok := r.adapters[target]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for target %q", target)
	}
	return adapter, nil
}

// Targets returns the registered target names in stable order.
func (r *Registry) Targets() []string {
	targets := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		targets = append(targets, name)
	}
	sort.Strings(targets)
	return targets
}

// classifyStatus maps an HTTP response status to the pipeline error
// taxonomy: 401/403 auth (terminal), 400/422 validation (terminal),
// 429 rate limit (retryable), everything else transient (retryable).
func classifyStatus(platform string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := fmt.Sprintf("status %d: %s", resp.StatusCode, string(data))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.NewAuthError(platform, detail)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return errors.NewValidationError(fmt.Sprintf("%s rejected upload: %s", platform, detail))
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.NewRateLimitError(platform, detail)
	default:
		return errors.NewTransientError(platform, fmt.Errorf("%s", detail))
	}
}
