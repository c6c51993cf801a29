package service

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
)

// MarketplaceSource proxies GETs to the optional marketplace API.
type MarketplaceSource interface {
	Marketplace(ctx context.Context, requestID, path, bearer string) (json.RawMessage, error)
}

// MarketplaceTokens are the bearer candidates; Marketplace wins over XLink.
type MarketplaceTokens struct {
	Marketplace string
	XLink       string
}

func (t MarketplaceTokens) bearer() string {
	if s := strings.TrimSpace(t.Marketplace); s != "" {
		return s
	}
	return strings.TrimSpace(t.XLink)
}

type Marketplace struct {
	upstream MarketplaceSource
	enabled  bool
}

func NewMarketplace(upstream MarketplaceSource, enabled bool) *Marketplace {
	return &Marketplace{upstream: upstream, enabled: enabled}
}

func (m *Marketplace) Enabled() bool {
	return m.enabled
}

func (m *Marketplace) CreatorSummary(ctx context.Context, requestID, creator string, tokens MarketplaceTokens) (json.RawMessage, error) {
	if strings.TrimSpace(creator) == "" {
		return nil, domain.BadRequest("creator is required")
	}
	return m.get(ctx, requestID, "/marketplace/summary/"+url.PathEscape(creator), tokens, "Failed to fetch creator summary")
}

func (m *Marketplace) OfferDetails(ctx context.Context, requestID, offerID string, tokens MarketplaceTokens) (json.RawMessage, error) {
	if strings.TrimSpace(offerID) == "" {
		return nil, domain.BadRequest("offerId is required")
	}
	return m.get(ctx, requestID, "/marketplace/details/"+url.PathEscape(offerID), tokens, "Failed to fetch offer details")
}

func (m *Marketplace) get(ctx context.Context, requestID, path string, tokens MarketplaceTokens, failure string) (json.RawMessage, error) {
	if !m.enabled {
		return nil, domain.Upstream("Marketplace API disabled", nil, nil)
	}
	data, err := m.upstream.Marketplace(ctx, requestID, path, tokens.bearer())
	if err != nil {
		return nil, upstreamFailure(failure, err)
	}
	return data, nil
}
