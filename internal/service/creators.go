package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/models"
)

// StoreConfigSource reads the marketplace session config.
type StoreConfigSource interface {
	StoreConfig(ctx context.Context, token, requestID string) (*models.StoreConfigResponse, error)
}

// Creators returns the store's creator filter as a name -> id map.
func Creators(ctx context.Context, upstream StoreConfigSource, auth domain.Authorization) (map[string]string, error) {
	if auth.Token == "" {
		return nil, domain.BadRequest("mcToken is required")
	}
	cfg, err := upstream.StoreConfig(ctx, auth.Token, auth.RequestID)
	if err != nil {
		return nil, upstreamFailure("Failed to fetch creators", err)
	}

	creators := map[string]string{}
	for _, f := range cfg.Result.StoreFilters {
		if !strings.EqualFold(f.FilterType, "creator") {
			continue
		}
		for _, t := range f.Toggles {
			creators[t.FilterName] = t.FilterID
		}
		break
	}
	return creators, nil
}

// CreatorSummaryOptions tune SummarizeCreators. Lookup maps a resolved
// creator id to its display name.
type CreatorSummaryOptions struct {
	IncludeUnknown bool
	UnknownKey     string
	Lookup         map[string]string
}

// SummarizeCreators counts entitlements per creator. Entitlements with no
// resolvable creator are counted in UnknownCount and, if requested, under
// UnknownKey.
func SummarizeCreators(entitlements []json.RawMessage, opts CreatorSummaryOptions) domain.CreatorSummary {
	unknownKey := strings.TrimSpace(opts.UnknownKey)
	if unknownKey == "" {
		unknownKey = "unknown"
	}

	summary := domain.CreatorSummary{TotalItems: len(entitlements), Creators: map[string]int{}}
	for _, raw := range entitlements {
		var entitlement map[string]any
		_ = json.Unmarshal(raw, &entitlement)

		creator := resolveCreator(entitlement)
		if creator == "" {
			summary.UnknownCount++
			if opts.IncludeUnknown {
				summary.Creators[unknownKey]++
			}
			continue
		}
		if name := opts.Lookup[creator]; name != "" {
			creator = name
		}
		summary.Creators[creator]++
	}
	summary.Count = len(summary.Creators)
	return summary
}

var (
	creatorScopes = []string{"", "receipt", "offer", "product"}
	creatorKeys   = []string{"creator", "creatorId", "creatorName", "creatorDisplayName"}
)

func resolveCreator(entitlement map[string]any) string {
	for _, scope := range creatorScopes {
		obj := entitlement
		if scope != "" {
			nested, ok := entitlement[scope].(map[string]any)
			if !ok {
				continue
			}
			obj = nested
		}
		for _, key := range creatorKeys {
			if c := normalizeCreator(obj[key]); c != "" {
				return c
			}
		}
	}
	return ""
}

var creatorObjectKeys = []string{"id", "creatorId", "name", "displayName", "creatorName"}

func normalizeCreator(v any) string {
	switch c := v.(type) {
	case string:
		return strings.TrimSpace(c)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case map[string]any:
		for _, key := range creatorObjectKeys {
			if s := normalizeCreator(c[key]); s != "" {
				return s
			}
		}
	}
	return ""
}
