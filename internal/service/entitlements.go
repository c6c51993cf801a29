package service

import (
	"context"
	"encoding/json"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
)

// EntitlementSource reads balances and inventory upstream.
type EntitlementSource interface {
	Balances(ctx context.Context, token, requestID string) (json.RawMessage, error)
	Inventory(ctx context.Context, token, requestID string, includeReceipt bool) ([]json.RawMessage, error)
}

type EntitlementReader struct {
	upstream EntitlementSource
}

func NewEntitlementReader(upstream EntitlementSource) *EntitlementReader {
	return &EntitlementReader{upstream: upstream}
}

func (r *EntitlementReader) Balances(ctx context.Context, auth domain.Authorization) (json.RawMessage, error) {
	if auth.Token == "" {
		return nil, domain.BadRequest("mcToken is required")
	}
	data, err := r.upstream.Balances(ctx, auth.Token, auth.RequestID)
	if err != nil {
		return nil, upstreamFailure("Failed to get balances", err)
	}
	return data, nil
}

// Inventory returns entitlements in upstream order; empty, never nil.
func (r *EntitlementReader) Inventory(ctx context.Context, auth domain.Authorization, includeReceipt bool) ([]json.RawMessage, error) {
	if auth.Token == "" {
		return nil, domain.BadRequest("mcToken is required")
	}
	items, err := r.upstream.Inventory(ctx, auth.Token, auth.RequestID, includeReceipt)
	if err != nil {
		return nil, upstreamFailure("Failed to get inventory", err)
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, nil
}
