package service

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type SummaryOptions struct {
	IncludeBalances  bool
	IncludeInventory bool
	IncludeReceipt   bool
	// InventoryLimit caps returned entitlements; nil means no cap.
	InventoryLimit *int
}

// Summary reads the requested parts concurrently. Inventory is returned
// newest first; count is always the full inventory size.
func (p *Purchases) Summary(ctx context.Context, auth domain.Authorization, user domain.UserProfile, opts SummaryOptions) *domain.ProfileSummary {
	summary := &domain.ProfileSummary{
		User:              user,
		BalancesIncluded:  opts.IncludeBalances,
		InventoryIncluded: opts.IncludeInventory,
	}

	var g errgroup.Group
	if opts.IncludeBalances {
		g.Go(func() error {
			balances, err := p.reader.Balances(ctx, auth)
			if err != nil {
				p.logger.Warn("summary balances read failed", zap.String("request_id", auth.RequestID), zap.Error(err))
				return nil
			}
			summary.Balances = balances
			return nil
		})
	}
	if opts.IncludeInventory {
		g.Go(func() error {
			entitlements, err := p.reader.Inventory(ctx, auth, opts.IncludeReceipt)
			if err != nil {
				p.logger.Warn("summary inventory read failed", zap.String("request_id", auth.RequestID), zap.Error(err))
				return nil
			}
			summary.Inventory = newestFirst(entitlements, opts.InventoryLimit)
			return nil
		})
	}
	_ = g.Wait()

	return summary
}

func newestFirst(entitlements []json.RawMessage, limit *int) *domain.InventoryView {
	items := slices.Clone(entitlements)
	slices.Reverse(items)
	if limit != nil && *limit >= 0 && *limit < len(items) {
		items = items[:*limit]
	}
	view := domain.NewInventoryView(items)
	view.Count = len(entitlements)
	return view
}
