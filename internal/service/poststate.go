package service

import (
	"context"
	"encoding/json"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StateReader is what the refresher reads after purchases.
type StateReader interface {
	Balances(ctx context.Context, auth domain.Authorization) (json.RawMessage, error)
	Inventory(ctx context.Context, auth domain.Authorization, includeReceipt bool) ([]json.RawMessage, error)
}

type Refresher struct {
	reader StateReader
	logger *zap.Logger
}

func NewRefresher(reader StateReader, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{reader: reader, logger: logger}
}

// Refresh reads balances and inventory (with receipts) concurrently. Either
// read may fail on its own; its slot is then left nil.
func (r *Refresher) Refresh(ctx context.Context, auth domain.Authorization) domain.PostState {
	var state domain.PostState
	var g errgroup.Group

	g.Go(func() error {
		balances, err := r.reader.Balances(ctx, auth)
		if err != nil {
			r.logger.Warn("post-state balances read failed", zap.String("request_id", auth.RequestID), zap.Error(err))
			return nil
		}
		state.Balances = balances
		return nil
	})
	g.Go(func() error {
		entitlements, err := r.reader.Inventory(ctx, auth, true)
		if err != nil {
			r.logger.Warn("post-state inventory read failed", zap.String("request_id", auth.RequestID), zap.Error(err))
			return nil
		}
		state.Inventory = domain.NewInventoryView(entitlements)
		return nil
	})
	_ = g.Wait()

	return state
}
