package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency caps in-flight purchases per batch.
const DefaultBatchConcurrency = 4

var batchInflight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "purchase_batch_inflight",
	Help: "Batch purchase items currently executing",
})

// PurchaseExecutor runs a single purchase.
type PurchaseExecutor interface {
	Execute(ctx context.Context, req domain.PurchaseRequest, auth domain.Authorization) (*domain.PurchaseResult, error)
}

type BatchOrchestrator struct {
	executor PurchaseExecutor
	limit    int
	logger   *zap.Logger
}

func NewBatchOrchestrator(executor PurchaseExecutor, limit int, logger *zap.Logger) *BatchOrchestrator {
	if limit < 1 {
		limit = DefaultBatchConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchOrchestrator{executor: executor, limit: limit, logger: logger}
}

// ExecuteBatch attempts every item exactly once with at most
// min(limit, len(items)) in flight. results[i] always describes items[i];
// item failures are returned as data, never as the error.
func (o *BatchOrchestrator) ExecuteBatch(ctx context.Context, items []domain.PurchaseRequest, auth domain.Authorization, shared domain.SharedOptions) ([]domain.IndexedPurchaseResult, error) {
	if len(items) == 0 {
		return nil, domain.BadRequest("items is required")
	}
	if auth.Token == "" {
		return nil, domain.BadRequest("mcToken is required")
	}

	results := make([]domain.IndexedPurchaseResult, len(items))
	workers := min(o.limit, len(items))

	var next atomic.Int64
	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for {
				i := int(next.Add(1) - 1)
				if i >= len(items) {
					return nil
				}
				results[i] = o.run(ctx, i, shared.Apply(items[i]), auth)
			}
		})
	}
	_ = g.Wait()

	return results, nil
}

func (o *BatchOrchestrator) run(ctx context.Context, index int, item domain.PurchaseRequest, auth domain.Authorization) (out domain.IndexedPurchaseResult) {
	out = domain.IndexedPurchaseResult{Index: index, OfferID: item.OfferID, Price: item.Price}

	batchInflight.Inc()
	defer batchInflight.Dec()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("batch item panicked", zap.Int("index", index), zap.Any("panic", r))
			out.OK = false
			out.Transaction = nil
			out.Error = domain.Upstream("Virtual transaction failed", nil, fmt.Errorf("panic: %v", r))
		}
	}()

	tx, err := o.executor.Execute(ctx, item, auth)
	if err != nil {
		out.Error = domain.AsError(err)
		return out
	}
	out.OK = true
	out.Transaction = tx
	return out
}

// Summarize builds a report over settled results.
func Summarize(results []domain.IndexedPurchaseResult) *domain.BatchReport {
	report := &domain.BatchReport{Count: len(results), Results: results}
	for _, r := range results {
		if r.OK {
			report.SuccessCount++
		}
	}
	report.FailureCount = report.Count - report.SuccessCount
	return report
}
