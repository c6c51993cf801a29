package service

import (
	"context"
	"encoding/json"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
	"go.uber.org/zap"
)

// Upstream is the full marketplace surface the services need.
// *store.Client implements it.
type Upstream interface {
	SessionExchanger
	EntitlementSource
	TransactionPoster
	ReviewPoster
	StoreConfigSource
	MarketplaceSource
}

type Options struct {
	Device           DeviceProfile
	Defaults         PurchaseDefaults
	BatchConcurrency int
}

// Purchases is the transaction orchestration core exposed to the API layer.
type Purchases struct {
	credentials *CredentialResolver
	reader      *EntitlementReader
	executor    PurchaseExecutor
	batch       *BatchOrchestrator
	refresher   *Refresher
	logger      *zap.Logger
}

func NewPurchases(upstream Upstream, opts Options, logger *zap.Logger) *Purchases {
	if logger == nil {
		logger = zap.NewNop()
	}
	reader := NewEntitlementReader(upstream)
	executor := NewExecutor(upstream, opts.Defaults)
	return &Purchases{
		credentials: NewCredentialResolver(upstream, opts.Device),
		reader:      reader,
		executor:    executor,
		batch:       NewBatchOrchestrator(executor, opts.BatchConcurrency, logger),
		refresher:   NewRefresher(reader, logger),
		logger:      logger,
	}
}

// Credentials exposes the resolver to collaborators that mint entity tokens.
func (p *Purchases) Credentials() *CredentialResolver {
	return p.credentials
}

func (p *Purchases) ResolveToken(ctx context.Context, creds domain.Credentials) (domain.Authorization, error) {
	return p.credentials.Resolve(ctx, creds)
}

func (p *Purchases) Quote(offerID string, price float64, details json.RawMessage) (*domain.Quote, error) {
	return Quote(offerID, price, details)
}

// PurchaseOne buys a single offer and, when asked, attaches the post-state.
func (p *Purchases) PurchaseOne(ctx context.Context, req domain.PurchaseRequest, auth domain.Authorization, includePostState bool) (*domain.PurchaseReceipt, error) {
	tx, err := p.executor.Execute(ctx, req, auth)
	if err != nil {
		return nil, err
	}
	receipt := &domain.PurchaseReceipt{PurchaseResult: *tx}
	if includePostState {
		state := p.refresher.Refresh(ctx, auth)
		receipt.PostState = &state
	}
	return receipt, nil
}

// PurchaseBatch runs items through the batch engine. The post-state is only
// read when requested and at least one item succeeded.
func (p *Purchases) PurchaseBatch(ctx context.Context, items []domain.PurchaseRequest, auth domain.Authorization, shared domain.SharedOptions, includePostState bool) (*domain.BatchReport, error) {
	results, err := p.batch.ExecuteBatch(ctx, items, auth, shared)
	if err != nil {
		return nil, err
	}

	report := Summarize(results)
	if includePostState && report.SuccessCount > 0 {
		state := p.refresher.Refresh(ctx, auth)
		report.Balances = state.Balances
		report.Inventory = state.Inventory
	}

	p.logger.Info("batch purchase settled",
		zap.String("request_id", auth.RequestID),
		zap.Int("count", report.Count),
		zap.Int("success", report.SuccessCount),
		zap.Int("failure", report.FailureCount))
	return report, nil
}

func (p *Purchases) Balances(ctx context.Context, auth domain.Authorization) (json.RawMessage, error) {
	return p.reader.Balances(ctx, auth)
}

func (p *Purchases) Inventory(ctx context.Context, auth domain.Authorization, includeReceipt bool) ([]json.RawMessage, error) {
	return p.reader.Inventory(ctx, auth, includeReceipt)
}
