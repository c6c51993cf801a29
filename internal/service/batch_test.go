package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// probeExecutor tracks peak concurrency and records every request.
type probeExecutor struct {
	inflight atomic.Int32
	peak     atomic.Int32

	mu    sync.Mutex
	calls map[string]int
	seen  map[string]domain.PurchaseRequest
}

func newProbeExecutor() *probeExecutor {
	return &probeExecutor{calls: map[string]int{}, seen: map[string]domain.PurchaseRequest{}}
}

func (p *probeExecutor) Execute(_ context.Context, req domain.PurchaseRequest, _ domain.Authorization) (*domain.PurchaseResult, error) {
	n := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	p.mu.Lock()
	p.calls[req.OfferID]++
	p.seen[req.OfferID] = req
	p.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	switch {
	case strings.HasPrefix(req.OfferID, "panic"):
		panic("boom")
	case strings.HasPrefix(req.OfferID, "fail"):
		return nil, domain.Conflict("Already owned", nil)
	}
	return &domain.PurchaseResult{CorrelationID: "c-" + req.OfferID}, nil
}

func offers(ids ...string) []domain.PurchaseRequest {
	items := make([]domain.PurchaseRequest, len(ids))
	for i, id := range ids {
		items[i] = domain.PurchaseRequest{OfferID: id, Price: float64(i + 1)}
	}
	return items
}

func TestExecuteBatch_OrderAndOutcomes(t *testing.T) {
	exec := newProbeExecutor()
	o := NewBatchOrchestrator(exec, 4, zap.NewNop())

	items := offers("a", "fail-b", "c", "d", "fail-e", "f", "g")
	results, err := o.ExecuteBatch(context.Background(), items, testAuth, domain.SharedOptions{})
	require.NoError(t, err)
	require.Len(t, results, len(items))

	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, items[i].OfferID, r.OfferID)
		assert.Equal(t, items[i].Price, r.Price)
		assert.Equal(t, 1, exec.calls[items[i].OfferID], "each item attempted once")
		if strings.HasPrefix(r.OfferID, "fail") {
			assert.False(t, r.OK)
			assert.Nil(t, r.Transaction)
			require.NotNil(t, r.Error)
			assert.Equal(t, domain.KindConflict, r.Error.Kind)
		} else {
			assert.True(t, r.OK)
			assert.Nil(t, r.Error)
			require.NotNil(t, r.Transaction)
			assert.Equal(t, "c-"+r.OfferID, r.Transaction.CorrelationID)
		}
	}

	report := Summarize(results)
	assert.Equal(t, 7, report.Count)
	assert.Equal(t, 5, report.SuccessCount)
	assert.Equal(t, 2, report.FailureCount)
}

func TestExecuteBatch_ConcurrencyBound(t *testing.T) {
	for _, n := range []int{1, 2, 4, 5, 12} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			exec := newProbeExecutor()
			ids := make([]string, n)
			for i := range ids {
				ids[i] = fmt.Sprintf("offer-%d", i)
			}
			results, err := NewBatchOrchestrator(exec, DefaultBatchConcurrency, nil).
				ExecuteBatch(context.Background(), offers(ids...), testAuth, domain.SharedOptions{})
			require.NoError(t, err)
			assert.Len(t, results, n)
			assert.LessOrEqual(t, int(exec.peak.Load()), min(DefaultBatchConcurrency, n))
			if n >= DefaultBatchConcurrency {
				assert.Equal(t, int32(DefaultBatchConcurrency), exec.peak.Load(), "pool should fill up")
			}
			assert.Len(t, exec.calls, n)
		})
	}
}

func TestExecuteBatch_SharedOptions(t *testing.T) {
	exec := newProbeExecutor()
	items := offers("a", "b")
	items[0].XUID = ptr("item-xuid")
	items[1].Seq = ptr(5)

	_, err := NewBatchOrchestrator(exec, 4, nil).ExecuteBatch(context.Background(), items, testAuth, domain.SharedOptions{
		XUID:        ptr("shared-xuid"),
		Seq:         ptr(9),
		EditionType: ptr("Bedrock"),
	})
	require.NoError(t, err)

	a, b := exec.seen["a"], exec.seen["b"]
	assert.Equal(t, "item-xuid", *a.XUID)
	assert.Equal(t, 9, *a.Seq)
	assert.Equal(t, "shared-xuid", *b.XUID)
	assert.Equal(t, 5, *b.Seq)
	assert.Equal(t, "Bedrock", *a.EditionType)
	assert.Nil(t, a.CorrelationID)
}

func TestExecuteBatch_PanicBecomesFailure(t *testing.T) {
	exec := newProbeExecutor()
	results, err := NewBatchOrchestrator(exec, 4, nil).
		ExecuteBatch(context.Background(), offers("a", "panic-b", "c"), testAuth, domain.SharedOptions{})
	require.NoError(t, err)

	assert.True(t, results[0].OK)
	assert.True(t, results[2].OK)
	assert.False(t, results[1].OK)
	require.NotNil(t, results[1].Error)
	assert.Equal(t, domain.KindUpstream, results[1].Error.Kind)
	assert.Equal(t, 1, results[1].Index)
}

func TestExecuteBatch_RejectsUpfront(t *testing.T) {
	exec := newProbeExecutor()
	o := NewBatchOrchestrator(exec, 4, nil)

	_, err := o.ExecuteBatch(context.Background(), nil, testAuth, domain.SharedOptions{})
	assert.True(t, domain.IsKind(err, domain.KindBadRequest))

	_, err = o.ExecuteBatch(context.Background(), offers("a"), domain.Authorization{}, domain.SharedOptions{})
	assert.True(t, domain.IsKind(err, domain.KindBadRequest))
	assert.Empty(t, exec.calls)
}

func TestExecuteBatch_ValidationFailuresStayInSlot(t *testing.T) {
	up := &fakeUpstream{}
	o := NewBatchOrchestrator(newTestExecutor(up), 4, nil)

	items := []domain.PurchaseRequest{{OfferID: "a", Price: 1}, {OfferID: "", Price: 1}, {OfferID: "c", Price: 0}}
	results, err := o.ExecuteBatch(context.Background(), items, testAuth, domain.SharedOptions{})
	require.NoError(t, err)

	assert.True(t, results[0].OK)
	assert.Equal(t, "offerId is required", results[1].Error.Message)
	assert.Equal(t, "price must be > 0", results[2].Error.Message)
	assert.Equal(t, 1, up.txCount())
}
