package service

import (
	"bytes"
	"context"
	cryptorand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "purchase_transactions_total",
	Help: "Virtual currency purchases attempted, labeled by outcome",
}, []string{"outcome"})

// TransactionPoster posts a single virtual purchase upstream.
type TransactionPoster interface {
	VirtualTransaction(ctx context.Context, token, requestID string, payload models.VirtualTransactionRequest) (json.RawMessage, error)
}

// PurchaseDefaults fill purchase fields neither the item nor the batch set.
type PurchaseDefaults struct {
	BuildPlatform int
	ClientID      string
	EditionType   string
	TitleID       string
}

type Executor struct {
	upstream TransactionPoster
	defaults PurchaseDefaults

	newID  func() string
	newSeq func() int
}

func NewExecutor(upstream TransactionPoster, defaults PurchaseDefaults) *Executor {
	if defaults.TitleID == "" {
		defaults.TitleID = "20ca2"
	}
	return &Executor{
		upstream: upstream,
		defaults: defaults,
		newID:    randomHex,
		newSeq:   func() int { return rand.IntN(10000) },
	}
}

// Execute performs exactly one upstream purchase. Validation failures never
// reach the network.
func (e *Executor) Execute(ctx context.Context, req domain.PurchaseRequest, auth domain.Authorization) (*domain.PurchaseResult, error) {
	// 1. Validation
	offerID := strings.TrimSpace(req.OfferID)
	if offerID == "" {
		return nil, domain.BadRequest("offerId is required")
	}
	if !validPrice(req.Price) {
		return nil, domain.BadRequest("price must be > 0")
	}
	if auth.Token == "" {
		return nil, domain.BadRequest("mcToken is required")
	}

	// 2. Resolve the idempotency triple and remaining defaults once
	correlationID := stringOr(req.CorrelationID, e.newID)
	deviceSessionID := stringOr(req.DeviceSessionID, e.newID)
	seq := e.newSeqIfAbsent(req.Seq)

	payload := models.VirtualTransactionRequest{
		CustomTags: models.CustomTags{
			BuildPlat:       intOr(req.BuildPlatform, e.defaults.BuildPlatform),
			ClientID:        stringOr(req.ClientID, func() string { return e.defaults.ClientID }),
			CorrelationID:   correlationID,
			DeviceSessionID: deviceSessionID,
			Seq:             seq,
			TitleID:         e.defaults.TitleID,
			XUID:            stringOr(req.XUID, func() string { return "Unknown" }),
			EditionType:     stringOr(req.EditionType, func() string { return e.defaults.EditionType }),
		},
		OfferID: offerID,
		StoreID: "",
		VirtualCurrency: models.VirtualCurrency{
			Amount: strconv.FormatFloat(req.Price, 'f', -1, 64),
			Type:   "Minecoin",
		},
	}

	// 3. Single upstream call
	data, err := e.upstream.VirtualTransaction(ctx, auth.Token, auth.RequestID, payload)
	if err != nil {
		failure := classifyTransactionError(err)
		transactionsTotal.WithLabelValues(string(failure.Kind)).Inc()
		return nil, failure
	}

	transactionsTotal.WithLabelValues("ok").Inc()
	return &domain.PurchaseResult{
		CorrelationID:   correlationID,
		DeviceSessionID: deviceSessionID,
		Seq:             seq,
		Transaction:     data,
	}, nil
}

func (e *Executor) newSeqIfAbsent(seq *int) int {
	if seq != nil {
		return *seq
	}
	return e.newSeq()
}

// classifyTransactionError maps upstream error codes onto the taxonomy.
func classifyTransactionError(err error) *domain.Error {
	switch upstreamCode(err) {
	case "AlreadyOwned":
		return domain.Conflict("Already owned", json.RawMessage(`{"code":"AlreadyOwned"}`))
	case "InsufficientFunds":
		return domain.InvalidRequest("Insufficient funds", upstreamDetails(err))
	default:
		return domain.Upstream("Virtual transaction failed", upstreamDetails(err), err)
	}
}

// Quote validates an offer and echoes it. details is returned verbatim when
// it is a JSON object, otherwise {"offerId": offerID} is used.
func Quote(offerID string, price float64, details json.RawMessage) (*domain.Quote, error) {
	if strings.TrimSpace(offerID) == "" {
		return nil, domain.BadRequest("offerId is required")
	}
	if !validPrice(price) {
		return nil, domain.BadRequest("price must be > 0")
	}
	if !isJSONObject(details) {
		fallback, err := json.Marshal(map[string]string{"offerId": offerID})
		if err != nil {
			return nil, err
		}
		details = fallback
	}
	return &domain.Quote{OfferID: offerID, Price: price, Details: details}, nil
}

func validPrice(price float64) bool {
	return price > 0 && !math.IsInf(price, 0) && !math.IsNaN(price)
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}

func stringOr(v *string, fallback func() string) string {
	if v != nil && *v != "" {
		return *v
	}
	return fallback()
}

func intOr(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}

// randomHex returns 16 random bytes, hex encoded.
func randomHex() string {
	b := make([]byte, 16)
	_, _ = cryptorand.Read(b)
	return hex.EncodeToString(b)
}
