package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/models"
	"go.uber.org/zap"
)

// maxOwnershipSteps bounds the inventory walk of an ownership check.
const maxOwnershipSteps = 6000

// ReviewPoster submits catalog reviews upstream.
type ReviewPoster interface {
	SubmitReview(ctx context.Context, requestID, entityToken string, review models.ReviewRequest) (*models.PlayFabEnvelope, error)
}

type Ratings struct {
	credentials *CredentialResolver
	inventory   StateReader
	upstream    ReviewPoster
	logger      *zap.Logger
}

func NewRatings(credentials *CredentialResolver, inventory StateReader, upstream ReviewPoster, logger *zap.Logger) *Ratings {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ratings{credentials: credentials, inventory: inventory, upstream: upstream, logger: logger}
}

// Submit rates a catalog item. A caller supplied entity token is used as-is
// and skips the ownership check.
func (r *Ratings) Submit(ctx context.Context, req domain.RatingRequest) (*domain.RatingResult, error) {
	itemID := strings.TrimSpace(req.ItemID)
	if itemID == "" {
		return nil, domain.BadRequest("itemId is required")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, domain.BadRequest("rating must be an integer between 1 and 5")
	}

	entityToken := strings.TrimSpace(req.EntityToken)
	if entityToken == "" {
		ticket := strings.TrimSpace(req.SessionTicket)
		if ticket == "" {
			return nil, domain.BadRequest("x-entitytoken or x-playfab-session is required")
		}
		if strings.TrimSpace(req.PlayFabID) == "" {
			return nil, domain.BadRequest("x-playfab-id is required")
		}

		if req.EnforceOwnership {
			auth, err := r.credentials.Resolve(ctx, domain.Credentials{SessionTicket: ticket, RequestID: req.RequestID})
			if err != nil {
				return nil, err
			}
			if err := r.assertOwned(ctx, auth, itemID); err != nil {
				return nil, err
			}
		}

		token, err := r.credentials.EntityToken(ctx, req.RequestID, ticket, req.PlayFabID)
		if err != nil {
			return nil, err
		}
		entityToken = token
	}

	env, err := r.upstream.SubmitReview(ctx, req.RequestID, entityToken, models.ReviewRequest{
		ItemID: itemID,
		Review: models.Review{IsInstalled: req.IsInstalled, Rating: req.Rating},
	})
	if err != nil {
		return nil, upstreamFailure("Rating failed", err)
	}
	if env.Code != nil && *env.Code != 200 {
		details, _ := json.Marshal(env)
		return nil, domain.Upstream("Rating failed", details, nil)
	}

	result := env.Data
	if trimmed := bytes.TrimSpace(result); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		result = json.RawMessage(`{}`)
	}

	r.logger.Info("rating submitted",
		zap.String("request_id", req.RequestID),
		zap.String("item_id", itemID),
		zap.Int("rating", req.Rating))
	return &domain.RatingResult{OK: true, Result: result}, nil
}

func (r *Ratings) assertOwned(ctx context.Context, auth domain.Authorization, itemID string) error {
	entitlements, err := r.inventory.Inventory(ctx, auth, true)
	if err != nil {
		return err
	}
	decoded := make([]any, 0, len(entitlements))
	for _, raw := range entitlements {
		var v any
		if json.Unmarshal(raw, &v) == nil {
			decoded = append(decoded, v)
		}
	}
	if !containsNeedle(decoded, itemID) {
		return domain.Forbidden("Item not owned")
	}
	return nil
}

// containsNeedle walks decoded JSON depth-first looking for a string that
// contains needle, case-insensitively. The walk gives up after
// maxOwnershipSteps nodes.
func containsNeedle(root any, needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return false
	}

	stack := []any{root}
	for steps := 1; len(stack) > 0; steps++ {
		if steps > maxOwnershipSteps {
			return false
		}
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := cur.(type) {
		case string:
			if strings.Contains(strings.ToLower(strings.TrimSpace(v)), needle) {
				return true
			}
		case []any:
			stack = append(stack, v...)
		case map[string]any:
			for _, child := range v {
				stack = append(stack, child)
			}
		}
	}
	return false
}
