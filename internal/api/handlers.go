package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/service"
)

type quoteRequest struct {
	OfferID string          `json:"offerId"`
	Price   float64         `json:"price"`
	Details json.RawMessage `json:"details"`
}

type virtualPurchaseRequest struct {
	domain.PurchaseRequest
	IncludePostState optionalBool `json:"includePostState"`
}

type bulkPurchaseRequest struct {
	Items []domain.PurchaseRequest `json:"items"`
	domain.SharedOptions
	IncludePostState optionalBool `json:"includePostState"`
}

type ratingRequest struct {
	ItemID      string       `json:"itemId"`
	Rating      int          `json:"rating"`
	IsInstalled optionalBool `json:"isInstalled"`
}

// authorize resolves x-mc-token, falling back to exchanging x-playfab-session.
func (h *Handler) authorize(r *http.Request) (domain.Authorization, error) {
	return h.purchases.ResolveToken(r.Context(), domain.Credentials{
		Token:         r.Header.Get("X-Mc-Token"),
		SessionTicket: r.Header.Get("X-Playfab-Session"),
		RequestID:     RequestIDFrom(r.Context()),
	})
}

func (h *Handler) QuoteHandler(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeBody(r, quoteSchema, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	if _, err := h.authorize(r); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	quote, err := h.purchases.Quote(req.OfferID, req.Price, req.Details)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, quote)
}

func (h *Handler) VirtualPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	// 1. Validate body
	var req virtualPurchaseRequest
	if err := decodeBody(r, virtualSchema, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	// 2. Resolve credentials
	auth, err := h.authorize(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	// 3. Purchase, then optionally read the post-state
	receipt, err := h.purchases.PurchaseOne(r.Context(), req.PurchaseRequest, auth, req.IncludePostState.or(true))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, receipt)
}

func (h *Handler) BulkPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	var req bulkPurchaseRequest
	if err := decodeBody(r, bulkSchema, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	auth, err := h.authorize(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	report, err := h.purchases.PurchaseBatch(r.Context(), req.Items, auth, req.SharedOptions, req.IncludePostState.or(true))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

func (h *Handler) RatingHandler(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := decodeBody(r, ratingSchema, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	entityToken := strings.TrimSpace(r.Header.Get("X-Entitytoken"))
	if entityToken == "" {
		entityToken = strings.TrimSpace(r.Header.Get("X-Entity-Token"))
	}
	skip := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Skip-Ownership")))

	result, err := h.ratings.Submit(r.Context(), domain.RatingRequest{
		ItemID:           req.ItemID,
		Rating:           req.Rating,
		IsInstalled:      req.IsInstalled.or(false),
		EntityToken:      entityToken,
		SessionTicket:    r.Header.Get("X-Playfab-Session"),
		PlayFabID:        r.Header.Get("X-Playfab-Id"),
		EnforceOwnership: entityToken == "" && skip != "true" && skip != "1",
		RequestID:        RequestIDFrom(r.Context()),
	})
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) PurchaseBalancesHandler(w http.ResponseWriter, r *http.Request) {
	auth, err := h.authorize(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.writeBalances(w, r, auth)
}

func (h *Handler) PurchaseEntitlementsHandler(w http.ResponseWriter, r *http.Request) {
	auth, err := h.authorize(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.writeEntitlements(w, r, auth)
}

func (h *Handler) PurchaseCreatorsHandler(w http.ResponseWriter, r *http.Request) {
	auth, err := h.authorize(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	creators, err := service.Creators(r.Context(), h.storeConfig, auth)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"count": len(creators), "creators": creators})
}

// InventoryCreatorsHandler groups the caller's entitlements by creator,
// naming creators through the store's creator filter.
func (h *Handler) InventoryCreatorsHandler(w http.ResponseWriter, r *http.Request) {
	auth, err := h.authorize(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	entitlements, err := h.purchases.Inventory(r.Context(), auth, queryFlag(r, "includeReceipt"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	creators, err := service.Creators(r.Context(), h.storeConfig, auth)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	lookup := make(map[string]string, len(creators))
	for name, id := range creators {
		lookup[id] = name
	}
	summary := service.SummarizeCreators(entitlements, service.CreatorSummaryOptions{
		IncludeUnknown: queryFlag(r, "includeUnknown"),
		Lookup:         lookup,
	})
	respondWithJSON(w, http.StatusOK, summary)
}

// queryFlag is true only for the literal "true".
func queryFlag(r *http.Request, name string) bool {
	return r.URL.Query().Get(name) == "true"
}
