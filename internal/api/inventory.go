package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/service"
	"github.com/golang-jwt/jwt/v5"
)

// mcToken requires x-mc-token; these routes never exchange a session ticket.
func mcToken(r *http.Request) (domain.Authorization, error) {
	token := strings.TrimSpace(r.Header.Get("X-Mc-Token"))
	if token == "" {
		return domain.Authorization{}, domain.BadRequest("Missing x-mc-token header")
	}
	return domain.Authorization{Token: token, RequestID: RequestIDFrom(r.Context())}, nil
}

func (h *Handler) BalancesHandler(w http.ResponseWriter, r *http.Request) {
	auth, err := mcToken(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.writeBalances(w, r, auth)
}

func (h *Handler) EntitlementsHandler(w http.ResponseWriter, r *http.Request) {
	auth, err := mcToken(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.writeEntitlements(w, r, auth)
}

func (h *Handler) writeBalances(w http.ResponseWriter, r *http.Request, auth domain.Authorization) {
	balances, err := h.purchases.Balances(r.Context(), auth)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, balances)
}

func (h *Handler) writeEntitlements(w http.ResponseWriter, r *http.Request, auth domain.Authorization) {
	entitlements, err := h.purchases.Inventory(r.Context(), auth, queryFlag(r, "includeReceipt"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, domain.NewInventoryView(entitlements))
}

func (h *Handler) CreatorsHandler(w http.ResponseWriter, r *http.Request) {
	auth, err := mcToken(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	creators, err := service.Creators(r.Context(), h.storeConfig, auth)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"creators": creators})
}

func marketplaceTokens(r *http.Request) service.MarketplaceTokens {
	return service.MarketplaceTokens{
		Marketplace: r.Header.Get("X-Marketplace-Token"),
		XLink:       r.Header.Get("X-Xlink-Token"),
	}
}

func (h *Handler) CreatorSummaryHandler(w http.ResponseWriter, r *http.Request) {
	creator := r.URL.Query().Get("creator")
	if creator == "" {
		h.respondWithError(w, r, domain.BadRequest(`"creator" is required`))
		return
	}
	data, err := h.marketplace.CreatorSummary(r.Context(), RequestIDFrom(r.Context()), creator, marketplaceTokens(r))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, data)
}

func (h *Handler) OfferDetailsHandler(w http.ResponseWriter, r *http.Request) {
	offerID := r.URL.Query().Get("offerId")
	if offerID == "" {
		h.respondWithError(w, r, domain.BadRequest(`"offerId" is required`))
		return
	}
	data, err := h.marketplace.OfferDetails(r.Context(), RequestIDFrom(r.Context()), offerID, marketplaceTokens(r))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, data)
}

// SummaryHandler returns the caller profile with balances and newest-first
// inventory. Each part can be switched off and is null when its read failed.
func (h *Handler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := summaryOptions(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	auth, err := h.authorize(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	user := h.userFromClaims(claimsFrom(r.Context()))
	respondWithJSON(w, http.StatusOK, h.purchases.Summary(r.Context(), auth, user, opts))
}

func summaryOptions(r *http.Request) (service.SummaryOptions, error) {
	q := r.URL.Query()
	opts := service.SummaryOptions{}

	flags := []struct {
		name string
		dst  *bool
		def  bool
	}{
		{"includeBalances", &opts.IncludeBalances, true},
		{"includeInventory", &opts.IncludeInventory, true},
		{"includeReceipt", &opts.IncludeReceipt, false},
	}
	for _, f := range flags {
		switch q.Get(f.name) {
		case "":
			*f.dst = f.def
		case "true":
			*f.dst = true
		case "false":
			*f.dst = false
		default:
			return opts, domain.BadRequest(`"` + f.name + `" must be a boolean`)
		}
	}

	if raw := q.Get("inventoryLimit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return opts, domain.BadRequest(`"inventoryLimit" must be an integer >= 0`)
		}
		opts.InventoryLimit = &limit
	}
	return opts, nil
}

func (h *Handler) userFromClaims(claims jwt.MapClaims) domain.UserProfile {
	user := domain.UserProfile{EditionType: h.user.EditionType, BuildPlatform: h.user.BuildPlatform}
	if sub, _ := claims["sub"].(string); sub != "" {
		user.ID = &sub
	}
	if xuid, _ := claims["xuid"].(string); xuid != "" {
		user.XUID = &xuid
	}
	if edition, _ := claims["editionType"].(string); edition != "" {
		user.EditionType = edition
	}
	if plat, _ := claims["buildPlat"].(float64); plat != 0 {
		user.BuildPlatform = int(plat)
	}
	return user
}
