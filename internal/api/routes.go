package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	JWTSecret         string
	CORSOrigins       []string
	PurchaseRateLimit int
}

func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(h.NotFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.MethodNotAllowedHandler)
	r.Use(h.instrument)

	r.HandleFunc("/healthz", h.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	auth := jwtAuth([]byte(opts.JWTSecret))

	inventory := r.PathPrefix("/inventory").Subrouter()
	inventory.Use(auth)
	inventory.HandleFunc("/balances", h.BalancesHandler).Methods("GET")
	inventory.HandleFunc("/entitlements", h.EntitlementsHandler).Methods("GET")

	me := r.PathPrefix("/me").Subrouter()
	me.Use(auth)
	me.HandleFunc("/summary", h.SummaryHandler).Methods("GET")

	marketplace := r.PathPrefix("/marketplace").Subrouter()
	marketplace.Use(auth)
	marketplace.HandleFunc("/creators", h.CreatorsHandler).Methods("GET")
	marketplace.HandleFunc("/creator/summary", h.CreatorSummaryHandler).Methods("GET")
	marketplace.HandleFunc("/offer/details", h.OfferDetailsHandler).Methods("GET")

	purchase := r.PathPrefix("/purchase").Subrouter()
	purchase.Use(newRateLimiter(opts.PurchaseRateLimit).Middleware, auth, maxBody)
	purchase.HandleFunc("/quote", h.QuoteHandler).Methods("POST")
	purchase.HandleFunc("/virtual", h.VirtualPurchaseHandler).Methods("POST")
	purchase.HandleFunc("/virtual/bulk", h.BulkPurchaseHandler).Methods("POST")
	purchase.HandleFunc("/rating", h.RatingHandler).Methods("POST")
	purchase.HandleFunc("/inventory/balances", h.PurchaseBalancesHandler).Methods("GET")
	purchase.HandleFunc("/inventory/entitlements", h.PurchaseEntitlementsHandler).Methods("GET")
	purchase.HandleFunc("/inventory/creators", h.InventoryCreatorsHandler).Methods("GET")
	purchase.HandleFunc("/marketplace/creators", h.PurchaseCreatorsHandler).Methods("GET")

	return requestID(cors(opts.CORSOrigins, r))
}
