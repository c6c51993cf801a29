package api

import (
	"encoding/json"
	"net/http"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "purchase_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "endpoint"})
)

// UserDefaults fill the profile fields a JWT does not carry.
type UserDefaults struct {
	EditionType   string
	BuildPlatform int
}

type Deps struct {
	Purchases   *service.Purchases
	Ratings     *service.Ratings
	Marketplace *service.Marketplace
	StoreConfig service.StoreConfigSource
	User        UserDefaults
	Production  bool
	Logger      *zap.Logger
}

type Handler struct {
	purchases   *service.Purchases
	ratings     *service.Ratings
	marketplace *service.Marketplace
	storeConfig service.StoreConfigSource
	user        UserDefaults
	production  bool
	logger      *zap.Logger
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		purchases:   d.Purchases,
		ratings:     d.Ratings,
		marketplace: d.Marketplace,
		storeConfig: d.StoreConfig,
		user:        d.User,
		production:  d.Production,
		logger:      logger,
	}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
