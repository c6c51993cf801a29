package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 20

var upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "purchase_upstream_request_duration_seconds",
	Help:    "Latency distribution of upstream marketplace calls",
	Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
}, []string{"endpoint", "outcome"})

// Endpoints are the upstream base URLs, without trailing slash.
type Endpoints struct {
	Auth         string
	Entitlements string
	Store        string
	PlayFab      string
	Marketplace  string
}

// DefaultEndpoints returns the production hosts for a PlayFab title.
func DefaultEndpoints(titleID string) Endpoints {
	return Endpoints{
		Auth:         "https://authorization.franchise.minecraft-services.net",
		Entitlements: "https://entitlements.mktpl.minecraft-services.net",
		Store:        "https://store.mktpl.minecraft-services.net",
		PlayFab:      fmt.Sprintf("https://%s.playfabapi.com", titleID),
	}
}

type Options struct {
	Endpoints      Endpoints
	Timeout        time.Duration
	BreakerEnabled bool
	AcceptLanguage string
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Client talks to the marketplace backend. Every method issues exactly one
// outbound call bounded by the configured timeout.
type Client struct {
	http           *http.Client
	endpoints      Endpoints
	timeout        time.Duration
	acceptLanguage string
	breakers       *breakerSet
	logger         *zap.Logger
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	var breakers *breakerSet
	if opts.BreakerEnabled {
		breakers = newBreakerSet(logger)
	}
	return &Client{
		http:           httpClient,
		endpoints:      trimEndpoints(opts.Endpoints),
		timeout:        timeout,
		acceptLanguage: opts.AcceptLanguage,
		breakers:       breakers,
		logger:         logger,
	}
}

// StatusError is a non-2xx upstream reply. Body is kept for diagnostics.
type StatusError struct {
	Endpoint string
	Status   int
	Body     []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: upstream status %d", e.Endpoint, e.Status)
}

// StartSession exchanges a session ticket for an authorization header.
func (c *Client) StartSession(ctx context.Context, requestID string, payload models.SessionStartRequest) (*models.SessionStartResponse, error) {
	body, err := c.do(ctx, call{
		endpoint:  "session_start",
		method:    http.MethodPost,
		url:       c.endpoints.Auth + "/api/v1.0/session/start",
		body:      payload,
		requestID: requestID,
		header: http.Header{
			"User-Agent": {"MCPE/UWP"},
		},
	})
	if err != nil {
		return nil, err
	}
	var resp models.SessionStartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode session start: %w", err)
	}
	resp.Raw = body
	return &resp, nil
}

// Balances returns the virtual currency balances verbatim.
func (c *Client) Balances(ctx context.Context, token, requestID string) (json.RawMessage, error) {
	return c.do(ctx, call{
		endpoint:  "balances",
		method:    http.MethodPost,
		url:       c.endpoints.Entitlements + "/api/v1.0/currencies/virtual/balances",
		body:      struct{}{},
		token:     token,
		requestID: requestID,
	})
}

// Inventory returns the player's entitlements, never nil.
func (c *Client) Inventory(ctx context.Context, token, requestID string, includeReceipt bool) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("includeReceipt", strconv.FormatBool(includeReceipt))
	body, err := c.do(ctx, call{
		endpoint:  "inventory",
		method:    http.MethodGet,
		url:       c.endpoints.Entitlements + "/api/v1.0/player/inventory?" + q.Encode(),
		token:     token,
		requestID: requestID,
	})
	if err != nil {
		return nil, err
	}
	var resp models.InventoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	entitlements := resp.Result.Inventory.Entitlements
	if entitlements == nil {
		entitlements = []json.RawMessage{}
	}
	return entitlements, nil
}

// VirtualTransaction posts one Minecoin purchase and returns the upstream
// response verbatim. It is never short-circuited by the breaker: every
// purchase attempt is sent exactly once.
func (c *Client) VirtualTransaction(ctx context.Context, token, requestID string, payload models.VirtualTransactionRequest) (json.RawMessage, error) {
	return c.do(ctx, call{
		endpoint:  "transaction_virtual",
		method:    http.MethodPost,
		url:       c.endpoints.Entitlements + "/api/v1.0/transaction/virtual",
		body:      payload,
		token:     token,
		requestID: requestID,
		header: http.Header{
			"Connection":       {"Keep-Alive"},
			"User-Agent":       {"libhttpclient/1.0.0.0"},
			"Inventoryetag":    {"1/MTE0MQ=="},
			"Inventoryversion": {"1/MTE0MQ=="},
		},
		unguarded: true,
	})
}

// StoreConfig returns the marketplace session config (store filters).
func (c *Client) StoreConfig(ctx context.Context, token, requestID string) (*models.StoreConfigResponse, error) {
	body, err := c.do(ctx, call{
		endpoint:  "store_config",
		method:    http.MethodGet,
		url:       c.endpoints.Store + "/api/v1.0/session/config",
		token:     token,
		requestID: requestID,
	})
	if err != nil {
		return nil, err
	}
	var resp models.StoreConfigResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode store config: %w", err)
	}
	return &resp, nil
}

// EntityToken mints a PlayFab entity token from a session ticket.
func (c *Client) EntityToken(ctx context.Context, requestID, sessionTicket string, entity *models.EntityKey) (*models.EntityTokenData, error) {
	body, err := c.do(ctx, call{
		endpoint:  "entity_token",
		method:    http.MethodPost,
		url:       c.endpoints.PlayFab + "/Authentication/GetEntityToken",
		body:      models.EntityTokenRequest{Entity: entity},
		requestID: requestID,
		header: http.Header{
			"X-Authorization": {sessionTicket},
		},
	})
	if err != nil {
		return nil, err
	}
	var env models.PlayFabEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode entity token: %w", err)
	}
	var data models.EntityTokenData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("decode entity token data: %w", err)
		}
	}
	return &data, nil
}

// SubmitReview creates or updates a catalog review.
func (c *Client) SubmitReview(ctx context.Context, requestID, entityToken string, review models.ReviewRequest) (*models.PlayFabEnvelope, error) {
	body, err := c.do(ctx, call{
		endpoint:  "catalog_review",
		method:    http.MethodPost,
		url:       c.endpoints.PlayFab + "/Catalog/CreateOrUpdateReview",
		body:      review,
		requestID: requestID,
		header: http.Header{
			"X-EntityToken":   {entityToken},
			"Accept-Language": {c.acceptLanguage},
		},
	})
	if err != nil {
		return nil, err
	}
	var env models.PlayFabEnvelope
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode review: %w", err)
		}
	}
	if env.Data == nil {
		env.Data = body
	}
	return &env, nil
}

// Marketplace performs a GET against the optional marketplace API.
func (c *Client) Marketplace(ctx context.Context, requestID, path, bearer string) (json.RawMessage, error) {
	if c.endpoints.Marketplace == "" {
		return nil, fmt.Errorf("marketplace API base not configured")
	}
	header := http.Header{}
	if bearer != "" {
		header.Set("Authorization", "Bearer "+bearer)
	}
	return c.do(ctx, call{
		endpoint:  "marketplace",
		method:    http.MethodGet,
		url:       c.endpoints.Marketplace + path,
		requestID: requestID,
		header:    header,
	})
}

type call struct {
	endpoint  string
	method    string
	url       string
	body      any
	token     string
	requestID string
	header    http.Header
	// unguarded calls bypass the breaker and always reach the upstream.
	unguarded bool
}

type reply struct {
	status int
	body   []byte
}

func (c *Client) do(ctx context.Context, cl call) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	breakers := c.breakers
	if cl.unguarded {
		breakers = nil
	}

	start := time.Now()
	res, err := breakers.execute(ctx, hostOf(cl.url), func() (*reply, error) {
		return c.roundTrip(callCtx, cl)
	})
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case res.status < 200 || res.status > 299:
		outcome = strconv.Itoa(res.status)
	}
	upstreamDuration.WithLabelValues(cl.endpoint, outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Debug("upstream call failed",
			zap.String("endpoint", cl.endpoint),
			zap.String("request_id", cl.requestID),
			zap.Error(err))
		return nil, err
	}
	if res.status < 200 || res.status > 299 {
		return nil, &StatusError{Endpoint: cl.endpoint, Status: res.status, Body: res.body}
	}
	return res.body, nil
}

// roundTrip reports transport failures and 5xx replies as errors so they
// count against the breaker; 4xx replies are business outcomes.
func (c *Client) roundTrip(ctx context.Context, cl call) (*reply, error) {
	var reader io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", cl.endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, cl.url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.token != "" {
		req.Header.Set("Authorization", cl.token)
	}
	if cl.requestID != "" {
		req.Header.Set("X-Correlation-Id", cl.requestID)
	}
	for key, values := range cl.header {
		for _, v := range values {
			if v != "" {
				req.Header.Set(key, v)
			}
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", cl.endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", cl.endpoint, err)
	}
	if resp.StatusCode >= 500 {
		return nil, &StatusError{Endpoint: cl.endpoint, Status: resp.StatusCode, Body: body}
	}
	return &reply{status: resp.StatusCode, body: body}, nil
}

func trimEndpoints(e Endpoints) Endpoints {
	return Endpoints{
		Auth:         strings.TrimRight(e.Auth, "/"),
		Entitlements: strings.TrimRight(e.Entitlements, "/"),
		Store:        strings.TrimRight(e.Store, "/"),
		PlayFab:      strings.TrimRight(e.PlayFab, "/"),
		Marketplace:  strings.TrimRight(e.Marketplace, "/"),
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Host
}
