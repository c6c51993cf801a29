package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler, breaker bool) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		Endpoints: Endpoints{
			Auth:         srv.URL,
			Entitlements: srv.URL + "/",
			Store:        srv.URL,
			PlayFab:      srv.URL,
			Marketplace:  srv.URL,
		},
		Timeout:        time.Second,
		BreakerEnabled: breaker,
		AcceptLanguage: "en-US",
	})
}

func TestStartSession(t *testing.T) {
	var got models.SessionStartRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1.0/session/start", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "MCPE/UWP", r.Header.Get("User-Agent"))
		assert.Equal(t, "req-1", r.Header.Get("X-Correlation-Id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"result":{"authorizationHeader":"MCToken abc"}}`))
	}), false)

	resp, err := client.StartSession(context.Background(), "req-1", models.SessionStartRequest{
		User: models.SessionUser{Token: "ticket", TokenType: "playfab"},
	})
	require.NoError(t, err)
	assert.Equal(t, "MCToken abc", resp.Result.AuthorizationHeader)
	assert.Equal(t, "ticket", got.User.Token)
	assert.JSONEq(t, `{"result":{"authorizationHeader":"MCToken abc"}}`, string(resp.Raw))
}

func TestVirtualTransaction_HeadersAndBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1.0/transaction/virtual", r.URL.Path)
		assert.Equal(t, "MCToken abc", r.Header.Get("Authorization"))
		assert.Equal(t, "1/MTE0MQ==", r.Header.Get("inventoryetag"))
		assert.Equal(t, "1/MTE0MQ==", r.Header.Get("inventoryversion"))
		assert.Equal(t, "libhttpclient/1.0.0.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{
			"CustomTags": {"BuildPlat":1,"ClientId":"c","CorrelationId":"corr","DeviceSessionId":"dev","Seq":5,"TitleId":"20ca2","Xuid":"Unknown","editionType":"Android"},
			"OfferId":"offer-1","StoreId":"","VirtualCurrency":{"Amount":"500","Type":"Minecoin"}
		}`, string(body))
		_, _ = w.Write([]byte(`{"result":{"id":"tx"}}`))
	}), false)

	out, err := client.VirtualTransaction(context.Background(), "MCToken abc", "", models.VirtualTransactionRequest{
		CustomTags: models.CustomTags{
			BuildPlat: 1, ClientID: "c", CorrelationID: "corr", DeviceSessionID: "dev",
			Seq: 5, TitleID: "20ca2", XUID: "Unknown", EditionType: "Android",
		},
		OfferID:         "offer-1",
		VirtualCurrency: models.VirtualCurrency{Amount: "500", Type: "Minecoin"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":{"id":"tx"}}`, string(out))
}

func TestStatusErrorKeepsBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"AlreadyOwned"}`))
	}), true)

	_, err := client.VirtualTransaction(context.Background(), "t", "", models.VirtualTransactionRequest{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.JSONEq(t, `{"code":"AlreadyOwned"}`, string(se.Body))
}

func TestInventory(t *testing.T) {
	t.Run("passes receipt flag and extracts entitlements", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "true", r.URL.Query().Get("includeReceipt"))
			_, _ = w.Write([]byte(`{"result":{"inventory":{"entitlements":[{"id":"a"},{"id":"b"}]}}}`))
		}), false)

		items, err := client.Inventory(context.Background(), "t", "", true)
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("missing entitlements yields empty slice", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "false", r.URL.Query().Get("includeReceipt"))
			_, _ = w.Write([]byte(`{"result":{}}`))
		}), false)

		items, err := client.Inventory(context.Background(), "t", "", false)
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Options{
		Endpoints: Endpoints{Entitlements: srv.URL},
		Timeout:   50 * time.Millisecond,
	})

	start := time.Now()
	_, err := client.Balances(context.Background(), "t", "")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEntityToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Authentication/GetEntityToken", r.URL.Path)
		assert.Equal(t, "ticket", r.Header.Get("X-Authorization"))
		var req models.EntityTokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Entity)
		assert.Equal(t, "master_player_account", req.Entity.Type)
		_, _ = w.Write([]byte(`{"code":200,"status":"OK","data":{"EntityToken":"ent-1"}}`))
	}), false)

	data, err := client.EntityToken(context.Background(), "", "ticket", &models.EntityKey{ID: "p1", Type: "master_player_account"})
	require.NoError(t, err)
	assert.Equal(t, "ent-1", data.EntityToken)
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}), true)

	for i := 0; i < 5; i++ {
		_, err := client.Balances(context.Background(), "t", "")
		require.Error(t, err)
	}
	_, err := client.Balances(context.Background(), "t", "")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, int32(5), hits.Load())
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusConflict)
	}), true)

	for i := 0; i < 8; i++ {
		_, err := client.Balances(context.Background(), "t", "")
		var se *StatusError
		require.True(t, errors.As(err, &se))
	}
	assert.Equal(t, int32(8), hits.Load())
}

func TestMarketplaceBearer(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/marketplace/details/abc", r.URL.Path)
		assert.Equal(t, "Bearer xyz", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}), false)

	out, err := client.Marketplace(context.Background(), "", "/marketplace/details/abc", "xyz")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))
}

func TestVirtualTransactionBypassesBreaker(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"code":"Busy"}`))
	}), true)

	for i := 0; i < 12; i++ {
		_, err := client.VirtualTransaction(context.Background(), "t", "", models.VirtualTransactionRequest{OfferID: "o"})
		var se *StatusError
		require.True(t, errors.As(err, &se), "attempt %d: %v", i, err)
		assert.Equal(t, http.StatusBadGateway, se.Status)
		assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
	}
	assert.Equal(t, int32(12), hits.Load())
}

func TestBreakerIgnoresCallerDeadline(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-time.After(50 * time.Millisecond):
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte(`{}`))
	}), true)

	for i := 0; i < 6; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		_, err := client.Balances(ctx, "t", "")
		cancel()
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}

	before := hits.Load()
	_, err := client.Balances(context.Background(), "t", "")
	require.NoError(t, err)
	assert.Equal(t, before+1, hits.Load())
}

func TestBreakerIgnoresCallerCancel(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}), true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 6; i++ {
		_, err := client.Balances(ctx, "t", "")
		assert.ErrorIs(t, err, context.Canceled)
	}

	_, err := client.Balances(context.Background(), "t", "")
	assert.NoError(t, err)
}

func TestBreakerCountsCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	client := NewClient(Options{
		Endpoints:      Endpoints{Entitlements: srv.URL},
		Timeout:        5 * time.Millisecond,
		BreakerEnabled: true,
	})

	for i := 0; i < 5; i++ {
		_, err := client.Balances(context.Background(), "t", "")
		require.Error(t, err)
	}
	_, err := client.Balances(context.Background(), "t", "")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}
