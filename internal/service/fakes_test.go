package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/models"
	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/store"
)

// fakeUpstream records every call; all fields are guarded by mu.
type fakeUpstream struct {
	mu sync.Mutex

	sessionPayloads []models.SessionStartRequest
	sessionResp     *models.SessionStartResponse
	sessionErr      error

	entityCalls []models.EntityKey
	entityToken string
	entityErr   error

	balanceCalls int
	balances     json.RawMessage
	balancesErr  error

	inventoryReceipts []bool
	inventory         []json.RawMessage
	inventoryErr      error

	txTokens   []string
	txPayloads []models.VirtualTransactionRequest
	txResp     json.RawMessage
	txErr      func(models.VirtualTransactionRequest) error

	storeConfig *models.StoreConfigResponse
	storeErr    error

	reviewTokens []string
	reviews      []models.ReviewRequest
	reviewEnv    *models.PlayFabEnvelope
	reviewErr    error

	marketplacePaths   []string
	marketplaceBearers []string
	marketplaceResp    json.RawMessage
	marketplaceErr     error
}

var _ Upstream = (*fakeUpstream)(nil)

func (f *fakeUpstream) StartSession(_ context.Context, _ string, payload models.SessionStartRequest) (*models.SessionStartResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionPayloads = append(f.sessionPayloads, payload)
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	if f.sessionResp != nil {
		return f.sessionResp, nil
	}
	resp := &models.SessionStartResponse{}
	resp.Result.AuthorizationHeader = "MCToken minted"
	return resp, nil
}

func (f *fakeUpstream) EntityToken(_ context.Context, _, _ string, entity *models.EntityKey) (*models.EntityTokenData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entityCalls = append(f.entityCalls, *entity)
	if f.entityErr != nil {
		return nil, f.entityErr
	}
	token := f.entityToken
	if token == "" {
		token = "entity-token"
	}
	return &models.EntityTokenData{EntityToken: token}, nil
}

func (f *fakeUpstream) Balances(_ context.Context, _, _ string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceCalls++
	if f.balancesErr != nil {
		return nil, f.balancesErr
	}
	if f.balances == nil {
		return json.RawMessage(`{"Minecoin":{"amount":100}}`), nil
	}
	return f.balances, nil
}

func (f *fakeUpstream) Inventory(_ context.Context, _, _ string, includeReceipt bool) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inventoryReceipts = append(f.inventoryReceipts, includeReceipt)
	if f.inventoryErr != nil {
		return nil, f.inventoryErr
	}
	return f.inventory, nil
}

func (f *fakeUpstream) VirtualTransaction(_ context.Context, token, _ string, payload models.VirtualTransactionRequest) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txTokens = append(f.txTokens, token)
	f.txPayloads = append(f.txPayloads, payload)
	if f.txErr != nil {
		if err := f.txErr(payload); err != nil {
			return nil, err
		}
	}
	if f.txResp == nil {
		return json.RawMessage(`{"result":{"status":"ok"}}`), nil
	}
	return f.txResp, nil
}

func (f *fakeUpstream) StoreConfig(_ context.Context, _, _ string) (*models.StoreConfigResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	if f.storeConfig == nil {
		return &models.StoreConfigResponse{}, nil
	}
	return f.storeConfig, nil
}

func (f *fakeUpstream) SubmitReview(_ context.Context, _, entityToken string, review models.ReviewRequest) (*models.PlayFabEnvelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviewTokens = append(f.reviewTokens, entityToken)
	f.reviews = append(f.reviews, review)
	if f.reviewErr != nil {
		return nil, f.reviewErr
	}
	if f.reviewEnv == nil {
		code := 200
		return &models.PlayFabEnvelope{Code: &code, Status: "OK", Data: json.RawMessage(`{}`)}, nil
	}
	return f.reviewEnv, nil
}

func (f *fakeUpstream) Marketplace(_ context.Context, _, path, bearer string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marketplacePaths = append(f.marketplacePaths, path)
	f.marketplaceBearers = append(f.marketplaceBearers, bearer)
	if f.marketplaceErr != nil {
		return nil, f.marketplaceErr
	}
	return f.marketplaceResp, nil
}

func (f *fakeUpstream) txCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.txPayloads)
}

func statusErr(status int, body string) error {
	return &store.StatusError{Endpoint: "test", Status: status, Body: []byte(body)}
}

func failAll(err error) func(models.VirtualTransactionRequest) error {
	return func(models.VirtualTransactionRequest) error { return err }
}
