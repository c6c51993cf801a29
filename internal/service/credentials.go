package service

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/models"
	"github.com/google/uuid"
)

// SessionExchanger is the upstream surface used for credential resolution.
type SessionExchanger interface {
	StartSession(ctx context.Context, requestID string, payload models.SessionStartRequest) (*models.SessionStartResponse, error)
	EntityToken(ctx context.Context, requestID, sessionTicket string, entity *models.EntityKey) (*models.EntityTokenData, error)
}

// DeviceProfile is the fixed device descriptor sent on session exchange.
type DeviceProfile struct {
	GameVersion    string
	Platform       string
	PlayFabTitleID string
}

type CredentialResolver struct {
	upstream SessionExchanger
	device   DeviceProfile

	newDeviceID func() string
	newMemory   func() int64
}

func NewCredentialResolver(upstream SessionExchanger, device DeviceProfile) *CredentialResolver {
	return &CredentialResolver{
		upstream:    upstream,
		device:      device,
		newDeviceID: uuid.NewString,
		newMemory:   func() int64 { return rand.Int64N(1_000_000_000_000) + 1 },
	}
}

// Resolve turns caller credentials into an upstream authorization. A token is
// used as-is; a session ticket costs exactly one exchange call.
func (r *CredentialResolver) Resolve(ctx context.Context, creds domain.Credentials) (domain.Authorization, error) {
	if token := strings.TrimSpace(creds.Token); token != "" {
		return domain.Authorization{Token: token, RequestID: creds.RequestID}, nil
	}
	ticket := strings.TrimSpace(creds.SessionTicket)
	if ticket == "" {
		return domain.Authorization{}, domain.BadRequest("x-mc-token or x-playfab-session is required")
	}

	payload := models.SessionStartRequest{
		User: models.SessionUser{
			Language:     "en",
			LanguageCode: "en-US",
			RegionCode:   "US",
			Token:        ticket,
			TokenType:    "playfab",
		},
		Device: models.SessionDevice{
			ApplicationType: "MinecraftPE",
			Memory:          r.newMemory(),
			ID:              r.newDeviceID(),
			GameVersion:     r.device.GameVersion,
			Platform:        r.device.Platform,
			PlayFabTitleID:  r.device.PlayFabTitleID,
			StorePlatform:   "uwp.store",
			Type:            r.device.Platform,
		},
	}

	resp, err := r.upstream.StartSession(ctx, creds.RequestID, payload)
	if err != nil {
		return domain.Authorization{}, upstreamFailure("Failed to get Minecraft token", err)
	}
	if resp.Result.AuthorizationHeader == "" {
		return domain.Authorization{}, domain.Upstream("Failed to get Minecraft token", domain.RawDetails(resp.Raw), nil)
	}
	return domain.Authorization{Token: resp.Result.AuthorizationHeader, RequestID: creds.RequestID}, nil
}

// EntityToken mints a PlayFab entity token for a master player account.
func (r *CredentialResolver) EntityToken(ctx context.Context, requestID, sessionTicket, playfabID string) (string, error) {
	sessionTicket = strings.TrimSpace(sessionTicket)
	playfabID = strings.TrimSpace(playfabID)
	if sessionTicket == "" {
		return "", domain.BadRequest("x-playfab-session is required")
	}
	if playfabID == "" {
		return "", domain.BadRequest("x-playfab-id is required")
	}

	data, err := r.upstream.EntityToken(ctx, requestID, sessionTicket, &models.EntityKey{
		ID:   playfabID,
		Type: "master_player_account",
	})
	if err != nil {
		return "", upstreamFailure("Failed to get PlayFab EntityToken", err)
	}
	token := strings.TrimSpace(data.EntityToken)
	if token == "" {
		return "", domain.Upstream("Failed to resolve EntityToken", nil, nil)
	}
	return token, nil
}
