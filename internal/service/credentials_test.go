package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(up *fakeUpstream) *CredentialResolver {
	r := NewCredentialResolver(up, DeviceProfile{GameVersion: "1.21.62", Platform: "Windows10", PlayFabTitleID: "20ca2"})
	r.newDeviceID = func() string { return "device-1" }
	r.newMemory = func() int64 { return 42 }
	return r
}

func TestResolve_TokenUsedAsIs(t *testing.T) {
	up := &fakeUpstream{}
	auth, err := newTestResolver(up).Resolve(context.Background(), domain.Credentials{
		Token:         "MCToken abc",
		SessionTicket: "ticket",
		RequestID:     "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "MCToken abc", auth.Token)
	assert.Equal(t, "req-1", auth.RequestID)
	assert.Empty(t, up.sessionPayloads)
}

func TestResolve_MissingCredentials(t *testing.T) {
	up := &fakeUpstream{}
	_, err := newTestResolver(up).Resolve(context.Background(), domain.Credentials{Token: "  "})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindBadRequest))
	assert.Equal(t, "x-mc-token or x-playfab-session is required", err.Error())
	assert.Empty(t, up.sessionPayloads)
}

func TestResolve_SessionExchange(t *testing.T) {
	up := &fakeUpstream{}
	auth, err := newTestResolver(up).Resolve(context.Background(), domain.Credentials{SessionTicket: "ticket-1", RequestID: "req-2"})
	require.NoError(t, err)
	assert.Equal(t, "MCToken minted", auth.Token)
	assert.Equal(t, "req-2", auth.RequestID)

	require.Len(t, up.sessionPayloads, 1)
	p := up.sessionPayloads[0]
	assert.Equal(t, models.SessionUser{
		Language:     "en",
		LanguageCode: "en-US",
		RegionCode:   "US",
		Token:        "ticket-1",
		TokenType:    "playfab",
	}, p.User)
	assert.Equal(t, "MinecraftPE", p.Device.ApplicationType)
	assert.Equal(t, "device-1", p.Device.ID)
	assert.Equal(t, int64(42), p.Device.Memory)
	assert.Equal(t, "1.21.62", p.Device.GameVersion)
	assert.Equal(t, "Windows10", p.Device.Platform)
	assert.Equal(t, "Windows10", p.Device.Type)
	assert.Equal(t, "20ca2", p.Device.PlayFabTitleID)
	assert.Equal(t, "uwp.store", p.Device.StorePlatform)
}

func TestResolve_EmptyAuthorizationHeader(t *testing.T) {
	up := &fakeUpstream{sessionResp: &models.SessionStartResponse{Raw: []byte(`{"result":{}}`)}}
	_, err := newTestResolver(up).Resolve(context.Background(), domain.Credentials{SessionTicket: "ticket"})

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindUpstream, de.Kind)
	assert.Equal(t, "Failed to get Minecraft token", de.Message)
	assert.JSONEq(t, `{"result":{}}`, string(de.Details))
}

func TestResolve_UpstreamRejects(t *testing.T) {
	up := &fakeUpstream{sessionErr: statusErr(401, `{"error":"bad ticket"}`)}
	_, err := newTestResolver(up).Resolve(context.Background(), domain.Credentials{SessionTicket: "ticket"})

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindUpstream, de.Kind)
	assert.Equal(t, 502, de.Status)
	assert.JSONEq(t, `{"error":"bad ticket"}`, string(de.Details))
	assert.Len(t, up.sessionPayloads, 1)
}

func TestEntityToken(t *testing.T) {
	up := &fakeUpstream{entityToken: " tok "}
	r := newTestResolver(up)

	token, err := r.EntityToken(context.Background(), "req", "ticket", "PF123")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, []models.EntityKey{{ID: "PF123", Type: "master_player_account"}}, up.entityCalls)

	_, err = r.EntityToken(context.Background(), "req", "", "PF123")
	assert.True(t, domain.IsKind(err, domain.KindBadRequest))
	_, err = r.EntityToken(context.Background(), "req", "ticket", "")
	assert.True(t, domain.IsKind(err, domain.KindBadRequest))
	assert.Len(t, up.entityCalls, 1)

	up.entityErr = errors.New("dial tcp: refused")
	_, err = r.EntityToken(context.Background(), "req", "ticket", "PF123")
	assert.True(t, domain.IsKind(err, domain.KindUpstream))
}
