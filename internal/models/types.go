package models

import "encoding/json"

// SessionStartRequest is the payload exchanged for an authorization header.
type SessionStartRequest struct {
	User   SessionUser   `json:"user"`
	Device SessionDevice `json:"device"`
}

type SessionUser struct {
	Language     string `json:"language"`
	LanguageCode string `json:"languageCode"`
	RegionCode   string `json:"regionCode"`
	Token        string `json:"token"`
	TokenType    string `json:"tokentype"`
}

// SessionDevice describes the client. Memory is cosmetic telemetry.
type SessionDevice struct {
	ApplicationType    string          `json:"applicationType"`
	Memory             int64           `json:"memory"`
	ID                 string          `json:"id"`
	GameVersion        string          `json:"gameVersion"`
	Platform           string          `json:"platform"`
	PlayFabTitleID     string          `json:"playFabTitleId"`
	StorePlatform      string          `json:"storePlatform"`
	TreatmentOverrides json.RawMessage `json:"treatmentOverrides"`
	Type               string          `json:"type"`
}

type SessionStartResponse struct {
	Result struct {
		AuthorizationHeader string `json:"authorizationHeader"`
	} `json:"result"`

	// Raw is the undecoded response body.
	Raw json.RawMessage `json:"-"`
}

// VirtualTransactionRequest is the Minecoin purchase payload.
type VirtualTransactionRequest struct {
	CustomTags      CustomTags      `json:"CustomTags"`
	OfferID         string          `json:"OfferId"`
	StoreID         string          `json:"StoreId"`
	VirtualCurrency VirtualCurrency `json:"VirtualCurrency"`
}

// CustomTags carries the idempotency/audit fields of a purchase.
type CustomTags struct {
	BuildPlat       int    `json:"BuildPlat"`
	ClientID        string `json:"ClientId"`
	CorrelationID   string `json:"CorrelationId"`
	DeviceSessionID string `json:"DeviceSessionId"`
	Seq             int    `json:"Seq"`
	TitleID         string `json:"TitleId"`
	XUID            string `json:"Xuid"`
	EditionType     string `json:"editionType"`
}

type VirtualCurrency struct {
	Amount string `json:"Amount"`
	Type   string `json:"Type"`
}

// UpstreamErrorBody is the error shape of the entitlements service.
type UpstreamErrorBody struct {
	Code string `json:"code"`
}

type InventoryResponse struct {
	Result struct {
		Inventory struct {
			Entitlements []json.RawMessage `json:"entitlements"`
		} `json:"inventory"`
	} `json:"result"`
}

type StoreConfigResponse struct {
	Result struct {
		StoreFilters []StoreFilter `json:"storeFilters"`
	} `json:"result"`
}

type StoreFilter struct {
	FilterType string         `json:"filterType"`
	Toggles    []FilterToggle `json:"toggles"`
}

type FilterToggle struct {
	FilterName string `json:"filterName"`
	FilterID   string `json:"filterId"`
}

// EntityKey identifies a PlayFab entity.
type EntityKey struct {
	ID   string `json:"Id"`
	Type string `json:"Type"`
}

type EntityTokenRequest struct {
	Entity *EntityKey `json:"Entity,omitempty"`
}

// PlayFabEnvelope is the common PlayFab response wrapper.
type PlayFabEnvelope struct {
	Code   *int            `json:"code"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type EntityTokenData struct {
	EntityToken     string     `json:"EntityToken"`
	TokenExpiration string     `json:"TokenExpiration"`
	Entity          *EntityKey `json:"Entity"`
}

type ReviewRequest struct {
	ItemID string `json:"ItemId"`
	Review Review `json:"Review"`
}

type Review struct {
	IsInstalled bool `json:"IsInstalled"`
	Rating      int  `json:"Rating"`
}
