package domain

import "encoding/json"

// Credentials is what a caller presents. Token wins over SessionTicket.
type Credentials struct {
	Token         string
	SessionTicket string
	RequestID     string
}

// Authorization is a resolved upstream token. RequestID is forwarded as
// x-correlation-id on every outbound call made with it.
type Authorization struct {
	Token     string
	RequestID string
}

// PurchaseRequest is a single Minecoin purchase. Pointer fields are optional
// and fall back to batch-shared options, then configured defaults.
type PurchaseRequest struct {
	OfferID         string  `json:"offerId"`
	Price           float64 `json:"price"`
	XUID            *string `json:"xuid,omitempty"`
	CorrelationID   *string `json:"correlationId,omitempty"`
	DeviceSessionID *string `json:"deviceSessionId,omitempty"`
	Seq             *int    `json:"seq,omitempty"`
	BuildPlatform   *int    `json:"buildPlat,omitempty"`
	ClientID        *string `json:"clientIdPurchase,omitempty"`
	EditionType     *string `json:"editionType,omitempty"`
}

// SharedOptions are batch-level per-field defaults for PurchaseRequest.
type SharedOptions struct {
	XUID            *string `json:"xuid,omitempty"`
	CorrelationID   *string `json:"correlationId,omitempty"`
	DeviceSessionID *string `json:"deviceSessionId,omitempty"`
	Seq             *int    `json:"seq,omitempty"`
	BuildPlatform   *int    `json:"buildPlat,omitempty"`
	ClientID        *string `json:"clientIdPurchase,omitempty"`
	EditionType     *string `json:"editionType,omitempty"`
}

// Apply fills every field absent from req with the shared value, if any.
func (o SharedOptions) Apply(req PurchaseRequest) PurchaseRequest {
	if req.XUID == nil {
		req.XUID = o.XUID
	}
	if req.CorrelationID == nil {
		req.CorrelationID = o.CorrelationID
	}
	if req.DeviceSessionID == nil {
		req.DeviceSessionID = o.DeviceSessionID
	}
	if req.Seq == nil {
		req.Seq = o.Seq
	}
	if req.BuildPlatform == nil {
		req.BuildPlatform = o.BuildPlatform
	}
	if req.ClientID == nil {
		req.ClientID = o.ClientID
	}
	if req.EditionType == nil {
		req.EditionType = o.EditionType
	}
	return req
}

// PurchaseResult is the success variant of a purchase. The
// correlation/device-session/sequence triple is the audit key.
type PurchaseResult struct {
	CorrelationID   string          `json:"correlationId"`
	DeviceSessionID string          `json:"deviceSessionId"`
	Seq             int             `json:"seq"`
	Transaction     json.RawMessage `json:"transaction"`
}

// IndexedPurchaseResult is one batch slot. Exactly one of Transaction and
// Error is set.
type IndexedPurchaseResult struct {
	Index       int             `json:"index"`
	OfferID     string          `json:"offerId"`
	Price       float64         `json:"price"`
	OK          bool            `json:"ok"`
	Transaction *PurchaseResult `json:"transaction,omitempty"`
	Error       *Error          `json:"error,omitempty"`
}

// InventoryView wraps entitlements with their count.
type InventoryView struct {
	Count        int               `json:"count"`
	Entitlements []json.RawMessage `json:"entitlements"`
}

func NewInventoryView(entitlements []json.RawMessage) *InventoryView {
	if entitlements == nil {
		entitlements = []json.RawMessage{}
	}
	return &InventoryView{Count: len(entitlements), Entitlements: entitlements}
}

// PostState is the balance/inventory snapshot read after purchases. A nil
// field means that read failed.
type PostState struct {
	Balances  json.RawMessage `json:"balances"`
	Inventory *InventoryView  `json:"inventory"`
}

// PurchaseReceipt is the single-purchase response; PostState is omitted
// entirely when it was not requested.
type PurchaseReceipt struct {
	PurchaseResult
	*PostState
}

// BatchReport aggregates a batch. Count == SuccessCount + FailureCount ==
// len(Results), and Results is ordered by input index.
type BatchReport struct {
	Count        int                     `json:"count"`
	SuccessCount int                     `json:"successCount"`
	FailureCount int                     `json:"failureCount"`
	Results      []IndexedPurchaseResult `json:"results"`
	Balances     json.RawMessage         `json:"balances"`
	Inventory    *InventoryView          `json:"inventory"`
}

// Quote echoes a validated offer without touching the network.
type Quote struct {
	OfferID string          `json:"offerId"`
	Price   float64         `json:"price"`
	Details json.RawMessage `json:"details"`
}

// RatingRequest submits a 1..5 rating for an owned catalog item.
type RatingRequest struct {
	ItemID      string
	Rating      int
	IsInstalled bool

	// EntityToken, when set, is used as-is and skips the ownership check.
	EntityToken      string
	SessionTicket    string
	PlayFabID        string
	EnforceOwnership bool
	RequestID        string
}

type RatingResult struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
}

// CreatorSummary counts owned entitlements per creator.
type CreatorSummary struct {
	Count        int            `json:"count"`
	TotalItems   int            `json:"totalItems"`
	UnknownCount int            `json:"unknownCount"`
	Creators     map[string]int `json:"creators"`
}

// UserProfile is the caller identity echoed by the profile summary.
type UserProfile struct {
	ID            *string `json:"id"`
	XUID          *string `json:"xuid"`
	EditionType   string  `json:"editionType"`
	BuildPlatform int     `json:"buildPlat"`
}

// ProfileSummary is the caller's identity plus the optional balance and
// inventory parts. A part that was requested but failed is null; a part that
// was not requested is absent.
type ProfileSummary struct {
	User UserProfile

	Balances          json.RawMessage
	Inventory         *InventoryView
	BalancesIncluded  bool
	InventoryIncluded bool
}

func (s ProfileSummary) MarshalJSON() ([]byte, error) {
	out := map[string]any{"user": s.User}
	if s.BalancesIncluded {
		out["balances"] = s.Balances
	}
	if s.InventoryIncluded {
		out["inventory"] = s.Inventory
	}
	return json.Marshal(out)
}
