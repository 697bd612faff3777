// Package attribution is the seam between remote commands and the
// attribution SDK. Tracker is what the dispatcher drives; Instance is the
// SDK-backed implementation.
package attribution

import (
	"net/url"

	"github.com/shortontech/attributionrc/internal/payload"
	"github.com/shortontech/attributionrc/internal/sdk"
)

// Tracker is one method per remote action. Nil optional values leave the
// SDK default untouched.
type Tracker interface {
	// Initialize builds a config from the settings document and starts the
	// SDK. Calls after the first are ignored.
	Initialize(apiToken string, sandbox bool, settings payload.Object)
	// InitializeConfig starts the SDK with a prebuilt config.
	InitializeConfig(cfg *sdk.Config)

	SendEvent(ev Event)
	TrackSubscription(sub Subscription)
	TrackAdRevenue(rev AdRevenue)
	AppWillOpenURL(u *url.URL)
	SetPushToken(token string)

	SetEnabled(enabled bool)
	SetOfflineMode(offline bool)

	GDPRForgetMe()
	// SetThirdPartySharing sends nothing when enabled and options are both nil.
	SetThirdPartySharing(enabled *bool, options map[string]map[string]string)
	TrackMeasurementConsent(consented bool)

	AddCallbackParams(params map[string]string)
	RemoveCallbackParams(keys []string)
	ResetCallbackParams()
	AddPartnerParams(params map[string]string)
	RemovePartnerParams(keys []string)
	ResetPartnerParams()
}

// Event is a trackevent request.
type Event struct {
	Token           string
	OrderID         *string
	DeduplicationID *string
	Revenue         *float64
	Currency        *string
	CallbackID      *string
	CallbackParams  map[string]string
	PartnerParams   map[string]string
}

// Subscription is a tracksubscription request. Everything but the parameter
// sets is required.
type Subscription struct {
	Price         int64
	Currency      string
	SKU           string
	OrderID       string
	Signature     string
	PurchaseToken string
	// PurchaseTime is epoch millis.
	PurchaseTime   int64
	CallbackParams map[string]string
	PartnerParams  map[string]string
}

// AdRevenue is a trackadrevenue request. Payload is the raw mediation
// document; the structured fields are read from it or from the request.
type AdRevenue struct {
	Source  string
	Payload payload.Object

	Amount           *float64
	Currency         *string
	Network          *string
	Unit             *string
	Placement        *string
	ImpressionsCount *int64
}
