package activity

import (
	"time"

	"github.com/google/uuid"
)

// Kind names what an activity records.
type Kind string

const (
	KindSession            Kind = "session"
	KindEvent              Kind = "event"
	KindSubscription       Kind = "subscription"
	KindAdRevenue          Kind = "ad_revenue"
	KindDeeplink           Kind = "deeplink"
	KindPushToken          Kind = "push_token"
	KindGDPRForgetMe       Kind = "gdpr_forget_me"
	KindThirdPartySharing  Kind = "third_party_sharing"
	KindMeasurementConsent Kind = "measurement_consent"
)

// High-level envelope for one SDK package. Optional fields are omitted when empty.
type Activity struct {
	ActivityID  string `json:"activity_id,omitempty"`
	TS          string `json:"ts,omitempty"` // ISO8601
	Kind        Kind   `json:"kind,omitempty"`
	AppToken    string `json:"app_token,omitempty"`
	Environment string `json:"environment,omitempty"` // "sandbox" or "production"
	Endpoint    string `json:"endpoint,omitempty"`    // host chosen by the URL strategy
	SDKVersion  string `json:"sdk_version,omitempty"`

	Event        *EventInfo        `json:"event,omitempty"`
	Subscription *SubscriptionInfo `json:"subscription,omitempty"`
	AdRevenue    *AdRevenueInfo    `json:"ad_revenue,omitempty"`
	Deeplink     string            `json:"deeplink,omitempty"`
	PushToken    string            `json:"push_token,omitempty"`
	Consent      *ConsentInfo      `json:"consent,omitempty"`
	Session      *SessionInfo      `json:"session,omitempty"`

	CallbackParams map[string]string `json:"callback_params,omitempty"`
	PartnerParams  map[string]string `json:"partner_params,omitempty"`
}

// New stamps a fresh id and timestamp.
func New(kind Kind, now time.Time) Activity {
	return Activity{
		ActivityID: uuid.New().String(),
		TS:         now.UTC().Format(time.RFC3339Nano),
		Kind:       kind,
	}
}

// --- Event ---

type EventInfo struct {
	Token           string   `json:"token"`
	OrderID         string   `json:"order_id,omitempty"`
	DeduplicationID string   `json:"deduplication_id,omitempty"`
	Revenue         *float64 `json:"revenue,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	CallbackID      string   `json:"callback_id,omitempty"`
}

// --- Subscription ---

type SubscriptionInfo struct {
	Price         int64  `json:"price"` // smallest currency unit
	Currency      string `json:"currency"`
	SKU           string `json:"sku"`
	OrderID       string `json:"order_id"`
	Signature     string `json:"signature"`
	PurchaseToken string `json:"purchase_token"`
	PurchaseTime  int64  `json:"purchase_time,omitempty"` // epoch millis
}

// --- Ad revenue ---

type AdRevenueInfo struct {
	Source           string         `json:"source"`
	Amount           *float64       `json:"amount,omitempty"`
	Currency         string         `json:"currency,omitempty"`
	Network          string         `json:"network,omitempty"`
	Unit             string         `json:"unit,omitempty"`
	Placement        string         `json:"placement,omitempty"`
	ImpressionsCount int64          `json:"impressions_count,omitempty"`
	Raw              map[string]any `json:"raw,omitempty"` // opaque payload from the legacy schema
}

// --- Consent ---

type ConsentInfo struct {
	ThirdPartySharing  *bool                        `json:"third_party_sharing,omitempty"`
	GranularOptions    map[string]map[string]string `json:"granular_options,omitempty"`
	MeasurementConsent *bool                        `json:"measurement_consent,omitempty"`
	ForgetMe           bool                         `json:"forget_me,omitempty"`
}

// --- Session ---

type SessionInfo struct {
	SessionCount int    `json:"session_count,omitempty"`
	DefaultTrack string `json:"default_tracker,omitempty"`
	Preinstall   bool   `json:"preinstall,omitempty"`
	Background   bool   `json:"send_in_background,omitempty"`
	COPPA        bool   `json:"coppa_compliant,omitempty"`
	PlayStoreKid bool   `json:"play_store_kids,omitempty"`
	AppSecretID  int64  `json:"app_secret_id,omitempty"`
}
