package command

// Initialization keys.
const (
	APIToken = "api_token"
	Sandbox  = "sandbox"
	Settings = "settings"
)

// Settings sub-document keys.
const (
	LogLevel                = "log_level"
	PreinstallTracking      = "preinstall_tracking"
	DefaultTracker          = "default_tracker"
	SendInBackground        = "send_in_background"
	URLStrategy             = "url_strategy"
	URLStrategyDomains      = "url_strategy_domains"
	URLStrategyUseSubdomain = "url_strategy_use_subdomain"
	URLStrategyIsResidency  = "url_strategy_is_residency"
	COPPACompliant          = "coppa_compliant"
	PlayStoreKidsEnabled    = "play_store_kids_enabled"
	DeduplicationIDMaxSize  = "deduplication_id_max_size"

	// legacy generation only
	AppSecret             = "app_secret"
	SecretInfo1           = "secret_info_1"
	SecretInfo2           = "secret_info_2"
	SecretInfo3           = "secret_info_3"
	SecretInfo4           = "secret_info_4"
	DelayStart            = "delay_start"
	EventBufferingEnabled = "event_buffering_enabled"
)

// Event, subscription and ad revenue keys.
const (
	EventToken      = "event_token"
	Revenue         = "revenue"
	Currency        = "currency"
	OrderID         = "order_id"
	DeduplicationID = "deduplication_id"
	SKU             = "sku"
	Signature       = "signature"
	PurchaseToken   = "purchase_token"
	PurchaseTime    = "purchase_time"

	CallbackID         = "callback_id"
	CallbackParameters = "callback"
	PartnerParameters  = "partner"

	SessionCallbackParameters       = "session_callback"
	SessionPartnerParameters        = "session_partner"
	RemoveSessionCallbackParameters = "remove_session_callback_params"
	RemoveSessionPartnerParameters  = "remove_session_partner_params"

	GlobalCallbackParameters       = "global_callback"
	GlobalPartnerParameters        = "global_partner"
	RemoveGlobalCallbackParameters = "remove_global_callback_params"
	RemoveGlobalPartnerParameters  = "remove_global_partner_params"

	DeeplinkURL = "deeplink_open_url"

	AdRevenueSource           = "ad_revenue_source"
	AdRevenuePayload          = "ad_revenue_payload"
	AdRevenueUnit             = "unit"
	AdRevenueNetwork          = "network"
	AdRevenueAmount           = "amount"
	AdRevenueCurrency         = "currency"
	AdRevenuePlacement        = "placement"
	AdRevenueImpressionsCount = "impressions_count"
)

// Privacy and toggle keys.
const (
	Enabled                  = "enabled"
	Offline                  = "offline"
	PushToken                = "push_token"
	MeasurementConsent       = "measurement_consent"
	ThirdPartySharingEnabled = "third_party_sharing_enabled"
	ThirdPartySharingOptions = "third_party_sharing_options"
)

// Family groups the payload keys that carry one parameter set.
type Family int

const (
	CallbackFamily Family = iota
	PartnerFamily
)

// AddKeys returns the keys holding parameters to add, in precedence order.
// The first key present wins; the others are ignored.
func (s Schema) AddKeys(f Family) []string {
	if s == SchemaLegacy {
		if f == PartnerFamily {
			return []string{SessionPartnerParameters}
		}
		return []string{SessionCallbackParameters}
	}
	if f == PartnerFamily {
		return []string{GlobalPartnerParameters, SessionPartnerParameters}
	}
	return []string{GlobalCallbackParameters, SessionCallbackParameters}
}

// RemoveKeys returns the keys holding parameter names to remove, in
// precedence order.
func (s Schema) RemoveKeys(f Family) []string {
	if s == SchemaLegacy {
		if f == PartnerFamily {
			return []string{RemoveSessionPartnerParameters}
		}
		return []string{RemoveSessionCallbackParameters}
	}
	if f == PartnerFamily {
		return []string{RemoveGlobalPartnerParameters, RemoveSessionPartnerParameters}
	}
	return []string{RemoveGlobalCallbackParameters, RemoveSessionCallbackParameters}
}
