// Package sdk models the third-party attribution SDK the remote command
// drives, and ships a server-side client that turns SDK calls into activity
// envelopes for the sinks.
package sdk

// SDK is the surface of the attribution SDK. Parameter sets, the
// enabled/offline switches and every buffer behind these calls are owned by
// the implementation.
type SDK interface {
	InitSDK(cfg *Config)

	TrackEvent(ev *Event)
	TrackPlayStoreSubscription(sub *Subscription)
	TrackAdRevenue(rev *AdRevenue)
	// TrackAdRevenueRaw reports an opaque mediation payload (legacy generation).
	TrackAdRevenueRaw(source string, raw map[string]any)
	ProcessDeeplink(link Deeplink)
	SetPushToken(token string)

	Enable()
	Disable()
	SwitchToOfflineMode()
	SwitchBackToOnlineMode()

	GDPRForgetMe()
	TrackThirdPartySharing(sharing *ThirdPartySharing)
	DisableThirdPartySharing()
	TrackMeasurementConsent(consented bool)

	AddGlobalCallbackParameter(key, value string)
	RemoveGlobalCallbackParameter(key string)
	RemoveGlobalCallbackParameters()
	AddGlobalPartnerParameter(key, value string)
	RemoveGlobalPartnerParameter(key string)
	RemoveGlobalPartnerParameters()

	AddSessionCallbackParameter(key, value string)
	RemoveSessionCallbackParameter(key string)
	ResetSessionCallbackParameters()
	AddSessionPartnerParameter(key, value string)
	RemoveSessionPartnerParameter(key string)
	ResetSessionPartnerParameters()

	OnResume()
	OnPause()
}
