package attribution

import (
	"fmt"
	"sync"

	"github.com/shortontech/attributionrc/internal/sdk"
)

// fakeSDK records every call by name.
type fakeSDK struct {
	mu    sync.Mutex
	calls []string

	configs   []*sdk.Config
	events    []*sdk.Event
	subs      []*sdk.Subscription
	revenues  []*sdk.AdRevenue
	rawSource string
	raw       map[string]any
	sharing   []*sdk.ThirdPartySharing
	links     []sdk.Deeplink
}

func (f *fakeSDK) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeSDK) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeSDK) InitSDK(cfg *sdk.Config) {
	f.configs = append(f.configs, cfg)
	f.record("InitSDK")
}

func (f *fakeSDK) TrackEvent(ev *sdk.Event) {
	f.events = append(f.events, ev)
	f.record("TrackEvent")
}

func (f *fakeSDK) TrackPlayStoreSubscription(sub *sdk.Subscription) {
	f.subs = append(f.subs, sub)
	f.record("TrackPlayStoreSubscription")
}

func (f *fakeSDK) TrackAdRevenue(rev *sdk.AdRevenue) {
	f.revenues = append(f.revenues, rev)
	f.record("TrackAdRevenue")
}

func (f *fakeSDK) TrackAdRevenueRaw(source string, raw map[string]any) {
	f.rawSource, f.raw = source, raw
	f.record("TrackAdRevenueRaw")
}

func (f *fakeSDK) ProcessDeeplink(link sdk.Deeplink) {
	f.links = append(f.links, link)
	f.record("ProcessDeeplink")
}

func (f *fakeSDK) SetPushToken(token string) { f.record("SetPushToken %s", token) }
func (f *fakeSDK) Enable() { f.record("Enable") }
func (f *fakeSDK) Disable() { f.record("Disable") }
func (f *fakeSDK) SwitchToOfflineMode() { f.record("SwitchToOfflineMode") }
func (f *fakeSDK) SwitchBackToOnlineMode() { f.record("SwitchBackToOnlineMode") }
func (f *fakeSDK) GDPRForgetMe() { f.record("GDPRForgetMe") }

func (f *fakeSDK) TrackThirdPartySharing(s *sdk.ThirdPartySharing) {
	f.sharing = append(f.sharing, s)
	f.record("TrackThirdPartySharing")
}

func (f *fakeSDK) DisableThirdPartySharing() { f.record("DisableThirdPartySharing") }
func (f *fakeSDK) TrackMeasurementConsent(consented bool) {
	f.record("TrackMeasurementConsent %t", consented)
}

func (f *fakeSDK) AddGlobalCallbackParameter(k, v string) {
	f.record("AddGlobalCallbackParameter %s=%s", k, v)
}
func (f *fakeSDK) RemoveGlobalCallbackParameter(k string) {
	f.record("RemoveGlobalCallbackParameter %s", k)
}
func (f *fakeSDK) RemoveGlobalCallbackParameters() { f.record("RemoveGlobalCallbackParameters") }
func (f *fakeSDK) AddGlobalPartnerParameter(k, v string) {
	f.record("AddGlobalPartnerParameter %s=%s", k, v)
}
func (f *fakeSDK) RemoveGlobalPartnerParameter(k string) {
	f.record("RemoveGlobalPartnerParameter %s", k)
}
func (f *fakeSDK) RemoveGlobalPartnerParameters() { f.record("RemoveGlobalPartnerParameters") }
func (f *fakeSDK) AddSessionCallbackParameter(k, v string) {
	f.record("AddSessionCallbackParameter %s=%s", k, v)
}
func (f *fakeSDK) RemoveSessionCallbackParameter(k string) {
	f.record("RemoveSessionCallbackParameter %s", k)
}
func (f *fakeSDK) ResetSessionCallbackParameters() { f.record("ResetSessionCallbackParameters") }
func (f *fakeSDK) AddSessionPartnerParameter(k, v string) {
	f.record("AddSessionPartnerParameter %s=%s", k, v)
}
func (f *fakeSDK) RemoveSessionPartnerParameter(k string) {
	f.record("RemoveSessionPartnerParameter %s", k)
}
func (f *fakeSDK) ResetSessionPartnerParameters() { f.record("ResetSessionPartnerParameters") }

func (f *fakeSDK) OnResume() { f.record("OnResume") }
func (f *fakeSDK) OnPause() { f.record("OnPause") }

var _ sdk.SDK = (*fakeSDK)(nil)
