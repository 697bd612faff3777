package remotecommand

import (
	"net/url"

	"github.com/shortontech/attributionrc/internal/attribution"
	"github.com/shortontech/attributionrc/internal/payload"
	"github.com/shortontech/attributionrc/internal/sdk"
)

type initCall struct {
	token    string
	sandbox  bool
	settings payload.Object
}

type sharingCall struct {
	enabled *bool
	options map[string]map[string]string
}

// recordingTracker stores every call the dispatcher makes.
type recordingTracker struct {
	calls []string

	inits        []initCall
	configs      []*sdk.Config
	events       []attribution.Event
	subs         []attribution.Subscription
	revenues     []attribution.AdRevenue
	urls         []*url.URL
	pushTokens   []string
	enabled      []bool
	offline      []bool
	sharing      []sharingCall
	consents     []bool
	addCallback  []map[string]string
	rmCallback   [][]string
	addPartner   []map[string]string
	rmPartner    [][]string
	panicOnEvent bool
}

func (r *recordingTracker) Initialize(token string, sandbox bool, settings payload.Object) {
	r.calls = append(r.calls, "Initialize")
	r.inits = append(r.inits, initCall{token, sandbox, settings})
}

func (r *recordingTracker) InitializeConfig(cfg *sdk.Config) {
	r.calls = append(r.calls, "InitializeConfig")
	r.configs = append(r.configs, cfg)
}

func (r *recordingTracker) SendEvent(ev attribution.Event) {
	if r.panicOnEvent {
		panic("boom")
	}
	r.calls = append(r.calls, "SendEvent")
	r.events = append(r.events, ev)
}

func (r *recordingTracker) TrackSubscription(sub attribution.Subscription) {
	r.calls = append(r.calls, "TrackSubscription")
	r.subs = append(r.subs, sub)
}

func (r *recordingTracker) TrackAdRevenue(rev attribution.AdRevenue) {
	r.calls = append(r.calls, "TrackAdRevenue")
	r.revenues = append(r.revenues, rev)
}

func (r *recordingTracker) AppWillOpenURL(u *url.URL) {
	r.calls = append(r.calls, "AppWillOpenURL")
	r.urls = append(r.urls, u)
}

func (r *recordingTracker) SetPushToken(token string) {
	r.calls = append(r.calls, "SetPushToken")
	r.pushTokens = append(r.pushTokens, token)
}

func (r *recordingTracker) SetEnabled(enabled bool) {
	r.calls = append(r.calls, "SetEnabled")
	r.enabled = append(r.enabled, enabled)
}

func (r *recordingTracker) SetOfflineMode(offline bool) {
	r.calls = append(r.calls, "SetOfflineMode")
	r.offline = append(r.offline, offline)
}

func (r *recordingTracker) GDPRForgetMe() { r.calls = append(r.calls, "GDPRForgetMe") }

func (r *recordingTracker) SetThirdPartySharing(enabled *bool, options map[string]map[string]string) {
	r.calls = append(r.calls, "SetThirdPartySharing")
	r.sharing = append(r.sharing, sharingCall{enabled, options})
}

func (r *recordingTracker) TrackMeasurementConsent(consented bool) {
	r.calls = append(r.calls, "TrackMeasurementConsent")
	r.consents = append(r.consents, consented)
}

func (r *recordingTracker) AddCallbackParams(params map[string]string) {
	r.calls = append(r.calls, "AddCallbackParams")
	r.addCallback = append(r.addCallback, params)
}

func (r *recordingTracker) RemoveCallbackParams(keys []string) {
	r.calls = append(r.calls, "RemoveCallbackParams")
	r.rmCallback = append(r.rmCallback, keys)
}

func (r *recordingTracker) ResetCallbackParams() { r.calls = append(r.calls, "ResetCallbackParams") }

func (r *recordingTracker) AddPartnerParams(params map[string]string) {
	r.calls = append(r.calls, "AddPartnerParams")
	r.addPartner = append(r.addPartner, params)
}

func (r *recordingTracker) RemovePartnerParams(keys []string) {
	r.calls = append(r.calls, "RemovePartnerParams")
	r.rmPartner = append(r.rmPartner, keys)
}

func (r *recordingTracker) ResetPartnerParams() { r.calls = append(r.calls, "ResetPartnerParams") }

func (r *recordingTracker) count(name string) int {
	n := 0
	for _, c := range r.calls {
		if c == name {
			n++
		}
	}
	return n
}

var _ attribution.Tracker = (*recordingTracker)(nil)
