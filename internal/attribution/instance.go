package attribution

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/shortontech/attributionrc/internal/command"
	"github.com/shortontech/attributionrc/internal/lifecycle"
	"github.com/shortontech/attributionrc/internal/payload"
	"github.com/shortontech/attributionrc/internal/sdk"
)

// LifecycleSource is where an Instance registers for pause and resume.
type LifecycleSource interface {
	Subscribe(o lifecycle.Observer)
}

// Option configures an Instance.
type Option func(*Instance)

// WithSchema selects the settings and parameter semantics. Defaults to the
// current generation.
func WithSchema(s command.Schema) Option { return func(i *Instance) { i.schema = s } }

func WithLogger(l logrus.FieldLogger) Option { return func(i *Instance) { i.log = l } }

// Instance drives an sdk.SDK. It is Uninitialized until the first initialize
// call and Initialized forever after.
type Instance struct {
	sdk    sdk.SDK
	schema command.Schema
	log    logrus.FieldLogger

	claimed     *atomic.Bool
	initialized *atomic.Bool
	needsResume *atomic.Bool
}

var (
	_ Tracker            = (*Instance)(nil)
	_ lifecycle.Observer = (*Instance)(nil)
)

// NewInstance wraps s and subscribes to src when it is not nil.
func NewInstance(s sdk.SDK, src LifecycleSource, opts ...Option) *Instance {
	i := &Instance{
		sdk:         s,
		schema:      command.SchemaCurrent,
		log:         logrus.StandardLogger(),
		claimed:     atomic.NewBool(false),
		initialized: atomic.NewBool(false),
		needsResume: atomic.NewBool(false),
	}
	for _, o := range opts {
		o(i)
	}
	i.log = i.log.WithField("component", "attribution")
	if src != nil {
		src.Subscribe(i)
	}
	return i
}

// Initialized reports whether the SDK has been started.
func (i *Instance) Initialized() bool { return i.initialized.Load() }

func (i *Instance) Initialize(apiToken string, sandbox bool, settings payload.Object) {
	if i.claimed.Load() {
		i.log.Debug("already initialized")
		return
	}
	env := sdk.EnvironmentProduction
	if sandbox {
		env = sdk.EnvironmentSandbox
	}
	cfg := sdk.NewConfig(apiToken, env)
	if settings == nil {
		settings = payload.Object{}
	}
	if i.schema == command.SchemaLegacy {
		i.applyLegacySettings(cfg, settings)
	} else {
		i.applySettings(cfg, settings)
	}
	i.InitializeConfig(cfg)
}

// InitializeConfig starts the SDK once. A config without an app token is
// refused and leaves the instance uninitialized.
func (i *Instance) InitializeConfig(cfg *sdk.Config) {
	if cfg == nil || strings.TrimSpace(cfg.AppToken) == "" {
		i.log.Error("refusing to initialize without an app token")
		return
	}
	if !i.claimed.CAS(false, true) {
		i.log.Debug("already initialized")
		return
	}
	i.sdk.InitSDK(cfg)
	i.initialized.Store(true)
	i.log.WithField("environment", cfg.Environment).Info("sdk initialized")

	if i.needsResume.CAS(true, false) {
		i.sdk.OnResume()
	}
}

func (i *Instance) applySettings(cfg *sdk.Config, settings payload.Object) {
	i.applyLogLevel(cfg, settings)

	if settings.BoolOr(command.PreinstallTracking, false) {
		cfg.PreinstallTracking = true
	}
	if settings.BoolOr(command.SendInBackground, false) {
		cfg.SendInBackground = true
	}
	if t := settings.OptString(command.DefaultTracker); t != nil {
		cfg.DefaultTracker = *t
	}

	name := ""
	if s := settings.OptString(command.URLStrategy); s != nil {
		name = *s
	}
	if preset, ok := LookupURLStrategy(name); ok {
		cfg.URLStrategy = &preset
	} else {
		cfg.URLStrategy = &sdk.URLStrategy{
			Domains:         settings.StringList(command.URLStrategyDomains),
			UseSubdomains:   settings.BoolOr(command.URLStrategyUseSubdomain, false),
			IsDataResidency: settings.BoolOr(command.URLStrategyIsResidency, false),
		}
	}

	if settings.BoolOr(command.COPPACompliant, false) {
		cfg.COPPACompliant = true
	}
	if settings.BoolOr(command.PlayStoreKidsEnabled, false) {
		cfg.PlayStoreKids = true
	}
	if settings.Has(command.DeduplicationIDMaxSize) {
		n := settings.OptInt(command.DeduplicationIDMaxSize, 0)
		cfg.DeduplicationIDMaxSize = &n
	}
}

// applyLegacySettings maps the older settings shape: flags are passed
// through as given and the URL strategy is a named SDK constant.
func (i *Instance) applyLegacySettings(cfg *sdk.Config, settings payload.Object) {
	i.applyLogLevel(cfg, settings)

	if settings.Has(command.PreinstallTracking) {
		cfg.PreinstallTracking = settings.BoolOr(command.PreinstallTracking, false)
	}
	if settings.Has(command.SendInBackground) {
		cfg.SendInBackground = settings.BoolOr(command.SendInBackground, false)
	}
	if t := settings.OptString(command.DefaultTracker); t != nil {
		cfg.DefaultTracker = *t
	}
	if s := settings.OptString(command.URLStrategy); s != nil {
		cfg.NamedURLStrategy = *s
	}
	if settings.BoolOr(command.COPPACompliant, false) {
		cfg.COPPACompliant = true
	}
	if settings.BoolOr(command.PlayStoreKidsEnabled, false) {
		cfg.PlayStoreKids = true
	}
	if settings.Has(command.AppSecret) {
		cfg.AppSecret = &sdk.AppSecret{
			ID:    settings.OptInt64(command.AppSecret, 0),
			Info1: settings.OptInt64(command.SecretInfo1, 0),
			Info2: settings.OptInt64(command.SecretInfo2, 0),
			Info3: settings.OptInt64(command.SecretInfo3, 0),
			Info4: settings.OptInt64(command.SecretInfo4, 0),
		}
	}
	if d := settings.OptFloat(command.DelayStart); d != nil && *d > 0 {
		cfg.DelayStart = time.Duration(*d * float64(time.Second))
	}
	if settings.Has(command.EventBufferingEnabled) {
		cfg.EventBuffering = settings.BoolOr(command.EventBufferingEnabled, false)
	}
}

func (i *Instance) applyLogLevel(cfg *sdk.Config, settings payload.Object) {
	s := settings.OptString(command.LogLevel)
	if s == nil {
		return
	}
	if l, ok := logLevels[*s]; ok {
		cfg.LogLevel = l
	}
}

func (i *Instance) SendEvent(ev Event) {
	e := sdk.NewEvent(ev.Token)
	if ev.OrderID != nil {
		e.OrderID = *ev.OrderID
	}
	if i.schema == command.SchemaCurrent {
		switch {
		case ev.DeduplicationID != nil:
			e.DeduplicationID = *ev.DeduplicationID
		case ev.OrderID != nil:
			e.DeduplicationID = *ev.OrderID
		}
	}
	if ev.Revenue != nil {
		currency := ""
		if ev.Currency != nil {
			currency = *ev.Currency
		}
		e.SetRevenue(*ev.Revenue, currency)
	}
	if ev.CallbackID != nil {
		e.CallbackID = *ev.CallbackID
	}
	for k, v := range ev.CallbackParams {
		e.AddCallbackParameter(k, v)
	}
	for k, v := range ev.PartnerParams {
		e.AddPartnerParameter(k, v)
	}
	i.sdk.TrackEvent(e)
}

func (i *Instance) TrackSubscription(sub Subscription) {
	s := sdk.NewSubscription(sub.Price, sub.Currency, sub.SKU, sub.OrderID, sub.Signature, sub.PurchaseToken)
	s.PurchaseTime = sub.PurchaseTime
	for k, v := range sub.CallbackParams {
		s.AddCallbackParameter(k, v)
	}
	for k, v := range sub.PartnerParams {
		s.AddPartnerParameter(k, v)
	}
	i.sdk.TrackPlayStoreSubscription(s)
}

func (i *Instance) TrackAdRevenue(rev AdRevenue) {
	if i.schema == command.SchemaLegacy {
		if rev.Payload == nil {
			i.log.WithField("source", rev.Source).Warn("ad revenue payload missing")
			return
		}
		i.sdk.TrackAdRevenueRaw(rev.Source, map[string]any(rev.Payload))
		return
	}

	r := sdk.NewAdRevenue(rev.Source)
	if rev.Amount != nil {
		currency := ""
		if rev.Currency != nil {
			currency = *rev.Currency
		}
		r.SetRevenue(*rev.Amount, currency)
	}
	if rev.Network != nil {
		r.Network = *rev.Network
	}
	if rev.Unit != nil {
		r.Unit = *rev.Unit
	}
	if rev.Placement != nil {
		r.Placement = *rev.Placement
	}
	if rev.ImpressionsCount != nil {
		r.ImpressionsCount = *rev.ImpressionsCount
	}
	i.sdk.TrackAdRevenue(r)
}

func (i *Instance) AppWillOpenURL(u *url.URL) {
	if u == nil {
		return
	}
	i.sdk.ProcessDeeplink(sdk.Deeplink{URL: u})
}

func (i *Instance) SetPushToken(token string) { i.sdk.SetPushToken(token) }

func (i *Instance) SetEnabled(enabled bool) {
	if enabled {
		i.sdk.Enable()
	} else {
		i.sdk.Disable()
	}
}

func (i *Instance) SetOfflineMode(offline bool) {
	if offline {
		i.sdk.SwitchToOfflineMode()
	} else {
		i.sdk.SwitchBackToOnlineMode()
	}
}

func (i *Instance) GDPRForgetMe() { i.sdk.GDPRForgetMe() }

func (i *Instance) SetThirdPartySharing(enabled *bool, options map[string]map[string]string) {
	if enabled == nil && options == nil {
		return
	}
	if i.schema == command.SchemaLegacy {
		if enabled == nil {
			return
		}
		if *enabled {
			i.sdk.TrackThirdPartySharing(sdk.NewThirdPartySharing(enabled))
		} else {
			i.sdk.DisableThirdPartySharing()
		}
		return
	}

	sharing := sdk.NewThirdPartySharing(enabled)
	partners := make([]string, 0, len(options))
	for p := range options {
		partners = append(partners, p)
	}
	sort.Strings(partners)
	for _, p := range partners {
		keys := make([]string, 0, len(options[p]))
		for k := range options[p] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sharing.AddGranularOption(p, k, options[p][k])
		}
	}
	i.sdk.TrackThirdPartySharing(sharing)
}

func (i *Instance) TrackMeasurementConsent(consented bool) {
	i.sdk.TrackMeasurementConsent(consented)
}

func (i *Instance) AddCallbackParams(params map[string]string) {
	for k, v := range params {
		if i.schema == command.SchemaLegacy {
			i.sdk.AddSessionCallbackParameter(k, v)
		} else {
			i.sdk.AddGlobalCallbackParameter(k, v)
		}
	}
}

func (i *Instance) RemoveCallbackParams(keys []string) {
	for _, k := range keys {
		if i.schema == command.SchemaLegacy {
			i.sdk.RemoveSessionCallbackParameter(k)
		} else {
			i.sdk.RemoveGlobalCallbackParameter(k)
		}
	}
}

func (i *Instance) ResetCallbackParams() {
	if i.schema == command.SchemaLegacy {
		i.sdk.ResetSessionCallbackParameters()
		return
	}
	i.sdk.RemoveGlobalCallbackParameters()
}

func (i *Instance) AddPartnerParams(params map[string]string) {
	for k, v := range params {
		if i.schema == command.SchemaLegacy {
			i.sdk.AddSessionPartnerParameter(k, v)
		} else {
			i.sdk.AddGlobalPartnerParameter(k, v)
		}
	}
}

func (i *Instance) RemovePartnerParams(keys []string) {
	for _, k := range keys {
		if i.schema == command.SchemaLegacy {
			i.sdk.RemoveSessionPartnerParameter(k)
		} else {
			i.sdk.RemoveGlobalPartnerParameter(k)
		}
	}
}

func (i *Instance) ResetPartnerParams() {
	if i.schema == command.SchemaLegacy {
		i.sdk.ResetSessionPartnerParameters()
		return
	}
	i.sdk.RemoveGlobalPartnerParameters()
}

// OnPause is forwarded only once the SDK is running.
func (i *Instance) OnPause() {
	if i.initialized.Load() {
		i.sdk.OnPause()
	}
}

// OnResume is forwarded when running and deferred until initialization
// otherwise.
func (i *Instance) OnResume() {
	if i.initialized.Load() {
		i.sdk.OnResume()
		return
	}
	i.needsResume.Store(true)
	// initialization may have finished between the load and the store
	if i.initialized.Load() && i.needsResume.CAS(true, false) {
		i.sdk.OnResume()
	}
}
