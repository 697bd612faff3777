package sdk

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shortontech/attributionrc/internal/activity"
)

const (
	DefaultSessionInterval = 30 * time.Minute
	DefaultDedupMaxSize    = 10
	DefaultMaxPending      = 1000

	// bufferedFlushSize is the batch size held back when event buffering is on.
	bufferedFlushSize = 10
	defaultDomain     = "adjust.com"
	storeTimeout      = 2 * time.Second
)

// namedStrategies are the legacy generation's URL strategy constants.
var namedStrategies = map[string]URLStrategy{
	"url_strategy_india": {Domains: []string{"adjust.net.in", "adjust.com"}, UseSubdomains: true},
	"url_strategy_china": {Domains: []string{"adjust.world", "adjust.com"}, UseSubdomains: true},
	"url_strategy_cn":    {Domains: []string{"adjust.cn", "adjust.com"}, UseSubdomains: true},
	"data_residency_eu":  {Domains: []string{"eu.adjust.com"}, UseSubdomains: true, IsDataResidency: true},
	"data_residency_tr":  {Domains: []string{"tr.adjust.com"}, UseSubdomains: true, IsDataResidency: true},
	"data_residency_us":  {Domains: []string{"us.adjust.com"}, UseSubdomains: true, IsDataResidency: true},
}

// Option configures a Client.
type Option func(*Client)

// WithStore persists SDK state through s instead of process memory.
func WithStore(s StateStore) Option { return func(c *Client) { c.store = s } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// WithSessionInterval sets how long the app must stay paused before a resume
// starts a new session.
func WithSessionInterval(d time.Duration) Option {
	return func(c *Client) { c.sessionInterval = d }
}

// WithLogger derives the client's logger from base. The client owns its level
// so the SDK log level setting does not leak into the host logger.
func WithLogger(base *logrus.Logger) Option { return func(c *Client) { c.log = deriveLogger(base) } }

// WithQueueObserver is told the pending buffer depth after every change.
func WithQueueObserver(fn func(depth int)) Option { return func(c *Client) { c.onQueue = fn } }

// WithMaxPending bounds the pending buffer; the oldest activity is dropped first.
func WithMaxPending(n int) Option { return func(c *Client) { c.maxPending = n } }

// Client is a server-side SDK implementation. Activities are buffered until
// the SDK is initialized and online, then handed to emit.
type Client struct {
	mu sync.Mutex

	log             *logrus.Logger
	emit            func(activity.Activity)
	store           StateStore
	now             func() time.Time
	sessionInterval time.Duration
	maxPending      int
	onQueue         func(int)

	cfg             *Config
	initialized     bool
	state           State
	sessionCallback map[string]string
	sessionPartner  map[string]string
	pending         []activity.Activity
	paused          bool
	lastActive      time.Time
	sessionCount    int
	delayUntil      time.Time
	endpoint        string
}

var _ SDK = (*Client)(nil)

// NewClient builds a client that emits through emit.
func NewClient(emit func(activity.Activity), opts ...Option) *Client {
	c := &Client{
		log:             deriveLogger(logrus.StandardLogger()),
		emit:            emit,
		store:           NewMemoryStore(),
		now:             time.Now,
		sessionInterval: DefaultSessionInterval,
		maxPending:      DefaultMaxPending,
		state:           DefaultState(),
		sessionCallback: map[string]string{},
		sessionPartner:  map[string]string{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func deriveLogger(base *logrus.Logger) *logrus.Logger {
	return &logrus.Logger{
		Out:          base.Out,
		Formatter:    base.Formatter,
		Hooks:        base.Hooks,
		Level:        base.GetLevel(),
		ExitFunc:     base.ExitFunc,
		ReportCaller: base.ReportCaller,
	}
}

// Restore loads persisted state. A store with nothing saved is not an error.
func (c *Client) Restore(ctx context.Context) error {
	s, err := c.store.Load(ctx)
	if errors.Is(err, ErrNoState) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.GlobalCallback == nil {
		s.GlobalCallback = map[string]string{}
	}
	if s.GlobalPartner == nil {
		s.GlobalPartner = map[string]string{}
	}
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	return nil
}

// Initialized reports whether InitSDK has run.
func (c *Client) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// State returns a copy of the SDK-owned state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneState(c.state)
}

// SessionParams returns copies of the session callback and partner sets.
func (c *Client) SessionParams() (callback, partner map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneMap(c.sessionCallback), cloneMap(c.sessionPartner)
}

// Pending reports how many activities wait to be emitted.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Endpoint is the host selected by the URL strategy.
func (c *Client) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// Logger exposes the client's own logger.
func (c *Client) Logger() *logrus.Logger { return c.log }

func (c *Client) InitSDK(cfg *Config) {
	if cfg == nil || cfg.AppToken == "" {
		c.log.Error("sdk: refusing to initialize without an app token")
		return
	}
	c.locked(func() {
		if c.initialized {
			c.log.Warn("sdk: already initialized")
			return
		}
		cp := *cfg
		c.cfg = &cp
		c.initialized = true
		c.applyLogLevel(cp.LogLevel)
		c.endpoint = c.resolveEndpoint(&cp)
		if cp.DelayStart > 0 {
			c.delayUntil = c.now().Add(cp.DelayStart)
			time.AfterFunc(cp.DelayStart, c.Flush)
		}
		c.log.WithFields(logrus.Fields{
			"environment": cp.Environment,
			"endpoint":    c.endpoint,
		}).Info("sdk: initialized")
		c.startSessionLocked()
	})
}

func (c *Client) TrackEvent(ev *Event) {
	if ev == nil || ev.Token == "" {
		c.log.Error("sdk: event token missing")
		return
	}
	c.locked(func() {
		if ev.DeduplicationID != "" {
			if containsString(c.state.DedupIDs, ev.DeduplicationID) {
				c.log.WithField("deduplication_id", ev.DeduplicationID).Warn("sdk: duplicate event dropped")
				return
			}
			c.rememberDedupLocked(ev.DeduplicationID)
		}
		a := activity.New(activity.KindEvent, c.now())
		a.Event = &activity.EventInfo{
			Token:           ev.Token,
			OrderID:         ev.OrderID,
			DeduplicationID: ev.DeduplicationID,
			Revenue:         ev.Revenue,
			Currency:        ev.Currency,
			CallbackID:      ev.CallbackID,
		}
		a.CallbackParams = mergeParams(c.state.GlobalCallback, c.sessionCallback, ev.CallbackParams)
		a.PartnerParams = mergeParams(c.state.GlobalPartner, c.sessionPartner, ev.PartnerParams)
		c.queueLocked(a)
	})
}

func (c *Client) TrackPlayStoreSubscription(sub *Subscription) {
	if sub == nil {
		return
	}
	c.locked(func() {
		a := activity.New(activity.KindSubscription, c.now())
		a.Subscription = &activity.SubscriptionInfo{
			Price:         sub.Price,
			Currency:      sub.Currency,
			SKU:           sub.SKU,
			OrderID:       sub.OrderID,
			Signature:     sub.Signature,
			PurchaseToken: sub.PurchaseToken,
			PurchaseTime:  sub.PurchaseTime,
		}
		a.CallbackParams = mergeParams(c.state.GlobalCallback, c.sessionCallback, sub.CallbackParams)
		a.PartnerParams = mergeParams(c.state.GlobalPartner, c.sessionPartner, sub.PartnerParams)
		c.queueLocked(a)
	})
}

func (c *Client) TrackAdRevenue(rev *AdRevenue) {
	if rev == nil || rev.Source == "" {
		c.log.Error("sdk: ad revenue source missing")
		return
	}
	c.locked(func() {
		a := activity.New(activity.KindAdRevenue, c.now())
		a.AdRevenue = &activity.AdRevenueInfo{
			Source:           rev.Source,
			Amount:           rev.Amount,
			Currency:         rev.Currency,
			Network:          rev.Network,
			Unit:             rev.Unit,
			Placement:        rev.Placement,
			ImpressionsCount: rev.ImpressionsCount,
		}
		a.CallbackParams = mergeParams(c.state.GlobalCallback, c.sessionCallback, nil)
		a.PartnerParams = mergeParams(c.state.GlobalPartner, c.sessionPartner, nil)
		c.queueLocked(a)
	})
}

func (c *Client) TrackAdRevenueRaw(source string, raw map[string]any) {
	if source == "" {
		c.log.Error("sdk: ad revenue source missing")
		return
	}
	c.locked(func() {
		a := activity.New(activity.KindAdRevenue, c.now())
		a.AdRevenue = &activity.AdRevenueInfo{Source: source, Raw: raw}
		c.queueLocked(a)
	})
}

func (c *Client) ProcessDeeplink(link Deeplink) {
	if link.URL == nil {
		c.log.Error("sdk: deeplink url missing")
		return
	}
	c.locked(func() {
		a := activity.New(activity.KindDeeplink, c.now())
		a.Deeplink = link.URL.String()
		c.queueLocked(a)
	})
}

func (c *Client) SetPushToken(token string) {
	c.locked(func() {
		a := activity.New(activity.KindPushToken, c.now())
		a.PushToken = token
		c.queueLocked(a)
	})
}

func (c *Client) Enable() {
	c.locked(func() {
		c.state.Enabled = true
		c.persistLocked()
		c.log.Info("sdk: enabled")
	})
}

func (c *Client) Disable() {
	c.locked(func() {
		c.state.Enabled = false
		c.persistLocked()
		c.log.Info("sdk: disabled")
	})
}

func (c *Client) SwitchToOfflineMode() {
	c.locked(func() {
		c.state.Offline = true
		c.persistLocked()
		c.log.Info("sdk: offline mode")
	})
}

func (c *Client) SwitchBackToOnlineMode() {
	c.locked(func() {
		c.state.Offline = false
		c.persistLocked()
		c.log.Info("sdk: online mode")
	})
}

// GDPRForgetMe reports the request and then disables the SDK for good.
func (c *Client) GDPRForgetMe() {
	c.locked(func() {
		a := activity.New(activity.KindGDPRForgetMe, c.now())
		a.Consent = &activity.ConsentInfo{ForgetMe: true}
		c.queueLocked(a)
		c.state.Enabled = false
		c.state.GlobalCallback = map[string]string{}
		c.state.GlobalPartner = map[string]string{}
		c.persistLocked()
	})
}

func (c *Client) TrackThirdPartySharing(sharing *ThirdPartySharing) {
	if sharing == nil {
		return
	}
	c.locked(func() {
		a := activity.New(activity.KindThirdPartySharing, c.now())
		info := &activity.ConsentInfo{ThirdPartySharing: sharing.Enabled}
		if len(sharing.GranularOptions) > 0 {
			info.GranularOptions = make(map[string]map[string]string)
			for _, o := range sharing.GranularOptions {
				if info.GranularOptions[o.Partner] == nil {
					info.GranularOptions[o.Partner] = make(map[string]string)
				}
				info.GranularOptions[o.Partner][o.Key] = o.Value
			}
		}
		a.Consent = info
		c.queueLocked(a)
	})
}

func (c *Client) DisableThirdPartySharing() {
	disabled := false
	c.TrackThirdPartySharing(NewThirdPartySharing(&disabled))
}

func (c *Client) TrackMeasurementConsent(consented bool) {
	c.locked(func() {
		a := activity.New(activity.KindMeasurementConsent, c.now())
		a.Consent = &activity.ConsentInfo{MeasurementConsent: &consented}
		c.queueLocked(a)
	})
}

func (c *Client) AddGlobalCallbackParameter(key, value string) {
	c.locked(func() {
		c.state.GlobalCallback[key] = value
		c.persistLocked()
	})
}

func (c *Client) RemoveGlobalCallbackParameter(key string) {
	c.locked(func() {
		delete(c.state.GlobalCallback, key)
		c.persistLocked()
	})
}

func (c *Client) RemoveGlobalCallbackParameters() {
	c.locked(func() {
		c.state.GlobalCallback = map[string]string{}
		c.persistLocked()
	})
}

func (c *Client) AddGlobalPartnerParameter(key, value string) {
	c.locked(func() {
		c.state.GlobalPartner[key] = value
		c.persistLocked()
	})
}

func (c *Client) RemoveGlobalPartnerParameter(key string) {
	c.locked(func() {
		delete(c.state.GlobalPartner, key)
		c.persistLocked()
	})
}

func (c *Client) RemoveGlobalPartnerParameters() {
	c.locked(func() {
		c.state.GlobalPartner = map[string]string{}
		c.persistLocked()
	})
}

func (c *Client) AddSessionCallbackParameter(key, value string) {
	c.locked(func() { c.sessionCallback[key] = value })
}

func (c *Client) RemoveSessionCallbackParameter(key string) {
	c.locked(func() { delete(c.sessionCallback, key) })
}

func (c *Client) ResetSessionCallbackParameters() {
	c.locked(func() { c.sessionCallback = map[string]string{} })
}

func (c *Client) AddSessionPartnerParameter(key, value string) {
	c.locked(func() { c.sessionPartner[key] = value })
}

func (c *Client) RemoveSessionPartnerParameter(key string) {
	c.locked(func() { delete(c.sessionPartner, key) })
}

func (c *Client) ResetSessionPartnerParameters() {
	c.locked(func() { c.sessionPartner = map[string]string{} })
}

// OnResume starts a new session, clearing session parameters, when the app
// was paused for longer than the session interval.
func (c *Client) OnResume() {
	c.locked(func() {
		if !c.initialized {
			return
		}
		now := c.now()
		if c.paused && now.Sub(c.lastActive) > c.sessionInterval {
			c.sessionCallback = map[string]string{}
			c.sessionPartner = map[string]string{}
			c.startSessionLocked()
		}
		c.paused = false
		c.lastActive = now
	})
}

// OnPause flushes whatever is buffered before going to the background.
func (c *Client) OnPause() {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return
	}
	batch := c.drainLocked(true)
	c.paused = true
	c.lastActive = c.now()
	c.mu.Unlock()
	c.deliver(batch)
}

// Flush emits buffered activities, ignoring event buffering.
func (c *Client) Flush() {
	c.mu.Lock()
	batch := c.drainLocked(true)
	c.mu.Unlock()
	c.deliver(batch)
}

func (c *Client) locked(fn func()) {
	c.mu.Lock()
	fn()
	batch := c.drainLocked(false)
	c.mu.Unlock()
	c.deliver(batch)
}

func (c *Client) deliver(batch []activity.Activity) {
	for _, a := range batch {
		c.log.WithFields(logrus.Fields{"kind": a.Kind, "activity_id": a.ActivityID}).Debug("sdk: emit")
		if c.emit != nil {
			c.emit(a)
		}
	}
}

func (c *Client) startSessionLocked() {
	c.sessionCount++
	c.lastActive = c.now()
	a := activity.New(activity.KindSession, c.now())
	a.Session = &activity.SessionInfo{
		SessionCount: c.sessionCount,
		DefaultTrack: c.cfg.DefaultTracker,
		Preinstall:   c.cfg.PreinstallTracking,
		Background:   c.cfg.SendInBackground,
		COPPA:        c.cfg.COPPACompliant,
		PlayStoreKid: c.cfg.PlayStoreKids,
	}
	if c.cfg.AppSecret != nil {
		a.Session.AppSecretID = c.cfg.AppSecret.ID
	}
	a.CallbackParams = mergeParams(c.state.GlobalCallback, c.sessionCallback, nil)
	a.PartnerParams = mergeParams(c.state.GlobalPartner, c.sessionPartner, nil)
	c.queueLocked(a)
}

func (c *Client) queueLocked(a activity.Activity) {
	if !c.state.Enabled {
		c.log.WithField("kind", a.Kind).Debug("sdk: disabled, activity dropped")
		return
	}
	c.pending = append(c.pending, a)
	if c.maxPending > 0 && len(c.pending) > c.maxPending {
		dropped := len(c.pending) - c.maxPending
		c.pending = append([]activity.Activity(nil), c.pending[dropped:]...)
		c.log.WithField("dropped", dropped).Warn("sdk: pending buffer full")
	}
	c.observeQueueLocked()
}

func (c *Client) drainLocked(force bool) []activity.Activity {
	if !c.initialized || c.state.Offline || len(c.pending) == 0 {
		return nil
	}
	if c.now().Before(c.delayUntil) {
		return nil
	}
	if c.paused && !c.cfg.SendInBackground {
		return nil
	}
	if c.cfg.EventBuffering && !force && len(c.pending) < bufferedFlushSize {
		return nil
	}
	batch := c.pending
	c.pending = nil
	for i := range batch {
		batch[i].AppToken = c.cfg.AppToken
		batch[i].Environment = string(c.cfg.Environment)
		batch[i].Endpoint = c.endpoint
		batch[i].SDKVersion = Version
	}
	c.observeQueueLocked()
	return batch
}

func (c *Client) observeQueueLocked() {
	if c.onQueue != nil {
		c.onQueue(len(c.pending))
	}
}

func (c *Client) rememberDedupLocked(id string) {
	limit := DefaultDedupMaxSize
	if c.cfg != nil && c.cfg.DeduplicationIDMaxSize != nil && *c.cfg.DeduplicationIDMaxSize > 0 {
		limit = *c.cfg.DeduplicationIDMaxSize
	}
	c.state.DedupIDs = append(c.state.DedupIDs, id)
	if over := len(c.state.DedupIDs) - limit; over > 0 {
		c.state.DedupIDs = append([]string(nil), c.state.DedupIDs[over:]...)
	}
	c.persistLocked()
}

func (c *Client) persistLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := c.store.Save(ctx, cloneState(c.state)); err != nil {
		c.log.WithError(err).Warn("sdk: failed to persist state")
	}
}

func (c *Client) applyLogLevel(l LogLevel) {
	switch l {
	case LogLevelVerbose:
		c.log.SetLevel(logrus.TraceLevel)
	case LogLevelDebug:
		c.log.SetLevel(logrus.DebugLevel)
	case LogLevelInfo:
		c.log.SetLevel(logrus.InfoLevel)
	case LogLevelWarn:
		c.log.SetLevel(logrus.WarnLevel)
	case LogLevelError:
		c.log.SetLevel(logrus.ErrorLevel)
	case LogLevelAssert:
		c.log.SetLevel(logrus.PanicLevel)
	case LogLevelSuppress:
		c.log.SetOutput(io.Discard)
	}
}

func (c *Client) resolveEndpoint(cfg *Config) string {
	strategy := cfg.URLStrategy
	if strategy == nil && cfg.NamedURLStrategy != "" {
		if s, ok := namedStrategies[cfg.NamedURLStrategy]; ok {
			strategy = &s
		} else {
			c.log.WithField("url_strategy", cfg.NamedURLStrategy).Warn("sdk: unknown url strategy")
		}
	}
	if strategy == nil || len(strategy.Domains) == 0 {
		return "app." + defaultDomain
	}
	host := strategy.Domains[0]
	if strategy.UseSubdomains {
		host = "app." + host
	}
	return host
}

func mergeParams(sets ...map[string]string) map[string]string {
	var out map[string]string
	for _, s := range sets {
		for k, v := range s {
			if out == nil {
				out = make(map[string]string)
			}
			out[k] = v
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
