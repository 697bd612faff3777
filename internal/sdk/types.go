package sdk

import (
	"net/url"
	"time"
)

// Version is reported on every activity the client emits.
const Version = "go5.0.0"

// Environment selects the attribution backend environment.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// LogLevel is the SDK's own verbosity scale.
type LogLevel int

const (
	LogLevelDefault LogLevel = iota
	LogLevelVerbose
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelAssert
	LogLevelSuppress
)

// URLStrategy routes traffic to a set of domains.
type URLStrategy struct {
	Domains         []string
	UseSubdomains   bool
	IsDataResidency bool
}

// AppSecret is the legacy request-signing tuple.
type AppSecret struct {
	ID    int64
	Info1 int64
	Info2 int64
	Info3 int64
	Info4 int64
}

// Config is built once and handed to InitSDK.
type Config struct {
	AppToken    string
	Environment Environment

	LogLevel           LogLevel
	PreinstallTracking bool
	SendInBackground   bool
	DefaultTracker     string
	COPPACompliant     bool
	PlayStoreKids      bool

	// URLStrategy is the explicit strategy of the current generation.
	URLStrategy *URLStrategy
	// NamedURLStrategy is the legacy generation's strategy constant.
	NamedURLStrategy string

	// DeduplicationIDMaxSize bounds the remembered deduplication ids; nil keeps the default.
	DeduplicationIDMaxSize *int

	AppSecret      *AppSecret
	DelayStart     time.Duration
	EventBuffering bool
}

// NewConfig returns a config with every optional setting at its default.
func NewConfig(appToken string, env Environment) *Config {
	return &Config{AppToken: appToken, Environment: env}
}

// Event is a tracked occurrence. Optional fields stay at their zero value
// unless a setter is called.
type Event struct {
	Token           string
	OrderID         string
	DeduplicationID string
	Revenue         *float64
	Currency        string
	CallbackID      string
	CallbackParams  map[string]string
	PartnerParams   map[string]string
}

func NewEvent(token string) *Event { return &Event{Token: token} }

func (e *Event) SetRevenue(amount float64, currency string) {
	e.Revenue = &amount
	e.Currency = currency
}

func (e *Event) AddCallbackParameter(key, value string) {
	if e.CallbackParams == nil {
		e.CallbackParams = make(map[string]string)
	}
	e.CallbackParams[key] = value
}

func (e *Event) AddPartnerParameter(key, value string) {
	if e.PartnerParams == nil {
		e.PartnerParams = make(map[string]string)
	}
	e.PartnerParams[key] = value
}

// Subscription is a Play Store subscription purchase.
type Subscription struct {
	Price          int64
	Currency       string
	SKU            string
	OrderID        string
	Signature      string
	PurchaseToken  string
	PurchaseTime   int64
	CallbackParams map[string]string
	PartnerParams  map[string]string
}

func NewSubscription(price int64, currency, sku, orderID, signature, purchaseToken string) *Subscription {
	return &Subscription{
		Price:         price,
		Currency:      currency,
		SKU:           sku,
		OrderID:       orderID,
		Signature:     signature,
		PurchaseToken: purchaseToken,
	}
}

func (s *Subscription) AddCallbackParameter(key, value string) {
	if s.CallbackParams == nil {
		s.CallbackParams = make(map[string]string)
	}
	s.CallbackParams[key] = value
}

func (s *Subscription) AddPartnerParameter(key, value string) {
	if s.PartnerParams == nil {
		s.PartnerParams = make(map[string]string)
	}
	s.PartnerParams[key] = value
}

// AdRevenue is a structured ad revenue report.
type AdRevenue struct {
	Source           string
	Amount           *float64
	Currency         string
	Network          string
	Unit             string
	Placement        string
	ImpressionsCount int64
}

func NewAdRevenue(source string) *AdRevenue { return &AdRevenue{Source: source} }

func (a *AdRevenue) SetRevenue(amount float64, currency string) {
	a.Amount = &amount
	a.Currency = currency
}

// GranularOption is one partner-specific sharing option.
type GranularOption struct {
	Partner string
	Key     string
	Value   string
}

// ThirdPartySharing reports a data-sharing decision. A nil Enabled leaves
// the sharing state unchanged and only reports the granular options.
type ThirdPartySharing struct {
	Enabled         *bool
	GranularOptions []GranularOption
}

func NewThirdPartySharing(enabled *bool) *ThirdPartySharing {
	return &ThirdPartySharing{Enabled: enabled}
}

func (t *ThirdPartySharing) AddGranularOption(partner, key, value string) {
	t.GranularOptions = append(t.GranularOptions, GranularOption{Partner: partner, Key: key, Value: value})
}

// Deeplink wraps a URL the app was opened with.
type Deeplink struct {
	URL *url.URL
}
