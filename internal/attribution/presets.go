package attribution

import "github.com/shortontech/attributionrc/internal/sdk"

// urlStrategies are the named routing presets accepted in settings.url_strategy.
var urlStrategies = map[string]sdk.URLStrategy{
	"DataResidencyEU":    {Domains: []string{"eu.adjust.com"}, UseSubdomains: true, IsDataResidency: true},
	"DataResidencyTR":    {Domains: []string{"tr.adjust.com"}, UseSubdomains: true, IsDataResidency: true},
	"ADJDataResidencyUS": {Domains: []string{"us.adjust.com"}, UseSubdomains: true, IsDataResidency: true},
	"UrlStrategyChina":   {Domains: []string{"adjust.world", "adjust.com"}, UseSubdomains: true},
	"UrlStrategyCn":      {Domains: []string{"adjust.cn", "adjust.com"}, UseSubdomains: true},
	"UrlStrategyCnOnly":  {Domains: []string{"adjust.cn"}, UseSubdomains: true},
	"UrlStrategyIndia":   {Domains: []string{"adjust.net.in", "adjust.com"}, UseSubdomains: true},
}

// LookupURLStrategy returns a copy of the named preset.
func LookupURLStrategy(name string) (sdk.URLStrategy, bool) {
	s, ok := urlStrategies[name]
	if !ok {
		return sdk.URLStrategy{}, false
	}
	s.Domains = append([]string(nil), s.Domains...)
	return s, true
}

// logLevels is case sensitive.
var logLevels = map[string]sdk.LogLevel{
	"verbose":  sdk.LogLevelVerbose,
	"debug":    sdk.LogLevelDebug,
	"info":     sdk.LogLevelInfo,
	"warn":     sdk.LogLevelWarn,
	"error":    sdk.LogLevelError,
	"assert":   sdk.LogLevelAssert,
	"suppress": sdk.LogLevelSuppress,
}
