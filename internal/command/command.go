// Package command holds the remote-command vocabulary: the token names a host
// runtime may send, the payload keys each command reads, and the schema
// generation that selects which of them are recognized.
package command

import (
	"fmt"
	"strings"
)

// Separator joins several command tokens in one command_name value.
const Separator = ","

// CommandName is the payload key carrying the comma-joined tokens.
const CommandName = "command_name"

// Command tokens.
const (
	Initialize              = "initialize"
	TrackEvent              = "trackevent"
	TrackSubscription       = "tracksubscription"
	TrackAdRevenue          = "trackadrevenue"
	TrackDeeplink           = "appwillopenurl"
	SetPushToken            = "setpushtoken"
	SetEnabled              = "setenabled"
	SetOfflineMode          = "setofflinemode"
	GDPRForgetMe            = "gdprforgetme"
	SetThirdPartySharing    = "setthirdpartysharing"
	TrackMeasurementConsent = "trackmeasurementconsent"

	AddSessionCallbackParams    = "addsessioncallbackparams"
	RemoveSessionCallbackParams = "removesessioncallbackparams"
	ResetSessionCallbackParams  = "resetsessioncallbackparams"
	AddSessionPartnerParams     = "addsessionpartnerparams"
	RemoveSessionPartnerParams  = "removesessionpartnerparams"
	ResetSessionPartnerParams   = "resetsessionpartnerparams"

	AddGlobalCallbackParams    = "addglobalcallbackparams"
	RemoveGlobalCallbackParams = "removeglobalcallbackparams"
	ResetGlobalCallbackParams  = "resetglobalcallbackparams"
	AddGlobalPartnerParams     = "addglobalpartnerparams"
	RemoveGlobalPartnerParams  = "removeglobalpartnerparams"
	ResetGlobalPartnerParams   = "resetglobalpartnerparams"
)

// Op is the semantic operation a token resolves to.
type Op int

const (
	OpUnknown Op = iota
	OpInitialize
	OpTrackEvent
	OpTrackSubscription
	OpTrackAdRevenue
	OpTrackDeeplink
	OpSetPushToken
	OpSetEnabled
	OpSetOfflineMode
	OpGDPRForgetMe
	OpSetThirdPartySharing
	OpTrackMeasurementConsent
	OpAddCallbackParams
	OpRemoveCallbackParams
	OpResetCallbackParams
	OpAddPartnerParams
	OpRemovePartnerParams
	OpResetPartnerParams
)

var opNames = map[Op]string{
	OpInitialize:              "initialize",
	OpTrackEvent:              "track_event",
	OpTrackSubscription:       "track_subscription",
	OpTrackAdRevenue:          "track_ad_revenue",
	OpTrackDeeplink:           "track_deeplink",
	OpSetPushToken:            "set_push_token",
	OpSetEnabled:              "set_enabled",
	OpSetOfflineMode:          "set_offline_mode",
	OpGDPRForgetMe:            "gdpr_forget_me",
	OpSetThirdPartySharing:    "set_third_party_sharing",
	OpTrackMeasurementConsent: "track_measurement_consent",
	OpAddCallbackParams:       "add_callback_params",
	OpRemoveCallbackParams:    "remove_callback_params",
	OpResetCallbackParams:     "reset_callback_params",
	OpAddPartnerParams:        "add_partner_params",
	OpRemovePartnerParams:     "remove_partner_params",
	OpResetPartnerParams:      "reset_partner_params",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return "unknown"
}

// Schema selects a generation of the command vocabulary.
type Schema int

const (
	// SchemaCurrent uses global parameters and accepts the session-prefixed
	// tokens as aliases of the global ones.
	SchemaCurrent Schema = iota
	// SchemaLegacy uses session-scoped parameters only.
	SchemaLegacy
)

func (s Schema) String() string {
	if s == SchemaLegacy {
		return "legacy"
	}
	return "current"
}

// ParseSchema maps a configuration value onto a Schema.
func ParseSchema(v string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "current", "v5", "global":
		return SchemaCurrent, nil
	case "legacy", "v4", "session":
		return SchemaLegacy, nil
	}
	return SchemaCurrent, fmt.Errorf("unknown schema %q", v)
}

var shared = map[string]Op{
	Initialize:              OpInitialize,
	TrackEvent:              OpTrackEvent,
	TrackSubscription:       OpTrackSubscription,
	TrackAdRevenue:          OpTrackAdRevenue,
	SetPushToken:            OpSetPushToken,
	SetEnabled:              OpSetEnabled,
	SetOfflineMode:          OpSetOfflineMode,
	GDPRForgetMe:            OpGDPRForgetMe,
	SetThirdPartySharing:    OpSetThirdPartySharing,
	TrackMeasurementConsent: OpTrackMeasurementConsent,

	AddSessionCallbackParams:    OpAddCallbackParams,
	RemoveSessionCallbackParams: OpRemoveCallbackParams,
	ResetSessionCallbackParams:  OpResetCallbackParams,
	AddSessionPartnerParams:     OpAddPartnerParams,
	RemoveSessionPartnerParams:  OpRemovePartnerParams,
	ResetSessionPartnerParams:   OpResetPartnerParams,
}

var currentOnly = map[string]Op{
	TrackDeeplink: OpTrackDeeplink,

	AddGlobalCallbackParams:    OpAddCallbackParams,
	RemoveGlobalCallbackParams: OpRemoveCallbackParams,
	ResetGlobalCallbackParams:  OpResetCallbackParams,
	AddGlobalPartnerParams:     OpAddPartnerParams,
	RemoveGlobalPartnerParams:  OpRemovePartnerParams,
	ResetGlobalPartnerParams:   OpResetPartnerParams,
}

// Lookup resolves a normalized token for the given schema.
func (s Schema) Lookup(token string) (Op, bool) {
	if op, ok := shared[token]; ok {
		return op, true
	}
	if s == SchemaCurrent {
		if op, ok := currentOnly[token]; ok {
			return op, true
		}
	}
	return OpUnknown, false
}

// Tokens lists every token the schema recognizes.
func (s Schema) Tokens() []string {
	out := make([]string, 0, len(shared)+len(currentOnly))
	for t := range shared {
		out = append(out, t)
	}
	if s == SchemaCurrent {
		for t := range currentOnly {
			out = append(out, t)
		}
	}
	return out
}

// Split breaks a command_name value into normalized tokens, preserving order.
// Blank input yields no tokens.
func Split(commandName string) []string {
	if strings.TrimSpace(commandName) == "" {
		return nil
	}
	parts := strings.Split(commandName, Separator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(p)))
	}
	return out
}
