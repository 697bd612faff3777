package remotecommand

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shortontech/attributionrc/internal/attribution"
	"github.com/shortontech/attributionrc/internal/command"
	"github.com/shortontech/attributionrc/internal/payload"
)

// errSkip marks a handler that found nothing to act on.
var errSkip = errors.New("skipped")

func skipf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errSkip, fmt.Sprintf(format, args...))
}

type handler func(d *Dispatcher, p payload.Object) error

var handlers = map[command.Op]handler{
	command.OpInitialize:              (*Dispatcher).initialize,
	command.OpTrackEvent:              (*Dispatcher).trackEvent,
	command.OpTrackSubscription:       (*Dispatcher).trackSubscription,
	command.OpTrackAdRevenue:          (*Dispatcher).trackAdRevenue,
	command.OpTrackDeeplink:           (*Dispatcher).trackDeeplink,
	command.OpSetPushToken:            (*Dispatcher).setPushToken,
	command.OpSetEnabled:              (*Dispatcher).setEnabled,
	command.OpSetOfflineMode:          (*Dispatcher).setOfflineMode,
	command.OpGDPRForgetMe:            (*Dispatcher).gdprForgetMe,
	command.OpSetThirdPartySharing:    (*Dispatcher).setThirdPartySharing,
	command.OpTrackMeasurementConsent: (*Dispatcher).trackMeasurementConsent,
	command.OpAddCallbackParams:       (*Dispatcher).addCallbackParams,
	command.OpRemoveCallbackParams:    (*Dispatcher).removeCallbackParams,
	command.OpResetCallbackParams:     (*Dispatcher).resetCallbackParams,
	command.OpAddPartnerParams:        (*Dispatcher).addPartnerParams,
	command.OpRemovePartnerParams:     (*Dispatcher).removePartnerParams,
	command.OpResetPartnerParams:      (*Dispatcher).resetPartnerParams,
}

func (d *Dispatcher) initialize(p payload.Object) error {
	token, err := p.String(command.APIToken)
	if err != nil {
		return err
	}
	if strings.TrimSpace(token) == "" {
		return &payload.FieldError{Key: command.APIToken, Err: payload.ErrMissing}
	}
	d.tracker.Initialize(token, p.BoolOr(command.Sandbox, false), p.Object(command.Settings))
	return nil
}

func (d *Dispatcher) trackEvent(p payload.Object) error {
	token := p.OptString(command.EventToken)
	if token == nil {
		return skipf("%s is blank", command.EventToken)
	}
	d.tracker.SendEvent(attribution.Event{
		Token:           *token,
		OrderID:         p.OptString(command.OrderID),
		DeduplicationID: p.OptString(command.DeduplicationID),
		Revenue:         p.OptFloat(command.Revenue),
		Currency:        p.OptString(command.Currency),
		CallbackID:      p.OptString(command.CallbackID),
		CallbackParams:  p.StringMap(command.CallbackParameters),
		PartnerParams:   p.StringMap(command.PartnerParameters),
	})
	return nil
}

func (d *Dispatcher) trackSubscription(p payload.Object) error {
	price, err := p.Int64(command.Revenue)
	if err != nil {
		return err
	}
	var sub attribution.Subscription
	sub.Price = price
	for _, f := range []struct {
		key string
		dst *string
	}{
		{command.Currency, &sub.Currency},
		{command.SKU, &sub.SKU},
		{command.OrderID, &sub.OrderID},
		{command.Signature, &sub.Signature},
		{command.PurchaseToken, &sub.PurchaseToken},
	} {
		v, err := p.String(f.key)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	sub.PurchaseTime = p.OptInt64(command.PurchaseTime, d.now().UnixMilli())
	sub.CallbackParams = p.StringMap(command.CallbackParameters)
	sub.PartnerParams = p.StringMap(command.PartnerParameters)
	d.tracker.TrackSubscription(sub)
	return nil
}

// trackAdRevenue reads the structured fields from ad_revenue_payload when it
// is an object and from the request itself otherwise. The legacy generation
// forwards the payload object untouched and requires it.
func (d *Dispatcher) trackAdRevenue(p payload.Object) error {
	source := p.OptString(command.AdRevenueSource)
	raw := p.Object(command.AdRevenuePayload)
	if source == nil {
		return skipf("%s is required", command.AdRevenueSource)
	}
	if d.schema == command.SchemaLegacy && raw == nil {
		return skipf("%s and %s are required", command.AdRevenueSource, command.AdRevenuePayload)
	}

	fields := raw
	if fields == nil {
		if !hasAny(p, adRevenueFields) {
			return skipf("%s or structured ad revenue fields are required", command.AdRevenuePayload)
		}
		fields = p
	}
	rev := attribution.AdRevenue{
		Source:    *source,
		Payload:   raw,
		Amount:    fields.OptFloat(command.AdRevenueAmount),
		Currency:  fields.OptString(command.AdRevenueCurrency),
		Network:   fields.OptString(command.AdRevenueNetwork),
		Unit:      fields.OptString(command.AdRevenueUnit),
		Placement: fields.OptString(command.AdRevenuePlacement),
	}
	if n, err := fields.Int64(command.AdRevenueImpressionsCount); err == nil {
		rev.ImpressionsCount = &n
	}
	d.tracker.TrackAdRevenue(rev)
	return nil
}

var adRevenueFields = []string{
	command.AdRevenueAmount,
	command.AdRevenueCurrency,
	command.AdRevenueNetwork,
	command.AdRevenueUnit,
	command.AdRevenuePlacement,
	command.AdRevenueImpressionsCount,
}

func hasAny(p payload.Object, keys []string) bool {
	for _, k := range keys {
		if p.Has(k) {
			return true
		}
	}
	return false
}

func (d *Dispatcher) trackDeeplink(p payload.Object) error {
	raw := p.OptString(command.DeeplinkURL)
	if raw == nil {
		return skipf("%s is blank", command.DeeplinkURL)
	}
	u, err := url.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return fmt.Errorf("parse %s: %w", command.DeeplinkURL, err)
	}
	d.tracker.AppWillOpenURL(u)
	return nil
}

func (d *Dispatcher) setPushToken(p payload.Object) error {
	token, err := p.String(command.PushToken)
	if err != nil {
		return err
	}
	d.tracker.SetPushToken(token)
	return nil
}

func (d *Dispatcher) setEnabled(p payload.Object) error {
	if !p.Has(command.Enabled) {
		return skipf("%s absent", command.Enabled)
	}
	enabled, err := p.Bool(command.Enabled)
	if err != nil {
		return err
	}
	d.tracker.SetEnabled(enabled)
	return nil
}

func (d *Dispatcher) setOfflineMode(p payload.Object) error {
	if !p.Has(command.Offline) {
		return skipf("%s absent", command.Offline)
	}
	offline, err := p.Bool(command.Offline)
	if err != nil {
		return err
	}
	d.tracker.SetOfflineMode(offline)
	return nil
}

func (d *Dispatcher) gdprForgetMe(payload.Object) error {
	d.tracker.GDPRForgetMe()
	return nil
}

func (d *Dispatcher) setThirdPartySharing(p payload.Object) error {
	enabled := p.OptBool(command.ThirdPartySharingEnabled)
	options := p.NestedStringMap(command.ThirdPartySharingOptions)
	if enabled == nil && options == nil {
		return skipf("no sharing flag or options")
	}
	d.tracker.SetThirdPartySharing(enabled, options)
	return nil
}

func (d *Dispatcher) trackMeasurementConsent(p payload.Object) error {
	if !p.Has(command.MeasurementConsent) {
		return skipf("%s absent", command.MeasurementConsent)
	}
	consented, err := p.Bool(command.MeasurementConsent)
	if err != nil {
		return err
	}
	d.tracker.TrackMeasurementConsent(consented)
	return nil
}

func (d *Dispatcher) addCallbackParams(p payload.Object) error {
	params := firstMap(p, d.schema.AddKeys(command.CallbackFamily))
	if params == nil {
		return skipf("no callback parameters")
	}
	d.tracker.AddCallbackParams(params)
	return nil
}

func (d *Dispatcher) removeCallbackParams(p payload.Object) error {
	keys := firstList(p, d.schema.RemoveKeys(command.CallbackFamily))
	if keys == nil {
		return skipf("no callback parameter names")
	}
	d.tracker.RemoveCallbackParams(keys)
	return nil
}

func (d *Dispatcher) resetCallbackParams(payload.Object) error {
	d.tracker.ResetCallbackParams()
	return nil
}

func (d *Dispatcher) addPartnerParams(p payload.Object) error {
	params := firstMap(p, d.schema.AddKeys(command.PartnerFamily))
	if params == nil {
		return skipf("no partner parameters")
	}
	d.tracker.AddPartnerParams(params)
	return nil
}

func (d *Dispatcher) removePartnerParams(p payload.Object) error {
	keys := firstList(p, d.schema.RemoveKeys(command.PartnerFamily))
	if keys == nil {
		return skipf("no partner parameter names")
	}
	d.tracker.RemovePartnerParams(keys)
	return nil
}

func (d *Dispatcher) resetPartnerParams(payload.Object) error {
	d.tracker.ResetPartnerParams()
	return nil
}

// firstMap returns the parameter set under the first key holding an object.
// Sets under different keys are never merged.
func firstMap(p payload.Object, keys []string) map[string]string {
	for _, k := range keys {
		if m := p.StringMap(k); m != nil {
			return m
		}
	}
	return nil
}

func firstList(p payload.Object, keys []string) []string {
	for _, k := range keys {
		if l := p.StringList(k); l != nil {
			return l
		}
	}
	return nil
}
