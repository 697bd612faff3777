package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shortontech/attributionrc/internal/payload"
	"github.com/shortontech/attributionrc/internal/remotecommand"
)

// demoDelay spaces the demo commands out so they are easy to follow in logs.
var demoDelay = 200 * time.Millisecond

type invoker interface {
	Invoke(ctx context.Context, resp remotecommand.Response) []remotecommand.Result
}

// demoDocuments is a fixed session: initialize, launch and purchase events,
// a subscription, parameter changes and a consent update.
func demoDocuments() []string {
	orderID := uuid.New().String()
	return []string{
		`{"command_name":"initialize","api_token":"demo-app-token","sandbox":true,"settings":{"log_level":"debug","send_in_background":true}}`,
		`{"command_name":"addglobalcallbackparams,addglobalpartnerparams","global_callback":{"demo":"true"},"global_partner":{"channel":"demo"}}`,
		`{"command_name":"trackevent","event_token":"launch1","callback":{"screen":"home"}}`,
		fmt.Sprintf(`{"command_name":"trackevent","event_token":"abc123","revenue":9.99,"currency":"EUR","order_id":%q}`, orderID),
		fmt.Sprintf(`{"command_name":"trackevent","event_token":"abc123","order_id":%q}`, orderID),
		`{"command_name":"tracksubscription","revenue":499,"currency":"EUR","sku":"demo.monthly","order_id":"GPA.1234","signature":"c2lnbmF0dXJl","purchase_token":"demo-purchase-token","purchase_time":1700000000000}`,
		`{"command_name":"trackadrevenue","ad_revenue_source":"applovin_max_sdk","ad_revenue_payload":{"amount":0.02,"currency":"USD","network":"demo","impressions_count":1}}`,
		`{"command_name":"appwillopenurl","deeplink_open_url":"demo://product/42?utm_source=demo"}`,
		`{"command_name":"setpushtoken","push_token":"demo-push-token"}`,
		`{"command_name":"setthirdpartysharing,trackmeasurementconsent","third_party_sharing_enabled":true,"third_party_sharing_options":{"facebook":{"install":"true"}},"measurement_consent":true}`,
		`{"command_name":"bogus,removeglobalcallbackparams","remove_global_callback_params":["demo"]}`,
	}
}

// runDemo feeds demoDocuments through the dispatcher and logs each outcome.
func runDemo(ctx context.Context, d invoker, log logrus.FieldLogger) int {
	docs := demoDocuments()
	log.WithField("commands", len(docs)).Info("demo mode: sending commands")

	failed := 0
	for i, doc := range docs {
		p, err := payload.Decode([]byte(doc))
		if err != nil {
			log.WithError(err).Error("demo mode: bad document")
			failed++
			continue
		}
		for _, r := range d.Invoke(ctx, remotecommand.NewResponse(p, nil)) {
			entry := log.WithFields(logrus.Fields{
				"step":    i + 1,
				"command": r.Command,
				"status":  r.Status,
			})
			if r.Err != nil {
				entry = entry.WithError(r.Err)
			}
			if r.Status == remotecommand.StatusFailed {
				failed++
			}
			entry.Info("demo mode: command done")
		}

		if i < len(docs)-1 {
			if ctx.Err() != nil {
				return failed
			}
			select {
			case <-ctx.Done():
				return failed
			case <-time.After(demoDelay):
			}
		}
	}

	log.Info("demo mode: all commands sent")
	return failed
}
