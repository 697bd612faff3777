// Package remotecommand turns a remote command document into calls on an
// attribution.Tracker.
package remotecommand

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shortontech/attributionrc/internal/attribution"
	"github.com/shortontech/attributionrc/internal/command"
	"github.com/shortontech/attributionrc/internal/payload"
	"github.com/shortontech/attributionrc/internal/sdk"
)

const (
	DefaultID   = "adjust"
	tracerName  = "github.com/shortontech/attributionrc/internal/remotecommand"
	maxTokenLen = 64
)

// Recorder observes per-token outcomes.
type Recorder interface {
	ObserveCommand(command, status string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCommand(string, string, time.Duration) {}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithID(id string) Option { return func(d *Dispatcher) { d.id = id } }

// WithSchema selects the recognized tokens and payload keys.
func WithSchema(s command.Schema) Option { return func(d *Dispatcher) { d.schema = s } }

func WithLogger(l logrus.FieldLogger) Option { return func(d *Dispatcher) { d.log = l } }

func WithTracer(t trace.Tracer) Option { return func(d *Dispatcher) { d.tracer = t } }

func WithRecorder(r Recorder) Option { return func(d *Dispatcher) { d.rec = r } }

func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

// WithConfig starts the SDK from a prebuilt config when the dispatcher is
// built. Later initialize commands are then ignored.
func WithConfig(cfg *sdk.Config) Option { return func(d *Dispatcher) { d.initial = cfg } }

// Dispatcher runs every token of a command document against a Tracker. It
// keeps no state between invocations.
type Dispatcher struct {
	id      string
	tracker attribution.Tracker
	schema  command.Schema
	log     logrus.FieldLogger
	tracer  trace.Tracer
	rec     Recorder
	now     func() time.Time
	initial *sdk.Config
}

func New(tracker attribution.Tracker, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		id:      DefaultID,
		tracker: tracker,
		schema:  command.SchemaCurrent,
		log:     logrus.StandardLogger(),
		tracer:  otel.Tracer(tracerName),
		rec:     nopRecorder{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	d.log = d.log.WithFields(logrus.Fields{"component": "remotecommand", "command_id": d.id})
	if d.initial != nil {
		tracker.InitializeConfig(d.initial)
	}
	return d
}

// ID names this remote command to the host runtime.
func (d *Dispatcher) ID() string { return d.id }

// Schema reports the generation this dispatcher speaks.
func (d *Dispatcher) Schema() command.Schema { return d.schema }

// Invoke runs every token in order, then sends resp exactly once. A token
// that fails never stops the ones after it.
func (d *Dispatcher) Invoke(ctx context.Context, resp Response) []Result {
	ctx, span := d.tracer.Start(ctx, "remotecommand.Invoke",
		trace.WithAttributes(
			attribute.String("remotecommand.id", d.id),
			attribute.String("remotecommand.schema", d.schema.String()),
		))
	defer span.End()

	p := resp.Payload()
	if p == nil {
		p = payload.Object{}
	}
	name, _ := p.String(command.CommandName)
	tokens := command.Split(name)
	span.SetAttributes(attribute.Int("remotecommand.tokens", len(tokens)))

	results := make([]Result, 0, len(tokens))
	failed := 0
	for _, tok := range tokens {
		r := d.run(ctx, tok, p)
		if r.Status == StatusFailed {
			failed++
		}
		results = append(results, r)
	}
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d commands failed", failed, len(tokens)))
	}

	if err := resp.Send(results); err != nil {
		d.log.WithError(err).Warn("failed to send response")
	}
	return results
}

func (d *Dispatcher) run(ctx context.Context, token string, p payload.Object) (res Result) {
	start := d.now()
	_, span := d.tracer.Start(ctx, "remotecommand.command",
		trace.WithAttributes(attribute.String("remotecommand.command", token)))
	res = Result{Command: token}
	log := d.log.WithField("command", token)

	defer func() {
		if v := recover(); v != nil {
			res.Status = StatusFailed
			res.Err = fmt.Errorf("panic: %v", v)
		}
		span.SetAttributes(attribute.String("remotecommand.status", string(res.Status)))
		switch res.Status {
		case StatusFailed:
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			log.WithError(res.Err).Warn("error processing command")
		case StatusUnknown:
			log.Info("invalid command name")
		case StatusSkipped:
			log.WithField("reason", res.Reason()).Debug("command skipped")
		default:
			log.Debug("command processed")
		}
		span.End()
		d.rec.ObserveCommand(metricLabel(res), string(res.Status), d.now().Sub(start))
	}()

	op, ok := d.schema.Lookup(token)
	if !ok {
		res.Status = StatusUnknown
		return res
	}
	err := handlers[op](d, p)
	switch {
	case err == nil:
		res.Status = StatusOK
	case errors.Is(err, errSkip):
		res.Status = StatusSkipped
		res.Err = err
	default:
		res.Status = StatusFailed
		res.Err = err
	}
	return res
}

// metricLabel keeps arbitrary unknown tokens out of metric label values.
func metricLabel(r Result) string {
	if r.Status == StatusUnknown || len(r.Command) > maxTokenLen {
		return "unknown"
	}
	return r.Command
}
