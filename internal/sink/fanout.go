package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/shortontech/attributionrc/internal/activity"
)

// Observer counts deliveries per sink.
type Observer interface {
	IncrementActivitiesEmitted(sink, kind string)
	IncrementSinkErrors(sink, errorType string)
}

// Fanout hands every activity to all configured sinks. A failing sink never
// keeps the others from receiving the activity.
type Fanout struct {
	sinks   []Sink
	started []Sink
	log     logrus.FieldLogger
	obs     Observer
}

func NewFanout(log logrus.FieldLogger, obs Observer, sinks ...Sink) *Fanout {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fanout{sinks: sinks, log: log.WithField("component", "sink"), obs: obs}
}

// Start starts every sink in order. On failure the sinks already started are
// closed again.
func (f *Fanout) Start(ctx context.Context) error {
	for _, s := range f.sinks {
		if err := s.Start(ctx); err != nil {
			_ = f.Close()
			return fmt.Errorf("start %s sink: %w", s.Name(), err)
		}
		f.started = append(f.started, s)
		f.log.WithField("sink", s.Name()).Info("sink started")
	}
	return nil
}

func (f *Fanout) Emit(a activity.Activity) {
	for _, s := range f.started {
		if err := s.Enqueue(a); err != nil {
			f.log.WithError(err).WithFields(logrus.Fields{
				"sink":        s.Name(),
				"activity_id": a.ActivityID,
				"kind":        a.Kind,
			}).Error("failed to enqueue activity")
			if f.obs != nil {
				f.obs.IncrementSinkErrors(s.Name(), "enqueue")
			}
			continue
		}
		if f.obs != nil {
			f.obs.IncrementActivitiesEmitted(s.Name(), string(a.Kind))
		}
	}
}

// Close closes started sinks in reverse order.
func (f *Fanout) Close() error {
	var errs []error
	for i := len(f.started) - 1; i >= 0; i-- {
		s := f.started[i]
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s sink: %w", s.Name(), err))
		}
	}
	f.started = nil
	return errors.Join(errs...)
}

func (f *Fanout) Names() []string {
	names := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		names = append(names, s.Name())
	}
	return names
}

// FromOutputs builds the sinks named in outputs (log, kafka, postgres, amqp).
// Each sink reads its own settings from the environment.
func FromOutputs(outputs []string, log logrus.FieldLogger, flush FlushObserver) ([]Sink, error) {
	sinks := make([]Sink, 0, len(outputs))
	seen := make(map[string]bool, len(outputs))
	for _, name := range outputs {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case "log":
			sinks = append(sinks, NewLogSink())
		case "kafka":
			sinks = append(sinks, NewKafkaSinkFromEnv().WithLogger(log))
		case "postgres", "pg":
			sinks = append(sinks, NewPGSinkFromEnv().WithLogger(log).WithObserver(flush))
		case "amqp", "rabbitmq":
			sinks = append(sinks, NewAMQPSinkFromEnv().WithLogger(log))
		default:
			return nil, fmt.Errorf("unknown output %q", name)
		}
	}
	return sinks, nil
}
