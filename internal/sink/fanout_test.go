package sink

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/shortontech/attributionrc/internal/activity"
)

type memorySink struct {
	name       string
	startErr   error
	enqueueErr error
	closeErr   error
	started    bool
	closed     bool
	got        []activity.Activity
	order      *[]string
}

func (m *memorySink) Start(context.Context) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.started = true
	return nil
}

func (m *memorySink) Enqueue(a activity.Activity) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.got = append(m.got, a)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	if m.order != nil {
		*m.order = append(*m.order, m.name)
	}
	return m.closeErr
}

func (m *memorySink) Name() string { return m.name }

type countingObserver struct {
	emitted map[string]int
	errors  map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{emitted: map[string]int{}, errors: map[string]int{}}
}

func (o *countingObserver) IncrementActivitiesEmitted(sink, kind string) {
	o.emitted[sink+"/"+kind]++
}

func (o *countingObserver) IncrementSinkErrors(sink, errorType string) {
	o.errors[sink+"/"+errorType]++
}

func TestFanoutEmit(t *testing.T) {
	log, hook := test.NewNullLogger()
	good := &memorySink{name: "good"}
	bad := &memorySink{name: "bad", enqueueErr: errors.New("down")}
	obs := newCountingObserver()

	f := NewFanout(log, obs, bad, good)
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	f.Emit(testActivity("a-1", activity.KindEvent))

	if len(good.got) != 1 {
		t.Errorf("good sink got %d activities, want 1", len(good.got))
	}
	if obs.emitted["good/event"] != 1 || obs.errors["bad/enqueue"] != 1 {
		t.Errorf("observer = %v %v", obs.emitted, obs.errors)
	}
	if e := hook.LastEntry(); e == nil || e.Data["sink"] != "bad" {
		t.Errorf("expected an error entry for the failing sink, got %v", e)
	}
}

func TestFanoutStartFailureClosesStarted(t *testing.T) {
	var order []string
	first := &memorySink{name: "first", order: &order}
	second := &memorySink{name: "second", startErr: errors.New("no broker"), order: &order}
	f := NewFanout(nil, nil, first, second)

	err := f.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "second") {
		t.Fatalf("err = %v, want second sink failure", err)
	}
	if !first.closed {
		t.Error("first sink should be closed after a later sink fails")
	}
	if second.closed {
		t.Error("a sink that never started should not be closed")
	}
}

func TestFanoutClose(t *testing.T) {
	var order []string
	a := &memorySink{name: "a", order: &order}
	b := &memorySink{name: "b", order: &order, closeErr: errors.New("flush failed")}
	c := &memorySink{name: "c", order: &order}
	f := NewFanout(nil, nil, a, b, c)
	if err := f.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := f.Close()
	if err == nil || !strings.Contains(err.Error(), "flush failed") {
		t.Errorf("err = %v", err)
	}
	if !reflect.DeepEqual(order, []string{"c", "b", "a"}) {
		t.Errorf("close order = %v, want reverse start order", order)
	}

	f.Emit(testActivity("late", activity.KindEvent))
	if len(a.got) != 0 {
		t.Error("closed fanout should not deliver")
	}
}

func TestFromOutputs(t *testing.T) {
	sinks, err := FromOutputs([]string{"log", " Kafka ", "postgres", "amqp", "log", ""}, nil, nil)
	if err != nil {
		t.Fatalf("FromOutputs failed: %v", err)
	}
	names := NewFanout(nil, nil, sinks...).Names()
	if !reflect.DeepEqual(names, []string{"log", "kafka", "postgres", "amqp"}) {
		t.Errorf("names = %v", names)
	}

	if _, err := FromOutputs([]string{"log", "s3"}, nil, nil); err == nil {
		t.Error("unknown output should fail")
	}
}
