package lifecycle

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

type countingObserver struct {
	name  string
	calls *[]string
}

func (c countingObserver) OnPause() { *c.calls = append(*c.calls, c.name+":pause") }
func (c countingObserver) OnResume() { *c.calls = append(*c.calls, c.name+":resume") }

func TestSourceNotifiesInOrder(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewSource(logger)

	var calls []string
	s.Subscribe(countingObserver{name: "a", calls: &calls})
	s.Subscribe(countingObserver{name: "b", calls: &calls})

	s.Resume()
	s.Pause()

	want := []string{"a:resume", "b:resume", "a:pause", "b:pause"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, calls[i], want[i])
		}
	}
	if !s.Paused() {
		t.Error("source should report paused after Pause")
	}
}

func TestSourceWithoutObservers(t *testing.T) {
	s := NewSource(nil)
	s.Pause()
	s.Resume()
	if s.Paused() {
		t.Error("source should report resumed")
	}
}
