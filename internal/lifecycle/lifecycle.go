// Package lifecycle carries host pause and resume signals to subscribers.
package lifecycle

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Observer receives lifecycle signals.
type Observer interface {
	OnPause()
	OnResume()
}

// Source is the host lifecycle event source. Observers are notified in
// subscription order on the goroutine that raised the signal.
type Source struct {
	mu        sync.RWMutex
	observers []Observer
	paused    bool
	log       logrus.FieldLogger
}

func NewSource(log logrus.FieldLogger) *Source {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Source{log: log.WithField("component", "lifecycle")}
}

// Subscribe registers o for every later signal.
func (s *Source) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Pause tells every observer the host went to the background.
func (s *Source) Pause() {
	s.mu.Lock()
	s.paused = true
	obs := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	s.log.WithField("observers", len(obs)).Debug("pause")
	for _, o := range obs {
		o.OnPause()
	}
}

// Resume tells every observer the host came to the foreground.
func (s *Source) Resume() {
	s.mu.Lock()
	s.paused = false
	obs := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	s.log.WithField("observers", len(obs)).Debug("resume")
	for _, o := range obs {
		o.OnResume()
	}
}

// Paused reports the last signal raised.
func (s *Source) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}
