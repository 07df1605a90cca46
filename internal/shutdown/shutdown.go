// Package shutdown installs the process interrupt handler and exposes the
// resulting stop request as a lock-free flag. Stopping is cooperative: code
// polls ShouldStop (or waits on Done) and unwinds on its own terms.
package shutdown

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrAlreadyInstalled is returned when a Registry already owns the interrupt handler.
var ErrAlreadyInstalled = errors.New("interrupt handler already installed")

// NotifyFunc registers c to receive the given signals; signal.Notify satisfies it.
type NotifyFunc func(c chan<- os.Signal, sig ...os.Signal)

// Registry permits exactly one handler installation.
type Registry struct {
	notify    NotifyFunc
	installed atomic.Bool
}

// NewRegistry creates a Registry that subscribes through notify.
func NewRegistry(notify NotifyFunc) *Registry {
	if notify == nil {
		notify = signal.Notify
	}
	return &Registry{notify: notify}
}

var process = NewRegistry(signal.Notify)

// Install registers the process-wide interrupt handler. Calling it twice in
// one process fails with ErrAlreadyInstalled.
func Install(logger *zap.Logger) (*Signal, error) {
	return process.Install(logger)
}

// Install registers the interrupt handler on r.
func (r *Registry) Install(logger *zap.Logger) (*Signal, error) {
	if !r.installed.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("install interrupt handler: %w", ErrAlreadyInstalled)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sig := newSignal()
	ch := make(chan os.Signal, 1)
	r.notify(ch, os.Interrupt)
	go sig.watch(ch, logger)

	return sig, nil
}

// Signal reports whether an interrupt has been received. Copies of the
// pointer observe the same state.
type Signal struct {
	running *atomic.Bool
	done    chan struct{}
}

func newSignal() *Signal {
	running := &atomic.Bool{}
	running.Store(true)
	return &Signal{
		running: running,
		done:    make(chan struct{}),
	}
}

// ShouldStop reports whether an interrupt has been received. It never blocks.
func (s *Signal) ShouldStop() bool {
	return !s.running.Load()
}

// Done is closed once an interrupt has been received.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// watch is the only writer of s.
func (s *Signal) watch(ch <-chan os.Signal, logger *zap.Logger) {
	for received := range ch {
		if !s.running.Load() {
			logger.Debug("signal ignored, shutdown already requested", zap.Stringer("signal", received))
			continue
		}
		logger.Warn("got signal", zap.Stringer("signal", received))
		s.running.Store(false)
		close(s.done)
	}
}
