// Package eventmanager implements a thread-safe publish/subscribe and
// targeted-dispatch hub with pluggable execution strategies (inline or
// worker-pool) and an asynchronous-call facade built on top of it.
//
// A Manager owns a single dispatch goroutine. Publishers fire events or
// add/remove listeners from any goroutine; those requests are queued
// into mutex-guarded inboxes and applied by the dispatch goroutine on
// its next wakeup, so listener invocation never happens while a
// registry-mutating lock is held.
//
// # Strategies
//
// Constructing a Manager with extraThreads == 0 selects the inline
// strategy: listeners run synchronously on the dispatch goroutine, in
// the order their target was resolved. A nonzero extraThreads selects
// the pool strategy: extraThreads executor goroutines are started, and
// each dispatch cycle distributes queued calls across them before
// waiting for the batch to drain.
//
// # Guarantees
//
// All public operations are safe to call from any goroutine between
// Start and Stop. After Stop returns, no further listener invocations
// occur; in-flight invocations are allowed to complete first.
package eventmanager

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Manager is a thread-safe publish/subscribe and targeted-dispatch hub.
// The zero value is not usable; construct with NewManager.
type Manager struct {
	extraThreads int
	log          *slog.Logger

	reg *registry
	box *inboxes

	strategy strategy

	wake chan struct{}

	running  atomic.Bool
	stopReq  atomic.Bool
	doneCh   chan struct{}
	startMu  sync.Mutex
	stopOnce sync.Once

	stats managerStats
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLogger overrides the logger used for lifecycle and recovered-panic
// messages. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager constructs a Manager. extraThreads selects the execution
// strategy: zero is inline (listeners run on the dispatch goroutine),
// nonzero starts a pool of that many executor goroutines. The manager
// is not started until Start is called.
func NewManager(extraThreads int, opts ...Option) *Manager {
	m := &Manager{
		extraThreads: extraThreads,
		log:          slog.Default(),
		reg:          newRegistry(),
		box:          newInboxes(),
		wake:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start initializes and launches the dispatch goroutine. Calling Start
// on an already-running manager is a no-op.
func (m *Manager) Start() error {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	if m.running.Load() {
		return nil
	}

	if m.extraThreads == 0 {
		m.strategy = newInlineStrategy(m.log)
	} else {
		m.strategy = newPoolStrategy(m.extraThreads, m.log, &m.stats.busyExecutors)
	}

	m.stopReq.Store(false)
	m.stopOnce = sync.Once{}
	m.doneCh = make(chan struct{})
	m.running.Store(true)

	go m.dispatchLoop()

	m.log.Debug("eventmanager started", "extra_threads", m.extraThreads)
	return nil
}

// Stop requests the dispatch goroutine to exit, wakes it, and joins it.
// In-flight listener invocations are allowed to complete. Repeated Stop
// calls are a no-op.
func (m *Manager) Stop() error {
	if !m.running.Load() {
		return nil
	}
	m.stopOnce.Do(func() {
		m.stopReq.Store(true)
		m.signal()
		<-m.doneCh
		m.strategy.shutdown()
		m.running.Store(false)
		m.log.Debug("eventmanager stopped")
	})
	return nil
}

// IsRunning reports whether the dispatch goroutine is active.
func (m *Manager) IsRunning() bool {
	return m.running.Load()
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// AddListener registers fn to receive every event fired with eventType,
// deferred to the dispatch goroutine. It returns the fresh id
// immediately; the listener may not be reachable until the next
// dispatch cycle applies the addition.
func (m *Manager) AddListener(eventType string, fn ListenerFunc, ct CallType) ListenerID {
	return m.addListener(eventType, false, fn, ct)
}

// AddTargetedListener registers fn as reachable only by an event built
// with NewTargetedEvent(id, ...) for the returned id.
func (m *Manager) AddTargetedListener(fn ListenerFunc, ct CallType) ListenerID {
	return m.addListener("", true, fn, ct)
}

func (m *Manager) addListener(eventType string, targeted bool, fn ListenerFunc, ct CallType) ListenerID {
	m.box.listenerMu.Lock()
	id := m.reg.allocID()
	m.box.listenerMu.Unlock()

	m.box.queueAdd(pendingAdd{
		id: id, eventType: eventType, targeted: targeted, fn: fn, callType: ct,
	})
	m.signal()
	return id
}

// RemoveListener schedules id for removal. The listener may still be
// invoked for events fired before the dispatch goroutine applies the
// removal. Removing an unknown id is silently ignored.
func (m *Manager) RemoveListener(id ListenerID) {
	m.box.queueRemove(id)
	m.signal()
}

// FireEvent takes ownership of ev, queues it for dispatch, and wakes the
// dispatch goroutine. It returns false without taking ownership if a
// stop has already been requested.
func (m *Manager) FireEvent(ev *Event) bool {
	if m.stopReq.Load() {
		return false
	}
	m.box.queueEvent(ev)
	m.signal()
	return true
}

// dispatchLoop is the Manager's single internal goroutine. On each
// wakeup it snapshots pending events, applies pending registry
// mutations, then dispatches each event through the configured
// strategy.
func (m *Manager) dispatchLoop() {
	defer close(m.doneCh)
	for {
		<-m.wake

		m.box.listenerMu.Lock()
		m.box.eventMu.Lock()
		events := m.box.drainEvents()

		if m.stopReq.Load() {
			m.box.eventMu.Unlock()
			m.box.listenerMu.Unlock()
			m.log.Debug("stop requested, dispatch loop exiting", "dropped_events", len(events))
			return
		}

		added, removed := m.box.drainListenerInbox()
		m.applyRegistryMutations(added, removed)
		m.box.eventMu.Unlock()
		m.box.listenerMu.Unlock()

		if len(events) == 0 {
			continue
		}

		m.stats.cycles.Add(1)
		for _, ev := range events {
			m.dispatchOne(ev)
		}
		m.strategy.postProcessing()
	}
}

func (m *Manager) applyRegistryMutations(added []pendingAdd, removed []ListenerID) {
	for _, a := range added {
		if a.targeted {
			m.reg.addTargeted(a.id, a.fn, a.callType)
		} else {
			m.reg.addTyped(a.id, a.eventType, a.fn, a.callType)
		}
		m.reg.unreserve(a.id)
	}
	for _, id := range removed {
		m.reg.remove(id)
	}
}

func (m *Manager) dispatchOne(ev *Event) {
	if eventType, isTyped := ev.Type(); isTyped {
		for _, l := range m.reg.lookupByType(eventType) {
			m.stats.invocations.Add(1)
			m.strategy.sendEvent(l, ev)
		}
		return
	}
	id, _ := ev.TargetID()
	if l, ok := m.reg.lookupByID(id); ok {
		m.stats.invocations.Add(1)
		m.strategy.sendEvent(l, ev)
	}
}
