package eventmanager

import "sync/atomic"

// managerStats holds the counters backing Manager.Stats. All fields are
// updated with atomic operations so that Stats can be read from any
// goroutine without contending with the dispatch loop.
type managerStats struct {
	cycles        atomic.Int64
	invocations   atomic.Int64
	busyExecutors atomic.Int64
}

// ManagerStats is a point-in-time, approximate snapshot of a Manager's
// activity: useful for monitoring, never authoritative for
// correctness.
type ManagerStats struct {
	// ListenerCount is the number of listeners currently registered.
	ListenerCount int
	// PendingEvents is the number of fired events not yet drained by
	// the dispatch goroutine.
	PendingEvents int
	// DispatchCycles is the number of dispatch-loop wakeups that found
	// at least one event to process.
	DispatchCycles int64
	// Invocations is the cumulative number of listener invocations
	// handed to a strategy (not necessarily yet completed).
	Invocations int64
	// BusyExecutors is the number of pool executors currently running a
	// listener. Always zero under the inline strategy.
	BusyExecutors int
}

// Stats returns a snapshot of the manager's current activity. It is
// safe to call from any goroutine at any time.
func (m *Manager) Stats() ManagerStats {
	m.box.listenerMu.Lock()
	count := m.reg.count()
	m.box.listenerMu.Unlock()

	m.box.eventMu.Lock()
	pending := len(m.box.events)
	m.box.eventMu.Unlock()

	return ManagerStats{
		ListenerCount:  count,
		PendingEvents:  pending,
		DispatchCycles: m.stats.cycles.Load(),
		Invocations:    m.stats.invocations.Load(),
		BusyExecutors:  int(m.stats.busyExecutors.Load()),
	}
}
