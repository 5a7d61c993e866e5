package eventmanager

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

// strategy is the pluggable execution policy for listener invocation,
// built by Manager.Start from extraThreads: zero selects the inline
// strategy, nonzero selects a pool of that size.
type strategy interface {
	// sendEvent hands one listener invocation to the strategy. Called
	// from the dispatch goroutine only.
	sendEvent(listener registeredListener, ev *Event)
	// postProcessing runs after all events of one dispatch cycle have
	// been handed to sendEvent. For the pool strategy this blocks until
	// every queued call has completed.
	postProcessing()
	// shutdown stops any goroutines owned by the strategy.
	shutdown()
}

// inlineStrategy invokes listeners synchronously on the dispatch
// goroutine. postProcessing is a no-op: there is nothing to wait for.
type inlineStrategy struct {
	log *slog.Logger
}

func newInlineStrategy(log *slog.Logger) *inlineStrategy {
	return &inlineStrategy{log: log}
}

func (s *inlineStrategy) sendEvent(listener registeredListener, ev *Event) {
	s.invoke(listener.fn, ev)
}

func (s *inlineStrategy) invoke(fn ListenerFunc, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("listener panicked", "event_id", ev.ID, "recovered", r)
		}
	}()
	fn(ev)
}

func (s *inlineStrategy) postProcessing() {}

func (s *inlineStrategy) shutdown() {}

// poolStrategy owns extraThreads executor goroutines created at
// construction and stopped at shutdown. sendEvent appends the
// (listener, event) pair into the main-thread or any-thread queue
// according to the listener's call type; postProcessing distributes
// the queued calls onto free executors via round-robin CAS placement
// and then waits, via a WaitGroup, for every placed call to finish.
type poolStrategy struct {
	executors []*executor

	mu        sync.Mutex
	mainQueue []pendingCall
	anyQueue  []pendingCall

	// cursor is the round-robin placement position over the eligible
	// ANY_THREADS executors. Only touched from postProcessing (the
	// dispatch goroutine), so it needs no lock; it persists across
	// cycles so placement pressure rotates instead of always probing
	// the same executor first.
	cursor int
}

type pendingCall struct {
	listener ListenerFunc
	event    *Event
}

func newPoolStrategy(extraThreads int, log *slog.Logger, busy *atomic.Int64) *poolStrategy {
	p := &poolStrategy{
		executors: make([]*executor, extraThreads),
	}
	for i := 0; i < extraThreads; i++ {
		p.executors[i] = newExecutor(i, log, busy)
		go p.executors[i].run()
	}
	log.Debug("executor pool started", "executors", extraThreads)
	return p
}

func (p *poolStrategy) sendEvent(listener registeredListener, ev *Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	call := pendingCall{listener: listener.fn, event: ev}
	if listener.callType == MainThread {
		p.mainQueue = append(p.mainQueue, call)
	} else {
		p.anyQueue = append(p.anyQueue, call)
	}
}

// eligibleAnyExecutors returns the executor indices that may service
// AnyThreads calls: 1..N-1 when there is more than one extra thread,
// otherwise executor 0 alone.
func (p *poolStrategy) eligibleAnyExecutors() []int {
	n := len(p.executors)
	if n > 1 {
		out := make([]int, 0, n-1)
		for i := 1; i < n; i++ {
			out = append(out, i)
		}
		return out
	}
	return []int{0}
}

func (p *poolStrategy) postProcessing() {
	p.mu.Lock()
	main := p.mainQueue
	any := p.anyQueue
	p.mainQueue = nil
	p.anyQueue = nil
	p.mu.Unlock()

	if len(main) == 0 && len(any) == 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(main) + len(any))

	anyExecutors := p.eligibleAnyExecutors()

	for _, call := range main {
		job := &executorJob{listener: call.listener, event: call.event, wg: &wg}
		for !p.executors[0].tryPlace(job) {
			// Executor 0 is momentarily busy; yield until its single
			// slot frees up.
			runtime.Gosched()
		}
	}

	for _, call := range any {
		job := &executorJob{listener: call.listener, event: call.event, wg: &wg}
		for attempts := 0; ; attempts++ {
			idx := anyExecutors[p.cursor%len(anyExecutors)]
			p.cursor++
			if p.executors[idx].tryPlace(job) {
				break
			}
			if attempts%len(anyExecutors) == len(anyExecutors)-1 {
				// A full lap found every eligible mailbox occupied.
				runtime.Gosched()
			}
		}
	}

	wg.Wait()
}

func (p *poolStrategy) shutdown() {
	for _, e := range p.executors {
		e.shutdown()
	}
	if len(p.executors) > 0 {
		p.executors[0].log.Debug("executor pool stopped", "executors", len(p.executors))
	}
}
