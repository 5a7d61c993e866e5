package eventmanager

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// executorJob is the unit of work placed into an executor's mailbox:
// one listener invocation against one event, plus the WaitGroup the
// pool strategy uses to detect quiescence.
type executorJob struct {
	listener ListenerFunc
	event    *Event
	wg       *sync.WaitGroup
}

// executor is one goroutine of the pool strategy. It owns a single-slot
// mailbox (an atomic pointer, empty when nil) rather than a buffered
// channel: placement is a CAS from nil, so a full mailbox makes the
// placer move on to the next executor instead of queueing behind a
// busy one.
type executor struct {
	id      int
	mailbox atomic.Pointer[executorJob]
	wake    chan struct{}
	stop    chan struct{}
	log     *slog.Logger
	busy    *atomic.Int64
}

func newExecutor(id int, log *slog.Logger, busy *atomic.Int64) *executor {
	return &executor{
		id:   id,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		log:  log,
		busy: busy,
	}
}

// tryPlace attempts to CAS a job into the mailbox from empty to job. It
// returns false if the mailbox is currently occupied.
func (e *executor) tryPlace(job *executorJob) bool {
	if !e.mailbox.CompareAndSwap(nil, job) {
		return false
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

func (e *executor) run() {
	for {
		select {
		case <-e.stop:
			return
		case <-e.wake:
			e.drain()
		}
	}
}

// drain executes any job currently sitting in the mailbox and frees the
// slot afterwards, regardless of whether the listener panics.
func (e *executor) drain() {
	job := e.mailbox.Load()
	if job == nil {
		return
	}
	e.busy.Add(1)
	e.invoke(job)
	e.busy.Add(-1)
	e.mailbox.Store(nil)
}

func (e *executor) invoke(job *executorJob) {
	defer job.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("listener panicked", "executor", e.id, "event_id", job.event.ID, "recovered", r)
		}
	}()
	job.listener(job.event)
}

func (e *executor) shutdown() {
	close(e.stop)
}
