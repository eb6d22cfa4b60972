package conn

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// executor is the connection's single logical serial execution context
// (spec.md §4.6, §5): every core mutation runs as one closure drained off
// exactly one goroutine, so the state machine itself needs no locking.
//
// Two producers feed it, mirroring spec.md §5's "transport I/O context and
// state-machine context are distinct; the transport posts onto the
// state-machine context": the transport reader is the sole feeder of
// inbound frames and terminal signals, so that path is a bounded
// single-producer/single-consumer queue (lfq.SPSC, this pack's own idiom
// for exactly that shape — see hayabusa-cloud-sess's session.go). Local
// calls — Subscription.Request, Close, keepalive ticks — can originate
// from arbitrary goroutines, so that path is a regular Go channel.
type executor struct {
	transport *lfq.SPSC[func()]
	local     chan func()
	stop      chan struct{}

	onExecutor bool // debug-only marker, set for the lifetime of runOne
}

const executorTransportQueueCapacity = 64
const executorLocalQueueCapacity = 64

func newExecutor() *executor {
	q := &lfq.SPSC[func()]{}
	q.Init(executorTransportQueueCapacity)
	return &executor{
		transport: q,
		local:     make(chan func(), executorLocalQueueCapacity),
		stop:      make(chan struct{}),
	}
}

// postTransport enqueues work originating from the transport's reader
// goroutine. Called only from that one goroutine (spec.md §5 ordering:
// "frames delivered on the transport's inbound stream are processed in
// strict receive order").
func (e *executor) postTransport(fn func()) {
	var bo iox.Backoff
	for {
		if err := e.transport.Enqueue(&fn); err == nil {
			return
		}
		bo.Wait()
	}
}

// postLocal enqueues work from any other goroutine (application calls,
// the keepalive timer).
func (e *executor) postLocal(fn func()) {
	select {
	case e.local <- fn:
	case <-e.stop:
	}
}

// runOrPostLocal runs fn inline when already confined to the executor (the
// common case: automaton methods invoked from dispatch), or hands it to
// postLocal when called from an arbitrary application goroutine — a
// reactive-streams Subscription's Request/Cancel has no other way to reach
// the connection safely, since nothing forces its caller onto this
// executor. onExecutor is the same best-effort, unsynchronized marker
// assertOnExecutor uses; a stale read here means a Request/Cancel call
// takes one extra hop through the queue, never a correctness problem.
func (e *executor) runOrPostLocal(fn func()) {
	if e.onExecutor {
		fn()
		return
	}
	e.postLocal(fn)
}

// run drains both queues until shutdown is called. It never runs
// concurrently with itself; Connection starts exactly one of these per
// connection lifetime.
func (e *executor) run() {
	var bo iox.Backoff
	for {
		select {
		case fn, ok := <-e.local:
			if !ok {
				return
			}
			e.runOne(fn)
			continue
		case <-e.stop:
			return
		default:
		}

		if fn, err := e.transport.Dequeue(); err == nil {
			e.runOne(fn)
			continue
		}

		select {
		case fn, ok := <-e.local:
			if !ok {
				return
			}
			e.runOne(fn)
		case <-e.stop:
			return
		default:
			bo.Wait()
		}
	}
}

func (e *executor) runOne(fn func()) {
	e.onExecutor = true
	defer func() { e.onExecutor = false }()
	fn()
}

// assertOnExecutor panics if called from outside the executor's own
// goroutine while running a task. Debug aid only, mirroring spec.md §5's
// "all state-machine methods assert they are on the state-machine context
// (debug check)"; left uncompiled out of release builds is unnecessary
// here since the check is a cheap boolean read, not an instrumentation
// hook.
func (e *executor) assertOnExecutor() {
	if !e.onExecutor {
		panic("rsocket: core method invoked off the connection executor")
	}
}

func (e *executor) shutdown() {
	close(e.stop)
}
