package mqtt

import (
	"context"
	"sync/atomic"

	"github.com/mqttcore/client/packet"
)

// Engine is the request engine described in spec.md §5: a single
// cooperative dispatch loop that owns every Entry. All reads and mutations
// of Entry/queue/in-flight state happen inside run(), on one goroutine;
// every other goroutine only ever posts an engineEvent.
type Engine struct {
	cfg Config

	events chan engineEvent
	writes chan packet.Packet

	ids *packetIDAllocator

	queue    []*Entry
	inflight []*Entry

	active bool

	done chan struct{}

	inflightCount atomic.Int32
}

// InflightCount reports the current number of in-flight requests; safe to
// call from any goroutine (e.g. a metrics exporter), since it only ever
// reads an atomic counter maintained by the dispatch loop.
func (e *Engine) InflightCount() int32 { return e.inflightCount.Load() }

func newEngine(cfg Config) *Engine {
	return &Engine{
		cfg:    cfg,
		events: make(chan engineEvent, 64),
		writes: make(chan packet.Packet, 64),
		ids:    newPacketIDAllocator(),
		done:   make(chan struct{}),
	}
}

// Writes is the channel of packets, in emission order, that the Supervisor's
// write loop must put on the wire.
func (e *Engine) Writes() <-chan packet.Packet { return e.writes }

// submit admits req into the engine. Requests that cannot run while
// inactive (everything but Connect, Disconnect and QoS-0 Publish) wait in
// queue until a connectedLifecycleEvent arrives.
func (e *Engine) submit(req Request) {
	e.post(submitEvent{entry: &Entry{req: req}})
}

func (e *Engine) deliver(pkt packet.Packet) { e.post(inboundPacketEvent{pkt: pkt}) }

func (e *Engine) notifyConnected(sessionPresent bool) {
	e.post(connectedLifecycleEvent{sessionPresent: sessionPresent})
}

func (e *Engine) notifyDisconnected() { e.post(disconnectedLifecycleEvent{}) }

func (e *Engine) postScheduled(entry *Entry) { e.post(scheduledFireEvent{entry: entry}) }

func (e *Engine) shutdown() { e.post(shutdownEvent{}) }

func (e *Engine) post(ev engineEvent) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

func (e *Engine) enqueueWrite(pkt packet.Packet) {
	select {
	case e.writes <- pkt:
	case <-e.done:
	}
}

// run is the Engine's dispatch loop; start it on exactly one goroutine
// (New does this once per Client, for the Client's whole lifetime).
func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			e.drain()
			return
		case ev := <-e.events:
			if e.handle(ev) {
				e.drain()
				return
			}
		}
	}
}

func (e *Engine) handle(ev engineEvent) (stop bool) {
	switch ev := ev.(type) {
	case submitEvent:
		e.admit(ev.entry)
	case inboundPacketEvent:
		e.dispatch(func(rc *requestContext) RequestResult {
			return rc.entry.req.process(rc, ev.pkt)
		})
	case connectedLifecycleEvent:
		e.active = true
		e.dispatch(func(rc *requestContext) RequestResult {
			return rc.entry.req.connected(rc, ev.sessionPresent)
		})
	case disconnectedLifecycleEvent:
		e.active = false
		e.dispatch(func(rc *requestContext) RequestResult {
			return rc.entry.req.disconnected(rc)
		})
	case scheduledFireEvent:
		e.fireScheduled(ev.entry)
	case shutdownEvent:
		return true
	}
	return false
}

// admit enqueues entry, or starts it immediately if it's allowed to run now.
func (e *Engine) admit(entry *Entry) {
	if e.canStart(entry) {
		e.start(entry)
		return
	}
	e.queue = append(e.queue, entry)
}

// canStart reports whether entry may start given the current
// ConnectionState and the MaxInflight admission cap (spec.md §4.1, §6).
func (e *Engine) canStart(entry *Entry) bool {
	if !entry.req.canPerformInInactiveState() && !e.active {
		return false
	}
	return len(e.inflight) < e.cfg.MaxInflight
}

func (e *Engine) start(entry *Entry) {
	rc := &requestContext{engine: e, entry: entry}
	if entry.req.start(rc).isPending() {
		e.inflight = append(e.inflight, entry)
		e.inflightCount.Store(int32(len(e.inflight)))
	}
}

// admitQueued promotes as many queued entries into in-flight as the current
// ConnectionState and MaxInflight cap allow, preserving submission order.
func (e *Engine) admitQueued() {
	if len(e.queue) == 0 {
		return
	}
	remaining := e.queue[:0]
	for _, entry := range e.queue {
		if e.canStart(entry) {
			e.start(entry)
		} else {
			remaining = append(remaining, entry)
		}
	}
	e.queue = remaining
}

// dispatch runs fn against every in-flight Entry, dropping the ones that
// complete, then tops up from queue (a completion may have freed a slot or
// a lifecycle event may have just made queued entries startable).
func (e *Engine) dispatch(fn func(rc *requestContext) RequestResult) {
	remaining := e.inflight[:0]
	for _, entry := range e.inflight {
		rc := &requestContext{engine: e, entry: entry}
		if fn(rc).isPending() {
			remaining = append(remaining, entry)
		}
	}
	e.inflight = remaining
	e.inflightCount.Store(int32(len(e.inflight)))
	e.admitQueued()
}

func (e *Engine) fireScheduled(target *Entry) {
	for i, entry := range e.inflight {
		if entry != target {
			continue
		}
		rc := &requestContext{engine: e, entry: entry}
		if !entry.req.scheduled(rc).isPending() {
			e.inflight = append(e.inflight[:i], e.inflight[i+1:]...)
			e.inflightCount.Store(int32(len(e.inflight)))
		}
		e.admitQueued()
		return
	}
}

// drain tears down every queued and in-flight Entry on engine shutdown,
// via the same disconnected() transition a transport close would trigger
// (the request's token still completes with ErrConnectionClosed; callers
// that need to distinguish a clean shutdown use Client.Disconnect first).
func (e *Engine) drain() {
	for _, entry := range append(e.queue, e.inflight...) {
		entry.cancelTimer()
		if !entry.req.disconnected(&requestContext{engine: e, entry: entry}).isPending() {
			continue
		}
		// QoS 1/2 publishes stay pending on disconnect to await a reconnect;
		// after shutdown none comes, so their tokens are failed here.
		switch r := entry.req.(type) {
		case *publishQos1Request:
			r.token.failure(ErrConnectionClosed)
		case *publishQos2Request:
			r.token.failure(ErrConnectionClosed)
		}
	}
	e.queue = nil
	e.inflight = nil
	e.inflightCount.Store(0)
}
