package mqtt

import (
	"time"

	"github.com/mqttcore/client/packet"
)

// Entry wraps a Request with the packet identifier it holds (0 if none)
// and the timer handle for its single outstanding scheduled event
// (spec.md §3, §9 "Timers"). An Entry lives in exactly one of the Engine's
// queue or in-flight set at a time.
type Entry struct {
	req      Request
	packetID uint16
	timer    *time.Timer
}

func (e *Entry) cancelTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// requestContext is the narrow capability a Request uses to talk back to
// the Engine: emit a packet, (re)schedule its own timer, and allocate or
// release its packet identifier. Keeping it narrow is what lets the Engine
// and Supervisor avoid holding direct references to each other (spec.md
// §9, "Cyclic ownership").
type requestContext struct {
	engine *Engine
	entry  *Entry
}

func (rc *requestContext) emit(pkt packet.Packet) {
	rc.engine.enqueueWrite(pkt)
}

// allocateID assigns the Entry a fresh non-zero packet identifier, or
// reports false if the id space is exhausted.
func (rc *requestContext) allocateID() (uint16, bool) {
	id, ok := rc.engine.ids.allocate()
	if ok {
		rc.entry.packetID = id
	}
	return id, ok
}

func (rc *requestContext) packetID() uint16 {
	return rc.entry.packetID
}

// active reports whether the Engine currently considers the connection
// Active — used by requests that are allowed to start while inactive
// (canPerformInInactiveState()==true) but still need to fail fast with
// ErrNotConnected rather than proceed as if connected.
func (rc *requestContext) active() bool {
	return rc.engine.active
}

// schedule (re)arms the Entry's timer to fire after d, cancelling any
// previous one. d<=0 cancels without rescheduling.
func (rc *requestContext) schedule(d time.Duration) {
	rc.entry.cancelTimer()
	if d <= 0 {
		return
	}
	entry := rc.entry
	rc.entry.timer = time.AfterFunc(d, func() {
		rc.engine.postScheduled(entry)
	})
}

func (rc *requestContext) cancelSchedule() {
	rc.entry.cancelTimer()
}

// releaseID returns the Entry's packet identifier to the allocator, if it
// holds one. Requests call this once their final ack arrives, or when they
// give up without ever needing to retransmit again.
func (rc *requestContext) releaseID() {
	if rc.entry.packetID != 0 {
		rc.engine.ids.release(rc.entry.packetID)
		rc.entry.packetID = 0
	}
}
