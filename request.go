package mqtt

import "github.com/mqttcore/client/packet"

// RequestResult is returned by every Request state-machine callback
// (spec.md §3/§4.4): pending keeps the Entry where it is; done removes it.
// The request itself completes its Token before returning done — the
// Engine only needs to know whether to keep dispatching to it.
type RequestResult struct {
	pending bool
	err     error
}

func pendingResult() RequestResult       { return RequestResult{pending: true} }
func doneResult(err error) RequestResult { return RequestResult{pending: false, err: err} }

func (r RequestResult) isPending() bool { return r.pending }

// Request is the type-erased per-request state machine (spec.md §3, §4.4,
// §9 "Polymorphism across request types"). canPerformInInactiveState
// requests (Connect, Disconnect, QoS-0 Publish) may start() while
// ConnectionState != Active — QoS-0 Publish uses this only to fail fast
// with ErrNotConnected rather than to proceed as if connected; every other
// request waits in queue until the connection is Active.
//
// Event methods not meaningful for a given request type return
// pendingResult() unchanged — a no-op, per §4.4's "omitted transitions are
// no-ops" rule.
type Request interface {
	canPerformInInactiveState() bool
	start(rc *requestContext) RequestResult
	process(rc *requestContext, pkt packet.Packet) RequestResult
	connected(rc *requestContext, sessionPresent bool) RequestResult
	disconnected(rc *requestContext) RequestResult
	scheduled(rc *requestContext) RequestResult
}

// noopEvents implements every Request method as a pending-preserving no-op,
// so a per-request type need only override what spec.md §4.4's table
// actually lists for it (e.g. Publish QoS 0 ignores `process` entirely).
type noopEvents struct{}

func (noopEvents) process(*requestContext, packet.Packet) RequestResult   { return pendingResult() }
func (noopEvents) connected(*requestContext, bool) RequestResult         { return pendingResult() }
func (noopEvents) disconnected(*requestContext) RequestResult            { return pendingResult() }
func (noopEvents) scheduled(*requestContext) RequestResult                { return pendingResult() }
