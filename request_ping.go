package mqtt

import (
	"time"

	"github.com/mqttcore/client/packet"
)

// pingRequest is issued internally by the Supervisor's keep-alive timer
// (spec.md §4.3, MQTT-3.12/3.13); the caller waits on done rather than a
// Token, since nothing public submits a ping directly.
type pingRequest struct {
	timeout time.Duration
	done    chan error
}

func newPingRequest(timeout time.Duration) *pingRequest {
	return &pingRequest{timeout: timeout, done: make(chan error, 1)}
}

func (r *pingRequest) canPerformInInactiveState() bool { return false }

func (r *pingRequest) start(rc *requestContext) RequestResult {
	rc.emit(&packet.PINGREQ{FixedHeader: &packet.FixedHeader{Kind: PINGREQ}})
	rc.schedule(r.timeout)
	return pendingResult()
}

func (r *pingRequest) process(rc *requestContext, pkt packet.Packet) RequestResult {
	if pkt.Kind() != PINGRESP {
		return pendingResult()
	}
	rc.cancelSchedule()
	r.done <- nil
	return doneResult(nil)
}

func (r *pingRequest) connected(*requestContext, bool) RequestResult { return pendingResult() }

func (r *pingRequest) disconnected(rc *requestContext) RequestResult {
	rc.cancelSchedule()
	r.done <- ErrConnectionClosed
	return doneResult(ErrConnectionClosed)
}

func (r *pingRequest) scheduled(rc *requestContext) RequestResult {
	r.done <- ErrKeepAliveTimeout
	return doneResult(ErrKeepAliveTimeout)
}
