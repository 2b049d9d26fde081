package mqtt

import "github.com/mqttcore/client/packet"

// publishQos0Request fires-and-forgets (spec.md §4.4): it never enters the
// in-flight set, since start() always returns doneResult.
type publishQos0Request struct {
	noopEvents
	msg   *packet.Message
	token *token[struct{}]
}

func newPublishQos0Request(msg *packet.Message) (*publishQos0Request, Token[struct{}]) {
	t := newToken[struct{}]()
	return &publishQos0Request{msg: msg, token: t}, t
}

// canPerformInInactiveState is true so start() runs immediately and can
// fail fast with ErrNotConnected (spec.md §4.4: "If not Active: fail with
// NotConnected") instead of sitting queued until the next reconnect.
func (r *publishQos0Request) canPerformInInactiveState() bool { return true }

func (r *publishQos0Request) start(rc *requestContext) RequestResult {
	if !rc.active() {
		r.token.failure(ErrNotConnected)
		return doneResult(ErrNotConnected)
	}
	rc.emit(&packet.PUBLISH{
		FixedHeader: &packet.FixedHeader{Kind: PUBLISH},
		Message:     r.msg,
	})
	r.token.success(struct{}{})
	return doneResult(nil)
}

// publishQos1Request drives an at-least-once PUBLISH (spec.md §4.4,
// MQTT-3.3/3.4): retransmit with DUP=1 on retry-timer fire, and again after
// every reconnect, with DUP=1 if the broker resumed the session and DUP=0
// if it did not.
type publishQos1Request struct {
	msg               *packet.Message
	token             *token[struct{}]
	cfg               Config
	awaitingReconnect bool
}

func newPublishQos1Request(msg *packet.Message, cfg Config) (*publishQos1Request, Token[struct{}]) {
	t := newToken[struct{}]()
	return &publishQos1Request{msg: msg, token: t, cfg: cfg}, t
}

func (r *publishQos1Request) canPerformInInactiveState() bool { return false }

func (r *publishQos1Request) emit(rc *requestContext, dup bool) {
	rc.emit(&packet.PUBLISH{
		FixedHeader: &packet.FixedHeader{Kind: PUBLISH, QoS: 1, Dup: boolToUint8(dup)},
		PacketID:    rc.packetID(),
		Message:     r.msg,
	})
}

func (r *publishQos1Request) start(rc *requestContext) RequestResult {
	if _, ok := rc.allocateID(); !ok {
		r.token.failure(ErrNoAvailablePacketIdentifier)
		return doneResult(ErrNoAvailablePacketIdentifier)
	}
	r.emit(rc, false)
	rc.schedule(r.cfg.PublishRetryInterval)
	return pendingResult()
}

func (r *publishQos1Request) process(rc *requestContext, pkt packet.Packet) RequestResult {
	puback, ok := pkt.(*packet.PUBACK)
	if !ok || puback.PacketID != rc.packetID() {
		return pendingResult()
	}
	rc.cancelSchedule()
	rc.releaseID()
	r.token.success(struct{}{})
	return doneResult(nil)
}

func (r *publishQos1Request) connected(rc *requestContext, sessionPresent bool) RequestResult {
	if !r.awaitingReconnect {
		return pendingResult()
	}
	r.awaitingReconnect = false
	r.emit(rc, sessionPresent)
	rc.schedule(r.cfg.PublishRetryInterval)
	return pendingResult()
}

func (r *publishQos1Request) disconnected(rc *requestContext) RequestResult {
	rc.cancelSchedule()
	r.awaitingReconnect = true
	return pendingResult()
}

func (r *publishQos1Request) scheduled(rc *requestContext) RequestResult {
	r.emit(rc, true)
	rc.schedule(r.cfg.PublishRetryInterval)
	return pendingResult()
}

type qos2Step int

const (
	qos2AwaitingPubrec qos2Step = iota
	qos2AwaitingPubcomp
)

// publishQos2Request drives an exactly-once PUBLISH through its two
// acknowledgement steps (spec.md §4.4, MQTT-3.3/3.5/3.6/3.7).
type publishQos2Request struct {
	msg               *packet.Message
	token             *token[struct{}]
	cfg               Config
	step              qos2Step
	awaitingReconnect bool
}

func newPublishQos2Request(msg *packet.Message, cfg Config) (*publishQos2Request, Token[struct{}]) {
	t := newToken[struct{}]()
	return &publishQos2Request{msg: msg, token: t, cfg: cfg, step: qos2AwaitingPubrec}, t
}

func (r *publishQos2Request) canPerformInInactiveState() bool { return false }

func (r *publishQos2Request) emitPublish(rc *requestContext, dup bool) {
	rc.emit(&packet.PUBLISH{
		FixedHeader: &packet.FixedHeader{Kind: PUBLISH, QoS: 2, Dup: boolToUint8(dup)},
		PacketID:    rc.packetID(),
		Message:     r.msg,
	})
}

func (r *publishQos2Request) emitPubrel(rc *requestContext) {
	rc.emit(&packet.PUBREL{
		FixedHeader: &packet.FixedHeader{Kind: PUBREL, QoS: 1},
		PacketID:    rc.packetID(),
	})
}

func (r *publishQos2Request) start(rc *requestContext) RequestResult {
	if _, ok := rc.allocateID(); !ok {
		r.token.failure(ErrNoAvailablePacketIdentifier)
		return doneResult(ErrNoAvailablePacketIdentifier)
	}
	r.step = qos2AwaitingPubrec
	r.emitPublish(rc, false)
	rc.schedule(r.cfg.PublishRetryInterval)
	return pendingResult()
}

func (r *publishQos2Request) process(rc *requestContext, pkt packet.Packet) RequestResult {
	switch p := pkt.(type) {
	case *packet.PUBREC:
		if p.PacketID != rc.packetID() || r.step != qos2AwaitingPubrec {
			return pendingResult()
		}
		rc.cancelSchedule()
		r.step = qos2AwaitingPubcomp
		r.emitPubrel(rc)
		rc.schedule(r.cfg.PublishRetryInterval)
		return pendingResult()
	case *packet.PUBCOMP:
		if p.PacketID != rc.packetID() || r.step != qos2AwaitingPubcomp {
			return pendingResult()
		}
		rc.cancelSchedule()
		rc.releaseID()
		r.token.success(struct{}{})
		return doneResult(nil)
	}
	return pendingResult()
}

func (r *publishQos2Request) connected(rc *requestContext, sessionPresent bool) RequestResult {
	if !r.awaitingReconnect {
		return pendingResult()
	}
	r.awaitingReconnect = false
	switch {
	case !sessionPresent:
		// Broker discarded session state; the whole exchange restarts.
		r.step = qos2AwaitingPubrec
		r.emitPublish(rc, false)
	case r.step == qos2AwaitingPubrec:
		r.emitPublish(rc, true)
	default:
		r.emitPubrel(rc)
	}
	rc.schedule(r.cfg.PublishRetryInterval)
	return pendingResult()
}

func (r *publishQos2Request) disconnected(rc *requestContext) RequestResult {
	rc.cancelSchedule()
	r.awaitingReconnect = true
	return pendingResult()
}

func (r *publishQos2Request) scheduled(rc *requestContext) RequestResult {
	if r.step == qos2AwaitingPubrec {
		r.emitPublish(rc, true)
	} else {
		r.emitPubrel(rc)
	}
	rc.schedule(r.cfg.PublishRetryInterval)
	return pendingResult()
}
