package mqtt

import "github.com/mqttcore/client/packet"

// SubscriptionResult is one granted-QoS-or-failure outcome, in the same
// order as the filters passed to Subscribe (spec.md §4.2, MQTT-3.9.3).
type SubscriptionResult struct {
	Filter  string
	Success bool
	QoS     uint8
}

// subscribeRequest drives a SUBSCRIBE/SUBACK exchange (spec.md §4.4,
// MQTT-3.8/3.9). Per the Open Question decision recorded in DESIGN.md,
// Subscribe does not resume across a reconnect: a disconnect before SUBACK
// fails the request outright, same as a timeout.
type subscribeRequest struct {
	subs  []packet.Subscription
	token *token[[]SubscriptionResult]
	cfg   Config
}

func newSubscribeRequest(subs []packet.Subscription, cfg Config) (*subscribeRequest, Token[[]SubscriptionResult]) {
	t := newToken[[]SubscriptionResult]()
	return &subscribeRequest{subs: subs, token: t, cfg: cfg}, t
}

func (r *subscribeRequest) canPerformInInactiveState() bool { return false }

func (r *subscribeRequest) start(rc *requestContext) RequestResult {
	if _, ok := rc.allocateID(); !ok {
		r.token.failure(ErrNoAvailablePacketIdentifier)
		return doneResult(ErrNoAvailablePacketIdentifier)
	}
	rc.emit(&packet.SUBSCRIBE{
		FixedHeader:   &packet.FixedHeader{Kind: SUBSCRIBE, QoS: 1},
		PacketID:      rc.packetID(),
		Subscriptions: r.subs,
	})
	rc.schedule(r.cfg.SubscriptionTimeoutInterval)
	return pendingResult()
}

func (r *subscribeRequest) process(rc *requestContext, pkt packet.Packet) RequestResult {
	suback, ok := pkt.(*packet.SUBACK)
	if !ok || suback.PacketID != rc.packetID() {
		return pendingResult()
	}
	rc.cancelSchedule()
	rc.releaseID()
	results := make([]SubscriptionResult, len(suback.ReturnCodes))
	for i, code := range suback.ReturnCodes {
		filter := ""
		if i < len(r.subs) {
			filter = r.subs[i].TopicFilter
		}
		results[i] = SubscriptionResult{Filter: filter, Success: code != packet.SubackFailure, QoS: code}
	}
	r.token.success(results)
	return doneResult(nil)
}

func (r *subscribeRequest) connected(*requestContext, bool) RequestResult { return pendingResult() }

func (r *subscribeRequest) disconnected(rc *requestContext) RequestResult {
	rc.cancelSchedule()
	rc.releaseID()
	r.token.failure(ErrConnectionClosed)
	return doneResult(ErrConnectionClosed)
}

func (r *subscribeRequest) scheduled(rc *requestContext) RequestResult {
	rc.releaseID()
	r.token.failure(ErrTimeout)
	return doneResult(ErrTimeout)
}

// unsubscribeRequest drives an UNSUBSCRIBE/UNSUBACK exchange (spec.md §4.4,
// MQTT-3.10/3.11). Same no-resume-on-reconnect behavior as Subscribe.
type unsubscribeRequest struct {
	filters []string
	token   *token[struct{}]
	cfg     Config
}

func newUnsubscribeRequest(filters []string, cfg Config) (*unsubscribeRequest, Token[struct{}]) {
	t := newToken[struct{}]()
	return &unsubscribeRequest{filters: filters, token: t, cfg: cfg}, t
}

func (r *unsubscribeRequest) canPerformInInactiveState() bool { return false }

func (r *unsubscribeRequest) start(rc *requestContext) RequestResult {
	if _, ok := rc.allocateID(); !ok {
		r.token.failure(ErrNoAvailablePacketIdentifier)
		return doneResult(ErrNoAvailablePacketIdentifier)
	}
	rc.emit(&packet.UNSUBSCRIBE{
		FixedHeader:  &packet.FixedHeader{Kind: UNSUBSCRIBE, QoS: 1},
		PacketID:     rc.packetID(),
		TopicFilters: r.filters,
	})
	rc.schedule(r.cfg.SubscriptionTimeoutInterval)
	return pendingResult()
}

func (r *unsubscribeRequest) process(rc *requestContext, pkt packet.Packet) RequestResult {
	unsuback, ok := pkt.(*packet.UNSUBACK)
	if !ok || unsuback.PacketID != rc.packetID() {
		return pendingResult()
	}
	rc.cancelSchedule()
	rc.releaseID()
	r.token.success(struct{}{})
	return doneResult(nil)
}

func (r *unsubscribeRequest) connected(*requestContext, bool) RequestResult { return pendingResult() }

func (r *unsubscribeRequest) disconnected(rc *requestContext) RequestResult {
	rc.cancelSchedule()
	rc.releaseID()
	r.token.failure(ErrConnectionClosed)
	return doneResult(ErrConnectionClosed)
}

func (r *unsubscribeRequest) scheduled(rc *requestContext) RequestResult {
	rc.releaseID()
	r.token.failure(ErrTimeout)
	return doneResult(ErrTimeout)
}
