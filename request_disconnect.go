package mqtt

import "github.com/mqttcore/client/packet"

// disconnectRequest sends the graceful DISCONNECT notice and completes
// immediately (spec.md §4.4, MQTT-3.14) — there is no acknowledgement to
// wait for. Like Connect, it may run while the connection isn't yet Active,
// so an in-progress connect attempt can still be torn down cleanly.
type disconnectRequest struct {
	noopEvents
	token *token[struct{}]
}

func newDisconnectRequest() (*disconnectRequest, Token[struct{}]) {
	t := newToken[struct{}]()
	return &disconnectRequest{token: t}, t
}

func (r *disconnectRequest) canPerformInInactiveState() bool { return true }

func (r *disconnectRequest) start(rc *requestContext) RequestResult {
	rc.emit(&packet.DISCONNECT{FixedHeader: &packet.FixedHeader{Kind: DISCONNECT}})
	r.token.success(struct{}{})
	return doneResult(nil)
}
