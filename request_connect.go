package mqtt

import (
	"time"

	"github.com/mqttcore/client/packet"
)

// connectRequest drives the CONNECT/CONNACK handshake (spec.md §4.4,
// MQTT-3.1/3.2). Besides Disconnect, it is the only request that may start
// and proceed while the connection is not yet Active (QoS-0 Publish also
// starts while inactive, but only to fail with ErrNotConnected).
type connectRequest struct {
	noopEvents
	cfg   Config
	token *token[bool]
}

func newConnectRequest(cfg Config) (*connectRequest, Token[bool]) {
	t := newToken[bool]()
	return &connectRequest{cfg: cfg, token: t}, t
}

func (r *connectRequest) canPerformInInactiveState() bool { return true }

func (r *connectRequest) start(rc *requestContext) RequestResult {
	connect := &packet.CONNECT{
		FixedHeader:  &packet.FixedHeader{Kind: CONNECT, Version: packet.VERSION311},
		CleanSession: r.cfg.CleanSession,
		KeepAlive:    uint16(r.cfg.KeepAliveInterval / time.Second),
		ClientID:     r.cfg.ClientID,
	}
	if r.cfg.Credentials != nil {
		connect.Username = r.cfg.Credentials.Username
		connect.Password = r.cfg.Credentials.Password
	}
	if r.cfg.Will != nil {
		connect.WillTopic = r.cfg.Will.Topic
		connect.WillPayload = r.cfg.Will.Payload
		connect.WillQoS = r.cfg.Will.QoS
		connect.WillRetain = r.cfg.Will.Retain
	}
	rc.emit(connect)
	rc.schedule(r.cfg.ConnectTimeout)
	return pendingResult()
}

func (r *connectRequest) process(rc *requestContext, pkt packet.Packet) RequestResult {
	connack, ok := pkt.(*packet.CONNACK)
	if !ok {
		return pendingResult()
	}
	rc.cancelSchedule()
	if connack.ConnectReturnCode.Code != 0 {
		err := &ConnectionRefused{Code: connack.ConnectReturnCode.Code}
		r.token.failure(err)
		return doneResult(err)
	}
	r.token.success(connack.SessionPresent != 0)
	return doneResult(nil)
}

func (r *connectRequest) disconnected(rc *requestContext) RequestResult {
	rc.cancelSchedule()
	r.token.failure(ErrConnectionClosed)
	return doneResult(ErrConnectionClosed)
}

func (r *connectRequest) scheduled(rc *requestContext) RequestResult {
	r.token.failure(ErrTimeout)
	return doneResult(ErrTimeout)
}
