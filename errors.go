package mqtt

import "fmt"

// ConnectionRefused is returned to a pending Connect request when the
// broker's CONNACK carries a non-zero return code (MQTT-3.2.2.3). Codes 4
// and 5 are authentication-class failures: the Supervisor does not retry
// reconnecting after one of these (spec.md §7).
type ConnectionRefused struct {
	Code uint8
}

func (e *ConnectionRefused) Error() string {
	return fmt.Sprintf("mqtt: connection refused, return code %d", e.Code)
}

// IsAuthFailure reports whether the refusal is authentication-class
// (bad credentials or not authorized), which disables reconnect retry.
func (e *ConnectionRefused) IsAuthFailure() bool {
	return e.Code == 4 || e.Code == 5
}

// ProtocolError wraps a codec-layer failure (see packet.ErrMalformedPacket
// and friends). It is fatal for the connection: the Supervisor closes the
// transport and, if configured, reconnects.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("mqtt: protocol error: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

var (
	// ErrConnectionClosed is surfaced to a request that was in-flight or
	// queued when the transport closed and the request's state machine
	// does not wait for reconnect.
	ErrConnectionClosed = fmt.Errorf("mqtt: connection closed")

	// ErrNotConnected is surfaced to a QoS-0 publish started while
	// ConnectionState is not Active; requests that cannot run inactive wait
	// in queue instead.
	ErrNotConnected = fmt.Errorf("mqtt: not connected")

	// ErrTimeout is returned when a request's scheduled timeout fires
	// before the expected response packet arrives.
	ErrTimeout = fmt.Errorf("mqtt: timeout")

	// ErrKeepAliveTimeout is returned by the internal Ping request when no
	// PINGRESP arrives in time; the Supervisor escalates this to a
	// transport close.
	ErrKeepAliveTimeout = fmt.Errorf("mqtt: keep-alive timeout")

	// ErrNoAvailablePacketIdentifier is returned to a caller submitting a
	// QoS>0 request when all 65535 packet identifiers are in use.
	ErrNoAvailablePacketIdentifier = fmt.Errorf("mqtt: no available packet identifier")

	// ErrClientShutdown names the terminal client-shutdown condition. No
	// code path in this package returns it: requests still queued or in
	// flight when a Client is closed fail with ErrConnectionClosed (see
	// Engine.drain).
	ErrClientShutdown = fmt.Errorf("mqtt: client shut down")
)
