// Package testbroker is a minimal in-process MQTT 3.1.1 broker used only by
// this module's own tests to drive a real Client over a real TCP socket
// without depending on an external broker.
package testbroker

import (
	"net"
	"sync"

	"github.com/mqttcore/client/packet"
)

// Broker accepts TCP connections and runs one Session per connection.
// Handler, if set, is consulted for every inbound packet before the
// Session's default behavior; returning handled=true suppresses the
// default auto-ack.
type Broker struct {
	Handler func(s *Session, pkt packet.Packet) (handled bool)

	ln net.Listener

	mu       sync.Mutex
	sessions []*Session
}

// Start listens on an ephemeral local port and begins accepting
// connections in the background.
func Start() (*Broker, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	b := &Broker{ln: ln}
	go b.acceptLoop()
	return b, nil
}

// Addr is the "tcp://host:port" URL a Client can Connect to.
func (b *Broker) Addr() string { return "tcp://" + b.ln.Addr().String() }

func (b *Broker) Close() error { return b.ln.Close() }

// Sessions returns every connection accepted so far, in acceptance order.
func (b *Broker) Sessions() []*Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Session, len(b.sessions))
	copy(out, b.sessions)
	return out
}

func (b *Broker) acceptLoop() {
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			return
		}
		s := &Session{conn: conn, broker: b}
		b.mu.Lock()
		b.sessions = append(b.sessions, s)
		b.mu.Unlock()
		go s.serve()
	}
}

// Session is the broker's view of one client connection: a CONNECT
// handshake followed by a read loop that auto-acknowledges PUBLISH,
// SUBSCRIBE, UNSUBSCRIBE, and PINGREQ per MQTT 3.1.1, unless Broker.Handler
// intercepts a packet first.
type Session struct {
	conn   net.Conn
	broker *Broker

	mu             sync.Mutex
	sessionPresent uint8
	returnCode     uint8

	// Received records every inbound packet in arrival order, for
	// assertions in tests.
	recvMu   sync.Mutex
	Received []packet.Packet
}

// AcceptNextConnectAs configures the CONNACK this session sends for the
// next CONNECT it receives.
func (s *Session) AcceptNextConnectAs(returnCode uint8, sessionPresent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.returnCode = returnCode
	if sessionPresent {
		s.sessionPresent = 1
	} else {
		s.sessionPresent = 0
	}
}

// Send writes pkt directly to the connection, bypassing any default
// behavior — used to inject retransmits, unsolicited packets, etc.
func (s *Session) Send(pkt packet.Packet) error {
	return pkt.Pack(s.conn)
}

func (s *Session) record(pkt packet.Packet) {
	s.recvMu.Lock()
	s.Received = append(s.Received, pkt)
	s.recvMu.Unlock()
}

func (s *Session) serve() {
	defer s.conn.Close()
	for {
		pkt, err := packet.Unpack(packet.VERSION311, s.conn)
		if err != nil {
			return
		}
		s.record(pkt)

		if s.broker.Handler != nil && s.broker.Handler(s, pkt) {
			continue
		}

		switch p := pkt.(type) {
		case *packet.CONNECT:
			s.mu.Lock()
			code, sp := s.returnCode, s.sessionPresent
			s.mu.Unlock()
			s.Send(&packet.CONNACK{
				FixedHeader:       &packet.FixedHeader{Kind: 0x2},
				SessionPresent:    sp,
				ConnectReturnCode: packet.ReasonCode{Code: code},
			})
		case *packet.PUBLISH:
			switch p.QoS {
			case 1:
				s.Send(&packet.PUBACK{FixedHeader: &packet.FixedHeader{Kind: 0x4}, PacketID: p.PacketID})
			case 2:
				s.Send(&packet.PUBREC{FixedHeader: &packet.FixedHeader{Kind: 0x5}, PacketID: p.PacketID})
			}
		case *packet.PUBREL:
			s.Send(&packet.PUBCOMP{FixedHeader: &packet.FixedHeader{Kind: 0x7}, PacketID: p.PacketID})
		case *packet.SUBSCRIBE:
			codes := make([]uint8, len(p.Subscriptions))
			for i, sub := range p.Subscriptions {
				codes[i] = sub.MaximumQoS
			}
			s.Send(&packet.SUBACK{FixedHeader: &packet.FixedHeader{Kind: 0x9}, PacketID: p.PacketID, ReturnCodes: codes})
		case *packet.UNSUBSCRIBE:
			s.Send(&packet.UNSUBACK{FixedHeader: &packet.FixedHeader{Kind: 0xB}, PacketID: p.PacketID})
		case *packet.PINGREQ:
			s.Send(&packet.PINGRESP{FixedHeader: &packet.FixedHeader{Kind: 0xD}})
		}
	}
}
