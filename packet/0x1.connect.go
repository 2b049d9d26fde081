package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang-io/requests"
)

// NAME is the fixed MQTT protocol name carried in CONNECT's variable header
// (MQTT-3.1.2-1): 0x00 0x04 'M' 'Q' 'T' 'T'.
var NAME = []byte{0x00, 0x04, 'M', 'Q', 'T', 'T'}

// CONNECT is the first packet a client sends on a new network connection
// (MQTT-3.1). A client must send at most one per connection.
type CONNECT struct {
	*FixedHeader

	// ConnectFlags packs UserNameFlag/PasswordFlag/WillRetain/WillQoS/
	// WillFlag/CleanSession into a single byte (MQTT-3.1.2.2); populated
	// from CleanSession (and the Will/Username/Password fields) on Pack,
	// and decoded back into CleanSession on Unpack.
	ConnectFlags ConnectFlags

	// CleanSession requests the broker discard any prior session state
	// (MQTT-3.1.2.4). False requests session resumption, the precondition
	// for the broker ever returning SessionPresent=1 in CONNACK.
	CleanSession bool

	// KeepAlive, in seconds; 0 disables the keep-alive mechanism
	// (MQTT-3.1.2.10).
	KeepAlive uint16

	// ClientID identifies the session to the server (MQTT-3.1.3.1). An
	// empty ClientID on Unpack is filled with a generated one, matching
	// server-assignment semantics for CleanSession=1 connections.
	ClientID string `json:"ClientID,omitempty"`

	WillTopic   string
	WillPayload []byte
	// WillQoS and WillRetain carry the delivery QoS and retain flag for
	// WillTopic/WillPayload (MQTT-3.1.2.6/.7/.13/.14). Both are meaningless
	// when WillTopic/WillPayload are unset.
	WillQoS    uint8
	WillRetain bool

	Username string `json:"Username,omitempty"`
	Password string `json:"Password,omitempty"`
}

func (pkt *CONNECT) Kind() byte {
	return 0x1
}

func (pkt *CONNECT) String() string {
	return "[0x1]CONNECT"
}

func (pkt *CONNECT) Pack(w io.Writer) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(NAME)
	buf.WriteByte(pkt.FixedHeader.Version)

	uf := boolBit(pkt.Username != "") // bit 7
	pf := boolBit(pkt.Password != "") // bit 6
	wf := boolBit(pkt.WillTopic != "" || pkt.WillPayload != nil)
	wq := pkt.WillQoS
	wr := boolBit(pkt.WillRetain)
	cs := boolBit(pkt.CleanSession)

	if wf == 0 {
		wq, wr = 0, 0 // WillRetain/WillQoS must be 0 when WillFlag is 0 (MQTT-3.1.2-11/15)
	} else if wq > 2 {
		return fmt.Errorf("%w: will qos %d", ErrInvalidQoS, wq)
	}

	flag := uf<<7 | pf<<6 | wr<<5 | wq<<3 | wf<<2 | cs<<1
	pkt.ConnectFlags = ConnectFlags(flag)
	buf.WriteByte(flag)

	buf.Write(i2b(pkt.KeepAlive))

	if len(pkt.ClientID) > 23 {
		return fmt.Errorf("%w: client id %q exceeds 23 characters", ErrMalformedPacket, pkt.ClientID)
	}
	buf.Write(encodeUTF8(pkt.ClientID))

	if wf == 1 {
		buf.Write(encodeUTF8(pkt.WillTopic))
		buf.Write(encodeUTF8(pkt.WillPayload))
	}
	if uf == 1 {
		buf.Write(encodeUTF8(pkt.Username))
	}
	if pf == 1 {
		buf.Write(encodeUTF8(pkt.Password))
	}

	pkt.FixedHeader.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *CONNECT) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 6 {
		return ErrMalformedPacket
	}
	name := buf.Next(6)
	if !bytes.Equal(name, NAME) {
		return fmt.Errorf("%w: protocol name %q", ErrMalformedPacket, name)
	}

	if buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.Version, pkt.ConnectFlags = buf.Next(1)[0], ConnectFlags(buf.Next(1)[0])

	// The reserved flag bit must be 0 (MQTT-3.1.2-3).
	if pkt.ConnectFlags.Reserved() != 0 {
		return ErrMalformedPacket
	}
	pkt.CleanSession = pkt.ConnectFlags.CleanSession()
	if pkt.ConnectFlags.WillQoS() > 2 {
		return ErrInvalidQoS
	}
	// If WillFlag is 0, WillRetain and WillQoS must both be 0 (MQTT-3.1.2-11/15).
	if !pkt.ConnectFlags.WillFlag() && (pkt.ConnectFlags.WillRetain() || pkt.ConnectFlags.WillQoS() != 0) {
		return ErrMalformedPacket
	}
	// If UserNameFlag is 0, PasswordFlag must be 0 (MQTT-3.1.2-22).
	if !pkt.ConnectFlags.UserNameFlag() && pkt.ConnectFlags.PasswordFlag() {
		return ErrMalformedPacket
	}

	if buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.KeepAlive = binary.BigEndian.Uint16(buf.Next(2))

	switch pkt.Version {
	case VERSION311:
	case VERSION310:
		return fmt.Errorf("%w: protocol level 0x%x unsupported", ErrMalformedPacket, pkt.Version)
	default:
		return fmt.Errorf("%w: unrecognized protocol level 0x%x", ErrMalformedPacket, pkt.Version)
	}

	var err error
	pkt.ClientID, err = decodeUTF8[string](buf)
	if err != nil {
		return err
	}
	if pkt.ClientID == "" {
		pkt.ClientID = requests.GenId()
	}

	if pkt.ConnectFlags.WillFlag() {
		if pkt.WillTopic, err = decodeUTF8[string](buf); err != nil {
			return err
		}
		if pkt.WillPayload, err = decodeUTF8[[]byte](buf); err != nil {
			return err
		}
		if pkt.WillTopic == "" {
			return ErrMalformedPacket
		}
		pkt.WillQoS = pkt.ConnectFlags.WillQoS()
		pkt.WillRetain = pkt.ConnectFlags.WillRetain()
	}

	if pkt.ConnectFlags.UserNameFlag() {
		if pkt.Username, err = decodeUTF8[string](buf); err != nil {
			return err
		}
	}
	if pkt.ConnectFlags.PasswordFlag() {
		if pkt.Password, err = decodeUTF8[string](buf); err != nil {
			return err
		}
	}
	return nil
}

func boolBit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// ConnectFlags packs the CONNECT variable header's flag byte (MQTT-3.1.2.2).
//
//	bit: 7        6        5     4-3     2     1            0
//	     UserName Password WillR WillQoS Will  CleanSession Reserved
type ConnectFlags uint8

func (f ConnectFlags) Reserved() uint8 {
	return uint8(f) & 0x01
}

func (f ConnectFlags) CleanSession() bool {
	return (uint8(f) & 0x02) == 0x02
}

func (f ConnectFlags) WillFlag() bool {
	return (uint8(f) & 0x04) == 0x04
}

func (f ConnectFlags) WillQoS() uint8 {
	return (uint8(f) & 0x18) >> 3
}

func (f ConnectFlags) WillRetain() bool {
	return (uint8(f) & 0x20) == 0x20
}

func (f ConnectFlags) PasswordFlag() bool {
	return (uint8(f) & 0x40) == 0x40
}

func (f ConnectFlags) UserNameFlag() bool {
	return (uint8(f) & 0x80) == 0x80
}
