package packet

import (
	"bytes"
	"fmt"
	"io"
)

// CONNACK is the server's reply to CONNECT (MQTT-3.2). No payload.
type CONNACK struct {
	*FixedHeader

	// SessionPresent is bit 0 of variable header byte 1 (MQTT-3.2.2.1);
	// meaningful only when the client requested CleanSession=0. Bits 7-1
	// are reserved and must be 0.
	SessionPresent uint8

	// ConnectReturnCode is one of the codes in errors.go (MQTT-3.2.2.2). A
	// non-zero code means the server closes the connection right after
	// sending this packet (MQTT-3.2.2-5).
	ConnectReturnCode ReasonCode `json:"ConnectReturnCode,omitempty"`
}

func (pkt *CONNACK) Kind() byte {
	return 0x2
}

func (pkt *CONNACK) String() string {
	return fmt.Sprintf("[0x2]ConnectReturnCode=%d", pkt.ConnectReturnCode.Code)
}

func (pkt *CONNACK) Pack(w io.Writer) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.WriteByte(pkt.SessionPresent)
	buf.WriteByte(pkt.ConnectReturnCode.Code)

	pkt.FixedHeader.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *CONNACK) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 2 {
		return ErrMalformedPacket
	}
	sp := buf.Next(1)[0]
	if sp&0xFE != 0 {
		return ErrMalformedPacket
	}
	pkt.SessionPresent = sp
	pkt.ConnectReturnCode = ReasonCode{Code: buf.Next(1)[0]}
	return nil
}
