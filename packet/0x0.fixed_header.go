package packet

import (
	"fmt"
	"io"
)

// FixedHeader holds the fixed header portion of every MQTT 3.1.1 control
// packet (MQTT-2.2).
//
//	byte 1   | MQTT Control Packet type | Flags specific to the type |
//	byte 2.. | Remaining Length (varint)
type FixedHeader struct {
	Version byte // protocol level this packet was decoded under

	// Kind is the control packet type, bits 7-4 of byte 1.
	Kind byte `json:"Kind,omitempty"`

	// Dup, QoS, Retain are the flag bits specific to PUBLISH (bits 3-0).
	// For every other packet type these are fixed by the spec (usually 0;
	// PUBREL/SUBSCRIBE/UNSUBSCRIBE require QoS=1) and validated on Unpack.
	Dup    uint8 `json:"Dup,omitempty"`
	QoS    uint8 `json:"QoS,omitempty"`
	Retain uint8 `json:"Retain,omitempty"`

	// RemainingLength is the length, in bytes, of everything after the
	// fixed header (variable header + payload).
	RemainingLength uint32 `json:"RemainingLength,omitempty"`
}

func (pkt *FixedHeader) String() string {
	return fmt.Sprintf("%s: Len=%d", Kind[pkt.Kind], pkt.RemainingLength)
}

func (pkt *FixedHeader) Pack(w io.Writer) error {
	b := make([]byte, 1)

	b[0] |= pkt.Kind << 4
	b[0] |= pkt.Dup << 3
	b[0] |= pkt.QoS << 1
	b[0] |= pkt.Retain
	enc, err := encodeLength(pkt.RemainingLength)
	if err != nil {
		return err
	}

	b = append(b, enc...)
	_, err = w.Write(b)
	return err
}

func (pkt *FixedHeader) Unpack(r io.Reader) error {
	b := []uint8{0x00}

	if _, err := io.ReadFull(r, b); err != nil {
		return err
	}

	pkt.Kind = b[0] >> 4
	pkt.Dup = b[0] & 0b00001000 >> 3
	pkt.QoS = b[0] & 0b00000110 >> 1
	pkt.Retain = b[0] & 0b00000001

	// Reserved flag bits are fixed by type (MQTT-2.2.2-1); a receiver that
	// sees anything else must close the connection (MQTT-2.2.2-2).
	switch pkt.Kind {
	case 0x3: // PUBLISH
		if pkt.QoS > 2 {
			return ErrInvalidQoS
		}
		if pkt.QoS == 0 && pkt.Dup != 0 {
			return ErrDupOnQos0
		}
	case 0x6, 0x8, 0xA: // PUBREL, SUBSCRIBE, UNSUBSCRIBE
		if pkt.Dup != 0 || pkt.QoS != 1 || pkt.Retain != 0 {
			return ErrInvalidFlags
		}
	default:
		if pkt.Dup != 0 || pkt.QoS != 0 || pkt.Retain != 0 {
			return ErrInvalidFlags
		}
	}

	rl, err := decodeLength(r)
	if err != nil {
		return err
	}
	pkt.RemainingLength = rl
	return nil
}
