package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// SubackReturnCode values carried in a SUBACK payload (MQTT-3.9.3).
const (
	SubackMaxQoS0 uint8 = 0x00
	SubackMaxQoS1 uint8 = 0x01
	SubackMaxQoS2 uint8 = 0x02
	SubackFailure uint8 = 0x80
)

// SUBACK confirms a SUBSCRIBE, one return code per requested filter, in the
// same order (MQTT-3.9).
type SUBACK struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID uint16 `json:"PacketID,omitempty"`

	// ReturnCodes holds SubackMaxQoS0/1/2 or SubackFailure per subscription.
	ReturnCodes []uint8 `json:"ReturnCodes,omitempty"`
}

func (pkt *SUBACK) Kind() byte {
	return 0x9
}

func (pkt *SUBACK) Pack(w io.Writer) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if len(pkt.ReturnCodes) == 0 {
		return fmt.Errorf("%w: suback with no return codes", ErrMalformedPacket)
	}
	buf.Write(i2b(pkt.PacketID))
	for _, rc := range pkt.ReturnCodes {
		buf.WriteByte(rc)
	}
	pkt.FixedHeader.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *SUBACK) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))

	for buf.Len() != 0 {
		rc := buf.Next(1)[0]
		if rc != SubackMaxQoS0 && rc != SubackMaxQoS1 && rc != SubackMaxQoS2 && rc != SubackFailure {
			return fmt.Errorf("%w: suback return code 0x%02x", ErrMalformedPacket, rc)
		}
		pkt.ReturnCodes = append(pkt.ReturnCodes, rc)
	}
	if len(pkt.ReturnCodes) == 0 {
		return fmt.Errorf("%w: suback with no return codes", ErrMalformedPacket)
	}
	return nil
}
