package packet

import (
	"bytes"
	"io"
)

// DISCONNECT is the graceful connection-termination notice (MQTT-3.14): no
// variable header, no payload. Fixed header flags must all be 0.
type DISCONNECT struct {
	*FixedHeader `json:"FixedHeader,omitempty"`
}

func (pkt *DISCONNECT) Kind() byte {
	return 0xE
}

func (pkt *DISCONNECT) Pack(w io.Writer) error {
	pkt.FixedHeader.RemainingLength = 0
	return pkt.FixedHeader.Pack(w)
}

func (pkt *DISCONNECT) Unpack(_ *bytes.Buffer) error {
	return nil
}
