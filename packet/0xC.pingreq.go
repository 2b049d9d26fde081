package packet

import (
	"bytes"
	"io"
)

// PINGREQ carries no variable header or payload (MQTT-3.12); it just asks
// the server to send PINGRESP, confirming the connection is still alive.
type PINGREQ struct {
	*FixedHeader `json:"FixedHeader,omitempty"`
}

func (pkt *PINGREQ) Kind() byte {
	return 0xC
}
func (pkt *PINGREQ) Pack(w io.Writer) error {
	return pkt.FixedHeader.Pack(w)
}
func (pkt *PINGREQ) Unpack(_ *bytes.Buffer) error {
	return nil
}
