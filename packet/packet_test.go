package packet

import (
	"bytes"
	"testing"
)

func TestUnpackDispatchesEveryKind(t *testing.T) {
	cases := []struct {
		name string
		pkt  Packet
		want byte
	}{
		{"connect", &CONNECT{FixedHeader: &FixedHeader{Kind: 0x1, Version: VERSION311}, ClientID: "c1"}, 0x1},
		{"connack", &CONNACK{FixedHeader: &FixedHeader{Kind: 0x2}, ConnectReturnCode: ReasonCode{Code: 0}}, 0x2},
		{"publish", &PUBLISH{FixedHeader: &FixedHeader{Kind: 0x3}, Message: &Message{TopicName: "a/b", Content: []byte("hi")}}, 0x3},
		{"puback", &PUBACK{FixedHeader: &FixedHeader{Kind: 0x4}, PacketID: 7}, 0x4},
		{"pubrec", &PUBREC{FixedHeader: &FixedHeader{Kind: 0x5}, PacketID: 7}, 0x5},
		{"pubrel", &PUBREL{FixedHeader: &FixedHeader{Kind: 0x6, QoS: 1}, PacketID: 7}, 0x6},
		{"pubcomp", &PUBCOMP{FixedHeader: &FixedHeader{Kind: 0x7}, PacketID: 7}, 0x7},
		{"subscribe", &SUBSCRIBE{FixedHeader: &FixedHeader{Kind: 0x8, QoS: 1}, PacketID: 9, Subscriptions: []Subscription{{TopicFilter: "a/+", MaximumQoS: 1}}}, 0x8},
		{"suback", &SUBACK{FixedHeader: &FixedHeader{Kind: 0x9}, PacketID: 9, ReturnCodes: []uint8{SubackMaxQoS1}}, 0x9},
		{"unsubscribe", &UNSUBSCRIBE{FixedHeader: &FixedHeader{Kind: 0xA, QoS: 1}, PacketID: 11, TopicFilters: []string{"a/+"}}, 0xA},
		{"unsuback", &UNSUBACK{FixedHeader: &FixedHeader{Kind: 0xB}, PacketID: 11}, 0xB},
		{"pingreq", &PINGREQ{FixedHeader: &FixedHeader{Kind: 0xC}}, 0xC},
		{"pingresp", &PINGRESP{FixedHeader: &FixedHeader{Kind: 0xD}}, 0xD},
		{"disconnect", &DISCONNECT{FixedHeader: &FixedHeader{Kind: 0xE}}, 0xE},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tc.pkt.Pack(&buf); err != nil {
				t.Fatalf("Pack: %v", err)
			}
			got, err := Unpack(VERSION311, &buf)
			if err != nil {
				t.Fatalf("Unpack: %v", err)
			}
			if got.Kind() != tc.want {
				t.Fatalf("Kind() = %#x, want %#x", got.Kind(), tc.want)
			}
		})
	}
}

func TestUnpackRejectsReservedAndAuthKinds(t *testing.T) {
	for _, kind := range []byte{0x0, 0xF} {
		t.Run(string(rune('0'+kind)), func(t *testing.T) {
			var fixed bytes.Buffer
			(&FixedHeader{Kind: kind}).Pack(&fixed)
			if _, err := Unpack(VERSION311, &fixed); err != ErrUnknownPacketType {
				t.Fatalf("Unpack(kind=%#x) error = %v, want ErrUnknownPacketType", kind, err)
			}
		})
	}
}

func TestUnpackPropagatesShortRead(t *testing.T) {
	// Only one byte of input: not even a full fixed header.
	if _, err := Unpack(VERSION311, bytes.NewReader([]byte{0x10})); err == nil {
		t.Fatalf("Unpack on truncated input did not error")
	}
}
