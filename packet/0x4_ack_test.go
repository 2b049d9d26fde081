package packet

import (
	"bytes"
	"testing"
)

func TestAckPacketsRoundTrip(t *testing.T) {
	t.Run("puback", func(t *testing.T) {
		pkt := &PUBACK{FixedHeader: &FixedHeader{Kind: 0x4}, PacketID: 101}
		var buf bytes.Buffer
		if err := pkt.Pack(&buf); err != nil {
			t.Fatalf("Pack: %v", err)
		}
		p, err := Unpack(VERSION311, &buf)
		if err != nil {
			t.Fatalf("Unpack: %v", err)
		}
		if p.(*PUBACK).PacketID != 101 {
			t.Fatalf("PacketID = %d, want 101", p.(*PUBACK).PacketID)
		}
	})

	t.Run("pubrec", func(t *testing.T) {
		pkt := &PUBREC{FixedHeader: &FixedHeader{Kind: 0x5}, PacketID: 102}
		var buf bytes.Buffer
		if err := pkt.Pack(&buf); err != nil {
			t.Fatalf("Pack: %v", err)
		}
		p, err := Unpack(VERSION311, &buf)
		if err != nil {
			t.Fatalf("Unpack: %v", err)
		}
		if p.(*PUBREC).PacketID != 102 {
			t.Fatalf("PacketID = %d, want 102", p.(*PUBREC).PacketID)
		}
	})

	t.Run("pubrel", func(t *testing.T) {
		pkt := &PUBREL{FixedHeader: &FixedHeader{Kind: 0x6, QoS: 1}, PacketID: 103}
		var buf bytes.Buffer
		if err := pkt.Pack(&buf); err != nil {
			t.Fatalf("Pack: %v", err)
		}
		p, err := Unpack(VERSION311, &buf)
		if err != nil {
			t.Fatalf("Unpack: %v", err)
		}
		if p.(*PUBREL).PacketID != 103 {
			t.Fatalf("PacketID = %d, want 103", p.(*PUBREL).PacketID)
		}
	})

	t.Run("pubcomp", func(t *testing.T) {
		pkt := &PUBCOMP{FixedHeader: &FixedHeader{Kind: 0x7}, PacketID: 104}
		var buf bytes.Buffer
		if err := pkt.Pack(&buf); err != nil {
			t.Fatalf("Pack: %v", err)
		}
		p, err := Unpack(VERSION311, &buf)
		if err != nil {
			t.Fatalf("Unpack: %v", err)
		}
		if p.(*PUBCOMP).PacketID != 104 {
			t.Fatalf("PacketID = %d, want 104", p.(*PUBCOMP).PacketID)
		}
	})
}

func TestAckPacketsRejectShortRemainingLength(t *testing.T) {
	var fixed bytes.Buffer
	(&FixedHeader{Kind: 0x4, RemainingLength: 1}).Pack(&fixed)
	fixed.WriteByte(0x00)

	if _, err := Unpack(VERSION311, &fixed); err != ErrMalformedPacket {
		t.Fatalf("Unpack truncated PUBACK error = %v, want ErrMalformedPacket", err)
	}
}
