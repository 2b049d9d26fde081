package mqtt

import (
	"testing"

	"github.com/mqttcore/client/packet"
)

func publishPacket(qos uint8, dup bool, id uint16, topicName string) *packet.PUBLISH {
	return &packet.PUBLISH{
		FixedHeader: &packet.FixedHeader{Kind: PUBLISH, QoS: qos, Dup: boolToUint8(dup)},
		PacketID:    id,
		Message:     &packet.Message{TopicName: topicName, Content: []byte("x")},
	}
}

func TestDispatcherQos0InvokesListenerNoAck(t *testing.T) {
	d := newDispatcher()
	var got *packet.Message
	if _, err := d.AddMessageListener("a/b", func(m *packet.Message) { got = m }); err != nil {
		t.Fatalf("AddMessageListener: %v", err)
	}

	ack := d.HandleInbound(publishPacket(0, false, 0, "a/b"))
	if ack != nil {
		t.Fatalf("HandleInbound(qos0) returned %v, want nil", ack)
	}
	if got == nil || got.TopicName != "a/b" {
		t.Fatalf("listener not invoked with expected message, got %+v", got)
	}
}

func TestDispatcherQos1EmitsPuback(t *testing.T) {
	d := newDispatcher()
	calls := 0
	d.AddMessageListener("a/b", func(*packet.Message) { calls++ })

	ack := d.HandleInbound(publishPacket(1, false, 5, "a/b"))
	puback, ok := ack.(*packet.PUBACK)
	if !ok {
		t.Fatalf("HandleInbound(qos1) = %T, want *packet.PUBACK", ack)
	}
	if puback.PacketID != 5 {
		t.Errorf("PUBACK.PacketID = %d, want 5", puback.PacketID)
	}
	if calls != 1 {
		t.Errorf("listener invoked %d times, want 1", calls)
	}
}

func TestDispatcherQos2DeduplicatesDuplicateDelivery(t *testing.T) {
	d := newDispatcher()
	calls := 0
	d.AddMessageListener("t", func(*packet.Message) { calls++ })

	first := d.HandleInbound(publishPacket(2, false, 7, "t"))
	second := d.HandleInbound(publishPacket(2, true, 7, "t")) // broker retransmit, DUP=1

	if _, ok := first.(*packet.PUBREC); !ok {
		t.Fatalf("first HandleInbound = %T, want *packet.PUBREC", first)
	}
	if _, ok := second.(*packet.PUBREC); !ok {
		t.Fatalf("second HandleInbound = %T, want *packet.PUBREC", second)
	}
	if calls != 1 {
		t.Errorf("listener invoked %d times for a duplicate QoS-2 delivery, want exactly 1", calls)
	}
}

func TestDispatcherPubrelReleasesHeldIDAndEmitsPubcomp(t *testing.T) {
	d := newDispatcher()
	d.HandleInbound(publishPacket(2, false, 9, "t"))

	pubcomp := d.HandlePubrel(&packet.PUBREL{FixedHeader: &packet.FixedHeader{Kind: PUBREL, QoS: 1}, PacketID: 9})
	if pubcomp.(*packet.PUBCOMP).PacketID != 9 {
		t.Fatalf("PUBCOMP.PacketID = %d, want 9", pubcomp.(*packet.PUBCOMP).PacketID)
	}

	d.mu.Lock()
	_, stillHeld := d.held[9]
	d.mu.Unlock()
	if stillHeld {
		t.Error("packet id 9 still in held set after PUBREL")
	}
}

func TestDispatcherPubrelForUnknownIDStillEmitsPubcomp(t *testing.T) {
	d := newDispatcher()
	pubcomp := d.HandlePubrel(&packet.PUBREL{FixedHeader: &packet.FixedHeader{Kind: PUBREL, QoS: 1}, PacketID: 99})
	if pubcomp.(*packet.PUBCOMP).PacketID != 99 {
		t.Fatalf("PUBCOMP.PacketID = %d, want 99", pubcomp.(*packet.PUBCOMP).PacketID)
	}
}

func TestDispatcherMultipleFiltersEachSeeOneInvocation(t *testing.T) {
	d := newDispatcher()
	var aCalls, bCalls int
	d.AddMessageListener("sport/+", func(*packet.Message) { aCalls++ })
	d.AddMessageListener("sport/#", func(*packet.Message) { bCalls++ })

	d.HandleInbound(publishPacket(0, false, 0, "sport/tennis"))

	if aCalls != 1 || bCalls != 1 {
		t.Errorf("aCalls=%d bCalls=%d, want 1 and 1", aCalls, bCalls)
	}
}

func TestListenerHandleStopDetaches(t *testing.T) {
	d := newDispatcher()
	calls := 0
	handle, _ := d.AddMessageListener("a", func(*packet.Message) { calls++ })

	handle.Stop()
	d.HandleInbound(publishPacket(0, false, 0, "a"))

	if calls != 0 {
		t.Errorf("listener invoked %d times after Stop, want 0", calls)
	}
}
