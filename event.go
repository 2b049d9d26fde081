package mqtt

import "github.com/mqttcore/client/packet"

// engineEvent is posted onto the Engine's single dispatch goroutine
// (spec.md §5's "I/O scheduling context"): inbound packets, connection
// lifecycle transitions, and timer firings all funnel through the same
// channel so in-flight Entry state is only ever touched from one
// goroutine.
type engineEvent interface{ isEngineEvent() }

type inboundPacketEvent struct{ pkt packet.Packet }

func (inboundPacketEvent) isEngineEvent() {}

type connectedLifecycleEvent struct{ sessionPresent bool }

func (connectedLifecycleEvent) isEngineEvent() {}

type disconnectedLifecycleEvent struct{}

func (disconnectedLifecycleEvent) isEngineEvent() {}

type scheduledFireEvent struct{ entry *Entry }

func (scheduledFireEvent) isEngineEvent() {}

type submitEvent struct{ entry *Entry }

func (submitEvent) isEngineEvent() {}

type shutdownEvent struct{}

func (shutdownEvent) isEngineEvent() {}
