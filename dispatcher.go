package mqtt

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mqttcore/client/packet"
	"github.com/mqttcore/client/topic"
)

// MessageListener receives delivered Messages. It runs inline on the
// Supervisor's read-loop goroutine and must not block.
type MessageListener func(msg *packet.Message)

// ListenerHandle detaches the listener it was returned for. Stop after
// client shutdown is a no-op.
type ListenerHandle interface {
	Stop()
}

type listenerEntry struct {
	id     uint64
	filter string
	fn     MessageListener
}

// Dispatcher owns the registered listener set and the inbound QoS-2 held
// set (spec.md §4.2). HandleInbound and HandlePubrel run on the
// Supervisor's read-loop goroutine, while listeners are added and stopped
// from callers' goroutines; mu guards the listener map and the held set,
// and the FilterIndex does its own locking for registration/lookup.
type Dispatcher struct {
	index *topic.FilterIndex

	mu        sync.Mutex
	listeners map[string][]*listenerEntry // filter -> listeners registered on it
	nextID    uint64

	held map[uint16]bool // inbound QoS-2 packet identifiers awaiting PUBREL
}

func newDispatcher() *Dispatcher {
	return &Dispatcher{
		index:     topic.NewFilterIndex(),
		listeners: make(map[string][]*listenerEntry),
		held:      make(map[uint16]bool),
	}
}

// AddMessageListener registers fn against filter, returning a handle that
// detaches it (spec.md §6). filter is independent of any broker
// subscription bookkeeping: it only determines which inbound messages fn
// sees.
func (d *Dispatcher) AddMessageListener(filter string, fn MessageListener) (ListenerHandle, error) {
	if filter == "" {
		filter = "#"
	}
	if err := d.index.Subscribe(filter); err != nil {
		return nil, err
	}
	d.mu.Lock()
	id := atomic.AddUint64(&d.nextID, 1)
	entry := &listenerEntry{id: id, filter: filter, fn: fn}
	d.listeners[filter] = append(d.listeners[filter], entry)
	d.mu.Unlock()
	return &listenerHandle{d: d, entry: entry}, nil
}

type listenerHandle struct {
	d       *Dispatcher
	entry   *listenerEntry
	stopped bool
}

func (h *listenerHandle) Stop() {
	if h.stopped {
		return
	}
	h.stopped = true
	h.d.remove(h.entry)
}

func (d *Dispatcher) remove(target *listenerEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries := d.listeners[target.filter]
	for i, e := range entries {
		if e == target {
			d.listeners[target.filter] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(d.listeners[target.filter]) == 0 {
		delete(d.listeners, target.filter)
		d.index.Unsubscribe(target.filter)
	}
}

// listenersFor returns every listener whose filter matches topicName, in a
// stable order so delivery order is deterministic even when several
// filters match the same inbound topic.
func (d *Dispatcher) listenersFor(topicName string) []*listenerEntry {
	filters := d.index.Match(topicName)
	sort.Strings(filters)

	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*listenerEntry
	for _, f := range filters {
		out = append(out, d.listeners[f]...)
	}
	return out
}

func (d *Dispatcher) invoke(msg *packet.Message) {
	for _, l := range d.listenersFor(msg.TopicName) {
		l.fn(msg)
	}
}

// HandleInbound implements spec.md §4.2's inbound PUBLISH handling. It
// returns the acknowledgement packet the Engine must emit, or nil for
// QoS 0 (nothing to send back).
func (d *Dispatcher) HandleInbound(pub *packet.PUBLISH) packet.Packet {
	switch pub.FixedHeader.QoS {
	case 0:
		d.invoke(pub.Message)
		return nil
	case 1:
		d.invoke(pub.Message)
		return &packet.PUBACK{
			FixedHeader: &packet.FixedHeader{Kind: PUBACK},
			PacketID:    pub.PacketID,
		}
	default: // QoS 2
		d.mu.Lock()
		duplicate := d.held[pub.PacketID]
		if !duplicate {
			d.held[pub.PacketID] = true
		}
		d.mu.Unlock()
		if !duplicate {
			d.invoke(pub.Message)
		}
		return &packet.PUBREC{
			FixedHeader: &packet.FixedHeader{Kind: PUBREC},
			PacketID:    pub.PacketID,
		}
	}
}

// HandlePubrel implements the second half of the QoS-2 inbound exchange: it
// releases the held identifier and returns the PUBCOMP to emit. A PUBREL
// for an identifier the Dispatcher never held still gets a PUBCOMP, per
// broker-tolerance in spec.md §4.2.
func (d *Dispatcher) HandlePubrel(pubrel *packet.PUBREL) packet.Packet {
	d.mu.Lock()
	delete(d.held, pubrel.PacketID)
	d.mu.Unlock()
	return &packet.PUBCOMP{
		FixedHeader: &packet.FixedHeader{Kind: PUBCOMP},
		PacketID:    pubrel.PacketID,
	}
}
