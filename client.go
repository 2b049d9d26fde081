package mqtt

import (
	"context"

	"github.com/mqttcore/client/packet"
)

// Client is the thin facade spec.md §6 describes: it wires together the
// Engine, Dispatcher, and Supervisor and exposes the core's callable
// surface. A Client is safe for concurrent use by multiple goroutines.
type Client struct {
	cfg        Config
	engine     *Engine
	dispatcher *Dispatcher
	supervisor *Supervisor
	stat       *Stat
}

// New builds a Client from the given options but does not dial; call
// Connect to start the Supervisor's connect/reconnect loop.
func New(opts ...Option) *Client {
	cfg := newConfig(opts...)
	engine := newEngine(cfg)
	dispatcher := newDispatcher()
	stat := newStat()
	supervisor := newSupervisor(cfg, engine, dispatcher, stat)

	go engine.run(context.Background())

	return &Client{cfg: cfg, engine: engine, dispatcher: dispatcher, supervisor: supervisor, stat: stat}
}

// Stat exposes this Client's Prometheus metrics, e.g. to call
// Stat().ServeMetrics(addr) or register them on an existing registry.
func (c *Client) Stat() *Stat { return c.stat }

// Connect opens the transport and performs the CONNECT handshake,
// returning whether the broker resumed a prior session.
func (c *Client) Connect(ctx context.Context) (sessionPresent bool, err error) {
	return c.supervisor.Connect(ctx)
}

// Disconnect sends DISCONNECT and tears down the transport, disabling
// reconnect.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.supervisor.Disconnect(ctx)
}

// Publish submits msg at the given QoS (0, 1, or 2). The returned Token
// resolves once the message is considered delivered for that QoS level:
// for QoS 0 as soon as the PUBLISH is handed to the write loop (it does
// not wait for the transport write), on PUBACK for QoS 1, on PUBCOMP for
// QoS 2.
func (c *Client) Publish(msg *packet.Message, qos uint8) Token[struct{}] {
	switch qos {
	case 0:
		req, t := newPublishQos0Request(msg)
		c.engine.submit(req)
		return t
	case 2:
		req, t := newPublishQos2Request(msg, c.cfg)
		c.engine.submit(req)
		return t
	default:
		req, t := newPublishQos1Request(msg, c.cfg)
		c.engine.submit(req)
		return t
	}
}

// Subscribe submits a SUBSCRIBE for subs, resolving with one
// SubscriptionResult per entry in the same order.
func (c *Client) Subscribe(subs []packet.Subscription) Token[[]SubscriptionResult] {
	req, t := newSubscribeRequest(subs, c.cfg)
	c.engine.submit(req)
	return t
}

// Unsubscribe submits an UNSUBSCRIBE for filters.
func (c *Client) Unsubscribe(filters []string) Token[struct{}] {
	req, t := newUnsubscribeRequest(filters, c.cfg)
	c.engine.submit(req)
	return t
}

// AddMessageListener registers fn to receive delivered Messages matching
// filter (spec.md §6); an empty filter subscribes to everything ("#").
// This only controls local dispatch — it does not submit a broker-side
// SUBSCRIBE, which callers issue separately via Subscribe.
func (c *Client) AddMessageListener(filter string, fn MessageListener) (ListenerHandle, error) {
	return c.dispatcher.AddMessageListener(filter, fn)
}

// State reports the current ConnectionState.
func (c *Client) State() ConnectionState {
	return c.supervisor.State()
}

// Close permanently shuts the Client down: it disconnects, stops the
// reconnect loop, and stops the Engine's dispatch goroutine. Every queued
// and in-flight request fails (spec.md §5, "Cancellation and timeouts").
// A closed Client cannot Connect again.
func (c *Client) Close(ctx context.Context) error {
	err := c.supervisor.Disconnect(ctx)
	c.engine.shutdown()
	return err
}
