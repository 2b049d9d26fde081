package mqtt

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mqttcore/client/packet"
)

// ConnectionState is the Supervisor's single state value, mirrored into the
// Engine via lifecycle events (spec.md §3).
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Active
	Closing
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// Supervisor opens the transport, drives the CONNECT handshake, schedules
// keep-alive, detects dead connections, and reconnects per policy (spec.md
// §4.5). Grounded on the teacher's Client.connectAndSubscribe / dial, one
// errgroup-managed goroutine set per connection attempt.
type Supervisor struct {
	cfg    Config
	engine *Engine
	disp   *Dispatcher
	stat   *Stat

	mu             sync.Mutex
	state          ConnectionState
	sessionPresent bool
	conn           net.Conn

	lastWrite atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newSupervisor(cfg Config, engine *Engine, disp *Dispatcher, stat *Stat) *Supervisor {
	return &Supervisor{cfg: cfg, engine: engine, disp: disp, stat: stat, stopCh: make(chan struct{})}
}

func (s *Supervisor) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(state ConnectionState, sessionPresent bool) {
	s.mu.Lock()
	s.state = state
	if state == Active {
		s.sessionPresent = sessionPresent
	}
	s.mu.Unlock()
	s.stat.ConnectionState.Set(float64(state))
}

type connectOutcome struct {
	sessionPresent bool
	err            error
}

// Connect is idempotent (spec.md §4.5): a call while already connecting or
// active returns immediately. Otherwise it blocks until the first connect
// attempt settles, then lets the background loop keep reconnecting per
// policy.
func (s *Supervisor) Connect(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.state != Disconnected {
		sp, state := s.sessionPresent, s.state
		s.mu.Unlock()
		if state == Active {
			return sp, nil
		}
		return false, ErrNotConnected
	}
	s.state = Connecting
	s.mu.Unlock()

	first := make(chan connectOutcome, 1)
	go s.run(first)

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case outcome := <-first:
		return outcome.sessionPresent, outcome.err
	}
}

// run is the reconnect loop (spec.md §4.5): each iteration is one
// connection attempt; between attempts it waits an exponentially growing,
// jittered backoff bounded by MaxBackoff.
func (s *Supervisor) run(first chan<- connectOutcome) {
	attempt := 0
	backoff := s.cfg.Reconnect.InitialBackoff

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		_, err := s.connectOnce(first)
		first = nil

		var refused *ConnectionRefused
		if errors.As(err, &refused) && refused.IsAuthFailure() {
			return // spec.md §7: no retry after an auth-class refusal
		}
		if s.cfg.Reconnect.Policy != ReconnectRetry {
			return
		}
		attempt++
		s.stat.Reconnects.Inc()
		if s.cfg.Reconnect.MaxAttempts > 0 && attempt > s.cfg.Reconnect.MaxAttempts {
			return
		}

		select {
		case <-time.After(jitter(backoff, s.cfg.Reconnect.Jitter)):
		case <-s.stopCh:
			return
		}
		backoff *= 2
		if backoff > s.cfg.Reconnect.MaxBackoff {
			backoff = s.cfg.Reconnect.MaxBackoff
		}
	}
}

func jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 || d <= 0 {
		return d
	}
	delta := time.Duration(float64(d) * frac)
	if delta <= 0 {
		return d
	}
	return d - delta/2 + time.Duration(rand.Int63n(int64(delta)+1))
}

// connectOnce dials, runs the CONNECT handshake, reports the handshake's
// outcome on first (when non-nil), and then blocks for the lifetime of the
// connection (read/write/keep-alive loops), returning the reason it ended.
func (s *Supervisor) connectOnce(first chan<- connectOutcome) (bool, error) {
	report := func(sessionPresent bool, err error) {
		if first != nil {
			first <- connectOutcome{sessionPresent: sessionPresent, err: err}
		}
	}
	s.setState(Connecting, false)

	dialCtx, cancelDial := context.WithTimeout(context.Background(), s.cfg.ConnectTimeout)
	rawConn, err := dial(dialCtx, s.cfg.URL, nil)
	cancelDial()
	if err != nil {
		s.setState(Disconnected, false)
		report(false, err)
		return false, err
	}
	conn := net.Conn(&countingConn{Conn: rawConn, stat: s.stat})

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	group, ctx := errgroup.WithContext(context.Background())
	group.Go(func() error { return s.readLoop(ctx, conn) })
	group.Go(func() error { return s.writeLoop(ctx, conn) })
	// packet.Unpack blocks in a syscall read that ctx cancellation can't
	// interrupt directly; closing the conn is what actually unblocks it
	// (grounded on the teacher's ConnectAndSubscribe shutdown goroutine).
	group.Go(func() error {
		<-ctx.Done()
		conn.Close()
		return nil
	})

	connectReq, connectToken := newConnectRequest(s.cfg)
	s.engine.submit(connectReq)

	connectCtx, cancelConnect := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	sessionPresent, connErr := connectToken.Wait(connectCtx)
	cancelConnect()

	if connErr != nil {
		conn.Close()
		group.Wait()
		s.setState(Disconnected, false)
		report(false, connErr)
		return false, connErr
	}

	s.setState(Active, sessionPresent)
	s.engine.notifyConnected(sessionPresent)
	s.lastWrite.Store(time.Now().UnixNano())
	report(sessionPresent, nil)

	group.Go(func() error { return s.keepAliveLoop(ctx) })

	waitErr := group.Wait()
	s.engine.notifyDisconnected()
	s.setState(Disconnected, false)
	conn.Close()
	return sessionPresent, waitErr
}

func (s *Supervisor) readLoop(ctx context.Context, conn net.Conn) error {
	for {
		pkt, err := packet.Unpack(packet.VERSION311, conn)
		if err != nil {
			return &ProtocolError{Err: err}
		}
		s.stat.PacketsReceived.Inc()
		switch p := pkt.(type) {
		case *packet.PUBLISH:
			if ack := s.disp.HandleInbound(p); ack != nil {
				s.engine.enqueueWrite(ack)
			}
		case *packet.PUBREL:
			s.engine.enqueueWrite(s.disp.HandlePubrel(p))
		default:
			s.engine.deliver(pkt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (s *Supervisor) writeLoop(ctx context.Context, conn net.Conn) error {
	writes := s.engine.Writes()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt := <-writes:
			if err := pkt.Pack(conn); err != nil {
				return &ProtocolError{Err: err}
			}
			s.lastWrite.Store(time.Now().UnixNano())
			s.stat.PacketsSent.Inc()
			s.stat.Inflight.Set(float64(s.engine.InflightCount()))
		}
	}
}

// keepAliveLoop tracks transport idleness and submits a Ping request once
// KeepAliveInterval elapses since the last outbound write (spec.md §4.5);
// a missing PINGRESP tears down the connection.
func (s *Supervisor) keepAliveLoop(ctx context.Context) error {
	if s.cfg.KeepAliveInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	interval := s.cfg.KeepAliveInterval / 2
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			idle := time.Since(time.Unix(0, s.lastWrite.Load()))
			if idle < s.cfg.KeepAliveInterval {
				continue
			}
			ping := newPingRequest(s.cfg.KeepAliveInterval)
			s.engine.submit(ping)
			select {
			case err := <-ping.done:
				if err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Disconnect sends DISCONNECT, stops the reconnect loop, and closes the
// transport (spec.md §4.5).
func (s *Supervisor) Disconnect(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	req, t := newDisconnectRequest()
	s.engine.submit(req)
	_, err := t.Wait(ctx)

	s.mu.Lock()
	conn := s.conn
	s.state = Disconnected
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	return err
}
