package mqtt

import (
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewStatRegistersAllMetrics(t *testing.T) {
	s := newStat()
	s.PacketsSent.Inc()
	s.BytesSent.Add(10)
	s.Inflight.Set(3)

	if got := testutil.ToFloat64(s.PacketsSent); got != 1 {
		t.Errorf("PacketsSent = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.BytesSent); got != 10 {
		t.Errorf("BytesSent = %v, want 10", got)
	}
	if got := testutil.ToFloat64(s.Inflight); got != 3 {
		t.Errorf("Inflight = %v, want 3", got)
	}
}

func TestTwoStatsDoNotCollideOnRegistration(t *testing.T) {
	// A shared, package-global registry would panic on the second
	// MustRegister of the same metric name; per-Client registries must not.
	a := newStat()
	b := newStat()
	a.PacketsSent.Inc()
	b.PacketsSent.Inc()
	b.PacketsSent.Inc()

	if got := testutil.ToFloat64(a.PacketsSent); got != 1 {
		t.Errorf("a.PacketsSent = %v, want 1", got)
	}
	if got := testutil.ToFloat64(b.PacketsSent); got != 2 {
		t.Errorf("b.PacketsSent = %v, want 2", got)
	}
}

func TestCountingConnTracksBytesReadAndWritten(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := newStat()
	counted := &countingConn{Conn: client, stat: s}

	go func() {
		server.Write([]byte("hello"))
		buf := make([]byte, 5)
		server.Read(buf)
	}()

	buf := make([]byte, 5)
	n, err := counted.Read(buf)
	if err != nil || n != 5 {
		t.Fatalf("Read() = (%d, %v), want (5, nil)", n, err)
	}
	if _, err := counted.Write([]byte("world")); err != nil {
		t.Fatalf("Write() err = %v", err)
	}

	if got := testutil.ToFloat64(s.BytesReceived); got != 5 {
		t.Errorf("BytesReceived = %v, want 5", got)
	}
	if got := testutil.ToFloat64(s.BytesSent); got != 5 {
		t.Errorf("BytesSent = %v, want 5", got)
	}
}
