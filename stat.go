package mqtt

import (
	"context"
	"log"
	"net"
	"net/http"

	"github.com/golang-io/requests"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stat holds one Client's Prometheus metrics, adapted from the teacher's
// server-side Stat (stat.go) to the client-side counters spec.md's ambient
// observability stack calls for: packets/bytes sent and received,
// reconnect attempts, in-flight requests, and ConnectionState. Each Client
// gets its own registry so multiple Clients in one process don't collide
// on metric names.
type Stat struct {
	registry *prometheus.Registry

	PacketsSent     prometheus.Counter
	BytesSent       prometheus.Counter
	PacketsReceived prometheus.Counter
	BytesReceived   prometheus.Counter
	Reconnects      prometheus.Counter
	Inflight        prometheus.Gauge
	ConnectionState prometheus.Gauge
}

func newStat() *Stat {
	s := &Stat{
		registry: prometheus.NewRegistry(),
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_packets_sent_total", Help: "Total MQTT control packets written to the transport.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_bytes_sent_total", Help: "Total bytes written to the transport.",
		}),
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_packets_received_total", Help: "Total MQTT control packets read from the transport.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_bytes_received_total", Help: "Total bytes read from the transport.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_reconnects_total", Help: "Total reconnect attempts after an unexpected transport close.",
		}),
		Inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_client_inflight_requests", Help: "Current number of in-flight requests.",
		}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_client_connection_state",
			Help: "Current ConnectionState: 0=disconnected, 1=connecting, 2=active, 3=closing.",
		}),
	}
	s.registry.MustRegister(s.PacketsSent, s.BytesSent, s.PacketsReceived, s.BytesReceived,
		s.Reconnects, s.Inflight, s.ConnectionState)
	return s
}

// ServeMetrics starts an HTTP server exposing this Client's metrics on
// addr, grounded on the teacher's Httpd/promhttp wiring.
func (s *Stat) ServeMetrics(addr string) error {
	mux := requests.NewServeMux(requests.URL(addr))
	mux.Route("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	srv := requests.NewServer(context.Background(), mux, requests.OnStart(func(hs *http.Server) {
		log.Printf("mqtt: metrics serving on %s", hs.Addr)
	}))
	return srv.ListenAndServe()
}

// countingConn wraps a transport connection to feed Stat's byte counters
// without the read/write loops needing to know about metrics.
type countingConn struct {
	net.Conn
	stat *Stat
}

func (c *countingConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.stat.BytesReceived.Add(float64(n))
	}
	return n, err
}

func (c *countingConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.stat.BytesSent.Add(float64(n))
	}
	return n, err
}
