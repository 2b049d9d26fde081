package mqtt

import (
	"time"

	"github.com/golang-io/requests"
)

// ReconnectPolicy selects whether the Supervisor retries after an
// unexpected transport close (spec.md §4.5).
type ReconnectPolicy int

const (
	// ReconnectNever disables automatic reconnect.
	ReconnectNever ReconnectPolicy = iota
	// ReconnectRetry retries with exponential backoff and jitter, bounded
	// by MaxBackoff, up to MaxAttempts (0 means unlimited).
	ReconnectRetry
)

// ReconnectMode configures the Supervisor's reconnect behavior.
type ReconnectMode struct {
	Policy         ReconnectPolicy
	MaxAttempts    int // 0 = unlimited, only meaningful with ReconnectRetry
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Jitter         float64 // fraction of the computed backoff to randomize, e.g. 0.2
}

// Credentials carries the optional username/password CONNECT pair
// (MQTT-3.1.3.4/5).
type Credentials struct {
	Username string
	Password string
}

// Will carries the optional CONNECT last-will-and-testament fields
// (MQTT-3.1.2.5).
type Will struct {
	Topic   string
	Payload []byte
	QoS     uint8
	Retain  bool
}

// Config holds every client-configurable field enumerated in spec.md §6.
type Config struct {
	URL      string
	ClientID string

	CleanSession bool

	KeepAliveInterval           time.Duration
	ConnectTimeout              time.Duration
	PublishRetryInterval        time.Duration
	SubscriptionTimeoutInterval time.Duration
	MaxInflight                 int

	Reconnect ReconnectMode

	Credentials *Credentials
	Will        *Will
}

// Option configures a Config; the functional-options shape the teacher's
// options.go uses.
type Option func(*Config)

func newConfig(opts ...Option) Config {
	cfg := Config{
		URL:                         "mqtt://127.0.0.1:1883",
		ClientID:                    "mqtt-" + requests.GenId(),
		CleanSession:                true,
		KeepAliveInterval:           60 * time.Second,
		ConnectTimeout:              30 * time.Second,
		PublishRetryInterval:        5 * time.Second,
		SubscriptionTimeoutInterval: 5 * time.Second,
		MaxInflight:                 20,
		Reconnect: ReconnectMode{
			Policy:         ReconnectNever,
			InitialBackoff: time.Second,
			MaxBackoff:     time.Minute,
			Jitter:         0.2,
		},
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// URL sets the broker URL: mqtt://, mqtts://, tcp://, tls://, ws://, or
// wss://.
func URL(url string) Option {
	return func(c *Config) { c.URL = url }
}

// ClientID sets the CONNECT client identifier (1-23 bytes per MQTT-3.1.3.5;
// the broker may permit more).
func ClientID(id string) Option {
	return func(c *Config) { c.ClientID = id }
}

// CleanSession sets the CONNECT clean-session bit.
func CleanSession(clean bool) Option {
	return func(c *Config) { c.CleanSession = clean }
}

// KeepAlive sets the keep-alive interval; 0 disables keep-alive pings.
func KeepAlive(d time.Duration) Option {
	return func(c *Config) { c.KeepAliveInterval = d }
}

// ConnectTimeout sets how long a Connect request waits for CONNACK.
func ConnectTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectTimeout = d }
}

// PublishRetryInterval sets the QoS 1/2 retransmission interval; 0 disables
// in-session retries (packets still retransmit on reconnect if
// sessionPresent).
func PublishRetryInterval(d time.Duration) Option {
	return func(c *Config) { c.PublishRetryInterval = d }
}

// SubscriptionTimeout sets how long a Subscribe/Unsubscribe request waits
// for its ack before failing with ErrTimeout.
func SubscriptionTimeout(d time.Duration) Option {
	return func(c *Config) { c.SubscriptionTimeoutInterval = d }
}

// MaxInflight caps the number of concurrently in-flight requests.
func MaxInflight(n int) Option {
	return func(c *Config) { c.MaxInflight = n }
}

// WithCredentials sets the CONNECT username/password.
func WithCredentials(username, password string) Option {
	return func(c *Config) { c.Credentials = &Credentials{Username: username, Password: password} }
}

// WithWill sets the CONNECT last-will-and-testament.
func WithWill(topic string, payload []byte, qos uint8, retain bool) Option {
	return func(c *Config) { c.Will = &Will{Topic: topic, Payload: payload, QoS: qos, Retain: retain} }
}

// Reconnect configures the reconnect policy after an unexpected transport
// close.
func Reconnect(mode ReconnectMode) Option {
	return func(c *Config) { c.Reconnect = mode }
}
