package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/net/websocket"
)

// dial opens the network connection for rawURL, selecting plain TCP, TLS,
// or WebSocket by scheme (spec.md §6's three pluggable transport flavors).
// Grounded on the teacher's Client.dial.
func dial(ctx context.Context, rawURL string, tlsConfig *tls.Config) (net.Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "mqtt", "tcp", "":
		return (&net.Dialer{}).DialContext(ctx, "tcp", u.Host)
	case "mqtts", "tls":
		d := tls.Dialer{Config: tlsConfig}
		return d.DialContext(ctx, "tcp", u.Host)
	case "ws", "wss":
		return dialWebsocket(u, tlsConfig)
	default:
		return nil, fmt.Errorf("mqtt: unsupported scheme %q", u.Scheme)
	}
}

func dialWebsocket(u *url.URL, tlsConfig *tls.Config) (net.Conn, error) {
	path := u.Path
	if path == "" {
		path = "/mqtt"
	}
	loc := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: path}

	originScheme := "http"
	if u.Scheme == "wss" {
		originScheme = "https"
	}
	origin := &url.URL{Scheme: originScheme, Host: u.Host}

	cfg, err := websocket.NewConfig(loc.String(), origin.String())
	if err != nil {
		return nil, err
	}
	// Negotiate the "mqtt" subprotocol and binary framing (MQTT-6).
	cfg.Protocol = []string{"mqtt"}
	if u.Scheme == "wss" {
		cfg.TlsConfig = tlsConfig
	}
	ws, err := websocket.DialConfig(cfg)
	if err != nil {
		return nil, err
	}
	ws.PayloadType = websocket.BinaryFrame
	return ws, nil
}
