package mqtt

import (
	"context"
	"net"
	"testing"
)

func TestDialPlainTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	conn, err := dial(context.Background(), "tcp://"+ln.Addr().String(), nil)
	if err != nil {
		t.Fatalf("dial() err = %v", err)
	}
	defer conn.Close()

	server := <-accepted
	defer server.Close()
}

func TestDialDefaultsToPlainTCPWithoutScheme(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go ln.Accept()

	// "//host:port" is a scheme-relative authority: url.Parse leaves Scheme
	// empty and populates Host, matching dial's empty-scheme case.
	conn, err := dial(context.Background(), "//"+ln.Addr().String(), nil)
	if err != nil {
		t.Fatalf("dial() err = %v", err)
	}
	conn.Close()
}

func TestDialRejectsUnsupportedScheme(t *testing.T) {
	_, err := dial(context.Background(), "ftp://example.com", nil)
	if err == nil {
		t.Fatal("dial() err = nil, want error for unsupported scheme")
	}
}

func TestDialRejectsMalformedURL(t *testing.T) {
	_, err := dial(context.Background(), "://::not-a-url", nil)
	if err == nil {
		t.Fatal("dial() err = nil, want error for malformed URL")
	}
}
