package proxychain_test

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonderooo/cars/internal/proxychain"
)

// fakeUpstream is a minimal CONNECT-speaking proxy stand-in: it accepts one
// connection, replies 200 to any CONNECT, then echoes whatever it receives
// back to the caller so the test can assert the tunnel actually carries
// bytes end to end.
func fakeUpstream(t *testing.T) (addr string, shutdown func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		if _, err := http.ReadRequest(br); err != nil {
			return
		}
		fmt.Fprintf(conn, "HTTP/1.1 200 Connection Established\r\n\r\n")

		buf := make([]byte, 4096)
		for {
			n, err := br.Read(buf)
			if n > 0 {
				conn.Write(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()
	return ln.Addr().String(), func() { ln.Close() }
}

func startServer(t *testing.T, allow []string, upstreamAddr string) (*proxychain.Server, func()) {
	t.Helper()
	host, port, err := net.SplitHostPort(upstreamAddr)
	if err != nil {
		t.Fatalf("split upstream addr: %v", err)
	}
	srv := proxychain.New(allow, proxychain.Upstream{
		Host: host, Port: port, Username: "u", Password: "p",
	}, zerolog.Nop())

	done := make(chan struct{})
	go srv.Start("127.0.0.1:0", done)

	select {
	case <-srv.Started():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	return srv, func() { close(done) }
}

// TestConnectToAllowedHostTunnels covers scenario S6's happy path: a CONNECT
// to an allow-listed host is tunneled through the upstream proxy and bytes
// written by the client are echoed back.
func TestConnectToAllowedHostTunnels(t *testing.T) {
	upstreamAddr, stopUpstream := fakeUpstream(t)
	defer stopUpstream()

	srv, stop := startServer(t, []string{"api.example.com"}, upstreamAddr)
	defer stop()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial local proxy: %v", err)
	}
	defer conn.Close()

	fmt.Fprintf(conn, "CONNECT api.example.com:443 HTTP/1.1\r\nHost: api.example.com:443\r\n\r\n")

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		t.Fatalf("read CONNECT response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	conn.Write([]byte("ping"))
	buf := make([]byte, 4)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := br.Read(buf); err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if string(buf) != "ping" {
		t.Errorf("echo = %q, want %q", buf, "ping")
	}
}

// TestConnectToDisallowedHostRejected covers scenario S6's allow-list
// rejection: CONNECT to a host outside the allow-list gets 400 and the
// connection is closed without ever dialing upstream.
func TestConnectToDisallowedHostRejected(t *testing.T) {
	upstreamAddr, stopUpstream := fakeUpstream(t)
	defer stopUpstream()

	srv, stop := startServer(t, []string{"api.example.com"}, upstreamAddr)
	defer stop()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial local proxy: %v", err)
	}
	defer conn.Close()

	fmt.Fprintf(conn, "CONNECT evil.example.com:443 HTTP/1.1\r\nHost: evil.example.com:443\r\n\r\n")

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

// TestNonConnectMethodRejected covers scenario S6's method guard: a plain
// GET gets 405 rather than being tunneled.
func TestNonConnectMethodRejected(t *testing.T) {
	upstreamAddr, stopUpstream := fakeUpstream(t)
	defer stopUpstream()

	srv, stop := startServer(t, []string{"api.example.com"}, upstreamAddr)
	defer stop()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial local proxy: %v", err)
	}
	defer conn.Close()

	fmt.Fprintf(conn, "GET / HTTP/1.1\r\nHost: api.example.com\r\n\r\n")

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}
