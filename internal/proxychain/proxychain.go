// Package proxychain implements the local HTTP/1.1 CONNECT tunnel server
// that sits between the browser pool and the hostile upstream site (spec
// §4.2): it accepts only CONNECT requests, enforces a per-domain allow-list,
// and splices the client connection through to an authenticated upstream
// proxy.
//
// No third-party library in the retrieved pack offers an idiomatic
// CONNECT-tunnel *server* — http.Hijacker is the standard-library mechanism
// for exactly this, and the teacher's own networking (client/client.go,
// proxy/proxy.go) is itself built on net/http. See DESIGN.md for the
// corresponding standard-library justification entry.
package proxychain

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Upstream identifies the authenticated forward proxy every allow-listed
// CONNECT is tunneled through.
type Upstream struct {
	Host     string
	Port     string
	Username string
	Password string
}

func (u Upstream) addr() string { return net.JoinHostPort(u.Host, u.Port) }

func (u Upstream) basicAuth() string {
	raw := fmt.Sprintf("%s:%s", u.Username, u.Password)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// Server is the local CONNECT proxy. Construct with New, then call Start.
type Server struct {
	allowList map[string]bool
	upstream  Upstream
	log       zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	startedC chan struct{}
	once     sync.Once
}

// New creates a Server that tunnels CONNECTs to hosts in allowList through
// upstream. allowList entries are hostnames only (no port).
func New(allowList []string, upstream Upstream, log zerolog.Logger) *Server {
	set := make(map[string]bool, len(allowList))
	for _, h := range allowList {
		set[strings.ToLower(h)] = true
	}
	return &Server{
		allowList: set,
		upstream:  upstream,
		log:       log.With().Str("component", "proxychain").Logger(),
		startedC:  make(chan struct{}),
	}
}

// Start binds addr and serves CONNECT requests until ctxDone is closed. It
// blocks until the listener is closed. A single "started" notification is
// sent on Started() once the bind succeeds.
func (s *Server) Start(addr string, ctxDone <-chan struct{}) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("proxychain: listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.once.Do(func() { close(s.startedC) })
	s.log.Info().Str("addr", addr).Msg("proxy chain listening")

	go func() {
		<-ctxDone
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctxDone:
				return nil
			default:
				s.log.Error().Err(err).Msg("accept failed")
				return err
			}
		}
		go s.handleConn(conn)
	}
}

// Started returns a channel that closes once the server has bound its
// listening socket.
func (s *Server) Started() <-chan struct{} { return s.startedC }

// Addr returns the bound address, or nil if Start has not yet succeeded.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		// Recovered on any downstream panic so one bad connection never
		// takes out the accept loop.
		_ = recover()
	}()

	br := bufio.NewReader(conn)
	req, err := http.ReadRequest(br)
	if err != nil {
		conn.Close()
		return
	}

	if req.Method != http.MethodConnect {
		writeStatus(conn, http.StatusMethodNotAllowed, "only CONNECT is supported")
		conn.Close()
		return
	}

	host, port, err := net.SplitHostPort(req.Host)
	if err != nil || host == "" || port == "" {
		writeStatus(conn, http.StatusBadRequest, "CONNECT authority must include host and port")
		conn.Close()
		return
	}

	if !s.allowList[strings.ToLower(host)] {
		s.log.Warn().Str("host", host).Msg("rejected host not in allow-list")
		writeStatus(conn, http.StatusBadRequest, "host not allow-listed")
		conn.Close()
		return
	}

	s.tunnel(conn, host, port)
}

func (s *Server) tunnel(client net.Conn, host, port string) {
	upstream, err := net.Dial("tcp", s.upstream.addr())
	if err != nil {
		s.log.Error().Err(err).Str("upstream", s.upstream.addr()).Msg("dial upstream proxy failed")
		writeStatus(client, http.StatusBadGateway, "upstream proxy unreachable")
		client.Close()
		return
	}

	connectLine := fmt.Sprintf(
		"CONNECT %s:%s HTTP/1.1\r\nHost: %s:%s\r\nProxy-Authorization: Basic %s\r\nProxy-Connection: Keep-Alive\r\n\r\n",
		host, port, host, port, s.upstream.basicAuth(),
	)
	if _, err := upstream.Write([]byte(connectLine)); err != nil {
		s.log.Error().Err(err).Msg("write CONNECT to upstream failed")
		upstream.Close()
		client.Close()
		return
	}

	resp, err := readUpstreamStatusLine(upstream)
	if err != nil {
		s.log.Error().Err(err).Msg("read upstream CONNECT response failed")
		upstream.Close()
		client.Close()
		return
	}
	if !strings.Contains(resp, "200") {
		s.log.Error().Str("upstream_response", resp).Msg("upstream proxy rejected CONNECT")
		upstream.Close()
		client.Close()
		return
	}

	// The client's half of the handshake is upgraded implicitly: we've
	// consumed its CONNECT request line/headers via http.ReadRequest but
	// never written a response, so write the 200 now before splicing.
	writeStatus(client, http.StatusOK, "Connection Established")

	splice(client, upstream)
}

func splice(a, b net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		io.Copy(a, b) //nolint:errcheck
		if c, ok := a.(interface{ CloseWrite() error }); ok {
			c.CloseWrite()
		}
	}()
	go func() {
		defer wg.Done()
		io.Copy(b, a) //nolint:errcheck
		if c, ok := b.(interface{ CloseWrite() error }); ok {
			c.CloseWrite()
		}
	}()
	wg.Wait()
	a.Close()
	b.Close()
}

func readUpstreamStatusLine(conn net.Conn) (string, error) {
	br := bufio.NewReader(conn)
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return line, nil
}

func writeStatus(conn net.Conn, code int, reason string) {
	fmt.Fprintf(conn, "HTTP/1.1 %d %s\r\n\r\n", code, http.StatusText(code)) //nolint:errcheck
	_ = reason
}
