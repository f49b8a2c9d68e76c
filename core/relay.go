package core

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"net"

	"github.com/armon/go-socks5"
	"golang.org/x/net/proxy"
	"h12.io/socks"

	"github.com/antic-browser/antic/log"
)

// RelayBridge is a local SOCKS5 server bound to loopback that forwards every
// connection through the session's upstream proxy. The browser engine's
// native proxy option cannot carry SOCKS credentials, so sessions with an
// authenticated or SOCKS4 upstream point the browser at the bridge instead.
type RelayBridge struct {
	pd   *ProxyDescriptor
	port int

	listener net.Listener
	done     chan struct{}
}

func NewRelayBridge(pd *ProxyDescriptor, port int) *RelayBridge {
	return &RelayBridge{
		pd:   pd,
		port: port,
	}
}

// Addr is the address the browser should use as its proxy server.
func (b *RelayBridge) Addr() string {
	return fmt.Sprintf("socks5://127.0.0.1:%d", b.port)
}

// Start binds the loopback listener and serves in the background until the
// context is cancelled or Stop is called.
func (b *RelayBridge) Start(ctx context.Context) error {
	dial, err := b.upstreamDialer()
	if err != nil {
		return err
	}

	conf := &socks5.Config{
		Dial:   dial,
		Logger: stdlog.New(io.Discard, "", 0),
	}
	server, err := socks5.New(conf)
	if err != nil {
		return fmt.Errorf("relay: %v", err)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", b.port))
	if err != nil {
		return fmt.Errorf("relay: failed to bind port %d: %v", b.port, err)
	}
	b.listener = listener
	b.done = make(chan struct{})

	log.Debug("relay: listening on 127.0.0.1:%d -> %s", b.port, b.pd.DisplayString())

	go func() {
		defer close(b.done)
		server.Serve(listener)
	}()
	go func() {
		select {
		case <-ctx.Done():
			listener.Close()
		case <-b.done:
		}
	}()
	return nil
}

// Stop closes the listener and waits for the serve loop to exit.
func (b *RelayBridge) Stop() {
	if b.listener == nil {
		return
	}
	b.listener.Close()
	<-b.done
	log.Debug("relay: stopped")
}

// upstreamDialer builds the dial function for the upstream proxy scheme.
// SOCKS5 goes through the stock dialer with optional auth; SOCKS4 needs the
// legacy dialer since the protocol predates authentication.
func (b *RelayBridge) upstreamDialer() (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	addr := fmt.Sprintf("%s:%d", b.pd.Host, b.pd.Port)

	switch b.pd.RoutingScheme() {
	case "socks5h":
		var auth *proxy.Auth
		if b.pd.Username != "" {
			auth = &proxy.Auth{User: b.pd.Username, Password: b.pd.Password}
		}
		d, err := proxy.SOCKS5("tcp", addr, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("relay: socks5 dialer: %v", err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("relay: socks5 dialer does not support context")
		}
		return cd.DialContext, nil
	case "socks4a":
		d := socks.Dial(fmt.Sprintf("socks4a://%s", addr))
		return func(ctx context.Context, network, target string) (net.Conn, error) {
			return d(network, target)
		}, nil
	default:
		return nil, fmt.Errorf("relay: unsupported upstream scheme: %s", b.pd.Scheme)
	}
}
