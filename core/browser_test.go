package core

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestSessionStateString(t *testing.T) {
	tests := []struct {
		state SessionState
		want  string
	}{
		{SessionIdle, "idle"},
		{SessionLaunching, "launching"},
		{SessionConfiguring, "configuring"},
		{SessionReady, "ready"},
		{SessionNavigating, "navigating"},
		{SessionInteractive, "interactive"},
		{SessionClosing, "closing"},
		{SessionClosed, "closed"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestInitScriptsOrderAndContent(t *testing.T) {
	lc := &LaunchConfig{
		Vendor: "Google Inc.",
		CPU:    12,
		RAM:    16,
		Locale: "de-DE",
	}

	scripts := initScripts(lc)
	if len(scripts) != 5 {
		t.Fatalf("got %d init scripts, want 5", len(scripts))
	}

	checks := []struct {
		idx  int
		want string
	}{
		{0, "'vendor'"},
		{0, "Google Inc."},
		{1, "'hardwareConcurrency'"},
		{1, "return 12"},
		{2, "'deviceMemory'"},
		{2, "return 16"},
		{3, "'languages'"},
		{3, "'de-DE', 'de'"},
		{4, "enumerateDevices"},
		{4, "RTCPeerConnection"},
	}
	for _, c := range checks {
		if !strings.Contains(scripts[c.idx], c.want) {
			t.Errorf("script %d missing %q", c.idx, c.want)
		}
	}
}

func TestNavigateChainFallsThroughToBlank(t *testing.T) {
	targets := []string{"https://dead.example", "https://whoer.net", "https://www.bing.com", "about:blank"}
	var attempted []string

	loaded := navigateChain(targets, func(u string) error {
		attempted = append(attempted, u)
		if u == "about:blank" {
			return nil
		}
		return errors.New("net::ERR_TUNNEL_CONNECTION_FAILED")
	})

	if loaded != "about:blank" {
		t.Errorf("loaded = %q, want about:blank", loaded)
	}
	if len(attempted) != len(targets) {
		t.Errorf("attempted %v, want the whole chain in order", attempted)
	}
	for i, u := range attempted {
		if u != targets[i] {
			t.Errorf("attempt %d = %q, want %q", i, u, targets[i])
		}
	}
}

func TestNavigateChainStopsOnFirstSuccess(t *testing.T) {
	var attempted []string
	loaded := navigateChain([]string{"https://example.com", "https://whoer.net"}, func(u string) error {
		attempted = append(attempted, u)
		return nil
	})
	if loaded != "https://example.com" {
		t.Errorf("loaded = %q", loaded)
	}
	if len(attempted) != 1 {
		t.Errorf("attempted %v, want only the first target", attempted)
	}
}

func TestTouchOverridePayload(t *testing.T) {
	o := touchOverride()
	if !o.Enabled {
		t.Error("touch emulation not enabled")
	}
	if o.MaxTouchPoints == nil || *o.MaxTouchPoints != 5 {
		t.Errorf("MaxTouchPoints = %v, want 5", o.MaxTouchPoints)
	}
}

func TestGeoOverridePayload(t *testing.T) {
	o := geoOverride(&Geolocation{Latitude: 52.52, Longitude: 13.405})
	if o.Latitude == nil || *o.Latitude != 52.52 {
		t.Errorf("Latitude = %v", o.Latitude)
	}
	if o.Longitude == nil || *o.Longitude != 13.405 {
		t.Errorf("Longitude = %v", o.Longitude)
	}
	if o.Accuracy == nil || *o.Accuracy <= 0 {
		t.Errorf("Accuracy = %v", o.Accuracy)
	}
}

func TestRelaySocks4UpstreamResolvesHostnameRemotely(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	request := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 512)
		n, _ := conn.Read(buf)
		request <- buf[:n]
		// VN=0, CD=90: request granted
		conn.Write([]byte{0, 90, 0, 0, 0, 0, 0, 0})
	}()

	_, port_str, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(port_str)

	b := NewRelayBridge(&ProxyDescriptor{Scheme: "socks4", Host: "127.0.0.1", Port: port}, DEFAULT_RELAY_PORT)
	dial, err := b.upstreamDialer()
	if err != nil {
		t.Fatal(err)
	}

	host := "remote-only-resolvable.invalid"
	conn, err := dial(context.Background(), "tcp", host+":80")
	if err != nil {
		t.Fatalf("dial failed, hostname was resolved locally: %v", err)
	}
	conn.Close()

	select {
	case req := <-request:
		if !bytes.Contains(req, []byte(host)) {
			t.Errorf("proxy request %q does not carry the hostname", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("proxy never received the request")
	}
}

func TestRelayUpstreamDialerRejectsHTTP(t *testing.T) {
	pd := &ProxyDescriptor{Scheme: "http", Host: "203.0.113.5", Port: 8080}
	b := NewRelayBridge(pd, DEFAULT_RELAY_PORT)
	if _, err := b.upstreamDialer(); err == nil {
		t.Error("http upstream accepted; the browser handles those natively")
	}
}

func TestRelayAddr(t *testing.T) {
	pd := &ProxyDescriptor{Scheme: "socks5", Host: "198.51.100.9", Port: 1080}
	b := NewRelayBridge(pd, 1337)
	if b.Addr() != "socks5://127.0.0.1:1337" {
		t.Errorf("Addr() = %q", b.Addr())
	}
}
