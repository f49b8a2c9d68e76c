package core

import (
	"fmt"
	"regexp"
	"strconv"
)

// ProxyDescriptor is the structured decomposition of a proxy connection
// string. Immutable once parsed; persisted only as its canonical string.
type ProxyDescriptor struct {
	Scheme   string
	Host     string
	Port     int
	Username string
	Password string
}

var (
	re_ip_port_login_pass = regexp.MustCompile(`^(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}):(\d+):(.+):(.+)$`)
	re_scheme_login_pass  = regexp.MustCompile(`^(http|socks5)://(.+):(.+)@(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}):(\d+)$`)
	re_scheme_host_port   = regexp.MustCompile(`^(http|socks5)://(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}):(\d+)$`)
	re_ip_port            = regexp.MustCompile(`^(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}):(\d+)$`)
)

const proxyFormatsHelp = "accepted formats: IP:port:login:password, protocol://login:password@IP:port, protocol://IP:port or IP:port"

// ParseProxy normalizes the three accepted input grammars into a
// descriptor. The grammars are tried in strict precedence order; the first
// match wins.
func ParseProxy(raw string) (*ProxyDescriptor, error) {
	if m := re_ip_port_login_pass.FindStringSubmatch(raw); m != nil {
		port, err := parsePort(m[2])
		if err != nil {
			return nil, err
		}
		return &ProxyDescriptor{
			Scheme:   "http",
			Host:     m[1],
			Port:     port,
			Username: m[3],
			Password: m[4],
		}, nil
	}
	if m := re_scheme_login_pass.FindStringSubmatch(raw); m != nil {
		port, err := parsePort(m[5])
		if err != nil {
			return nil, err
		}
		return &ProxyDescriptor{
			Scheme:   m[1],
			Host:     m[4],
			Port:     port,
			Username: m[2],
			Password: m[3],
		}, nil
	}
	if m := re_scheme_host_port.FindStringSubmatch(raw); m != nil {
		port, err := parsePort(m[3])
		if err != nil {
			return nil, err
		}
		return &ProxyDescriptor{
			Scheme: m[1],
			Host:   m[2],
			Port:   port,
		}, nil
	}
	if m := re_ip_port.FindStringSubmatch(raw); m != nil {
		port, err := parsePort(m[2])
		if err != nil {
			return nil, err
		}
		return &ProxyDescriptor{
			Scheme: "http",
			Host:   m[1],
			Port:   port,
		}, nil
	}
	return nil, fmt.Errorf("invalid proxy string '%s' - %s", raw, proxyFormatsHelp)
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid proxy port: %s - %s", s, proxyFormatsHelp)
	}
	return port, nil
}

// String returns the canonical connection string. Parse and String
// round-trip without loss.
func (p *ProxyDescriptor) String() string {
	if p.Username != "" || p.Password != "" {
		return fmt.Sprintf("%s://%s:%s@%s:%d", p.Scheme, p.Username, p.Password, p.Host, p.Port)
	}
	return fmt.Sprintf("%s://%s:%d", p.Scheme, p.Host, p.Port)
}

// DisplayString is the canonical string with the password masked, for logs
// and terminal output.
func (p *ProxyDescriptor) DisplayString() string {
	if p.Username != "" || p.Password != "" {
		return fmt.Sprintf("%s://%s:***@%s:%d", p.Scheme, p.Username, p.Host, p.Port)
	}
	return fmt.Sprintf("%s://%s:%d", p.Scheme, p.Host, p.Port)
}

// RoutingScheme maps the descriptor scheme to the variant used for outbound
// routing: SOCKS schemes are upgraded so DNS resolution happens through the
// proxy instead of leaking locally; unrecognized schemes degrade to http.
func (p *ProxyDescriptor) RoutingScheme() string {
	switch p.Scheme {
	case "socks5", "socks5h":
		return "socks5h"
	case "socks4", "socks4a":
		return "socks4a"
	case "http", "https":
		return p.Scheme
	default:
		return "http"
	}
}

// IsDirect reports whether the browser engine can consume this proxy
// natively. Anything that is not plain HTTP(S) goes through the local relay.
func (p *ProxyDescriptor) IsDirect() bool {
	return p.Scheme == "http" || p.Scheme == "https"
}
