package streamablehttp

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// OriginPolicy guards against DNS-rebinding attacks on the server's
// POST/GET/DELETE endpoint, per spec.md §4.2/§6.1: the Host header is
// validated against allowed patterns first, and — only if an Origin header
// is present on the request — it is validated against allowed origins as a
// secondary guard. It is new logic: the teacher's pkg/mcp/server.go predates
// Streamable HTTP and has no HTTP surface of its own to guard.
type OriginPolicy struct {
	mode    originMode
	port    string // non-empty pins modeLocalhost to one Host port
	hosts   []string
	origins []string
}

type originMode int

const (
	// modeNone performs no validation, spec.md's "none" policy. Only
	// appropriate for a server reachable exclusively over a trusted
	// private network.
	modeNone originMode = iota
	// modeLocalhost accepts only a loopback Host (and, if present, Origin),
	// spec.md's "localhost(port?)" policy — the default for a locally-run
	// server.
	modeLocalhost
	// modeCustom accepts an explicit allowed-hosts and allowed-origins set,
	// spec.md's "custom(allowed-hosts, allowed-origins)" policy.
	modeCustom
)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// AllowAny disables Host/Origin validation.
func AllowAny() OriginPolicy { return OriginPolicy{mode: modeNone} }

// AllowLocalhost accepts requests whose Host (and, if present, Origin)
// names a loopback address. An optional port pins the Host header to that
// exact port, matching spec.md's "localhost(port?)"; omitted, any loopback
// port is accepted.
func AllowLocalhost(port ...int) OriginPolicy {
	p := OriginPolicy{mode: modeLocalhost}
	if len(port) > 0 && port[0] > 0 {
		p.port = strconv.Itoa(port[0])
	}
	return p
}

// AllowHosts accepts requests whose Host header matches one of hosts
// (compared as "host" or "host:port" verbatim) and, if an Origin header is
// present, whose Origin matches one of origins. This is spec.md's
// "custom(allowed-hosts, allowed-origins)" policy.
func AllowHosts(hosts, origins []string) OriginPolicy {
	return OriginPolicy{mode: modeCustom, hosts: hosts, origins: origins}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Allow reports whether r's Host header, and its Origin header if present,
// satisfy the policy. A mismatch on either axis means the request reached
// the right server process but the wrong virtual host, which is why callers
// respond 421 Misdirected Request rather than 403 Forbidden.
func (p OriginPolicy) Allow(r *http.Request) bool {
	switch p.mode {
	case modeNone:
		return true
	case modeLocalhost:
		if !isLoopbackHost(r.Host, p.port) {
			return false
		}
		if origin := r.Header.Get("Origin"); origin != "" && !isLoopbackOrigin(origin) {
			return false
		}
		return true
	case modeCustom:
		if !matchesAny(r.Host, p.hosts) {
			return false
		}
		if origin := r.Header.Get("Origin"); origin != "" && !matchesAny(origin, p.origins) {
			return false
		}
		return true
	}
	return false
}

func matchesAny(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(a, v) {
			return true
		}
	}
	return false
}

func isLoopbackHost(host, wantPort string) bool {
	h, p, err := net.SplitHostPort(host)
	if err != nil {
		h, p = host, ""
	}
	if !isLoopbackHostname(h) {
		return false
	}
	return wantPort == "" || wantPort == p
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return isLoopbackHostname(u.Hostname())
}

func isLoopbackHostname(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// defaultOriginPolicy implements spec.md §4.2's default: localhost-only
// protection when the bind address is a loopback address, none otherwise.
// addr is empty when the caller never told NewHandler where it will listen,
// in which case no assumption can be made and validation is left off.
func defaultOriginPolicy(addr string) OriginPolicy {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	if host != "" && isLoopbackHostname(host) {
		return AllowLocalhost()
	}
	return AllowAny()
}
