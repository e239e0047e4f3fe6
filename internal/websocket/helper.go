package websocket

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
)

type ConnectionLimits struct {
	MaxConnections   int
	ConnectionsPerIP int
}

// connectionCounter tracks open sockets in total and per client IP.
type connectionCounter struct {
	mu     sync.Mutex
	limits ConnectionLimits
	total  int
	perIP  map[string]int
}

func newConnectionCounter(limits ConnectionLimits) *connectionCounter {
	return &connectionCounter{
		limits: limits,
		perIP:  make(map[string]int),
	}
}

// acquire reserves a slot for ip. A zero limit means unlimited.
func (c *connectionCounter) acquire(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limits.MaxConnections > 0 && c.total >= c.limits.MaxConnections {
		return false
	}
	if c.limits.ConnectionsPerIP > 0 && c.perIP[ip] >= c.limits.ConnectionsPerIP {
		return false
	}

	c.total++
	c.perIP[ip]++
	return true
}

func (c *connectionCounter) release(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.total > 0 {
		c.total--
	}
	c.perIP[ip]--
	if c.perIP[ip] <= 0 {
		delete(c.perIP, ip)
	}
}

func (c *connectionCounter) open() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.total
}

var trustedProxies atomic.Pointer[[]netip.Prefix]

// SetTrustedProxies sets the reverse proxies, as IPs or CIDRs, whose
// X-Forwarded-For and X-Real-IP headers ClientIP believes. With none set
// only the socket peer address counts.
func SetTrustedProxies(entries []string) error {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	trustedProxies.Store(&prefixes)
	return nil
}

func isTrustedProxy(ip string) bool {
	list := trustedProxies.Load()
	if list == nil {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range *list {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address a request came from. Forwarding headers are
// only read when the peer is a trusted proxy; X-Forwarded-For is walked
// from the right and the first hop that is not a trusted proxy wins.
func ClientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	if !isTrustedProxy(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if i == 0 || !isTrustedProxy(hop) {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

// originChecker allows requests without an Origin header (non-browser
// clients) and those whose Origin is listed. "*" allows everything.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}
