package oauth2

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/pkg/errors"
)

// TrustedProxies are the peers whose X-Forwarded-Proto and X-Forwarded-For headers are
// believed. Headers from any other peer are ignored.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies reads IP addresses and CIDR ranges.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	proxies := make(TrustedProxies, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			prefix, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, errors.Wrapf(err, "[ParseTrustedProxies] %q", e)
			}
			proxies = append(proxies, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, errors.Wrapf(err, "[ParseTrustedProxies] %q", e)
		}
		addr = addr.Unmap()
		proxies = append(proxies, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return proxies, nil
}

// Contains reports whether host is one of the trusted proxies.
func (p TrustedProxies) Contains(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientAddress returns the address of the caller. Behind a trusted proxy it is the last
// X-Forwarded-For hop, the one the proxy itself saw.
func (p TrustedProxies) ClientAddress(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	if !p.Contains(peer) {
		return peer
	}
	forwarded := r.Header.Values("X-Forwarded-For")
	if len(forwarded) == 0 {
		return peer
	}
	hops := strings.Split(forwarded[len(forwarded)-1], ",")
	last := strings.TrimSpace(hops[len(hops)-1])
	if _, err := netip.ParseAddr(last); err != nil {
		return peer
	}
	return last
}

// Secure reports whether r arrived over TLS, directly or through a trusted proxy that
// terminated it.
func (p TrustedProxies) Secure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return p.Contains(remoteHost(r.RemoteAddr)) && strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
