package gateway

import (
	"net/http"
	"strings"
)

// hopByHopHeaders are never relayed in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Content-Encoding",
	"Content-Length",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// HopByHopHeaders returns the header names stripped from relayed responses.
func HopByHopHeaders() []string {
	out := make([]string, len(hopByHopHeaders))
	copy(out, hopByHopHeaders)
	return out
}

// removeHopByHop deletes the fixed hop-by-hop set plus any header named in Connection.
func removeHopByHop(h http.Header) {
	for _, value := range h.Values("Connection") {
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}

// HeaderPolicy decides how caller headers combine with the gateway's own.
type HeaderPolicy int

const (
	// HeaderPolicyProtected applies caller headers first, then force-sets
	// credentials and identity. Caller copies of those names are dropped.
	HeaderPolicyProtected HeaderPolicy = iota
	// HeaderPolicyPassthrough starts from credentials and identity, then
	// overlays every caller header on top.
	HeaderPolicyPassthrough
)

func (p HeaderPolicy) String() string {
	switch p {
	case HeaderPolicyPassthrough:
		return "passthrough"
	default:
		return "protected"
	}
}

// outboundHeaders builds the upstream request header set.
func (g *Gateway) outboundHeaders(inbound http.Header, identity string) http.Header {
	caller := inbound.Clone()
	if caller == nil {
		caller = http.Header{}
	}
	removeHopByHop(caller)
	caller.Del("Host")
	// Response Content-Encoding is stripped on relay, so bodies must arrive decoded.
	caller.Del("Accept-Encoding")

	switch g.policy {
	case HeaderPolicyPassthrough:
		out := http.Header{}
		g.applyTrusted(out, identity)
		for name, values := range caller {
			out[name] = append([]string(nil), values...)
		}
		return out
	default:
		for _, name := range g.protectedNames() {
			caller.Del(name)
		}
		g.applyTrusted(caller, identity)
		return caller
	}
}

func (g *Gateway) applyTrusted(h http.Header, identity string) {
	for name, values := range g.credentials {
		h[name] = append([]string(nil), values...)
	}
	if g.identityHeader != "" && identity != "" {
		h.Set(g.identityHeader, identity)
	}
}

func (g *Gateway) protectedNames() []string {
	names := make([]string, 0, len(g.credentials)+1)
	for name := range g.credentials {
		names = append(names, name)
	}
	if g.identityHeader != "" {
		names = append(names, g.identityHeader)
	}
	return names
}

// relayHeaders copies upstream response headers minus the hop-by-hop set.
func relayHeaders(dst, src http.Header) {
	filtered := src.Clone()
	removeHopByHop(filtered)
	for name, values := range filtered {
		dst[name] = values
	}
}
