package shared

import (
	"net"
	"net/http"
	"strings"
)

// RequestMeta carries request provenance for audit records. Both fields are optional.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// RequestMetaFromRequest extracts client address and user agent. RemoteAddr is
// expected to have been rewritten by the RealIP middleware already.
func RequestMetaFromRequest(r *http.Request) RequestMeta {
	if r == nil {
		return RequestMeta{}
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return RequestMeta{IP: addr, UserAgent: strings.TrimSpace(r.UserAgent())}
}
