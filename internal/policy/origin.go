// ABOUTME: Requesting-origin resolution for position calls
// ABOUTME: Extracts normalized domains and attributes frame calls to the right context

package policy

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// CallContext describes where a position request came from.
type CallContext struct {
	// Tab identifies the top-level browsing context that owns the call.
	Tab string
	// URL is the address of the context that made the call.
	URL string
	// TopURL is the address of the top-level context. Equal to URL unless InFrame.
	TopURL string
	// InFrame is true for calls made from a nested frame.
	InFrame bool
}

// OriginResolver maps a call to the domain whose privacy level applies.
type OriginResolver interface {
	CurrentOrigin(call CallContext) string
}

// FrameDelegation attributes frame calls to the top-level page unless the
// platform shows geolocation prompts for the frame's own domain.
type FrameDelegation struct {
	OwnDomain bool
}

// CurrentOrigin implements OriginResolver.
func (f FrameDelegation) CurrentOrigin(call CallContext) string {
	return ExtractDomain(f.AttributedURL(call))
}

// AttributedURL is the URL a call is shown as coming from.
func (f FrameDelegation) AttributedURL(call CallContext) string {
	if call.InFrame && !f.OwnDomain && call.TopURL != "" {
		return call.TopURL
	}
	return call.URL
}

// ExtractDomain returns the lower-cased, IDNA-normalized host (with port) of
// rawURL. Bare hosts without a scheme are accepted. Unparsable input yields "".
func ExtractDomain(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		u, err = url.Parse("//" + raw)
		if err != nil || u.Host == "" {
			return ""
		}
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return ""
	}
	if net.ParseIP(host) == nil {
		if ascii, err := idna.Lookup.ToASCII(host); err == nil {
			host = ascii
		}
	}
	if port := u.Port(); port != "" {
		return net.JoinHostPort(host, port)
	}
	return host
}
