// Package httpclient builds HTTP clients for calling operator-configured
// hosts (the PDS, the LLM gateway). Unless private addresses are allowed,
// the client refuses to dial loopback, link-local and RFC 1918 ranges,
// including after redirects and DNS resolution.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/postpulse/errors"
)

// ErrBlocked marks requests refused by the address guard.
var ErrBlocked = errors.New("outbound address blocked")

// Options tune the guard.
type Options struct {
	AllowPrivate bool // tests and self-hosted PDS on a LAN
	MaxRedirects int  // 0 means 10
}

// New returns a client with the given overall timeout.
func New(timeout time.Duration, opts Options) *http.Client {
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 10
	}

	client := &http.Client{Timeout: timeout}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errors.Newf("stopped after %d redirects", maxRedirects)
		}
		if err := checkURL(req.URL, opts.AllowPrivate); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}
	if opts.AllowPrivate {
		return client
	}

	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	client.Transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, errors.Wrap(err, "invalid address")
			}
			ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to resolve host %q", host)
			}
			for _, ip := range ips {
				if IsPrivateIP(ip) {
					return nil, errors.Mark(errors.Newf("private IP address blocked: %s", ip), ErrBlocked)
				}
			}
			// Dial the address that was checked, not a fresh lookup.
			return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
		},
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return client
}

// ValidateURL parses raw and applies the guard's static checks.
func ValidateURL(raw string, allowPrivate bool) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := checkURL(u, allowPrivate); err != nil {
		return nil, err
	}
	return u, nil
}

func checkURL(u *url.URL, allowPrivate bool) error {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return errors.Mark(errors.Newf("scheme %q not allowed", scheme), ErrBlocked)
	}
	if u.User != nil {
		return errors.Mark(errors.New("URL must not carry credentials (@)"), ErrBlocked)
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("URL missing hostname")
	}
	if allowPrivate {
		return nil
	}
	if isLocalhost(host) {
		return errors.Mark(errors.New("localhost access blocked"), ErrBlocked)
	}
	if ip := net.ParseIP(host); ip != nil && IsPrivateIP(ip) {
		return errors.Mark(errors.Newf("private IP address blocked: %s", host), ErrBlocked)
	}
	return nil
}

var reservedV4 = []*net.IPNet{
	mustCIDR("0.0.0.0/8"),
	mustCIDR("100.64.0.0/10"), // carrier-grade NAT
	mustCIDR("240.0.0.0/4"),
}

var reservedV6 = []*net.IPNet{
	mustCIDR("2001:db8::/32"), // documentation
	mustCIDR("fec0::/10"),     // site-local
}

// IsPrivateIP reports whether ip is loopback, private, link-local,
// multicast, unspecified or reserved.
func IsPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	blocks := reservedV6
	if ip.To4() != nil {
		blocks = reservedV4
	}
	for _, block := range blocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

func isLocalhost(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" || host == "localhost.localdomain" || strings.HasSuffix(host, ".localhost")
}

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}
