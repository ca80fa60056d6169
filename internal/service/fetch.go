package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultFetchTimeout  = 15 * time.Second
	defaultFetchMaxBytes = 10 << 20
	maxFetchRedirects    = 5
)

// errPrivateAddress is returned when a fetch would connect to a loopback,
// private, link-local or otherwise non-public address.
var errPrivateAddress = errors.New("destination address is not public")

// Non-public ranges netip does not classify on its own.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("64:ff9b::/96"),
}

// Fetcher downloads remote images so they can go through the same pipeline
// as direct uploads.
type Fetcher struct {
	client   *resty.Client
	maxBytes int64
}

// FetchOption configures a Fetcher.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	allowPrivate bool
}

// WithPrivateHosts lets the fetcher reach loopback and private networks.
// Only for trusted callers such as the local CLI.
func WithPrivateHosts() FetchOption {
	return func(o *fetchOptions) { o.allowPrivate = true }
}

// NewFetcher creates a Fetcher. Non-positive values select the defaults.
// Connections to non-public addresses are refused unless WithPrivateHosts is
// given; the check runs on every dialled address, so redirects and DNS
// answers cannot bypass it.
func NewFetcher(timeout time.Duration, maxBytes int64, opts ...FetchOption) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if maxBytes <= 0 {
		maxBytes = defaultFetchMaxBytes
	}
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxFetchRedirects)).
		SetHeader("Accept", "image/*")
	if !o.allowPrivate {
		client.SetTransport(publicOnlyTransport())
	}
	return &Fetcher{client: client, maxBytes: maxBytes}
}

func publicOnlyTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   denyNonPublic,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return transport
}

// denyNonPublic is a net.Dialer Control hook; address is the resolved ip:port.
func denyNonPublic(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", errPrivateAddress, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil || !isPublicAddr(ip) {
		return fmt.Errorf("%w: %s", errPrivateAddress, host)
	}
	return nil
}

func isPublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	if !ip.IsGlobalUnicast() || ip.IsPrivate() {
		return false
	}
	for _, p := range reservedPrefixes {
		if p.Contains(ip) {
			return false
		}
	}
	return true
}

// Fetch downloads rawURL. Unreachable, oversized or non-2xx responses are
// reported as invalid input.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Upload, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalidInput(err, "Invalid image URL: %q", rawURL)
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(u.String())
	if err != nil {
		return nil, invalidInput(err, "Failed to fetch image from %s", u.Host)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, invalidInput(nil, "Failed to fetch image: remote returned %d", resp.StatusCode())
	}

	data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		return nil, invalidInput(err, "Failed to fetch image from %s", u.Host)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, invalidInput(nil, "Remote image exceeds %d bytes", f.maxBytes)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = u.Host
	}

	return &Upload{
		Data:        data,
		ContentType: resp.Header().Get("Content-Type"),
		Filename:    name,
	}, nil
}
