// Package transport provides the HTTP capability used by the issuer resolver
// and the token flows. It owns TLS trust configuration (an optional CA bundle
// loaded from an account's cert path) and request timeouts; callers only see
// byte bodies or errors.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Client is the narrow HTTP contract the token core depends on.
// HTTPClient exposes the underlying client so OAuth2/OIDC libraries can be
// bound to the same transport via their client-context mechanisms.
type Client interface {
	Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error)
	PostForm(ctx context.Context, rawURL string, params url.Values) ([]byte, error)
	HTTPClient() *http.Client
}

// Options configures a transport client.
type Options struct {
	// CertPath points at a PEM CA bundle to trust instead of the system pool.
	// Empty means system trust.
	CertPath string

	// Timeout bounds every request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds a single metadata or token-endpoint round trip.
const DefaultTimeout = 30 * time.Second

type httpClient struct {
	client *http.Client
}

var _ Client = (*httpClient)(nil)

// New builds a transport client. A non-empty cert path replaces the trust
// pool with the certificates found in that file.
func New(opts Options) (Client, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	hc := &http.Client{Timeout: timeout}

	if opts.CertPath != "" {
		pem, err := os.ReadFile(opts.CertPath)
		if err != nil {
			return nil, errors.Wrap(err, "[transport.New] reading cert path")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.Errorf("[transport.New] no certificates found in %s", opts.CertPath)
		}
		hc.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		}
	}

	return &httpClient{client: hc}, nil
}

func (c *httpClient) HTTPClient() *http.Client {
	return c.client
}

func (c *httpClient) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[transport.Get] building request")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req)
}

func (c *httpClient) PostForm(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "[transport.PostForm] building request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// do executes the request and returns the body. Non-2xx responses still
// return the body alongside a StatusError so callers can inspect OAuth error
// payloads. An empty 2xx body is treated as a failed fetch.
func (c *httpClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "[transport] %s %s", req.Method, req.URL)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "[transport] reading response from %s", req.URL)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	if len(body) == 0 {
		return nil, errors.Errorf("[transport] empty response from %s", req.URL)
	}
	return body, nil
}
