/*
Copyright 2023 Avi Zimmerman <avi.zimmerman@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package discovery

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/net/proxy"
	"golang.org/x/sync/singleflight"

	"github.com/webmeshproj/meshpeers/pkg/context"
	"github.com/webmeshproj/meshpeers/pkg/metrics"
	"github.com/webmeshproj/meshpeers/pkg/peers"
)

// ErrInvalidProxy is returned when the proxy option cannot be used.
var ErrInvalidProxy = errors.New("invalid proxy")

// Source fetches candidates from an HTTP peer directory.
type Source struct {
	opts    Options
	client  *http.Client
	group   singleflight.Group
	cache   *expirable.LRU[string, []byte]
	metrics *metrics.Metrics
}

// NewSource returns a new HTTP source. The metrics may be nil.
func NewSource(opts Options, m *metrics.Metrics) (*Source, error) {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = NewOptions().MaxBodySize
	}
	transport, err := newTransport(opts.Proxy)
	if err != nil {
		return nil, err
	}
	s := &Source{
		opts: opts,
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		metrics: m,
	}
	if opts.CacheTTL > 0 {
		s.cache = expirable.NewLRU[string, []byte](8, nil, opts.CacheTTL)
	}
	return s, nil
}

// Fetch implements Discoverer. Concurrent calls share a single request.
func (s *Source) Fetch(ctx context.Context) ([]peers.Candidate, error) {
	log := context.LoggerFrom(ctx).With(slog.String("url", s.opts.URL))
	body, err := s.document(ctx)
	if err != nil {
		log.Debug("Peer directory fetch failed", slog.String("error", err.Error()))
		s.metrics.ObserveFetch(err, 0)
		return nil, err
	}
	found := Parse(body)
	log.Debug("Fetched peer directory", slog.Int("bytes", len(body)), slog.Int("candidates", len(found)))
	s.metrics.ObserveFetch(nil, len(found))
	return found, nil
}

func (s *Source) document(ctx context.Context) ([]byte, error) {
	if s.cache != nil {
		if body, ok := s.cache.Get(s.opts.URL); ok {
			return body, nil
		}
	}
	// The request is shared by every caller in the flight, so it is bound by
	// the client timeout rather than by the context of whoever started it.
	flight := context.WithoutCancel(ctx)
	ch := s.group.DoChan(s.opts.URL, func() (any, error) {
		return s.get(flight)
	})
	select {
	case <-ctx.Done():
		return nil, &FetchError{URL: s.opts.URL, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		body := res.Val.([]byte)
		if s.cache != nil {
			s.cache.Add(s.opts.URL, body)
		}
		return body, nil
	}
}

func (s *Source) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.URL, nil)
	if err != nil {
		return nil, &FetchError{URL: s.opts.URL, Err: err}
	}
	if s.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: s.opts.URL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: s.opts.URL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.opts.MaxBodySize))
	if err != nil {
		return nil, &FetchError{URL: s.opts.URL, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// ValidateProxy checks that a proxy URL is usable. An empty URL is valid.
func ValidateProxy(raw string) error {
	_, err := newTransport(raw)
	return err
}

func newTransport(raw string) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if raw == "" {
		return transport, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidProxy, raw)
	}
	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, &net.Dialer{Timeout: 30 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, u.Scheme)
	}
	return transport, nil
}
