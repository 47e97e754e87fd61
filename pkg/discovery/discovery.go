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

// Package discovery contains facilities for discovering candidate peers from a
// public peer directory.
package discovery

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/webmeshproj/meshpeers/pkg/context"
	"github.com/webmeshproj/meshpeers/pkg/peers"
)

// DefaultURL is the public peer directory queried by default.
const DefaultURL = "https://publicpeers.neilalexander.dev/"

// Discoverer returns a fresh candidate set on every call.
type Discoverer interface {
	// Fetch retrieves and parses the candidate list. A successful fetch that
	// finds nothing returns an empty slice and a nil error.
	Fetch(ctx context.Context) ([]peers.Candidate, error)
}

// FetchError is returned when the peer directory could not be retrieved.
type FetchError struct {
	// URL is the directory that was queried.
	URL string
	// Err is the underlying transport or status error.
	Err error
}

// Error implements error.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch peers from %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Options are options for fetching peers.
type Options struct {
	// URL is the peer directory to query.
	URL string
	// Timeout bounds the whole request, including reading the body.
	Timeout time.Duration
	// Proxy is an optional proxy URL. socks5://, socks5h://, http:// and
	// https:// are supported.
	Proxy string
	// CacheTTL keeps fetched documents for the given duration. Zero disables
	// caching so every fetch hits the directory.
	CacheTTL time.Duration
	// MaxBodySize caps the number of bytes read from the response.
	MaxBodySize int64
	// UserAgent is sent with the request when set.
	UserAgent string
}

// NewOptions returns options with sensible defaults.
func NewOptions() Options {
	return Options{
		URL:         DefaultURL,
		Timeout:     15 * time.Second,
		MaxBodySize: 8 << 20,
	}
}

var cellPattern = regexp.MustCompile(`(?is)<td[^>]*>([^<]+)</td>`)

// Parse scans an HTML document for table cells holding peer URIs. Cells that
// do not match the peer grammar are skipped. Candidates are returned in the
// order they appear and are not deduplicated.
func Parse(body []byte) []peers.Candidate {
	out := make([]peers.Candidate, 0)
	for _, m := range cellPattern.FindAllSubmatch(body, -1) {
		text := strings.TrimSpace(html.UnescapeString(string(m[1])))
		if peers.ExtractHost(text) == "" {
			continue
		}
		out = append(out, peers.New(text))
	}
	return out
}
