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

package peers

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// Schemes are the transports a peer URI may use.
var Schemes = []string{"tls", "tcp", "quic"}

// hostLabel is one RFC 1123 label. Labels never start or end with a hyphen,
// so a host can not be read as a command line option.
const hostLabel = `[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?`

// uriPattern is the single grammar for peer URIs:
//
//	scheme "://" ( "[" ipv6 "]" | ipv4 | dns-name ) [ ":" port ] [ ( "/" | "?" | "#" ) rest ]
var uriPattern = regexp.MustCompile(
	`^(tls|tcp|quic)://` +
		`(?:\[([0-9A-Fa-f:.]+(?:%[0-9A-Za-z._\-]+)?)\]|(` + hostLabel + `(?:\.` + hostLabel + `)*))` +
		`(?::([0-9]{1,5}))?` +
		`(?:[/?#]\S*)?$`,
)

// URI is a parsed peer URI.
type URI struct {
	// Scheme is one of Schemes.
	Scheme string
	// Host is the bare host with any IPv6 brackets removed.
	Host string
	// Port is the port, or empty if none was given.
	Port string
}

// String returns the scheme, host and port in URI form.
func (u URI) String() string {
	if u.Port == "" {
		if net.ParseIP(u.Host) != nil && net.ParseIP(u.Host).To4() == nil {
			return fmt.Sprintf("%s://[%s]", u.Scheme, u.Host)
		}
		return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}
	return fmt.Sprintf("%s://%s", u.Scheme, net.JoinHostPort(u.Host, u.Port))
}

// ParseURI parses a peer URI. It returns false for anything outside the grammar,
// including ports above 65535.
func ParseURI(s string) (URI, bool) {
	m := uriPattern.FindStringSubmatch(s)
	if m == nil {
		return URI{}, false
	}
	u := URI{Scheme: m[1], Host: m[2], Port: m[4]}
	if u.Host == "" {
		u.Host = m[3]
	} else if !isIPv6(u.Host) {
		return URI{}, false
	}
	if u.Port != "" {
		p, err := strconv.Atoi(u.Port)
		if err != nil || p > 65535 {
			return URI{}, false
		}
	}
	return u, true
}

// ExtractHost returns the bare host of a peer URI, or an empty string if the
// input does not match the peer grammar.
func ExtractHost(uri string) string {
	u, ok := ParseURI(uri)
	if !ok {
		return ""
	}
	return u.Host
}

// isIPv6 reports whether host is an IPv6 address with an optional zone.
func isIPv6(host string) bool {
	if i := strings.IndexByte(host, '%'); i >= 0 {
		host = host[:i]
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() == nil
}
