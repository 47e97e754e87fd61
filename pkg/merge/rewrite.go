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

package merge

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoPeersBlock is returned when a configuration has no Peers list.
var ErrNoPeersBlock = errors.New("no Peers block found in configuration")

var peersKey = regexp.MustCompile(`(?m)(^|[^A-Za-z0-9_])Peers:[ \t]*\[`)

// RewritePeers replaces the Peers list of a daemon configuration with the
// given URIs, keeping at most max of them. Only the list is rewritten; all
// other text is preserved byte for byte. It produces the same output as the
// embedded helper script.
func RewritePeers(config []byte, uris []string, max int) ([]byte, error) {
	s := string(config)
	open := -1
	for _, loc := range peersKey.FindAllStringIndex(s, -1) {
		if !commentedOut(s, loc[1]) {
			open = loc[1]
			break
		}
	}
	if open < 0 {
		return nil, ErrNoPeersBlock
	}
	end := closingBracket(s[open:])
	if end < 0 {
		return nil, ErrNoPeersBlock
	}
	end += open
	lineStart := strings.LastIndexByte(s[:open], '\n') + 1
	line := s[lineStart:open]
	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]

	list := peerLines(uris, max)
	var b strings.Builder
	b.WriteString(s[:open])
	if len(list) > 0 {
		b.WriteByte('\n')
		for _, uri := range list {
			b.WriteString(indent)
			b.WriteString(`  "`)
			b.WriteString(uri)
			b.WriteString("\"\n")
		}
		b.WriteString(indent)
	}
	b.WriteByte(']')
	b.WriteString(s[end+1:])
	return []byte(b.String()), nil
}

// commentedOut reports whether the line holding offset i is a '#' or '//'
// comment line.
func commentedOut(s string, i int) bool {
	line := strings.TrimLeft(s[strings.LastIndexByte(s[:i], '\n')+1:], " \t")
	return strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//")
}

// closingBracket returns the index of the ']' that closes a list whose '['
// precedes s. Brackets inside quoted strings and balanced pairs such as IPv6
// literals are skipped.
func closingBracket(s string) int {
	var inQuote, escaped bool
	var depth int
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case inQuote && escaped:
			escaped = false
		case inQuote && ch == '\\':
			escaped = true
		case inQuote && ch == '"':
			inQuote = false
		case inQuote:
		case ch == '"':
			inQuote = true
		case ch == '[':
			depth++
		case ch == ']':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// peerLines returns the URIs the helper would keep from a transfer file.
func peerLines(uris []string, max int) []string {
	out := make([]string, 0, len(uris))
	for _, uri := range uris {
		if len(out) >= max {
			break
		}
		uri = strings.Trim(uri, " \t\r")
		if uri == "" || strings.Contains(uri, `"`) || strings.ContainsAny(uri, "\n") {
			continue
		}
		out = append(out, uri)
	}
	return out
}
