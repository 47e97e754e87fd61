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
	"os"
)

// ConfigPaths are the locations searched for the daemon configuration, in
// order. The helper script searches the same list.
var ConfigPaths = []string{
	"/etc/yggdrasil.conf",
	"/etc/yggdrasil/yggdrasil.conf",
	"/usr/local/etc/yggdrasil.conf",
	"/opt/homebrew/etc/yggdrasil.conf",
}

// ErrNoConfig is returned when no daemon configuration could be found.
var ErrNoConfig = errors.New("no daemon configuration found")

// FindConfig returns the first of the given paths that is a regular file.
// ConfigPaths is searched when none are given.
func FindConfig(paths ...string) (string, error) {
	if len(paths) == 0 {
		paths = ConfigPaths
	}
	for _, p := range paths {
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", ErrNoConfig
}
