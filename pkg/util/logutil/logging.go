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

// Package logutil contains helpers for configuring the process logger.
package logutil

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// SetupLogging sets up logging for the application. An empty level discards
// all output. The format may be "text" (the default) or "json".
func SetupLogging(logLevel, format string) *slog.Logger {
	return NewLogger(os.Stderr, logLevel, format, true)
}

// NewLogger returns a logger writing to w. When setDefault is true the logger
// also becomes the slog default.
func NewLogger(w io.Writer, logLevel, format string, setDefault bool) *slog.Logger {
	if logLevel == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(logLevel)}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	log := slog.New(handler)
	if setDefault {
		slog.SetDefault(log)
	}
	return log
}

// ParseLevel converts a level name into a slog.Level, defaulting to info.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Default().Warn("Invalid log level specified, defaulting to info", "logLevel", logLevel)
	}
	return slog.LevelInfo
}
