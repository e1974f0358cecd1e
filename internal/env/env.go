// Package env reads typed configuration from environment variables with
// fallback defaults.
package env

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Str returns the value of the environment variable key, or fallback if unset/empty.
func Str(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// Int returns the integer value of key, or fallback if unset/empty/invalid.
func Int(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("invalid int env var, using fallback", "key", key, "value", val)
		return fallback
	}
	return n
}

// Bool returns the boolean value of key, or fallback if unset/empty/invalid.
func Bool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		slog.Warn("invalid bool env var, using fallback", "key", key, "value", val)
		return fallback
	}
	return b
}

// DurationMs returns key (an integer count of milliseconds) as a
// time.Duration, or fallback if unset/empty/invalid.
func DurationMs(key string, fallback time.Duration) time.Duration {
	ms := Int(key, -1)
	if ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
