// Package config reads the handful of tunables the original C tools
// hard-code as #define-style constants (the 100 MiB image ceiling, the
// INT3-density threshold) from the environment, so they can be overridden
// without a rebuild. Everything else about rekit is flag-driven per command.
package config

import (
	"github.com/xyproto/env/v2"
)

const (
	defaultMaxImageMB    = 100
	defaultINT3Threshold = 10
	envMaxImageMB        = "REKIT_MAX_IMAGE_MB"
	envINT3Threshold     = "REKIT_INT3_THRESHOLD"
	envSignaturePackPath = "REKIT_SIGPACK"
)

// Config is an immutable snapshot of process-wide tunables, read once.
type Config struct {
	// MaxImageBytes bounds how large a file the Image Reader will map.
	MaxImageBytes int64
	// INT3Threshold is the INT3-density count above which the anti-debug
	// scanner flags "breakpoint detection".
	INT3Threshold int
	// SignaturePackPath optionally names a YAML document of extra
	// anti-debug signatures merged into the built-in category tables.
	SignaturePackPath string
}

// Load reads the environment once and returns a Config, falling back to
// the compiled-in defaults for anything unset or unparseable.
func Load() Config {
	mb := env.Int(envMaxImageMB, defaultMaxImageMB)
	if mb <= 0 {
		mb = defaultMaxImageMB
	}
	threshold := env.Int(envINT3Threshold, defaultINT3Threshold)
	if threshold <= 0 {
		threshold = defaultINT3Threshold
	}
	return Config{
		MaxImageBytes:     int64(mb) * 1024 * 1024,
		INT3Threshold:     threshold,
		SignaturePackPath: env.Str(envSignaturePackPath, ""),
	}
}
