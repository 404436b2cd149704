// Package config reads and writes the engine-level configuration file
// (conventionally named revctl.toml) that governs this module's own
// behavior: which on-disk format a new ControlDir is created with,
// how verbose progress logging should be, and how long a lock attempt
// waits before giving up. This is distinct from the plain-text
// control files a ControlDir itself owns (the revision history, the
// format signature, ...), which remain the formats spec §6 requires
// for interop and are never TOML.
//
// Grounded on the teacher's registry_config.go (a raw/public struct
// pair unmarshalled with toml.Unmarshal and remarshalled with
// toml.Marshal) and spec.md §10's config section.
package config

import (
	"bytes"
	"io"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Config is the parsed engine configuration.
type Config struct {
	// DefaultFormat is the signature of the Format a new ControlDir is
	// created with when none is given explicitly. Empty means "use the
	// format registry's newest".
	DefaultFormat string
	// LogVerbose enables progress/trace logging (see internal/rlog)
	// for operations that would otherwise log nothing.
	LogVerbose bool
	// LockTimeout bounds how long a write-lock acquisition keeps
	// retrying a contended lock before giving up. Zero means no retry:
	// a contended lock fails at once.
	LockTimeout time.Duration
}

// Default returns the configuration used when no revctl.toml is
// present: no explicit default format, quiet logging, no lock
// timeout.
func Default() Config {
	return Config{}
}

type rawConfig struct {
	Format  rawFormat  `toml:"format"`
	Logging rawLogging `toml:"logging"`
	Lock    rawLock    `toml:"lock"`
}

type rawFormat struct {
	Default string `toml:"default"`
}

type rawLogging struct {
	Verbose bool `toml:"verbose"`
}

type rawLock struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Read parses a revctl.toml document from r.
func Read(r io.Reader) (Config, error) {
	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(r); err != nil {
		return Config{}, errors.Wrap(err, "config: reading config stream")
	}

	var raw rawConfig
	if err := toml.Unmarshal(buf.Bytes(), &raw); err != nil {
		return Config{}, errors.Wrap(err, "config: parsing config as TOML")
	}

	return Config{
		DefaultFormat: raw.Format.Default,
		LogVerbose:    raw.Logging.Verbose,
		LockTimeout:   time.Duration(raw.Lock.TimeoutSeconds) * time.Second,
	}, nil
}

// Write serializes c as a revctl.toml document.
func Write(c Config) ([]byte, error) {
	raw := rawConfig{
		Format:  rawFormat{Default: c.DefaultFormat},
		Logging: rawLogging{Verbose: c.LogVerbose},
		Lock:    rawLock{TimeoutSeconds: int(c.LockTimeout / time.Second)},
	}
	out, err := toml.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "config: marshaling config as TOML")
	}
	return out, nil
}
