// Package config loads waitlock's layered configuration: built-in
// defaults, an optional JSONC file, environment variables, and finally
// CLI flags, in ascending order of precedence. It generalizes the
// layering shape of a markdown-ticket tool's project/global config
// loader to waitlock's simpler, single-file setup.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tailscale/hujson"
)

// ErrInvalidTimeout is returned when a timeout value (file or env) cannot
// be parsed as a non-negative number of seconds.
var ErrInvalidTimeout = errors.New("invalid timeout value")

// Config holds waitlock's resolved defaults before CLI flags are
// applied. CLI flags always win over every field here; Config exists so
// a user doesn't have to pass -d/-t on every invocation.
type Config struct {
	// Dir is the default lock directory. Empty means "let the directory
	// resolver pick from its candidate list".
	Dir string `json:"lock_dir,omitempty"`

	// Timeout is the default acquire timeout. Zero means "attempt once";
	// negative is rejected. Unset (nil in the file) means "no default -
	// block indefinitely unless overridden".
	Timeout *time.Duration `json:"-"`

	// Debug enables verbose diagnostics.
	Debug bool `json:"debug,omitempty"`

	// ConfigPath is the file this Config was loaded from, if any, kept
	// for diagnostics only.
	ConfigPath string `json:"-"`
}

type fileConfig struct {
	LockDir     string `json:"lock_dir,omitempty"`
	TimeoutSecs *int64 `json:"timeout_seconds,omitempty"`
	Debug       bool   `json:"debug,omitempty"`
}

// FileName is the default config file name under the user's config
// directory.
const FileName = "waitlock/config.jsonc"

// LoadInput holds the inputs for Load.
type LoadInput struct {
	// ExplicitPath is an operator-supplied config path; when set it must
	// exist. Empty means "probe the default XDG location, tolerating its
	// absence".
	ExplicitPath string

	// Env is the process environment, as a map so tests can supply a
	// synthetic one instead of the real os.Environ.
	Env map[string]string
}

// Load resolves Config by merging, in ascending precedence: built-in
// defaults, the JSONC config file (explicit path, or the default XDG
// location if present), then environment variables
// (WAITLOCK_DIR/WAITLOCK_TIMEOUT/WAITLOCK_DEBUG). CLI flag overrides are
// the caller's responsibility, applied on top of the returned Config.
func Load(input LoadInput) (Config, error) {
	cfg := Config{}

	path, mustExist := resolvePath(input.ExplicitPath, input.Env)
	if path != "" {
		loaded, err := loadFile(path, mustExist)
		if err != nil {
			return Config{}, err
		}

		if loaded != nil {
			cfg.Dir = loaded.Dir
			cfg.Timeout = loaded.Timeout
			cfg.Debug = loaded.Debug
			cfg.ConfigPath = path
		}
	}

	if err := applyEnv(&cfg, input.Env); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func resolvePath(explicit string, env map[string]string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}

	base := env["XDG_CONFIG_HOME"]
	if base == "" {
		home := env["HOME"]
		if home == "" {
			return "", false
		}

		base = filepath.Join(home, ".config")
	}

	return filepath.Join(base, FileName), false
}

func loadFile(path string, mustExist bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return nil, nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(standardized, &fc); err != nil {
		return nil, fmt.Errorf("invalid config JSON in %s: %w", path, err)
	}

	cfg := &Config{Dir: fc.LockDir, Debug: fc.Debug}

	if fc.TimeoutSecs != nil {
		if *fc.TimeoutSecs < 0 {
			return nil, fmt.Errorf("%w: %s: timeout_seconds must be >= 0", ErrInvalidTimeout, path)
		}

		d := time.Duration(*fc.TimeoutSecs) * time.Second
		cfg.Timeout = &d
	}

	return cfg, nil
}

func applyEnv(cfg *Config, env map[string]string) error {
	if dir := env["WAITLOCK_DIR"]; dir != "" {
		cfg.Dir = dir
	}

	if t := env["WAITLOCK_TIMEOUT"]; t != "" {
		secs, err := strconv.ParseInt(t, 10, 64)
		if err != nil || secs < 0 {
			return fmt.Errorf("%w: WAITLOCK_TIMEOUT=%q", ErrInvalidTimeout, t)
		}

		d := time.Duration(secs) * time.Second
		cfg.Timeout = &d
	}

	switch env["WAITLOCK_DEBUG"] {
	case "1", "true", "yes":
		cfg.Debug = true
	}

	return nil
}

// PreferredSlot parses WAITLOCK_SLOT, returning -1 (no preference) if
// unset or unparseable.
func PreferredSlot(env map[string]string) int32 {
	v, ok := env["WAITLOCK_SLOT"]
	if !ok || v == "" {
		return -1
	}

	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil || n < 0 {
		return -1
	}

	return int32(n)
}
