package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoad_NoFileNoEnv(t *testing.T) {
	t.Parallel()

	cfg, err := Load(LoadInput{Env: map[string]string{"HOME": t.TempDir()}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Dir != "" || cfg.Timeout != nil || cfg.Debug {
		t.Errorf("expected zero-value config, got %+v", cfg)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.jsonc")
	writeFile(t, path, `{
		// trailing comma and comments are fine, it's JSONC
		"lock_dir": "/var/lock/widgets",
		"timeout_seconds": 30,
	}`)

	cfg, err := Load(LoadInput{ExplicitPath: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Dir != "/var/lock/widgets" {
		t.Errorf("Dir = %q, want /var/lock/widgets", cfg.Dir)
	}

	if cfg.Timeout == nil || *cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	t.Parallel()

	_, err := Load(LoadInput{ExplicitPath: filepath.Join(t.TempDir(), "missing.jsonc")})
	if err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestLoad_DefaultPathAbsentIsNotAnError(t *testing.T) {
	t.Parallel()

	cfg, err := Load(LoadInput{Env: map[string]string{"HOME": t.TempDir()}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ConfigPath != "" {
		t.Errorf("ConfigPath = %q, want empty", cfg.ConfigPath)
	}
}

func TestLoad_XDGConfigHomeTakesPrecedenceOverHome(t *testing.T) {
	t.Parallel()

	xdg := t.TempDir()
	writeFile(t, filepath.Join(xdg, FileName), `{"lock_dir": "/xdg/dir"}`)

	cfg, err := Load(LoadInput{Env: map[string]string{
		"XDG_CONFIG_HOME": xdg,
		"HOME":            t.TempDir(),
	}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Dir != "/xdg/dir" {
		t.Errorf("Dir = %q, want /xdg/dir", cfg.Dir)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jsonc")
	writeFile(t, path, `{not json at all`)

	_, err := Load(LoadInput{ExplicitPath: path})
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_NegativeTimeoutSecondsRejected(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "neg.jsonc")
	writeFile(t, path, `{"timeout_seconds": -1}`)

	_, err := Load(LoadInput{ExplicitPath: path})
	if err == nil {
		t.Fatal("expected error for negative timeout_seconds")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.jsonc")
	writeFile(t, path, `{"lock_dir": "/from/file", "timeout_seconds": 10}`)

	cfg, err := Load(LoadInput{
		ExplicitPath: path,
		Env: map[string]string{
			"WAITLOCK_DIR":     "/from/env",
			"WAITLOCK_TIMEOUT": "5",
			"WAITLOCK_DEBUG":   "true",
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Dir != "/from/env" {
		t.Errorf("Dir = %q, want /from/env", cfg.Dir)
	}

	if cfg.Timeout == nil || *cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}

	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
}

func TestLoad_InvalidEnvTimeout(t *testing.T) {
	t.Parallel()

	_, err := Load(LoadInput{Env: map[string]string{
		"HOME":             t.TempDir(),
		"WAITLOCK_TIMEOUT": "not-a-number",
	}})
	if err == nil {
		t.Fatal("expected error for non-numeric WAITLOCK_TIMEOUT")
	}
}

func TestPreferredSlot_Unset(t *testing.T) {
	t.Parallel()

	if got := PreferredSlot(map[string]string{}); got != -1 {
		t.Errorf("PreferredSlot = %d, want -1", got)
	}
}

func TestPreferredSlot_Valid(t *testing.T) {
	t.Parallel()

	if got := PreferredSlot(map[string]string{"WAITLOCK_SLOT": "3"}); got != 3 {
		t.Errorf("PreferredSlot = %d, want 3", got)
	}
}

func TestPreferredSlot_NegativeFallsBackToNoPreference(t *testing.T) {
	t.Parallel()

	if got := PreferredSlot(map[string]string{"WAITLOCK_SLOT": "-1"}); got != -1 {
		t.Errorf("PreferredSlot = %d, want -1", got)
	}
}

func TestPreferredSlot_Garbage(t *testing.T) {
	t.Parallel()

	if got := PreferredSlot(map[string]string{"WAITLOCK_SLOT": "nope"}); got != -1 {
		t.Errorf("PreferredSlot = %d, want -1", got)
	}
}
