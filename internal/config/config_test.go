package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type mapSettings map[string]string

func (m mapSettings) GetSetting(key string) (string, error) {
	return m[key], nil
}

func TestLoader_TypedValues(t *testing.T) {
	l := NewLoader(mapSettings{
		"stats.cache_ttl_seconds": "120",
		"auth.session_hours":      "2",
		"bad.int":                 "ten",
		"flag.off":                "false",
		"flag.on":                 "true",
	})

	if got := l.Int("bad.int", 7); got != 7 {
		t.Errorf("Int(bad.int) = %d, want fallback 7", got)
	}
	if got := l.DurationSeconds("stats.cache_ttl_seconds", 600); got != 2*time.Minute {
		t.Errorf("DurationSeconds() = %v, want 2m", got)
	}
	if got := l.DurationHours("auth.session_hours", 168); got != 2*time.Hour {
		t.Errorf("DurationHours() = %v, want 2h", got)
	}
	if got := l.DurationHours("missing", 168); got != 168*time.Hour {
		t.Errorf("DurationHours(missing) = %v, want 168h", got)
	}
	if l.BoolDefaultTrue("flag.off") {
		t.Error("BoolDefaultTrue(flag.off) = true, want false")
	}
	if !l.BoolDefaultTrue("missing") {
		t.Error("BoolDefaultTrue(missing) = false, want true")
	}
	if !l.Bool("flag.on", false) {
		t.Error("Bool(flag.on) = false, want true")
	}
}

func TestLoadDotEnv_DoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	content := "IPLDASH_TEST_SET=from-file\nIPLDASH_TEST_UNSET=from-file\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	t.Setenv("IPLDASH_TEST_SET", "from-env")
	t.Setenv("IPLDASH_TEST_UNSET", "")
	os.Unsetenv("IPLDASH_TEST_UNSET")

	if err := LoadDotEnv(file, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv returned error: %v", err)
	}

	if got := os.Getenv("IPLDASH_TEST_SET"); got != "from-env" {
		t.Errorf("IPLDASH_TEST_SET = %q, want from-env", got)
	}
	if got := os.Getenv("IPLDASH_TEST_UNSET"); got != "from-file" {
		t.Errorf("IPLDASH_TEST_UNSET = %q, want from-file", got)
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("IPLDASH_TEST_PORT", "8080")
	if got := EnvInt("IPLDASH_TEST_PORT", 0); got != 8080 {
		t.Errorf("EnvInt() = %d, want 8080", got)
	}
	t.Setenv("IPLDASH_TEST_PORT", "eighty")
	if got := EnvInt("IPLDASH_TEST_PORT", 1); got != 1 {
		t.Errorf("EnvInt(invalid) = %d, want 1", got)
	}
}
