package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate points HOME at a fresh directory and clears XDG_CONFIG_HOME.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	return home
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Twilight {
		t.Error("Twilight = true, want false")
	}
	if cfg.Output != DefaultOutput {
		t.Errorf("Output = %q, want %q", cfg.Output, DefaultOutput)
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled = false, want true")
	}
	if cfg.Cache.Path != DefaultCachePath() {
		t.Errorf("Cache.Path = %q, want %q", cfg.Cache.Path, DefaultCachePath())
	}
	if !cfg.History.Enabled {
		t.Error("History.Enabled = false, want true")
	}
	if cfg.History.RetentionDays != DefaultRetentionDays {
		t.Errorf("History.RetentionDays = %d, want %d", cfg.History.RetentionDays, DefaultRetentionDays)
	}
	if len(cfg.Exclude) != len(DefaultExclusions) {
		t.Errorf("len(Exclude) = %d, want %d", len(cfg.Exclude), len(DefaultExclusions))
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Components["digest"] != "warn" {
		t.Errorf("Logging.Components[digest] = %q, want warn", cfg.Logging.Components["digest"])
	}
}

func TestLoad_FromFile(t *testing.T) {
	home := isolate(t)
	writeConfig(t, filepath.Join(home, ".config", "romsort"), `
dat: ~/dats/nes.dat
twilight: true
workers: 3
exclude:
  - saves
dry_run: true
output: json
cache:
  enabled: false
history:
  path: /custom/history
  retention_days: 7
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DAT != filepath.Join(home, "dats", "nes.dat") {
		t.Errorf("DAT = %q, want ~ expanded", cfg.DAT)
	}
	if !cfg.Twilight {
		t.Error("Twilight = false, want true")
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
	if len(cfg.Exclude) != 1 || cfg.Exclude[0] != "saves" {
		t.Errorf("Exclude = %v, want [saves]", cfg.Exclude)
	}
	if !cfg.DryRun {
		t.Error("DryRun = false, want true")
	}
	if cfg.Output != "json" {
		t.Errorf("Output = %q, want json", cfg.Output)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled = true, want false")
	}
	if cfg.History.Path != "/custom/history" {
		t.Errorf("History.Path = %q, want /custom/history", cfg.History.Path)
	}
	if cfg.History.RetentionDays != 7 {
		t.Errorf("History.RetentionDays = %d, want 7", cfg.History.RetentionDays)
	}
}

func TestLoad_XDGConfigHome(t *testing.T) {
	isolate(t)
	xdgHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdgHome)
	writeConfig(t, filepath.Join(xdgHome, "romsort"), "output: yaml\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output != "yaml" {
		t.Errorf("Output = %q, want yaml", cfg.Output)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("ROMSORT_TWILIGHT", "true")
	t.Setenv("ROMSORT_HISTORY_RETENTION_DAYS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Twilight {
		t.Error("Twilight = false, want true from ROMSORT_TWILIGHT")
	}
	if cfg.History.RetentionDays != 3 {
		t.Errorf("History.RetentionDays = %d, want 3", cfg.History.RetentionDays)
	}
}

func TestNew_ExplicitFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, t.TempDir(), "workers: 5\n")

	v, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	cfg, err := Decode(v)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if cfg.Workers != 5 {
		t.Errorf("Workers = %d, want 5", cfg.Workers)
	}
}

func TestNew_MissingExplicitFile(t *testing.T) {
	isolate(t)
	if _, err := New(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("New() with a missing explicit file succeeded, want error")
	}
}

func TestNew_MalformedFile(t *testing.T) {
	home := isolate(t)
	writeConfig(t, filepath.Join(home, ".config", "romsort"), "twilight: [unclosed\n")

	if _, err := New(""); err == nil {
		t.Error("New() with malformed YAML succeeded, want error")
	}
}

func TestLoggingConfig(t *testing.T) {
	tests := []struct {
		name    string
		maxSize string
		want    int64
		wantErr bool
	}{
		{"megabytes", "10MB", 10 * 1000 * 1000, false},
		{"mebibytes", "5MiB", 5 * 1024 * 1024, false},
		{"empty uses writer default", "", 0, false},
		{"garbage", "lots", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Logging: LoggingConfig{
				Level:    "debug",
				Rotation: RotationConfig{MaxSize: tt.maxSize, MaxBackups: 2},
			}}

			lc, err := cfg.LoggingConfig()
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoggingConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if lc.Rotation.MaxSize != tt.want {
				t.Errorf("MaxSize = %d, want %d", lc.Rotation.MaxSize, tt.want)
			}
			if lc.Level != "debug" || lc.Rotation.MaxBackups != 2 {
				t.Errorf("LoggingConfig() = %+v, fields not carried over", lc)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	home := isolate(t)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if want := filepath.Join(home, ".config", "romsort", "config.yaml"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	for _, want := range []string{"twilight: false", "retention_days:", "max_size: 10MB"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("default config missing %q", want)
		}
	}

	// The generated file must load cleanly.
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() after WriteDefault() error = %v", err)
	}
	if cfg.Output != DefaultOutput {
		t.Errorf("Output = %q, want %q", cfg.Output, DefaultOutput)
	}

	// A second call keeps user edits.
	if err := os.WriteFile(path, []byte("output: plain\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteDefault(); err != nil {
		t.Fatalf("second WriteDefault() error = %v", err)
	}
	content, _ = os.ReadFile(path)
	if string(content) != "output: plain\n" {
		t.Errorf("WriteDefault() overwrote an existing file: %q", content)
	}
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)

	tests := []struct {
		in   string
		want string
	}{
		{"~/roms", filepath.Join(home, "roms")},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := ExpandPath(tt.in)
		if err != nil {
			t.Fatalf("ExpandPath(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
