package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stratum.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[world]
initial_capacity = 4096

[runtime]
tick_rate = "20ms"
ticks = 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.World.InitialCapacity != 4096 {
		t.Errorf("initial_capacity = %d, want 4096", cfg.World.InitialCapacity)
	}
	if cfg.World.ColumnCapacity != 16 {
		t.Errorf("column_capacity = %d, want default 16", cfg.World.ColumnCapacity)
	}
	if cfg.Runtime.TickRate != 20*time.Millisecond {
		t.Errorf("tick_rate = %s, want 20ms", cfg.Runtime.TickRate)
	}
	if cfg.Runtime.Ticks != 5 {
		t.Errorf("ticks = %d, want 5", cfg.Runtime.Ticks)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("format = %q, want default console", cfg.Logging.Format)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"negative capacity": "[world]\ninitial_capacity = -1\n",
		"zero tick rate":    "[runtime]\ntick_rate = \"0s\"\n",
		"bad format":        "[logging]\nformat = \"xml\"\n",
		"not toml":          "[world\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
