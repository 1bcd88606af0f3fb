package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/app"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/config"
)

// testConfig builds a config rooted in a temp directory with the
// in-memory database and no quarantine encryption.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewConfig(base)
	cfg.Scanner.WatchDirs = []string{filepath.Join(base, "watched")}
	cfg.Database.Type = "memory"
	cfg.Encryption.Type = "none"
	return cfg
}

func TestNewGuardApp(t *testing.T) {
	t.Run("wires a working service from config", func(t *testing.T) {
		cfg := testConfig(t)
		if err := os.MkdirAll(cfg.Scanner.WatchDirs[0], 0o755); err != nil {
			t.Fatal(err)
		}

		a, err := app.NewGuardApp(cfg, "Test")
		if err != nil {
			t.Fatalf("NewGuardApp() error = %v", err)
		}
		defer a.Close()

		// An empty watch directory sweeps cleanly.
		summary, err := a.Service().RunOnce(context.Background())
		if err != nil {
			t.Fatalf("RunOnce() error = %v", err)
		}
		if summary.Scanned != 0 || summary.Threats != 0 || summary.Errors != 0 {
			t.Errorf("summary = %+v, want empty", summary)
		}

		usage, err := a.Service().QuotaUsage()
		if err != nil {
			t.Fatalf("QuotaUsage() error = %v", err)
		}
		if usage.DayLimit != config.DefaultPerDay || usage.MonthLimit != config.DefaultPerMonth {
			t.Errorf("usage limits = %d/%d", usage.DayLimit, usage.MonthLimit)
		}

		if a.Config() != cfg {
			t.Error("Config() does not return the provided config")
		}
	})

	t.Run("creates the log file under the configured directory", func(t *testing.T) {
		cfg := testConfig(t)

		a, err := app.NewGuardApp(cfg, "Test")
		if err != nil {
			t.Fatalf("NewGuardApp() error = %v", err)
		}
		a.Close()

		if _, err := os.Stat(filepath.Join(cfg.LogDir, "wassupguard.log")); err != nil {
			t.Errorf("log file missing: %v", err)
		}
	})

	t.Run("close is safe after start and stop", func(t *testing.T) {
		cfg := testConfig(t)

		a, err := app.NewGuardApp(cfg, "Test")
		if err != nil {
			t.Fatalf("NewGuardApp() error = %v", err)
		}

		if err := a.Service().Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := a.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
}
