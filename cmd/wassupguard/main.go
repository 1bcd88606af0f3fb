package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/app"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/config"
	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a GuardApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Scan", "Watch").
func newApp(operation string) (*app.GuardApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewGuardApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "wassupguard",
	Short: "Media directory threat scanner",
}

// defaultWatchDirs seeds the config with WhatsApp-style media folders
// under the user's home. Any directories work; these are a starting point.
func defaultWatchDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, "WhatsApp", "Media", "WhatsApp Images"),
		filepath.Join(home, "WhatsApp", "Media", "WhatsApp Documents"),
		filepath.Join(home, "Downloads"),
	}
}

// config command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		cfg.Scanner.WatchDirs = defaultWatchDirs()

		fmt.Print("Reputation service API key (leave empty to fill in later): ")
		key, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading API key: %w", err)
		}
		cfg.Reputation.APIKey = string(key)

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Add directories to watch under [scanner] watch_dirs.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:       %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:        %s\n", cfg.LogDir)
		fmt.Printf("Quarantine Dir: %s\n", cfg.Quarantine.Dir)
		fmt.Printf("Watch Dirs:     %v\n", cfg.Scanner.WatchDirs)
		fmt.Printf("Extensions:     %v\n", cfg.Scanner.AllowedExtensions)
		return nil
	},
}

// scan command

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Sweep the watched directories once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Scan")
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.Service().RunOnce(cmd.Context())
		if err != nil {
			return fmt.Errorf("running sweep: %w", err)
		}

		fmt.Printf("Scanned: %d\nThreats: %d\nErrors:  %d\n", summary.Scanned, summary.Threats, summary.Errors)
		return nil
	},
}

// watch command

var metricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch directories continuously and scan new files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Watch")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if metricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			go func() {
				if err := http.ListenAndServe(metricsAddr, mux); err != nil {
					fmt.Fprintf(os.Stderr, "metrics listener: %v\n", err)
				}
			}()
		}

		if err := a.Service().Start(ctx); err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}

		fmt.Println("Watching for new files. Press Ctrl+C to stop.")
		<-ctx.Done()
		a.Service().Stop()
		return nil
	},
}

// history command

var (
	historyLimit   int
	historyVerdict string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show scan history, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		var records []*guard.ScanRecord
		if historyVerdict != "" {
			records, err = a.Service().RecordsByVerdict(guard.Verdict(historyVerdict), historyLimit)
		} else {
			records, err = a.Service().Records(historyLimit)
		}
		if err != nil {
			return fmt.Errorf("listing history: %w", err)
		}

		for _, r := range records {
			fmt.Printf("%s  %s  %-10s  score=%-3d  %-12s  %s\n",
				r.ID, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"), r.Verdict, r.Score, r.Source, r.FilePath)
		}

		threats, err := a.Service().ThreatCount()
		if err != nil {
			return fmt.Errorf("counting threats: %w", err)
		}
		fmt.Printf("\n%d records shown, %d threats on record\n", len(records), threats)
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a single scan record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteRecord")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().DeleteRecord(args[0]); err != nil {
			return fmt.Errorf("deleting record: %w", err)
		}
		fmt.Println("Record deleted.")
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all scan history",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ClearHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().ClearHistory(); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		fmt.Println("Scan history cleared.")
		return nil
	},
}

// status command

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show reputation service quota usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Status")
		if err != nil {
			return err
		}
		defer a.Close()

		usage, err := a.Service().QuotaUsage()
		if err != nil {
			return fmt.Errorf("reading quota usage: %w", err)
		}

		fmt.Printf("Day:   %d/%d (%d remaining)\n", usage.DayCount, usage.DayLimit, usage.DayRemaining())
		fmt.Printf("Month: %d/%d (%d remaining)\n", usage.MonthCount, usage.MonthLimit, usage.MonthRemaining())
		return nil
	},
}

var resetQuotaCmd = &cobra.Command{
	Use:   "reset-quota",
	Short: "Reset the reputation service quota counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ResetQuota")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().ResetQuota(); err != nil {
			return fmt.Errorf("resetting quota: %w", err)
		}
		fmt.Println("Quota counters reset.")
		return nil
	},
}

// quarantine command

var quarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "Manage quarantined files",
}

var quarantineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quarantined files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("QuarantineList")
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := a.Service().ListQuarantined()
		if err != nil {
			return fmt.Errorf("listing quarantine: %w", err)
		}
		if len(files) == 0 {
			fmt.Println("Quarantine is empty.")
			return nil
		}

		for _, f := range files {
			fmt.Printf("%s\n  from: %s\n  size: %d bytes, quarantined %s\n",
				f.QuarantinePath, f.OriginalPath, f.Size, f.QuarantinedAt.UTC().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var quarantineRestoreCmd = &cobra.Command{
	Use:   "restore <quarantine-path>",
	Short: "Restore a quarantined file to its original location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("QuarantineRestore")
		if err != nil {
			return err
		}
		defer a.Close()

		restored, err := a.Service().RestoreQuarantined(args[0])
		if err != nil {
			return fmt.Errorf("restoring file: %w", err)
		}
		fmt.Printf("Restored to %s\n", restored)
		return nil
	},
}

var quarantineDeleteCmd = &cobra.Command{
	Use:   "delete <quarantine-path>",
	Short: "Permanently delete a quarantined file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("QuarantineDelete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().DeleteQuarantined(args[0]); err != nil {
			return fmt.Errorf("deleting file: %w", err)
		}
		fmt.Println("Deleted.")
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9091)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum records to show (0 for all)")
	historyCmd.Flags().StringVar(&historyVerdict, "verdict", "", "only show records with this verdict (Safe, Suspicious, Malicious, Unknown)")

	configCmd.AddCommand(configInitCmd, configListCmd)
	historyCmd.AddCommand(historyDeleteCmd, historyClearCmd)
	quarantineCmd.AddCommand(quarantineListCmd, quarantineRestoreCmd, quarantineDeleteCmd)
	rootCmd.AddCommand(configCmd, scanCmd, watchCmd, historyCmd, statusCmd, resetQuotaCmd, quarantineCmd)
}
