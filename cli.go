package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/onurcolak/messaging-dashboard/environments"
	"github.com/onurcolak/messaging-dashboard/internal/campaign"
	"github.com/onurcolak/messaging-dashboard/internal/domain"
	"github.com/onurcolak/messaging-dashboard/pkg/database"
	"github.com/onurcolak/messaging-dashboard/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "messaging-dashboard",
		Short:        "Multi-client messaging dashboard backend",
		SilenceUsage: true,
		RunE:         runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the message scheduler",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		newSeedCmd(),
		newETACmd(),
		newCSVCmd(),
		newPresetsCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)

	return root
}

// newSeedCmd migrates the MySQL schema and inserts demo clients and
// messages.
func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Run migrations and insert demo data into MySQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := environments.Load()
			if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			defer logger.Sync()

			db, err := database.NewMySQLDB(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					logger.Errorf("Failed to close database: %v", err)
				}
			}()

			ctx := cmd.Context()
			if err := database.RunMigrations(ctx, db); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			if err := database.SeedTestData(ctx, db); err != nil {
				return fmt.Errorf("failed to seed test data: %w", err)
			}

			logger.Infof("Seed completed")
			return nil
		},
	}
}

// loadPresets reads the preset file named by RATE_LIMIT_PRESETS_FILE.
func loadPresets() ([]domain.RateLimitPreset, error) {
	return environments.LoadRateLimitPresets(environments.GetEnv("RATE_LIMIT_PRESETS_FILE", ""))
}

func newETACmd() *cobra.Command {
	var (
		recipients int
		preset     string
		custom     domain.RateLimitConfig
	)

	cmd := &cobra.Command{
		Use:   "eta",
		Short: "Estimate how long a bulk send takes",
		Example: `  messaging-dashboard eta --recipients 5000 --preset aggressive
  messaging-dashboard eta --recipients 5000 --mpm 120 --burst 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := custom
			if !anyRateFlag(cmd) {
				presets, err := loadPresets()
				if err != nil {
					return err
				}
				if preset == "" {
					preset = environments.GetEnv("RATE_LIMIT_PRESET", campaign.DefaultPresetName)
				}
				p, ok := campaign.FindPreset(presets, preset)
				if !ok {
					return fmt.Errorf("unknown preset %q", preset)
				}
				cfg = p.RateLimitConfig
			}

			eta, err := campaign.CalculateETA(recipients, cfg, time.Now())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recipients:      %d\n", eta.Recipients)
			fmt.Fprintf(out, "Effective rate:  %.4f msg/s\n", eta.EffectiveRate)
			fmt.Fprintf(out, "Duration:        %s (%.0fs)\n", eta.Formatted, eta.DurationSeconds)
			fmt.Fprintf(out, "Completes at:    %s\n", eta.CompletionTime.Format(time.RFC3339))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&recipients, "recipients", "n", 0, "Number of recipients")
	f.StringVarP(&preset, "preset", "p", "", "Rate limit preset (default from RATE_LIMIT_PRESET)")
	f.IntVar(&custom.MessagesPerSecond, "mps", 0, "Messages per second")
	f.IntVar(&custom.MessagesPerMinute, "mpm", 0, "Messages per minute")
	f.IntVar(&custom.MessagesPerHour, "mph", 0, "Messages per hour")
	f.IntVar(&custom.MessagesPerDay, "mpd", 0, "Messages per day")
	f.IntVar(&custom.BurstSize, "burst", 0, "Burst size")
	_ = cmd.MarkFlagRequired("recipients")
	cmd.MarkFlagsMutuallyExclusive("preset", "mps")
	cmd.MarkFlagsMutuallyExclusive("preset", "mpm")
	cmd.MarkFlagsMutuallyExclusive("preset", "mph")
	cmd.MarkFlagsMutuallyExclusive("preset", "mpd")
	cmd.MarkFlagsMutuallyExclusive("preset", "burst")

	return cmd
}

func anyRateFlag(cmd *cobra.Command) bool {
	for _, name := range []string{"mps", "mpm", "mph", "mpd", "burst"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

func newCSVCmd() *cobra.Command {
	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Recipient CSV tools",
	}

	csvCmd.AddCommand(&cobra.Command{
		Use:   "validate FILE",
		Short: "Parse a recipient CSV and report invalid rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := campaign.ParseCSVReader(f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rows: %d, valid: %d, invalid: %d\n", result.TotalRows, result.ValidRows, len(result.Errors))
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  row %d: %s\n", e.Row, e.Error)
			}

			if len(result.Errors) > 0 {
				return fmt.Errorf("%d invalid rows", len(result.Errors))
			}
			return nil
		},
	})

	return csvCmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List rate limit presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			presets, err := loadPresets()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPER SEC\tPER MIN\tPER HOUR\tPER DAY\tBURST\tDESCRIPTION")
			for _, p := range presets {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
					p.Name, p.MessagesPerSecond, p.MessagesPerMinute, p.MessagesPerHour,
					p.MessagesPerDay, p.BurstSize, p.Description)
			}
			return w.Flush()
		},
	}
}
