package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/arnavshah/limits-settings-go/pkg/auth"
	"github.com/arnavshah/limits-settings-go/pkg/config"
	"github.com/arnavshah/limits-settings-go/pkg/database"
	"github.com/arnavshah/limits-settings-go/pkg/logger"
	"github.com/arnavshah/limits-settings-go/pkg/settings"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "limitsctl",
	Short:         "Administer the limits settings service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// keygenCmd issues an API key for the optimizer
var keygenCmd = &cobra.Command{
	Use:   "keygen <name>",
	Short: "Issue an API key for GET /api/v1/settings",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeygen,
}

// seedCmd loads staff, schedules and limits from a YAML file
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load staff, schedules and limits from a YAML file",
	Long: `Load a seed file into the configured database.

The roster and every schedule listed in the file are replaced, and the
settings document is overwritten with the file's limits.`,
	RunE: runSeed,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	seedCmd.Flags().StringP("file", "f", "seed.yaml", "seed file to load")

	rootCmd.AddCommand(keygenCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func open() (*config.Config, *gorm.DB, *zap.Logger, error) {
	config.LoadEnv()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := database.InitDB(cfg.Database, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, db, log, nil
}

func runKeygen(cmd *cobra.Command, args []string) error {
	cfg, db, _, err := open()
	if err != nil {
		return err
	}
	if cfg.Auth.APIMasterSecret == "" {
		return fmt.Errorf("auth.api_master_secret is not set")
	}

	key, rec, err := auth.NewManager(cfg.Auth).IssueAPIKey(db, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Generated key %d for %s:\n%s\n", rec.ID, rec.Name, key)
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")

	_, db, log, err := open()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	seed, err := settings.ReadSeed(f)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()
	if err := seed.Apply(ctx, settings.NewGormStore(db), settings.NewGormRoster(db), settings.NewGormSchedules(db)); err != nil {
		return err
	}

	log.Info("seed loaded",
		zap.String("file", path),
		zap.Int("staff", len(seed.Staff)),
		zap.Int("schedules", len(seed.Schedules)),
		zap.Int("daily_limits", len(seed.Settings.DailyLimits)),
		zap.Int("monthly_limits", len(seed.Settings.MonthlyLimits)),
	)
	return nil
}
