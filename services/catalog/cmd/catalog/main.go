package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"smartimmo/internal/util"
	"smartimmo/pkg/events"
	"smartimmo/pkg/storage"
	"smartimmo/pkg/store"
	"smartimmo/services/catalog/internal/app"
	"smartimmo/services/catalog/internal/config"
)

func main() {
	var configPath string
	rootCmd := &cobra.Command{
		Use:           "catalog",
		Short:         "SmartImmo property catalog service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (defaults to $CATALOG_CONFIG or ./config.yaml)")

	rootCmd.AddCommand(
		serveCmd(&configPath),
		migrateCmd(&configPath),
		seedCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.FileConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	util.InitLogger(cfg.LogLevel)
	return cfg, nil
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			// Opening the store runs the migrations.
			dataStore, err := store.NewGormStore(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer dataStore.Close()
			slog.Info("schema up to date", "dialect", dialectName(cfg.DatabaseURL))
			return nil
		},
	}
}

func seedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo account and listings into an empty database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			appCore, err := newApp(cfg, nil, nil)
			if err != nil {
				return err
			}
			defer appCore.Close()
			seeded, err := appCore.Seed(cmd.Context())
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			if !seeded {
				slog.Info("seed skipped: users already exist")
				return nil
			}
			slog.Info("seeded demo data", "email", app.DemoEmail)
			return nil
		},
	}
}

func newApp(cfg config.FileConfig, publisher events.Publisher, images storage.ObjectStore) (*app.App, error) {
	sessionTTL, err := config.ParseDuration("sessionTTL", cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	assistantTimeout, err := config.ParseDuration("assistantTimeout", cfg.AssistantTimeout)
	if err != nil {
		return nil, err
	}
	return app.New(app.Config{
		DatabaseURL:      cfg.DatabaseURL,
		JWTSecret:        cfg.JWTSecret,
		SessionTTL:       sessionTTL,
		RedisAddr:        cfg.RedisAddr,
		RedisPassword:    cfg.RedisPassword,
		OllamaHost:       cfg.OllamaHost,
		OllamaModel:      cfg.OllamaModel,
		AssistantTimeout: assistantTimeout,
		MaxImageBytes:    cfg.MaxUploadBytes,
		Events:           publisher,
		Images:           images,
	})
}

// dialectName reports the database family of dsn without its credentials.
func dialectName(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "mysql://"):
		return "mysql"
	case strings.HasPrefix(dsn, "sqlite:"), strings.HasPrefix(dsn, "file:"), dsn == ":memory:":
		return "sqlite"
	default:
		return "postgres"
	}
}
