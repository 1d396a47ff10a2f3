package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kosarica/durable/config"
	"github.com/kosarica/durable/internal/store"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *zerolog.Logger
	st      *store.Store
)

// rootCmd is durablectl's thin operator front-end over the Task Store:
// upload wasm, submit and inspect tasks, send notifications, run
// migrations. It never bypasses store.Store's documented operations.
var rootCmd = &cobra.Command{
	Use:   "durablectl",
	Short: "durablectl - operator CLI for the durable worker runtime",
	Long: `durablectl is a thin client over the durable worker's Task Store: upload
wasm modules, submit and inspect tasks, send notifications to suspended
tasks, and apply database migrations.`,
	PersistentPreRunE: persistentPreRun,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load config: %v\n", err)
	}
}

func persistentPreRun(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	logger = initLogger()

	if cmd.Name() == "migrate" {
		return nil
	}

	if cfg == nil {
		return fmt.Errorf("config required for %s command but not loaded", cmd.Name())
	}
	if err := initStore(cmd.Context()); err != nil {
		return fmt.Errorf("store initialization failed: %w", err)
	}
	return nil
}

func initLogger() *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if cfg != nil && cfg.Logging.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsed
		}
	}

	noColor := false
	if cfg != nil {
		noColor = cfg.Logging.NoColor
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: noColor}
	log := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &log
}

func initStore(ctx context.Context) error {
	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}

	s, err := store.Open(ctx, store.Config{
		URL:             dbURL,
		MaxConns:        cfg.Database.MaxConnections,
		MinConns:        cfg.Database.MinConnections,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return err
	}
	st = s
	return nil
}

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
