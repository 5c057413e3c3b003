// Command talaria runs the content-addressed sequence storage engine's
// command-line surface: ingest, reduce, reconstruct, verify, diff, query,
// history, and clean.
//
// Logging:
//   - Base logger is created once, in PersistentPreRunE, once flags are parsed
//   - Logger is passed to the Repository via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"gastrolog/internal/config"
	configmem "gastrolog/internal/config/memory"
	configsqlite "gastrolog/internal/config/sqlite"
	"gastrolog/internal/engineerrors"
	"gastrolog/internal/home"
	"gastrolog/internal/logging"
	"gastrolog/internal/repository"

	"github.com/spf13/cobra"
)

var version = "dev"

// app holds the dependencies every subcommand needs. Its fields are
// populated by the root command's PersistentPreRunE, once --home and
// --config-type have been parsed, and torn down in PersistentPostRunE.
type app struct {
	logger   *slog.Logger
	cfgStore config.Store
	cfg      *config.Config
	repo     *repository.Repository
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "talaria",
		Short:         "Content-addressed storage engine for sequence databases",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	rootCmd.PersistentFlags().String("home", "", "repository root (default: platform config dir, or $TALARIA_HOME)")
	rootCmd.PersistentFlags().String("config-type", "sqlite", "config store type: sqlite or memory")
	rootCmd.PersistentFlags().Bool("low-memory", false, "disable the chunker's optimization pass for this invocation ($TALARIA_LOW_MEMORY)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable info-level logging for all components")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug-level logging and preserve workspaces on failure")
	rootCmd.PersistentFlags().String("s3-mirror-bucket", "", "mirror committed chunks to this S3 bucket ($TALARIA_S3_BUCKET)")
	rootCmd.PersistentFlags().String("s3-mirror-prefix", "", "key prefix for mirrored chunks ($TALARIA_S3_PREFIX)")

	rootCmd.AddCommand(
		newIngestCmd(a),
		newReduceCmd(a),
		newReconstructCmd(a),
		newVerifyCmd(a),
		newDiffCmd(a),
		newQueryCmd(a),
		newHistoryCmd(a),
		newCleanCmd(a),
		&cobra.Command{
			Use:                "version",
			Short:              "Print version information",
			PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { return nil },
			PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(version)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		a.logError(err)
		os.Exit(engineerrors.KindOf(err).ExitCode())
	}
}

// logError prints a final failure line. It uses the app logger if setup
// got far enough to build one, falling back to stderr otherwise.
func (a *app) logError(err error) {
	if a.logger != nil {
		a.logger.Error("command failed", "error", err, "kind", engineerrors.KindOf(err).String())
		return
	}
	fmt.Fprintln(os.Stderr, "talaria:", err)
}

// setup resolves the repository root, opens the config store, loads (or
// bootstraps) the configuration, and opens the Repository. It is shared
// by every subcommand via PersistentPreRunE; "version" overrides both
// hooks with no-ops since it needs no repository access.
func (a *app) setup(cmd *cobra.Command) error {
	homeFlag, _ := cmd.Flags().GetString("home")
	if homeFlag == "" {
		homeFlag = os.Getenv("TALARIA_HOME")
	}
	configType, _ := cmd.Flags().GetString("config-type")
	lowMemory, _ := cmd.Flags().GetBool("low-memory")
	if !cmd.Flags().Changed("low-memory") {
		if v, ok := os.LookupEnv("TALARIA_LOW_MEMORY"); ok {
			lowMemory = truthy(v)
		}
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	debug, _ := cmd.Flags().GetBool("debug")
	mirrorBucket, _ := cmd.Flags().GetString("s3-mirror-bucket")
	if mirrorBucket == "" {
		mirrorBucket = os.Getenv("TALARIA_S3_BUCKET")
	}
	mirrorPrefix, _ := cmd.Flags().GetString("s3-mirror-prefix")
	if mirrorPrefix == "" {
		mirrorPrefix = os.Getenv("TALARIA_S3_PREFIX")
	}

	level := slog.LevelWarn
	switch {
	case debug:
		level = slog.LevelDebug
	case verbose:
		level = slog.LevelInfo
	}
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	filter := logging.NewComponentFilterHandler(baseHandler, level)
	a.logger = slog.New(filter)

	hd, err := resolveHome(homeFlag)
	if err != nil {
		return engineerrors.Wrap(engineerrors.KindUser, err, "resolve repository root")
	}
	if err := hd.EnsureExists(); err != nil {
		return engineerrors.Wrap(engineerrors.KindResource, err, "create repository root")
	}
	a.logger.Info("repository root", "path", hd.Root())

	cfgStore, err := openConfigStore(hd, configType)
	if err != nil {
		return engineerrors.Wrap(engineerrors.KindUser, err, "open config store")
	}
	a.cfgStore = cfgStore

	ctx := context.Background()
	cfg, err := ensureConfig(ctx, a.logger, cfgStore)
	if err != nil {
		return err
	}
	if lowMemory {
		cfg.Chunker.Optimize = false
	}
	a.cfg = cfg

	repo, err := repository.Open(repository.Config{
		Root:                       hd.Root(),
		Chunker:                    cfg.Chunker,
		Reducer:                    cfg.Reducer,
		PreserveWorkspaceOnFailure: debug,
		RemoteMirrorBucket:         mirrorBucket,
		RemoteMirrorPrefix:         mirrorPrefix,
		Logger:                     a.logger,
	})
	if err != nil {
		return err
	}
	a.repo = repo

	return nil
}

func (a *app) teardown() error {
	var err error
	if a.repo != nil {
		err = a.repo.Close()
	}
	if c, ok := a.cfgStore.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// resolveHome returns a home.Dir from the flag value, or the platform
// default.
func resolveHome(flagValue string) (home.Dir, error) {
	if flagValue != "" {
		return home.New(flagValue), nil
	}
	return home.Default()
}

// openConfigStore creates a config.Store based on configType and home.
func openConfigStore(hd home.Dir, configType string) (config.Store, error) {
	switch configType {
	case "memory":
		return configmem.NewStore(), nil
	case "sqlite":
		return configsqlite.NewStore(hd.ConfigPath("sqlite"))
	default:
		return nil, fmt.Errorf("unknown config store type: %q", configType)
	}
}

// ensureConfig loads the stored configuration, bootstrapping a default one
// on first use.
func ensureConfig(ctx context.Context, logger *slog.Logger, cfgStore config.Store) (*config.Config, error) {
	cfg, err := cfgStore.Load(ctx)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}
	logger.Info("no configuration found, bootstrapping defaults")
	if err := config.Bootstrap(ctx, cfgStore); err != nil {
		return nil, fmt.Errorf("bootstrap config: %w", err)
	}
	cfg, err = cfgStore.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bootstrapped config: %w", err)
	}
	return cfg, nil
}

func truthy(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v != "0" && v != "false" && v != "off"
}
