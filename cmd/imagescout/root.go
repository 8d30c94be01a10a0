package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"imagescout/internal/advisor"
	"imagescout/internal/catalog"
	"imagescout/internal/config"
	"imagescout/internal/plugin"
	"imagescout/internal/store"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "imagescout",
	Short: "Container base image catalog and recommendation engine",
	Long: `imagescout catalogs analyzed container images and recommends base
images that fit a workload's language, version, package, size, and
security requirements.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default imagescout.yaml)")
	rootCmd.PersistentFlags().String("db", "", "path to the catalog database (overrides config)")
}

// app bundles everything a command needs to work against the local catalog.
type app struct {
	cfg      *viper.Viper
	logger   *zap.Logger
	store    *store.SQLiteStore
	registry *plugin.Registry
	catalog  *catalog.Catalog
	advisor  *advisor.Advisor
}

// openApp loads config, opens the database, and initializes the catalog and
// advisor plugins. Callers must Close when done.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Set("database.path", db)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.GetString("database.path"))
	if err != nil {
		return nil, err
	}

	cat := catalog.New(st)
	registry := plugin.NewRegistry(logger)
	if err := registry.Register(cat); err != nil {
		st.Close()
		return nil, err
	}
	// The advisor reads candidates through the catalog repository, which
	// only exists after catalog.Init. Wire it lazily via a second pass.
	if err := registry.InitAll(cfg); err != nil {
		st.Close()
		return nil, err
	}

	adv := advisor.New(cat.Repository())
	if err := registry.Register(adv); err != nil {
		st.Close()
		return nil, err
	}
	if err := adv.Init(pluginConfig(cfg, adv.Name()), logger.Named(adv.Name())); err != nil {
		st.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		registry: registry,
		catalog:  cat,
		advisor:  adv,
	}, nil
}

// databasePath resolves the configured database path without opening it.
func databasePath(cmd *cobra.Command) (string, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return "", err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		return db, nil
	}
	return cfg.GetString("database.path"), nil
}

func pluginConfig(cfg *viper.Viper, name string) *viper.Viper {
	sub := cfg.Sub("plugins." + name)
	if sub == nil {
		sub = viper.New()
	}
	return sub
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}
