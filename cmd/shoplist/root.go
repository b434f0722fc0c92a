package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"shoplist/internal/app"
	"shoplist/internal/config"
	"shoplist/internal/logger"
)

type opener func(config.Config) (*app.App, error)

// cli carries the state shared by every subcommand.
type cli struct {
	open       opener
	configPath string
	backend    string
	dataDir    string
	app        *app.App
	cfg        config.Config
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open}
	root := &cobra.Command{
		Use:           "shoplist",
		Short:         "Recipes and a merged shopping list",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.teardown()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&c.backend, "state-backend", "", "override state backend: memory|pebble|badger|sqlite")
	root.PersistentFlags().StringVar(&c.dataDir, "data-dir", "", "override state data directory")

	root.AddCommand(c.recipeCmd(), c.listCmd(), c.backupCmd(), c.pushCmd())
	return root
}

func (c *cli) setup() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.backend != "" {
		cfg.StateBackend = c.backend
	}
	if c.dataDir != "" {
		cfg.DataDir = c.dataDir
	}
	if err := logger.Init(cfg.LogEnv); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	c.cfg = cfg
	return nil
}

// services opens the app on first use, so commands that only talk to Kafka
// do not lock the store.
func (c *cli) services() (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := c.open(c.cfg)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) teardown() error {
	_ = logger.Sync()
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
