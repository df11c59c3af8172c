package commands

import (
	"context"
	"fmt"

	"github.com/TimurManjosov/goflagclient/internal/cli"
	"github.com/TimurManjosov/goflagclient/internal/syncer"
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force-fetch the latest config",
	Long: `Fetch the freshest config version and store it in the configured
external cache, so that other clients sharing the cache pick it up.

Examples:
  GOFLAG_CACHE_TYPE=file GOFLAG_CACHE_DIR=/var/cache/goflag flagctl refresh`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		// A one-shot refresh needs no poller.
		cfg.PollingMode = "manual"

		ctx := context.Background()
		c, err := cli.BuildClient(ctx, cfg, syncer.Hooks{})
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh failed: %w", err)
		}
		fmt.Printf("Config refreshed, cache state: %s\n", c.CacheState())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
