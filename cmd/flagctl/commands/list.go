package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/TimurManjosov/goflagclient/internal/cli"
	"github.com/TimurManjosov/goflagclient/internal/syncer"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Evaluate all feature flags",
	Long: `Evaluate every known feature flag for the given user.

Examples:
  flagctl list
  flagctl list --user-id u42 --user-email dev@example.com --format yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		user, err := buildUser()
		if err != nil {
			return err
		}

		ctx := context.Background()
		c, err := cli.BuildClient(ctx, cfg, syncer.Hooks{})
		if err != nil {
			return err
		}
		defer c.Close()
		<-c.Ready()

		details := c.GetAllValueDetails(ctx, user)
		return cli.PrintDetails(os.Stdout, details, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
