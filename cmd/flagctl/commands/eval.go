package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/TimurManjosov/goflagclient/internal/cli"
	"github.com/TimurManjosov/goflagclient/internal/client"
	"github.com/TimurManjosov/goflagclient/internal/syncer"
	"github.com/spf13/cobra"
)

var (
	evalDefault string
	evalType    string
)

var evalCmd = &cobra.Command{
	Use:   "eval <key>",
	Short: "Evaluate a feature flag",
	Long: `Evaluate a single feature flag for the given user and print the result.

Examples:
  flagctl eval feature_x --type bool --default false --user-id u42
  flagctl eval api_url --type string --default https://fallback.example --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

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

		var details client.EvaluationDetails
		switch evalType {
		case "bool":
			def, err := strconv.ParseBool(evalDefault)
			if err != nil && evalDefault != "" {
				return fmt.Errorf("invalid bool default %q", evalDefault)
			}
			details = c.GetBoolValueDetails(ctx, key, def, user)
		case "int":
			def := 0
			if evalDefault != "" {
				if def, err = strconv.Atoi(evalDefault); err != nil {
					return fmt.Errorf("invalid int default %q", evalDefault)
				}
			}
			details = c.GetIntValueDetails(ctx, key, def, user)
		case "float":
			def := 0.0
			if evalDefault != "" {
				if def, err = strconv.ParseFloat(evalDefault, 64); err != nil {
					return fmt.Errorf("invalid float default %q", evalDefault)
				}
			}
			details = c.GetFloatValueDetails(ctx, key, def, user)
		default:
			details = c.GetStringValueDetails(ctx, key, evalDefault, user)
		}

		return cli.PrintDetail(os.Stdout, details, cli.OutputFormat(format))
	},
}

func init() {
	evalCmd.Flags().StringVar(&evalDefault, "default", "", "Default value when evaluation fails")
	evalCmd.Flags().StringVar(&evalType, "type", "string", "Setting type (bool, string, int, float)")
	rootCmd.AddCommand(evalCmd)
}
