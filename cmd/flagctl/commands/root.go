package commands

import (
	"fmt"
	"strings"

	"github.com/TimurManjosov/goflagclient/internal/config"
	"github.com/TimurManjosov/goflagclient/internal/model"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	sdkKey      string
	baseURL     string
	pollingMode string
	format      string
	offline     bool
	userID      string
	userEmail   string
	userCountry string
	userCustom  []string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flagctl",
	Short: "CLI tool for evaluating feature flags",
	Long: `Flagctl evaluates feature flags against a remote config, the way an
embedded SDK client would: it downloads the rule document, applies targeting
rules, percentage rollouts and local overrides, and prints the result.

Configuration comes from environment variables (GOFLAG_*), an optional .env
file, and the flags below (flags win).

Examples:
  flagctl eval my_flag --default false --user-id u42
  flagctl list --user-email dev@example.com --format json
  flagctl refresh
  flagctl watch --interval 30s`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sdkKey, "sdk-key", "", "SDK key (defaults to GOFLAG_SDK_KEY)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Config CDN base URL override")
	rootCmd.PersistentFlags().StringVar(&pollingMode, "polling-mode", "", "Polling mode (autopoll, lazyload, manual)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Work from cache only, no HTTP")
	rootCmd.PersistentFlags().StringVar(&userID, "user-id", "", "User identifier for targeting")
	rootCmd.PersistentFlags().StringVar(&userEmail, "user-email", "", "User email for targeting")
	rootCmd.PersistentFlags().StringVar(&userCountry, "user-country", "", "User country for targeting")
	rootCmd.PersistentFlags().StringArrayVar(&userCustom, "user-attr", nil, "Custom user attribute as name=value (repeatable)")
}

// loadConfig merges environment configuration with command-line flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if sdkKey != "" {
		cfg.SDKKey = sdkKey
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if pollingMode != "" {
		cfg.PollingMode = pollingMode
	}
	if offline {
		cfg.Offline = true
	}
	return cfg, nil
}

// buildUser assembles the evaluation user from the user flags, or nil when
// none are given.
func buildUser() (*model.User, error) {
	if userID == "" && userEmail == "" && userCountry == "" && len(userCustom) == 0 {
		return nil, nil
	}
	user := &model.User{
		Identifier: userID,
		Email:      userEmail,
		Country:    userCountry,
	}
	for _, attr := range userCustom {
		name, value, ok := strings.Cut(attr, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --user-attr %q, expected name=value", attr)
		}
		if user.Custom == nil {
			user.Custom = make(map[string]any)
		}
		user.Custom[name] = value
	}
	return user, nil
}
