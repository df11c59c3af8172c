package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TimurManjosov/goflagclient/internal/cli"
	"github.com/TimurManjosov/goflagclient/internal/model"
	"github.com/TimurManjosov/goflagclient/internal/syncer"
	"github.com/TimurManjosov/goflagclient/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	watchInterval    time.Duration
	watchMetricsAddr string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the config and report changes",
	Long: `Keep polling the config on a fixed interval and print a line every
time its content changes, until interrupted. With --metrics-addr an HTTP
endpoint exposes Prometheus metrics about fetches and evaluations.

Examples:
  flagctl watch --interval 30s
  flagctl watch --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		cfg.PollingMode = "autopoll"
		if watchInterval > 0 {
			cfg.PollInterval = watchInterval
		}

		hooks := syncer.Hooks{
			OnConfigChanged: func(doc *model.ConfigDocument) {
				fmt.Printf("%s config changed: %d settings\n",
					time.Now().Format(time.RFC3339), len(doc.Settings))
				telemetry.SettingCount.Set(float64(len(doc.Settings)))
				telemetry.ConfigFetchTime.SetToCurrentTime()
			},
			OnError: func(err error) {
				fmt.Fprintf(os.Stderr, "%s sync error: %v\n",
					time.Now().Format(time.RFC3339), err)
			},
		}

		if watchMetricsAddr != "" {
			cfg.Metrics = true
			telemetry.Init()
			go func() {
				http.Handle("/metrics", promhttp.Handler())
				if err := http.ListenAndServe(watchMetricsAddr, nil); err != nil {
					fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
				}
			}()
		}

		ctx := context.Background()
		c, err := cli.BuildClient(ctx, cfg, hooks)
		if err != nil {
			return err
		}
		defer c.Close()
		<-c.Ready()
		fmt.Printf("watching config every %s, cache state: %s\n", cfg.PollInterval, c.CacheState())

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		fmt.Println("stopping")
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Poll interval (defaults to GOFLAG_POLL_INTERVAL)")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address")
	rootCmd.AddCommand(watchCmd)
}
