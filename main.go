package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-component/app"
	kernel "github.com/km-arc/go-component/framework/app"
	"github.com/km-arc/go-component/framework/config"
)

var (
	configFile string
	envFiles   []string
)

var rootCmd = &cobra.Command{
	Use:   "go-component",
	Short: "Dependency-ordered component container",
	Long: `go-component builds every registered component in dependency order,
starts them, and stops them in reverse order on SIGINT or SIGTERM.`,
	Version:       kernel.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Compose, start and run until signalled",
	RunE: func(cmd *cobra.Command, _ []string) error {
		application, err := bootstrap()
		if err != nil {
			return err
		}
		return application.Run(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(planCmd)
}

// bootstrap loads config and registers the app providers.
func bootstrap() (*kernel.Application, error) {
	cfg, err := config.Load(configFile, envFiles...)
	if err != nil {
		return nil, err
	}
	application, err := kernel.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := application.Register(&app.AppServiceProvider{}); err != nil {
		return nil, err
	}
	return application, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
