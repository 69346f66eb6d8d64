package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/thrustmapper/app"
	"github.com/kilianp07/thrustmapper/config"
	"github.com/kilianp07/thrustmapper/infra/logger"
)

var (
	cfgPath    string
	layoutPath string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "thrustmapper",
		Short:        "Thruster allocation service",
		SilenceUsage: true,
		RunE:         run,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	root.PersistentFlags().StringVar(&layoutPath, "layout", "", "layout file, overrides the configuration")
	root.AddCommand(newMatrixCmd(), newAllocateCmd(), newSendCmd(), newDropCmd())
	return root
}

// Execute runs the CLI.
func Execute() error { return newRootCmd().Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
