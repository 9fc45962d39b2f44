package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/omnivault/oracle-node/config"
	"github.com/omnivault/oracle-node/core"
	"github.com/omnivault/oracle-node/logger"
)

// Set at build time through -ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func InitRootCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(versionCmd())
}

func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".oracled"
	}
	return filepath.Join(home, ".oracled")
}

func startCmd() *cobra.Command {
	var baseDir string
	var configFile string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the oracle daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg *config.Config
				err error
			)
			if configFile != "" {
				cfg, err = config.LoadFile(configFile)
			} else {
				cfg, err = config.Load(baseDir)
			}
			if err != nil {
				return err
			}

			log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			client, err := core.NewClient(ctx, cfg, log)
			if err != nil {
				return err
			}
			if err := client.Start(ctx); err != nil {
				client.Stop()
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-sigCh:
				log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
			case <-ctx.Done():
			}

			client.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&baseDir, "base-dir", defaultBaseDir(), "daemon home directory")
	cmd.Flags().StringVar(&configFile, "config", "", "explicit config file path (overrides base-dir discovery)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print oracled version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", commit)
			fmt.Printf("Go Version: %s\n", runtime.Version())
		},
	}
}
