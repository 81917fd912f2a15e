// Package main provides the gosession binary: a command line front end for
// the session client and a local mock Auth Server for trying it out.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	goSession "github.com/MrEthical07/goSession"
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "gosession"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	baseURL    string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Client-side session manager",
		Long: `gosession signs in against an Auth Server, keeps the sealed credential
pair in the configured store and sends authenticated calls through the
gateway, refreshing the access token on demand.

Sessions survive between invocations only with a persistent store
(file, redis or postgres). Run "gosession lint" to review a config.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "Override server.base_url")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	cmd.AddCommand(
		loginCmd(opts),
		registerCmd(opts),
		logoutCmd(opts),
		statusCmd(opts),
		callCmd(opts),
		lintCmd(opts),
		mockServerCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

// loadConfig applies the flag overrides on top of LoadConfig.
func (o *globalOptions) loadConfig() (goSession.Config, error) {
	cfg, err := goSession.LoadConfig(o.configPath)
	if err != nil {
		return goSession.Config{}, err
	}
	if o.baseURL != "" {
		cfg.Server.BaseURL = o.baseURL
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// openClient builds and starts a client. The caller must Close it.
func (o *globalOptions) openClient(ctx context.Context) (*goSession.Client, *slog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := goSession.NewLogger(cfg.Log, os.Stderr)

	if cfg.Store.Backend == goSession.StoreMemory {
		logger.Warn("memory store in use; the session ends with this process")
	}

	client, err := goSession.New().
		WithConfig(cfg).
		WithLogger(logger).
		BuildContext(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("build client: %w", err)
	}
	if err := client.Start(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("start client: %w", err)
	}
	return client, logger, nil
}
