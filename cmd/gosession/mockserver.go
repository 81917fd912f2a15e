package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/authmock"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func mockServerCmd(global *globalOptions) *cobra.Command {
	var (
		addr           string
		redisAddr      string
		users          []string
		accessTTL      time.Duration
		issueOnSignup  bool
		refreshPerMin  int
		signupsPerHour int
	)

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run an in-memory Auth Server for local testing",
		Long: `mock-server serves /auth/register, /auth/login, /auth/refresh and
/auth/logout with rotating refresh tokens, plus an echo API under /api/.
Attempt counters live in Redis when --redis-addr is set and in an
embedded miniredis otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := goSession.NewLogger(goSession.LogConfig{Level: global.logLevel, Format: "text"}, os.Stderr)

			opts := authmock.Options{
				AccessTTL:               accessTTL,
				RegisterIssuesTokens:    issueOnSignup,
				MaxRefreshPerMinute:     refreshPerMin,
				MaxRegistrationsPerHour: signupsPerHour,
				GinMode:                 gin.ReleaseMode,
				Logger:                  logger,
			}
			if redisAddr != "" {
				rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{redisAddr}})
				defer rdb.Close()
				if err := rdb.Ping(cmd.Context()).Err(); err != nil {
					return fmt.Errorf("redis ping: %w", err)
				}
				opts.Redis = rdb
			}

			srv, err := authmock.NewServer(opts)
			if err != nil {
				return err
			}
			defer srv.Close()

			for _, u := range users {
				email, password, ok := strings.Cut(u, ":")
				if !ok {
					return fmt.Errorf("invalid --user %q, want email:password", u)
				}
				if err := srv.AddUser(email, password); err != nil {
					return fmt.Errorf("add user %s: %w", email, err)
				}
			}

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("mock auth server listening", "addr", addr, "users", len(users))
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for attempt counters (default embedded)")
	cmd.Flags().StringArrayVarP(&users, "user", "u", nil, "Seed account email:password (repeatable)")
	cmd.Flags().DurationVar(&accessTTL, "access-ttl", 15*time.Minute, "Access token lifetime")
	cmd.Flags().BoolVar(&issueOnSignup, "register-issues-tokens", false, "Answer /auth/register with a token pair")
	cmd.Flags().IntVar(&refreshPerMin, "max-refresh-per-minute", 0, "Per-session refresh limit (0 disables)")
	cmd.Flags().IntVar(&signupsPerHour, "max-registrations-per-hour", 0, "Per-IP sign-up limit (0 disables)")

	return cmd
}
