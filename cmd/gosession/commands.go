package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/spf13/cobra"
)

func loginCmd(opts *globalOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the credential pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authenticate(cmd, opts, email, password, false)
		},
	}
	addCredentialFlags(cmd, &email, &password)
	return cmd
}

func registerCmd(opts *globalOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return authenticate(cmd, opts, email, password, true)
		},
	}
	addCredentialFlags(cmd, &email, &password)
	return cmd
}

func addCredentialFlags(cmd *cobra.Command, email, password *string) {
	cmd.Flags().StringVarP(email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(password, "password", "p", "", "Account password (default $GOSESSION_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
}

func authenticate(cmd *cobra.Command, opts *globalOptions, email, password string, register bool) error {
	if password == "" {
		password = os.Getenv("GOSESSION_PASSWORD")
	}
	if password == "" {
		return errors.New("password is required (--password or GOSESSION_PASSWORD)")
	}

	ctx := cmd.Context()
	client, logger, err := opts.openClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if register {
		err = client.Register(ctx, email, password)
	} else {
		err = client.Login(ctx, email, password)
	}
	if err != nil {
		logger.Debug("authentication failed", "error", err)
		return errors.New(describe(err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", email, client.State())
	return nil
}

func logoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session and notify the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, _, err := opts.openClient(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Logout(ctx); err != nil {
				return errors.New(describe(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func statusCmd(opts *globalOptions) *cobra.Command {
	var route string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the resolved session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, _, err := opts.openClient(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			state := client.State()
			fmt.Fprintf(out, "state: %s\n", state)

			has, err := client.HasCredentials(ctx)
			if err != nil {
				fmt.Fprintf(out, "credentials: unreadable (%v)\n", err)
			} else {
				fmt.Fprintf(out, "credentials: %t\n", has)
			}

			if route != "" {
				if redirect, ok := client.Guard().Decide(state, route); ok {
					fmt.Fprintf(out, "route %s: redirect to %s\n", route, redirect)
				} else {
					fmt.Fprintf(out, "route %s: allowed\n", route)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&route, "route", "", "Evaluate the route guard for this path")
	return cmd
}

func callCmd(opts *globalOptions) *cobra.Command {
	var (
		data    string
		query   []string
		headers []string
	)
	cmd := &cobra.Command{
		Use:   "call METHOD PATH",
		Short: "Send an authenticated request through the gateway",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := goSession.Request{
				Method: strings.ToUpper(args[0]),
				Path:   args[1],
			}

			if len(query) > 0 {
				req.Query = url.Values{}
				for _, kv := range query {
					k, v, _ := strings.Cut(kv, "=")
					req.Query.Add(k, v)
				}
			}
			for _, h := range headers {
				k, v, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("invalid header %q, want Name: value", h)
				}
				if req.Header == nil {
					req.Header = make(map[string][]string)
				}
				req.Header.Add(strings.TrimSpace(k), strings.TrimSpace(v))
			}
			if data != "" {
				if !json.Valid([]byte(data)) {
					return errors.New("--data must be valid JSON")
				}
				req.Body = []byte(data)
				if req.Header == nil {
					req.Header = make(map[string][]string)
				}
				req.Header.Set("Content-Type", "application/json")
			}

			ctx := cmd.Context()
			client, _, err := opts.openClient(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.Do(ctx, req)
			if err != nil {
				return errors.New(describe(err))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status: %d\n", res.Status)
			var pretty bytes.Buffer
			if json.Indent(&pretty, res.Body, "", "  ") == nil {
				fmt.Fprintln(out, pretty.String())
			} else if len(res.Body) > 0 {
				fmt.Fprintln(out, string(res.Body))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "Query parameter key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra header \"Name: value\" (repeatable)")
	return cmd
}

func lintCmd(opts *globalOptions) *cobra.Command {
	var failOn string
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Validate the configuration and report risky settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			floor, err := parseSeverity(failOn)
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			out := cmd.OutOrStdout()
			result := cfg.Lint()
			if len(result) == 0 {
				fmt.Fprintln(out, "no findings")
				return nil
			}
			for _, w := range result {
				fmt.Fprintf(out, "%-5s %-34s %s\n", w.Severity, w.Code, w.Message)
			}
			return result.AsError(floor)
		},
	}
	cmd.Flags().StringVar(&failOn, "fail-on", "high", "Exit non-zero at or above this severity (info, warn, high)")
	return cmd
}

func parseSeverity(s string) (goSession.LintSeverity, error) {
	switch strings.ToLower(s) {
	case "info":
		return goSession.LintInfo, nil
	case "warn", "warning":
		return goSession.LintWarn, nil
	case "high":
		return goSession.LintHigh, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}

// describe turns a client error into one line for the terminal. Server
// validation details are appended when present.
func describe(err error) string {
	msg := goSession.UserMessage(err)
	var se *goSession.StatusError
	if errors.As(err, &se) && len(se.Details) > 0 {
		parts := make([]string, 0, len(se.Details))
		for k, v := range se.Details {
			parts = append(parts, fmt.Sprintf("%s: %v", k, v))
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	return msg
}
