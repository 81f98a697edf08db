// ABOUTME: Subcommands for hubspot-gateway: serve, stdio, health, sandbox seed and audit
// ABOUTME: Tokens are read from flags or HUBSPOT_ACCESS_TOKEN and never printed

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/hubspot-gateway/internal/config"
	"github.com/2389/hubspot-gateway/internal/credential"
	"github.com/2389/hubspot-gateway/internal/crm/sandbox"
	"github.com/2389/hubspot-gateway/internal/gateway"
	"github.com/2389/hubspot-gateway/internal/mcp"
	"github.com/2389/hubspot-gateway/internal/store"
)

// EnvAccessToken supplies the token for commands that act as a single tenant.
const EnvAccessToken = "HUBSPOT_ACCESS_TOKEN"

func tokenFrom(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(EnvAccessToken)
}

func newServeCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := load()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, path)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, configPath string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	if configPath == "" {
		configPath = "(defaults)"
	}
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Provider:  ")
	cyan.Print(cfg.CRM.Provider)
	if cfg.CRM.Provider == config.ProviderSandbox {
		gray.Printf(" (%s)", cfg.Database.Path)
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Printf("Dedupe:    %s\n", cfg.Dedupe.Mode)
	if cfg.Debug.Echo {
		yellow.Println("    ! debug echo endpoint enabled")
	}
	fmt.Println()

	logger.Info("starting hubspot-gateway",
		"http_addr", cfg.Server.HTTPAddr,
		"provider", cfg.CRM.Provider,
		"audit", cfg.Audit.Enabled,
	)

	gw, err := gateway.New(cfg, logger, gateway.WithVersion(version))
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func newStdioCommand(load configLoader) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Serve the CRM tools over MCP stdio for a single token",
		Long: "Serve the CRM tools to a local MCP client over stdin/stdout. The token from\n" +
			"--token or $" + EnvAccessToken + " is sent as the access token header and wins over any\n" +
			"accessToken in the tool arguments. Argument tokens apply only when neither is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			return runStdio(cmd.Context(), cfg, tokenFrom(token))
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "HubSpot private app token (default $"+EnvAccessToken+")")
	return cmd
}

func runStdio(ctx context.Context, cfg *config.Config, token string) error {
	// stdout carries MCP frames
	logger := setupLogger(cfg.Logging, os.Stderr)
	log := logger.With("component", "stdio")

	var s *store.SQLiteStore
	if cfg.NeedsStore() {
		var err error
		if s, err = store.NewSQLiteStore(cfg.Database.Path); err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer s.Close()
	}

	factory, err := gateway.NewFactory(cfg, s)
	if err != nil {
		return err
	}
	d := gateway.NewDispatcher(cfg, factory, s, logger)

	if token == "" {
		log.Warn("no token configured; tool calls must pass accessToken")
	}
	log.Info("serving MCP over stdio", "provider", cfg.CRM.Provider)
	return mcp.ServeStdio(ctx, d, token, version)
}

func newHealthCommand(load configLoader) *cobra.Command {
	var ready bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running gateway's health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			path := "/health"
			if ready {
				path = "/health/ready"
			}
			return runHealth(cmd.Context(), cmd.OutOrStdout(), healthURL(cfg.Server.HTTPAddr, path))
		},
	}
	cmd.Flags().BoolVar(&ready, "ready", false, "query the readiness probe instead of liveness")
	return cmd
}

// healthURL turns a listen address into a URL a local client can dial.
func healthURL(addr, path string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + path
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + path
}

func runHealth(ctx context.Context, out io.Writer, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, body)
	}

	fmt.Fprintln(out, string(body))
	return nil
}

func newSandboxCommand(load configLoader) *cobra.Command {
	sandboxCmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Manage the local sandbox CRM",
	}

	var file, token string
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a YAML fixture into the sandbox tenant for a token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			return runSeed(cmd.Context(), cmd.OutOrStdout(), cmd.InOrStdin(), cfg, file, tokenFrom(token))
		},
	}
	seedCmd.Flags().StringVarP(&file, "file", "f", "-", "fixture file, - for stdin")
	seedCmd.Flags().StringVar(&token, "token", "", "token whose tenant receives the data (default $"+EnvAccessToken+")")

	sandboxCmd.AddCommand(seedCmd)
	return sandboxCmd
}

func runSeed(ctx context.Context, out io.Writer, in io.Reader, cfg *config.Config, file, token string) error {
	if token == "" {
		return fmt.Errorf("a token is required: pass --token or set %s", EnvAccessToken)
	}
	cred := credential.New(token, credential.SourceHeader)

	r := in
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("opening fixture: %w", err)
		}
		defer f.Close()
		r = f
	}

	fixture, err := sandbox.LoadFixture(r)
	if err != nil {
		return err
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	res, err := sandbox.Seed(ctx, s, cred, fixture, time.Now())
	if err != nil {
		return fmt.Errorf("seeding sandbox: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Fprintf(out, "  ✓ Seeded tenant %s\n", cred.Fingerprint())
	fmt.Fprintf(out, "    companies:   %d\n", res.Companies)
	fmt.Fprintf(out, "    contacts:    %d\n", res.Contacts)
	fmt.Fprintf(out, "    engagements: %d\n", res.Engagements)
	return nil
}

func newAuditCommand(load configLoader) *cobra.Command {
	var (
		limit  int
		action string
		token  string
		since  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent entries from the action log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}

			filter := store.ActionFilter{Limit: limit}
			if action != "" {
				filter.Action = &action
			}
			if t := tokenFrom(token); t != "" {
				fp := credential.New(t, credential.SourceHeader).Fingerprint()
				filter.Tenant = &fp
			}
			if since > 0 {
				from := time.Now().Add(-since)
				filter.Since = &from
			}
			return runAudit(cmd.Context(), cmd.OutOrStdout(), cfg, filter)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum entries to show")
	cmd.Flags().StringVar(&action, "action", "", "only show this action")
	cmd.Flags().StringVar(&token, "token", "", "only show the tenant for this token")
	cmd.Flags().DurationVar(&since, "since", 0, "only show entries newer than this, e.g. 24h")
	return cmd
}

func runAudit(ctx context.Context, out io.Writer, cfg *config.Config, filter store.ActionFilter) error {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	entries, err := s.ListActionLog(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing action log: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTENANT\tACTION\tSTATUS\tKIND\tDURATION")
	for _, e := range entries {
		tenant := e.Tenant
		if tenant == "" {
			tenant = "-"
		}
		kind := e.Kind
		if kind == "" {
			kind = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.Timestamp.Local().Format(time.DateTime), tenant, e.Action, e.Status, kind, e.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}
