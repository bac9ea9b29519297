package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/openbridge-io/slack-mcp-server/internal/domain/audit"
	"github.com/openbridge-io/slack-mcp-server/internal/domain/tool"
	"github.com/openbridge-io/slack-mcp-server/internal/infra/config"
	"github.com/openbridge-io/slack-mcp-server/internal/infra/credential"
	"github.com/openbridge-io/slack-mcp-server/internal/infra/nango"
	"github.com/openbridge-io/slack-mcp-server/internal/infra/slack"
	"github.com/openbridge-io/slack-mcp-server/internal/infra/sqlite"
	"github.com/openbridge-io/slack-mcp-server/internal/server"
	"github.com/openbridge-io/slack-mcp-server/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("slack-mcp-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}

	if *showHelp {
		printHelp(out)
		return 0
	}

	// Logging goes to stderr: stdout belongs to the stdio transport.
	logger := log.New(os.Stderr, "", log.LstdFlags)

	if err := serve(logger); err != nil {
		logger.Printf("fatal: %v", err)
		return 1
	}
	return 0
}

func serve(logger *log.Logger) error {
	// Load .env if present; deployments without one rely on real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var broker credential.Broker
	if cfg.HasBroker() {
		broker = nango.New(cfg.NangoBaseURL, cfg.NangoSecretKey,
			cfg.NangoConnectionID, cfg.NangoIntegrationID, cfg.HTTPTimeout)
	}
	resolver := credential.NewResolver(credential.Credential{
		Token:  cfg.SlackBotToken,
		TeamID: cfg.SlackTeamID,
	}, broker)

	connect := func(cred credential.Credential) tool.API {
		return slack.New(slack.DefaultBaseURL, cred.Token, cred.TeamID, cfg.HTTPTimeout)
	}

	registry := tool.NewRegistry()
	if err := tool.NewSlackToolset(resolver, connect).RegisterAll(registry); err != nil {
		return err
	}

	var auditSvc *audit.Service
	if cfg.AuditDBPath != "" {
		db, dbErr := sqlite.NewDB(cfg.AuditDBPath)
		if dbErr != nil {
			return dbErr
		}
		defer db.Close() //nolint:errcheck
		if migrateErr := sqlite.MigrateUp(db); migrateErr != nil {
			return migrateErr
		}
		auditSvc = audit.NewService(db)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg, registry, auditSvc, logger).Run(ctx)
}

func printHelp(out io.Writer) {
	helpText := `slack-mcp-server - Slack workspace tools over MCP

Usage:
  slack-mcp-server [options]

Options:
  --version    Show version information
  --help       Show this help message

Environment:
  SLACK_BOT_TOKEN        Slack bot token (direct credential path)
  SLACK_TEAM_ID          Slack workspace/team id
  NANGO_BASE_URL         Nango broker base URL
  NANGO_SECRET_KEY       Nango secret key
  NANGO_CONNECTION_ID    Nango connection id
  NANGO_INTEGRATION_ID   Nango integration (provider config) key
  SLACK_MCP_TRANSPORT    "stdio" (default) or "http"
  SLACK_MCP_HTTP_ADDR    Listen address for the http transport (default :8080)
  SLACK_MCP_AUDIT_DB     SQLite path for the invocation audit trail (optional)
  SLACK_MCP_HTTP_TIMEOUT Outbound call ceiling, e.g. "30s" (default 30s)
  SLACK_MCP_CONFIG       Optional YAML config file layered under env vars

Examples:
  SLACK_BOT_TOKEN=xoxb-... SLACK_TEAM_ID=T012345 slack-mcp-server
  SLACK_MCP_TRANSPORT=http SLACK_MCP_HTTP_ADDR=:8080 slack-mcp-server`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
