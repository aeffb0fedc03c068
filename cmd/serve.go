package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/pqfbot/internal/api"
	"github.com/pqfbot/internal/bot"
	"github.com/pqfbot/internal/chat"
	"github.com/pqfbot/internal/classify"
	"github.com/pqfbot/internal/config"
	"github.com/pqfbot/internal/ledger"
	"github.com/pqfbot/internal/logging"
)

// slackChat satisfies the orchestrator's chat surface by combining the
// message client with the thread fetcher.
type slackChat struct {
	*chat.Client
	*chat.Fetcher
}

// ServeCommand returns the CLI command for starting the bot server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Slack events server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the events server (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Human-readable log output",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}

	logging.Setup(cfg.Log.Level, c.Bool("pretty"))

	ctx := context.Background()

	slackAPI := chat.NewSlackAPI(cfg.Slack.BotToken)
	chatClient := slackChat{
		Client:  chat.NewClient(slackAPI),
		Fetcher: chat.NewFetcher(slackAPI),
	}

	completer, err := classify.NewGeminiCompleter(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Temperature)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	classifier := classify.NewClassifier(completer)

	creds := ledger.Credentials{
		File: cfg.Sheets.CredentialsFile,
		B64:  cfg.Sheets.CredentialsB64,
	}
	mainSheets, err := ledger.NewSheetsClient(ctx, creds, cfg.Sheets.SpreadsheetID)
	if err != nil {
		return fmt.Errorf("failed to open main spreadsheet: %w", err)
	}
	bugSheets, err := ledger.NewSheetsClient(ctx, creds, cfg.Sheets.BugSpreadsheetID)
	if err != nil {
		return fmt.Errorf("failed to open bug spreadsheet: %w", err)
	}

	store := ledger.NewStore(mainSheets, mainSheets)
	bugs := ledger.NewBugStore(bugSheets, bugSheets)

	orch := bot.NewOrchestrator(cfg, chatClient, classifier, store, bugs)
	filter := bot.NewEventFilter(10 * time.Minute)

	log.Info().Int("port", cfg.Server.Port).Msg("Starting PQF bot server")
	server := api.NewServer(cfg.Server.Port, cfg.Slack.SigningSecret, filter, orch)
	return server.Start()
}
