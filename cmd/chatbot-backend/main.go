package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chatbuddy/chatbot-backend/chatservice"
	"github.com/chatbuddy/chatbot-backend/internal/config"
	"github.com/chatbuddy/chatbot-backend/internal/factory"
	"github.com/chatbuddy/chatbot-backend/internal/logger"
	"github.com/chatbuddy/chatbot-backend/internal/model"
	storepg "github.com/chatbuddy/chatbot-backend/internal/store/postgres"
)

var rootCmd = &cobra.Command{
	Use:   "chatbot-backend",
	Short: "Chat-assistant backend service",
}

func main() {
	// Optional .env file for local development; real deployments set env vars.
	_ = godotenv.Load()

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return chatservice.Run()
		},
	}
	rootCmd.AddCommand(serveCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	}
	rootCmd.AddCommand(migrateCmd)

	var seedFile string
	seedCmd := &cobra.Command{
		Use:   "seed-responses",
		Short: "Provision the canned-response table from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeedResponses(cmd.Context(), seedFile)
		},
	}
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "JSON file of {query: response} pairs (required)")
	_ = seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)

	// No subcommand starts the server, matching the original single-binary behavior.
	rootCmd.RunE = serveCmd.RunE

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMigrate(ctx context.Context) error {
	log := logger.New("chatbot-migrate")

	cfg, err := config.New()
	if err != nil {
		return err
	}

	switch cfg.DBDriver {
	case "postgres":
		db, err := storepg.Open(cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		if err := storepg.EnsureSchema(ctx, db); err != nil {
			return err
		}
	case "sqlite":
		// the sqlite driver applies its schema on open
		if _, err := factory.NewStore(ctx, cfg, log); err != nil {
			return err
		}
	}

	log.Info().Str("driver", cfg.DBDriver).Msg("schema applied")
	return nil
}

func runSeedResponses(ctx context.Context, path string) error {
	log := logger.New("chatbot-seed")

	cfg, err := config.New()
	if err != nil {
		return err
	}
	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var pairs map[string]string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for query, response := range pairs {
		// lookups are on the lower-cased query, so keys are normalized here
		cr := &model.CannedResponse{Query: strings.ToLower(query), Response: response}
		if err := st.Responses().Put(ctx, cr); err != nil {
			return fmt.Errorf("seed %q: %w", query, err)
		}
	}

	log.Info().Int("count", len(pairs)).Msg("canned responses seeded")
	return nil
}
