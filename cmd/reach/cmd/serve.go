package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coursekit/reach/internal/core/config"
	"github.com/coursekit/reach/internal/core/db"
	"github.com/coursekit/reach/internal/rules"
	"github.com/coursekit/reach/internal/segment"
	"github.com/coursekit/reach/internal/server"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the segmentation HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "HTTP server host")
	serveCmd.Flags().Int("port", 8080, "HTTP server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Server.Port = port
	}

	if dbURL == "" {
		return fmt.Errorf("--db-url required")
	}
	database, err := db.Open(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	var migrationID string
	checkQuery := `SELECT migration_id FROM migrations WHERE migration_id = '001_initial_schema.sql'`
	err = database.Get(&migrationID, database.Rebind(checkQuery))
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("schema not migrated - run 'reach migrate' first")
		}
		return fmt.Errorf("failed to check migrations: %w", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	executor := segment.NewExecutor(database, segment.Limits{
		SampleSize:      cfg.Engine.SampleSize,
		ExportCap:       cfg.Engine.ExportCap,
		ResolvePageSize: cfg.Engine.ResolvePageSize,
		PreviewTimeout:  cfg.Engine.PreviewTimeout,
		BulkTimeout:     cfg.Engine.BulkTimeout,
	})
	service := segment.NewService(executor, rules.Guards{
		MaxDepth: cfg.Engine.MaxRuleDepth,
		MaxNodes: cfg.Engine.MaxRuleNodes,
	}, logger)
	store := segment.NewStore(queries)
	previewer := segment.NewPreviewer(store, service, cfg.Engine.PreviewCacheTTL)

	handler, err := server.New(server.Config{
		Service:   service,
		Store:     store,
		Previewer: previewer,
		BasePath:  cfg.Server.BasePath,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting reach API", "version", Version, "addr", addr)
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
