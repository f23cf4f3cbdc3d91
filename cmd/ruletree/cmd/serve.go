package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/ruletree/internal/core/api"
	"github.com/solatis/ruletree/internal/core/config"
	"github.com/solatis/ruletree/internal/core/db"
	"github.com/solatis/ruletree/internal/core/httpapi"
	"github.com/solatis/ruletree/internal/core/server"
	"github.com/solatis/ruletree/internal/core/service"
	"github.com/solatis/ruletree/internal/core/store"
	"github.com/solatis/ruletree/internal/subject"
)

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	host     string
	grpcPort int
	httpPort int
	derived  string
}

// NewServeCommand creates the serve command, which runs the gRPC and HTTP
// APIs over the configured database.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Start the gRPC and HTTP rule APIs",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "listen host")
	cmd.Flags().IntVar(&opts.grpcPort, "grpc-port", 0, "gRPC server port")
	cmd.Flags().IntVar(&opts.httpPort, "http-port", 0, "HTTP server port")
	cmd.Flags().StringVar(&opts.derived, "derived", "", "YAML file of derived attribute expressions")

	return cmd
}

func runServe(cmd *cobra.Command, rootOpts *RootOptions, opts *serveOptions) error {
	ctx := commandContext(cmd)

	cfg, err := rootOpts.loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = opts.host
	}
	if cmd.Flags().Changed("grpc-port") {
		cfg.Server.GRPCPort = opts.grpcPort
	}
	if cmd.Flags().Changed("http-port") {
		cfg.Server.HTTPPort = opts.httpPort
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, err := setupLogger(cmd, cfg)
	if err != nil {
		return err
	}

	derived, err := loadDerived(opts.derived)
	if err != nil {
		return err
	}

	database, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.RequireMigrations(ctx, database); err != nil {
		return err
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	rules := service.New(store.NewSQLStore(queries), service.Options{
		MaxItems: cfg.Engine.MaxItems,
		MaxCost:  cfg.Engine.MaxCost,
		CacheTTL: cfg.Cache.TTL,
		Derived:  derived,
		Logger:   logger,
	})

	handler, err := api.NewRuleServer(rules)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	grpcServer, err := server.NewGRPCServer(cfg, handler, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           httpapi.New(rules, database, logger, cfg.Server.RequestTimeout),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.RequestTimeout,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("starting ruletree",
		slog.String("version", Version),
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("http_addr", cfg.HTTPAddr()),
	)

	errChan := make(chan error, 2)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var serveErr error
	select {
	case serveErr = <-errChan:
		logger.Error("server stopped", slog.Any("error", serveErr))
	case sig := <-sigChan:
		logger.Info("shutting down gracefully", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down gracefully", slog.Any("reason", ctx.Err()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", slog.Any("error", err))
	}
	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("grpc shutdown", slog.Any("error", err))
	}
	return serveErr
}

// loadDerived compiles the derived attribute file at path. An empty path
// means no derived attributes.
func loadDerived(path string) (*subject.Derived, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read derived attributes: %w", err)
	}
	return subject.LoadDerived(data)
}
