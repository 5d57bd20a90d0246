// Command datachat serves the conversational data agent over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/quorvus/datachat/config"
	"github.com/quorvus/datachat/executor"
	"github.com/quorvus/datachat/logging"
	"github.com/quorvus/datachat/memory"
	"github.com/quorvus/datachat/model"
	"github.com/quorvus/datachat/model/anthropic"
	"github.com/quorvus/datachat/model/openai"
	"github.com/quorvus/datachat/server"
	"github.com/quorvus/datachat/session"
	"github.com/quorvus/datachat/tool"
	"github.com/quorvus/datachat/tool/fiscalweek"
	"github.com/quorvus/datachat/tool/warehouse"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:          "datachat",
		Short:        "Conversational agent over tabular data",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			if addr != "" {
				cfg.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides DATACHAT_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	m, err := buildModel(cfg)
	if err != nil {
		return err
	}

	tools := []tool.Tool{fiscalweek.New()}
	var pool *pgxpool.Pool
	if cfg.WarehouseDSN != "" {
		pool, err = pgxpool.New(ctx, cfg.WarehouseDSN)
		if err != nil {
			return fmt.Errorf("warehouse pool: %w", err)
		}
		defer pool.Close()
		tools = append(tools, warehouse.New(pool, func(o *warehouse.Options) {
			if len(cfg.WarehouseSchemas) > 0 {
				o.Schemas = cfg.WarehouseSchemas
			}
		}))
		logger.Info("warehouse tool enabled", "schemas", cfg.WarehouseSchemas)
	} else {
		logger.Warn("WAREHOUSE_DSN not set, warehouse tool disabled")
	}

	store := session.NewStore(func(o *memory.Options) {
		o.MaxTokens = cfg.MemoryMaxTokens
	})

	srv, err := server.New(server.Config{
		Addr:     cfg.Addr,
		Store:    store,
		Executor: executor.New(m, tools, func(o *executor.Options) { o.Logger = logger }),
		Budget:   cfg.Budget,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("shutting down", "reason", "context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildModel(cfg config.Config) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.New(func(o *openai.Options) {
			if cfg.ModelName != "" {
				o.Model = cfg.ModelName
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropic.New(func(o *anthropic.Options) {
			o.APIKey = cfg.AnthropicAPIKey
			if cfg.ModelName != "" {
				o.Model = anthropicsdk.Model(cfg.ModelName)
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
