package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/skyrockethq/skyrocket-trader/internal/api"
	"github.com/skyrockethq/skyrocket-trader/internal/backtest"
	"github.com/skyrockethq/skyrocket-trader/internal/config"
	"github.com/skyrockethq/skyrocket-trader/internal/db"
	"github.com/skyrockethq/skyrocket-trader/internal/exchange"
	"github.com/skyrockethq/skyrocket-trader/internal/livetrade"
	"github.com/skyrockethq/skyrocket-trader/internal/marketdata"
	"github.com/skyrockethq/skyrocket-trader/internal/notifier"
	"github.com/skyrockethq/skyrocket-trader/internal/scheduler"
	"github.com/skyrockethq/skyrocket-trader/internal/sentiment"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "skyrocket-trader",
		Short: "Consensus-driven day trading bot",
		Long: `Skyrocket Trader evaluates watchlist symbols with a three-indicator
consensus engine, backtests the strategy over stored history, and runs a
live trade cycle against the broker.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")

	rootCmd.AddCommand(newServeCmd(&configPath))
	rootCmd.AddCommand(newBacktestCmd(&configPath))
	rootCmd.AddCommand(newFetchCmd(&configPath))
	rootCmd.AddCommand(newMigrateCmd(&configPath))

	return rootCmd
}

// newServeCmd runs the HTTP API and the live trade scheduler together.
func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the live trade scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			if cfg.RunMigration {
				if err := runMigrations(ctx, cfg.DBConnStr); err != nil {
					return fmt.Errorf("failed to run migrations: %w", err)
				}
			}

			storage, err := openStorage(cfg)
			if err != nil {
				return err
			}

			n := buildNotifier(cfg)
			broker := exchange.NewWallexExchange(cfg.WallexAPIKey, n)
			fetcher := marketdata.NewFetcher(cfg.MarketDataBaseURL, storage)

			consensus := livetrade.NewRunner(storage, broker, n, cfg.Timeframe, cfg.OrderQuantity)

			var headlineTrader *livetrade.SentimentTrader
			if cfg.SentimentBaseURL != "" {
				client := sentiment.NewHTTPClient(cfg.SentimentBaseURL, cfg.SentimentAPIKey)
				headlineTrader = livetrade.NewSentimentTrader(storage, broker, client, client, cfg.Timeframe, cfg.InitialCash)
			}

			sched := scheduler.New(storage, fetcher, consensus, headlineTrader, cfg.Timeframe, cfg.FetchLimit, cfg.CycleInterval)
			go sched.Run(ctx)

			logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
			handler := api.NewHandler(storage, fetcher, logger, cfg.Timeframe)

			errCh := make(chan error, 1)
			go func() {
				log.Printf("API listening on %s", cfg.HTTPAddr)
				errCh <- handler.StartServer(cfg.HTTPAddr)
			}()

			select {
			case <-ctx.Done():
				log.Println("Shutting down...")
				return nil
			case err := <-errCh:
				return err
			}
		},
	}
}

func newBacktestCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest [SYMBOL]",
		Short: "Replay stored history for a symbol through the simulator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			ctx, cancel := signalContext()
			defer cancel()

			storage, err := openStorage(cfg)
			if err != nil {
				return err
			}

			symbol := strings.ToUpper(args[0])
			candles, err := storage.GetRecentCandles(ctx, symbol, cfg.Timeframe, limit)
			if err != nil {
				return fmt.Errorf("loading candles: %w", err)
			}

			result, err := backtest.Run(candles, symbol)
			if err != nil {
				return err
			}

			printBacktestResult(result)
			return nil
		},
	}

	cmd.Flags().Int("limit", 1000, "Maximum number of stored candles to replay")
	return cmd
}

func newFetchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [SYMBOL]",
		Short: "Download recent candles for a symbol into storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			storage, err := openStorage(cfg)
			if err != nil {
				return err
			}

			fetcher := marketdata.NewFetcher(cfg.MarketDataBaseURL, storage)
			symbol := strings.ToUpper(args[0])
			n, err := fetcher.FetchAndStore(ctx, symbol, cfg.Timeframe, cfg.FetchLimit)
			if err != nil {
				return err
			}

			log.Printf("Stored %d candles for %s %s", n, symbol, cfg.Timeframe)
			return nil
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database and apply the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.DBConnStr == "" {
				return fmt.Errorf("db_conn_str is required for migrations")
			}

			ctx, cancel := signalContext()
			defer cancel()

			return runMigrations(ctx, cfg.DBConnStr)
		},
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// openStorage connects to Postgres when configured, falling back to the
// in-memory store for dry runs.
func openStorage(cfg config.Config) (db.Storage, error) {
	if cfg.DBConnStr == "" {
		log.Println("No database configured, using in-memory storage")
		return db.NewMemory(), nil
	}

	storage, err := db.NewPostgres(cfg.DBConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Println("Connected to Postgres")
	return storage, nil
}

func buildNotifier(cfg config.Config) notifier.Notifier {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == "" {
		return notifier.Noop{}
	}
	return notifier.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
}

func printBacktestResult(result *backtest.Result) {
	s := result.Summary
	log.Printf("Backtest Results (%s):", result.Symbol)
	log.Printf("  Balance: %.2f -> %.2f (%.2f%%)", s.InitialBalance, s.FinalBalance, s.TotalReturnPct)
	log.Printf("  Trades=%d, WinRate=%.2f%%", s.TotalTrades, s.WinRate)

	maxTrades := 10
	for i, tr := range result.Trades {
		if i >= maxTrades {
			log.Printf("  ... and %d more trades", len(result.Trades)-maxTrades)
			break
		}
		log.Printf("  Trade %d: Entry=%.2f at %s, Exit=%.2f at %s (%s), PnL=%.2f",
			i+1, tr.EntryPrice, tr.EntryTime.Format(time.RFC3339),
			tr.ExitPrice, tr.ExitTime.Format(time.RFC3339), tr.ExitReason, tr.PnLAmount)
	}

	if out, err := json.MarshalIndent(s, "", "  "); err == nil {
		fmt.Println(string(out))
	}
}

// runMigrations creates the database if it doesn't exist and runs the schema.sql script
func runMigrations(ctx context.Context, connStr string) error {
	log.Println("Running database migrations...")

	u, err := url.Parse(connStr)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return fmt.Errorf("database name not found in connection string")
	}

	// Connect to the postgres database to create ours if needed.
	baseConnStr := fmt.Sprintf("postgres://%s:%s@%s/postgres%s",
		u.User.Username(),
		func() string {
			p, _ := u.User.Password()
			return p
		}(),
		u.Host,
		func() string {
			if u.RawQuery != "" {
				return "?" + u.RawQuery
			}
			return ""
		}())

	baseDB, err := sql.Open("postgres", baseConnStr)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer baseDB.Close()

	var exists bool
	err = baseDB.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		log.Printf("Creating database %s...", dbName)
		_, err = baseDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName)))
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
	}

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	schemaSQL, err := os.ReadFile("scripts/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}

	if _, err := conn.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema.sql: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}
