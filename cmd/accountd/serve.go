package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/internal/logging"
	"github.com/MrEthical07/goAccount/mail"
	promexport "github.com/MrEthical07/goAccount/metrics/export/prometheus"
	"github.com/MrEthical07/goAccount/middleware"
	"github.com/MrEthical07/goAccount/store/memory"
	"github.com/MrEthical07/goAccount/store/postgres"
	"github.com/MrEthical07/goAccount/web"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the account pages",
		Long: `Start the HTTP server for registration, login, password reset, and
email verification. Secrets may be supplied through ACCOUNTD_LINK_SECRET and
ACCOUNTD_REMEMBER_KEY.`,
		RunE: runServe,
	}

	f := cmd.Flags()
	f.String("addr", ":8080", "listen address")
	f.String("base-url", "http://localhost:8080", "absolute origin used in mailed links")
	f.Bool("trust-forwarded-for", false, "take the client IP from X-Forwarded-For")
	f.Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	f.String("log-level", "info", "log level: debug, info, warn, error")
	f.String("log-format", "json", "log format: json or text")
	f.String("redis-addr", "localhost:6379", "redis address")
	f.Int("redis-db", 0, "redis database")
	f.String("store", "memory", "account store: memory or postgres")
	f.String("database-url", "", "postgres connection string")
	f.Bool("remember-me", true, "enable persistent login tokens")
	f.Bool("secure-cookies", true, "mark cookies Secure")
	f.Bool("mail-log-links", false, "log link URLs of outgoing mail (development only)")
	f.Bool("audit", false, "emit audit events")
	f.String("audit-format", "log", "audit output: log or json")
	f.Bool("metrics", true, "enable in-process counters and /metrics")
	f.Bool("latency-histograms", false, "record session resolve latency")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger := logging.SetDefault(logging.Options{
		Service: "accountd",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineCfg, err := cfg.engineConfig()
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()

	accounts, closeStore, err := openAccountStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sink, err := auditSink(cfg, logger, os.Stdout)
	if err != nil {
		return err
	}

	engine, err := goAccount.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithAccountStore(accounts).
		WithMailer(mail.LogMailer{Logger: logger, IncludeLinks: cfg.Mail.LogLinks}).
		WithLogger(logger).
		WithAuditSink(sink).
		Build()
	if err != nil {
		return oops.Code("ENGINE_BUILD_FAILED").Wrap(err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	for _, warning := range report.Warnings {
		logger.Warn("security posture", slog.String("warning", warning))
	}

	cookies := middleware.DefaultCookies()
	cookies.Secure = cfg.Cookies.Secure

	server, err := web.New(engine, web.Options{
		Cookies:           cookies,
		TrustForwardedFor: cfg.TrustForwardedFor,
		Logger:            logger,
	})
	if err != nil {
		return oops.Code("WEB_INIT_FAILED").Wrap(err)
	}

	mux := http.NewServeMux()
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", promexport.NewCollector(engine).Handler())
	}
	mux.Handle("/", server.Handler())

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.Addr), slog.String("store", cfg.Store.Driver))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}

// openAccountStore returns the configured store and its release func.
func openAccountStore(ctx context.Context, cfg serverConfig) (goAccount.AccountStore, func(), error) {
	switch cfg.Store.Driver {
	case "", "memory":
		return memory.New(), func() {}, nil
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, nil, oops.Code("CONFIG_INVALID").Errorf("store.database_url is required for the postgres store")
		}
		pool, err := postgres.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(pool), pool.Close, nil
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").With("driver", cfg.Store.Driver).Errorf("unknown account store %q", cfg.Store.Driver)
	}
}

// auditSink picks the audit destination named by cfg.Audit.Format.
func auditSink(cfg serverConfig, logger *slog.Logger, w io.Writer) (goAccount.AuditSink, error) {
	switch strings.ToLower(cfg.Audit.Format) {
	case "", "log":
		return goAccount.NewSlogSink(logger), nil
	case "json":
		return goAccount.NewJSONWriterSink(w), nil
	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("audit_format", cfg.Audit.Format).
			Errorf("unknown audit format %q", cfg.Audit.Format)
	}
}
