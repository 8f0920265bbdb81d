// Command pomoauthd serves the pomoAuth HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pomoAuth "github.com/MrEthical07/pomoAuth"
	"github.com/MrEthical07/pomoAuth/account"
	"github.com/MrEthical07/pomoAuth/accountdb"
	"github.com/MrEthical07/pomoAuth/internal/config"
	"github.com/MrEthical07/pomoAuth/internal/httpapi"
	"github.com/MrEthical07/pomoAuth/internal/logging"
	"github.com/MrEthical07/pomoAuth/mail"
	promexport "github.com/MrEthical07/pomoAuth/metrics/export/prometheus"
	"github.com/MrEthical07/pomoAuth/oauth"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		envFile = flag.String("env", ".env", "dotenv file read before the environment")
		sqlite  = flag.String("sqlite", "", "use a sqlite database at this path instead of postgres")
		audit   = flag.Bool("audit", false, "write audit events as JSON lines to stderr")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := logging.New(cfg.LogLevel, os.Stdout)

	if err := run(cfg, logger, *sqlite, *audit); err != nil {
		logger.Error("pomoauthd stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, sqlitePath string, audit bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// -------- STORES --------
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	accounts, closeAccounts, err := openAccounts(ctx, cfg, sqlitePath, logger)
	if err != nil {
		return err
	}
	defer closeAccounts()

	// -------- MAIL --------
	var sender mail.Sender
	if len(cfg.KafkaBrokers) > 0 {
		w, err := mail.NewKafkaWriter(cfg.KafkaBrokers, cfg.MailTopic)
		if err != nil {
			return err
		}
		ks := mail.NewKafkaSender(w, 5*time.Second)
		defer ks.Close()
		sender = ks
		logger.Info("mail via kafka", "topic", cfg.MailTopic, "brokers", cfg.KafkaBrokers)
	}

	// -------- ENGINE --------
	engineCfg := cfg.Engine()
	b := pomoAuth.New().
		WithRedis(rdb).
		WithAccountRepository(accounts).
		WithLogger(logger)
	if sender != nil {
		b = b.WithMailSender(sender)
	}
	var auditSink *pomoAuth.JSONWriterSink
	if audit {
		engineCfg.Audit.Enabled = true
		auditSink = pomoAuth.NewJSONWriterSink(os.Stderr)
		b = b.WithAuditSink(auditSink)
	}
	clients, err := oauthClients(cfg)
	if err != nil {
		return err
	}
	for _, c := range clients {
		b = b.WithOAuthClient(c)
	}

	engine, err := b.WithConfig(engineCfg).Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer func() {
		engine.Close()
		if err := auditSink.Err(); err != nil {
			logger.Error("audit log incomplete", "error", err)
		}
	}()

	if rtt, err := engine.Ping(ctx); err != nil {
		logger.Warn("revocation store unreachable at startup", "addr", cfg.RedisAddr, "error", err)
	} else {
		logger.Info("revocation store ready", "addr", cfg.RedisAddr, "rtt", rtt)
	}

	// -------- HTTP --------
	deps := httpapi.Deps{
		Engine:        engine,
		Logger:        logger,
		SecureCookies: cfg.SecureCookies,
	}
	if cfg.MetricsEnabled {
		deps.Metrics = promexport.NewExporter(engine).Handler()
	}
	if cfg.RateLimitRPS > 0 {
		limiter := httpapi.NewIPLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 0, logger)
		defer limiter.Stop()
		deps.Limiter = limiter
	}

	e := httpapi.New(deps)
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}

func openAccounts(ctx context.Context, cfg config.Config, sqlitePath string, logger *slog.Logger) (account.Repository, func(), error) {
	var dbCfg accountdb.Config
	switch {
	case sqlitePath != "":
		dbCfg = accountdb.Config{Driver: accountdb.DriverSQLite, DSN: sqlitePath}
	case cfg.HasDatabase():
		dbCfg = cfg.Database()
		dbCfg.MaxOpenConns = 20
		dbCfg.MaxIdleConns = 5
		dbCfg.ConnMaxLifetime = 30 * time.Minute
	default:
		logger.Warn("no database configured, accounts are kept in memory")
		return account.NewMemoryRepository(), func() {}, nil
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := accountdb.Open(initCtx, dbCfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	logger.Info("account database ready", "driver", string(dbCfg.Driver))
	return accountdb.New(db), closeFn, nil
}

func oauthClients(cfg config.Config) ([]oauth.Client, error) {
	var out []oauth.Client
	if cfg.Google.Enabled() {
		c, err := oauth.NewGoogleClient(oauth.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURI,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if cfg.Yandex.Enabled() {
		c, err := oauth.NewYandexClient(oauth.Config{
			ClientID:     cfg.Yandex.ClientID,
			ClientSecret: cfg.Yandex.ClientSecret,
			RedirectURL:  cfg.Yandex.RedirectURI,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
