package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nft_marketplace/api"
	"nft_marketplace/internal/bank"
	"nft_marketplace/internal/config"
	"nft_marketplace/internal/database"
	"nft_marketplace/internal/events"
	"nft_marketplace/internal/marketplace"
	"nft_marketplace/internal/nft"
)

func main() {
	configPath := pflag.String("config", "", "path to the YAML config file")
	dev := pflag.Bool("dev", false, "expose the development chain endpoints")
	pflag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadAndValidate(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *dev {
		cfg.Dev.Enabled = true
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		panic(fmt.Errorf("error trying to build logger: %v", err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("marketplace stopped", zap.Error(err))
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	// The development chain backs asset ownership and payments.
	registry := nft.NewRegistry()
	ledger := bank.NewLedger()

	recent := events.NewRecorder(*cfg.Events.Recent)
	sinks := events.Fanout{recent}
	if cfg.Events.Log {
		sinks = append(sinks, events.NewLogSink(logger))
	}
	if cfg.Events.Webhook.URL != "" {
		webhook := events.NewWebhook(events.WebhookConfig{
			URL:        cfg.Events.Webhook.URL,
			Timeout:    cfg.Events.Webhook.Timeout,
			MaxRetries: *cfg.Events.Webhook.MaxRetries,
			QueueSize:  cfg.Events.Webhook.QueueSize,
		}, logger)
		webhook.Start(ctx)
		defer webhook.Close()
		sinks = append(sinks, webhook)
	}
	var hub *events.Hub
	if cfg.Events.Websocket.Enabled {
		hub = events.NewHub(cfg.Events.Websocket.Buffer, logger)
		sinks = append(sinks, hub)
	}

	svc := marketplace.NewService(marketplace.Options{
		Address:         common.HexToAddress(cfg.Marketplace.Address),
		ReentrancyGuard: cfg.Marketplace.ReentrancyGuard,
	}, store, registry, ledger, sinks, logger)

	deps := api.Deps{
		Service: svc,
		Recent:  recent,
		Hub:     hub,
		HubPath: cfg.Events.Websocket.Path,
		Logger:  logger,
	}
	if cfg.Dev.Enabled {
		deps.Registry = registry
		deps.Bank = ledger
	}

	r := gin.Default()
	api.InitRoutes(r, deps)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("marketplace listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("marketplace", svc.Address().Hex()),
			zap.String("storage", cfg.Storage.Driver),
			zap.Bool("dev", cfg.Dev.Enabled))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error trying to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (marketplace.Storage, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := database.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.DriverPostgres:
		store, err := database.OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return marketplace.NewLocalStorage(), func() {}, nil
	}
}
