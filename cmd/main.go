package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"hermes/internal/adapters/config"
	"hermes/internal/adapters/errors/noop"
	"hermes/internal/adapters/errors/sentry"
	"hermes/internal/adapters/exchangefactory"
	"hermes/internal/adapters/kafka"
	"hermes/internal/adapters/postgres"
	redisadapter "hermes/internal/adapters/redis"
	"hermes/internal/adapters/telegram"
	"hermes/internal/consumers"
	"hermes/internal/events"
	"hermes/internal/metrics"
	pgrepo "hermes/internal/repository/postgres"
	redisrepo "hermes/internal/repository/redis"
	"hermes/pkg/crypto"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	// Databases
	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pgClient.Close()

	redisClient, err := redisadapter.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	encryptor, err := crypto.NewEncryptor(cfg.App.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to create encryptor: %v", err)
	}

	// Repositories
	jobRepo := pgrepo.NewJobRepository(pgClient.DB())
	subAccountRepo := pgrepo.NewSubAccountRepository(pgClient.DB(), encryptor)
	stopRepo := redisrepo.NewStopSignalRepository(redisClient.Client())

	// Exchange factory
	factory := exchangefactory.New(cfg.Exchanges, cfg.Arbitrage, subAccountRepo)

	// Kafka
	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
	defer producer.Close()

	publisher := events.NewPublisher(producer, log)

	jobConsumer := consumers.NewArbitrageConsumer(
		kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
			Topic:   kafka.TopicArbitrageJobs,
		}),
		jobRepo,
		stopRepo,
		factory,
		publisher,
		cfg.Arbitrage,
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := jobConsumer.Start(ctx); err != nil {
			log.Errorf("Arbitrage consumer stopped: %v", err)
		}
	}()

	if cfg.Telegram.Enabled {
		notifier, err := telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatIDs, log)
		if err != nil {
			log.Fatalf("Failed to create telegram notifier: %v", err)
		}

		notifConsumer := consumers.NewNotificationConsumer(
			kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers: cfg.Kafka.Brokers,
				GroupID: cfg.Kafka.GroupID + "-notifications",
				Topic:   kafka.TopicArbitrageJobCompleted,
			}),
			notifier,
			log,
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := notifConsumer.Start(ctx); err != nil {
				log.Errorf("Notification consumer stopped: %v", err)
			}
		}()
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg, pgClient, redisClient, log)
	}

	log.Info("System initialized successfully")

	waitForShutdown(ctx, cancel, errorTracker, log)

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Metrics server shutdown: %v", err)
		}
		shutdownCancel()
	}

	wg.Wait()
	log.Info("Shutdown complete")
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// startMetricsServer exposes /metrics
func startMetricsServer(cfg *config.Config, pg *postgres.Client, rdb *redisadapter.Client, log *logger.Logger) *http.Server {
	collector := metrics.NewCustomCollector(log, pg.DB(), rdb.Client())
	if err := metrics.RegisterCollector(collector); err != nil {
		log.Warnf("Failed to register custom collector: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:    cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		log.Infof("Metrics server listening on %s", cfg.Metrics.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Metrics server error: %v", err)
		}
	}()

	return srv
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, errorTracker errors.Tracker, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	cancel()

	if errorTracker != nil {
		if err := errorTracker.Flush(ctx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}
}
