package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sjsage522/carlistingworker/config"
	"sjsage522/carlistingworker/console"
	"sjsage522/carlistingworker/helpers"
	"sjsage522/carlistingworker/internal/dedup"
	"sjsage522/carlistingworker/internal/source"
	"sjsage522/carlistingworker/logger"
	"sjsage522/carlistingworker/services/cache"
	"sjsage522/carlistingworker/services/notifier"
	"sjsage522/carlistingworker/services/publisher"
	"sjsage522/carlistingworker/services/worker"
	"sjsage522/carlistingworker/storage"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("poll_interval", cfg.PollInterval).
		Strs("sources", cfg.EnabledSources).
		Str("ledger", cfg.LedgerBackend).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	doc, err := services.State.Load()
	if err != nil {
		log.Fatal().Err(err).Str("path", services.State.Path()).Msg("Failed to load state")
	}

	// Create sources
	sources := source.CreateSources(cfg, services.Cache, services.Fetcher)
	if len(sources) == 0 {
		log.Fatal().Msg("No sources were created")
	}

	var storeOpts []dedup.Option
	if services.Cache != nil {
		storeOpts = append(storeOpts, dedup.WithCache(services.Cache, cfg.SeenTTL))
	}

	workerOpts := []worker.Option{worker.WithLedger(services.Ledger)}
	if cfg.ErrorLogFile != "" {
		workerOpts = append(workerOpts, worker.WithReporter(helpers.NewLogger(cfg.ErrorLogFile)))
	}

	w := worker.NewWorker(
		worker.Track(sources, storeOpts...),
		doc.Searches,
		services.Notifier,
		cfg.PollInterval,
		workerOpts...,
	)
	w.Restore(ctx)

	log.Info().
		Int("source_count", len(sources)).
		Int("search_count", len(doc.Searches)).
		Msg("Created worker")

	workerDone := make(chan error, 1)
	if cfg.Console {
		session := console.NewSession(console.New(os.Stdin, os.Stdout), w, services.State)
		go func() {
			workerDone <- session.Run(ctx)
		}()
	} else {
		if len(doc.Searches) == 0 {
			log.Fatal().Str("path", services.State.Path()).Msg("No searches configured, run once with CONSOLE=true")
		}
		go func() {
			log.Info().Msg("Starting car listing worker")
			workerDone <- w.Start(ctx)
		}()
	}

	// Wait for shutdown signal or worker exit
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()

		// a pass in progress is allowed to finish; a second signal forces exit
		log.Info().Msg("Waiting for the current pass to finish, interrupt again to force exit")
		select {
		case <-workerDone:
		case <-sigChan:
			log.Warn().Msg("Forced exit")
		}
	case err := <-workerDone:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Worker exited with error")
		} else {
			log.Info().Msg("Worker exited normally")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

// Services holds all the initialized services
type Services struct {
	Cache    cache.CacheService
	Fetcher  source.Fetcher
	Notifier notifier.Notifier
	State    *storage.FileStore
	Ledger   storage.Ledger

	closers []func()
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// initializeServices initializes all required services. Memcache, Redis and
// SMTP are optional: when unreachable the worker runs without them.
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	state, err := storage.NewFileStore(cfg.StatePath)
	if err != nil {
		return nil, err
	}
	services.State = state
	services.Ledger = state

	if cfg.LedgerBackend == config.LedgerPostgres {
		pg, err := storage.NewPostgresLedger(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		services.Ledger = pg
		services.closers = append(services.closers, pg.Close)
		logger.Info("Connected to Postgres ledger")
	}

	// Initialize cache service
	memcache := cache.NewMemcacheService(cfg.MemcacheAddr)
	if err := memcache.Ping(); err != nil {
		logger.LogError("cache", err, "Memcache at %s unavailable, continuing without it", cfg.MemcacheAddr)
	} else {
		services.Cache = memcache
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	}

	if cfg.UseChrome {
		chrome := source.NewChromeFetcher(60*time.Second, "")
		services.Fetcher = chrome
		services.closers = append(services.closers, func() { chrome.Close() })
	} else {
		services.Fetcher = source.HTTPFetcher{}
	}

	notifiers := notifier.Multi{notifier.NewLogNotifier()}

	if cfg.EmailEnabled() {
		email := notifier.NewEmailNotifier(notifier.EmailConfig{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Sender:    cfg.SMTPSender,
			Password:  cfg.SMTPPassword,
			Recipient: cfg.NotifyEmail,
		})
		if err := email.Start(ctx); err != nil {
			logger.LogError("email", err, "SMTP session not started, mail will wait in the backlog")
		}
		notifiers = append(notifiers, email)
	}

	// Initialize publisher
	if cfg.StreamNotifyEnabled {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			redisPublisher.Close()
			logger.LogError("publisher", err, "Redis at %s unavailable, stream notifications disabled", cfg.RedisAddr)
		} else {
			notifiers = append(notifiers, notifier.NewStreamNotifier(redisPublisher))
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
				cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	services.Notifier = notifiers
	services.closers = append(services.closers, func() { notifiers.Close() })

	return services, nil
}
