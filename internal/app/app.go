package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/cache"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/config"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/delivery/httpd"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/middleware"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/repository"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service/analyzer"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service/detector"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/worker"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/worker/queue"
)

type App struct {
	server       *http.Server
	logger       zerolog.Logger
	config       *config.Config
	db           *sqlx.DB
	cache        cache.KeyValueCache
	notifyPool   *worker.WorkerPool
	answerWorker worker.AnswerWorker
	rabbitMQRepo repository.RabbitMQRepository
	publisher    queue.RabbitMQPublisher
	startTime    time.Time
}

// New wires the service. The broker is optional: when it cannot be reached
// notifications go to the log and broker ingestion stays off.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, db *sqlx.DB) (*App, error) {
	a := &App{
		logger:    log,
		config:    cfg,
		db:        db,
		startTime: time.Now(),
	}

	kv, err := cache.New(ctx, cache.Config{
		Driver:     cfg.Cache.Driver,
		RedisAddr:  cfg.Cache.RedisAddr,
		RedisPass:  cfg.Cache.RedisPassword,
		RedisDB:    cfg.Cache.RedisDB,
		MemorySize: cfg.Cache.MemorySize,
		MaxTTL:     cfg.Cache.MaxTTL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	a.cache = kv

	state := cache.NewEphemeralState(kv, log, cache.StateConfig{
		TimingTTL:         cfg.Cache.TimingTTL,
		MaxTimings:        cfg.Cache.MaxTimings,
		MaxActiveAttempts: cfg.Cache.MaxActiveAttempts,
	})

	answerRepo := repository.NewAnswerRepository(db, log)
	deviceRepo := repository.NewDeviceRepository(db, log)
	similarityRepo := repository.NewSimilarityRepository(db, log)
	signalRepo := repository.NewSignalRepository(db, log)
	plagiarismRepo := repository.NewPlagiarismRepository(db, log)

	integrityCfg := cfg.Integrity

	collaborationDetector := detector.NewCollaborationDetector(
		answerRepo,
		deviceRepo,
		similarityRepo,
		state,
		log,
		detector.DetectorConfig{
			SimilarityWindow:     integrityCfg.SimilarityWindow,
			MaxComparisons:       integrityCfg.MaxComparisons,
			CheckTimeout:         integrityCfg.CheckTimeout,
			AnswerMatchThreshold: integrityCfg.AnswerMatchThreshold,
			AggregateThreshold:   integrityCfg.AggregateThreshold,
			MinSharedQuestions:   integrityCfg.MinSharedQuestions,
			SimultaneityWindow:   integrityCfg.SimultaneityWindow,
			TimingThreshold:      integrityCfg.TimingThreshold,
			MinTimingSamples:     integrityCfg.MinTimingSamples,
			SignalCooldown:       integrityCfg.SignalCooldown,
		},
	)

	plagiarismAnalyzer := NewAnalyzer(cfg, log)

	var notifier service.Notifier
	if cfg.RabbitMQ.Enabled {
		notifier, err = a.connectBroker()
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ unavailable, signal notifications go to the log")
			a.closeBroker()
			notifier = nil
		}
	}
	if notifier == nil {
		notifier = service.NewLogNotifier(log)
	}

	a.notifyPool = worker.NewWorkerPool(integrityCfg.MaxWorkers, integrityCfg.QueueSize, log)

	integrityService := service.NewIntegrityService(
		answerRepo,
		deviceRepo,
		signalRepo,
		plagiarismRepo,
		collaborationDetector,
		plagiarismAnalyzer,
		notifier,
		a.notifyPool,
		log,
		service.IntegrityConfig{
			CollaborationEnabled: integrityCfg.CollaborationEnabled,
			PlagiarismEnabled:    integrityCfg.PlagiarismEnabled,
			PersistRetries:       integrityCfg.PersistRetries,
			PersistRetryDelay:    integrityCfg.PersistRetryDelay,
			MaxCorpus:            integrityCfg.MaxCorpus,
		},
	)

	reviewService := service.NewReviewService(signalRepo, plagiarismRepo, log)

	if cfg.RabbitMQ.ConsumeAnswers && a.rabbitMQRepo != nil {
		if err := a.setupAnswerWorker(integrityService); err != nil {
			a.closeBroker()
			_ = kv.Close()
			return nil, err
		}
	}

	handler := httpd.NewHandler(integrityService, reviewService, a.status, log)

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(chimiddleware.Timeout(60 * time.Second))
	router.Use(middleware.NewCORS(cfg.CORS))

	var auth func(http.Handler) http.Handler
	if cfg.Auth.Enabled {
		auth = middleware.JWTAuth([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, log)
	}

	handler.RegisterRoutes(router, auth)

	a.server = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return a, nil
}

// NewAnalyzer builds the plagiarism analyzer from configuration. The CLI uses
// it without the rest of the service.
func NewAnalyzer(cfg *config.Config, log zerolog.Logger) analyzer.PlagiarismAnalyzer {
	return analyzer.NewPlagiarismAnalyzer(log, analyzer.AnalyzerConfig{
		MaxCorpus:         cfg.Integrity.MaxCorpus,
		MaxMatches:        cfg.Integrity.MaxMatches,
		SegmentThreshold:  cfg.Integrity.SegmentThreshold,
		ParaphraseJaccard: cfg.Integrity.ParaphraseJaccard,
		AnalysisTimeout:   cfg.Integrity.AnalysisTimeout,
	})
}

func (a *App) connectBroker() (service.Notifier, error) {
	rabbitMQRepo, err := repository.NewRabbitMQRepository(a.config.RabbitMQ.URL, a.logger)
	if err != nil {
		return nil, err
	}
	a.rabbitMQRepo = rabbitMQRepo

	if err := rabbitMQRepo.DeclareExchange(a.config.RabbitMQ.Exchange, amqp.ExchangeTopic); err != nil {
		return nil, err
	}

	channel, err := rabbitMQRepo.Channel()
	if err != nil {
		return nil, err
	}
	a.publisher = queue.NewRabbitMQPublisher(channel, a.logger)

	return service.NewAMQPNotifier(a.publisher, a.config.RabbitMQ.Exchange, a.logger), nil
}

func (a *App) setupAnswerWorker(integrity service.IntegrityService) error {
	rmq := a.config.RabbitMQ

	if err := a.rabbitMQRepo.SetupQueue(rmq.AnswerExchange, rmq.QueueName, rmq.RoutingKey); err != nil {
		return err
	}

	channel, err := a.rabbitMQRepo.Channel()
	if err != nil {
		return err
	}

	consumer := queue.NewRabbitMQConsumer(channel, rmq.QueueName, rmq.ConsumerTag, rmq.PrefetchCount, a.logger)
	ingestPool := worker.NewWorkerPool(a.config.Integrity.MaxWorkers, a.config.Integrity.QueueSize, a.logger)
	a.answerWorker = worker.NewAnswerWorker(ingestPool, consumer, integrity, a.logger)
	return nil
}

func (a *App) closeBroker() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close RabbitMQ publisher")
		}
		a.publisher = nil
	}
	if a.rabbitMQRepo != nil {
		if err := a.rabbitMQRepo.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
		a.rabbitMQRepo = nil
	}
}

func (a *App) status(ctx context.Context) *models.ServiceStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := &models.ServiceStatus{
		Status:    "healthy",
		Database:  a.db.PingContext(ctx) == nil,
		Cache:     a.cache.Ping(ctx) == nil,
		RabbitMQ:  a.rabbitMQRepo != nil,
		Workers:   a.notifyPool.GetStats(),
		Uptime:    time.Since(a.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}
	if a.answerWorker != nil {
		status.Consumer = a.answerWorker.GetStats()
	}
	if !status.Database {
		status.Status = "unhealthy"
	}
	return status
}

func (a *App) Run(ctx context.Context) error {
	if err := a.notifyPool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start notification pool: %w", err)
	}

	if a.answerWorker != nil {
		if err := a.answerWorker.Start(ctx); err != nil {
			a.logger.Error().Err(err).Msg("Failed to start answer worker")
			return err
		}
	}

	a.logger.Info().Msgf("Starting integrity service on %s", a.config.Server.Address)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down integrity service...")

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Failed to shutdown HTTP server")
		return err
	}

	if a.answerWorker != nil {
		if err := a.answerWorker.Stop(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop answer worker")
		}
	}

	// queued notifications still go out before the broker closes
	if err := a.notifyPool.Stop(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to stop notification pool")
	}

	a.closeBroker()

	if err := a.cache.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close cache")
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}

	a.logger.Info().Msg("Integrity service stopped")
	return nil
}
