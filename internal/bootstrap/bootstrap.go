package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/document-verifier/internal/config"
	"github.com/kirillkom/document-verifier/internal/core/domain"
	"github.com/kirillkom/document-verifier/internal/core/ports"
	"github.com/kirillkom/document-verifier/internal/core/usecase"
	"github.com/kirillkom/document-verifier/internal/infrastructure/agentapi"
	"github.com/kirillkom/document-verifier/internal/infrastructure/exporter/xlsx"
	"github.com/kirillkom/document-verifier/internal/infrastructure/preview"
	"github.com/kirillkom/document-verifier/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-verifier/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-verifier/internal/infrastructure/resilience"
	"github.com/kirillkom/document-verifier/internal/infrastructure/session/memory"
	"github.com/kirillkom/document-verifier/internal/observability/metrics"
)

// App is the extraction side shared by the API server and the CLI.
type App struct {
	Config config.Config

	ExtractionUC *usecase.ExtractionUseCase
	Sessions     *memory.Store
	Exporter     *xlsx.Exporter
	HTTPMetrics  *metrics.HTTPServerMetrics
	// Resilience guards the agent calls; its breaker states feed /healthz.
	Resilience   *resilience.Executor

	closeFn func()
}

type Options struct {
	// Service names the metrics and nats client.
	Service string
	// Events publishes finished attempts to nats when cfg.EventsEnabled.
	Events bool
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Service == "" {
		opts.Service = "api"
	}
	if err := cfg.ValidateAgent(); err != nil {
		return nil, fmt.Errorf("agent config: %w", err)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg), logger)
	client := agentapi.New(agentapi.Options{
		BaseURL:            cfg.AgentBaseURL,
		UploadPath:         cfg.AgentUploadPath,
		ChatPath:           cfg.AgentChatPath,
		APIKey:             cfg.AgentAPIKey,
		AgentID:            cfg.AgentID,
		Timeout:            cfg.AgentTimeout,
		ResilienceExecutor: executor,
	})

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sessions := memory.NewStore(cfg.SessionTTL, logger)
	go sessions.Run(sweepCtx)

	var (
		publisher ports.EventPublisher
		queue     *nats.Queue
	)
	if opts.Events && cfg.EventsEnabled {
		q, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			QueueGroup:         cfg.NATSQueueGroup,
			ResilienceExecutor: resilience.NewExecutor(resilience.PublishConfig(), logger),
			Logger:             logger,
		})
		if err != nil {
			stopSweep()
			return nil, fmt.Errorf("init event bus: %w", err)
		}
		queue = q
		publisher = q
	}

	httpMetrics := metrics.NewHTTPServerMetrics(opts.Service)
	extractionUC := usecase.NewExtractionUseCase(
		sessions,
		agentapi.NewUploader(client),
		agentapi.NewAnalyzer(client),
		preview.NewRenderer(),
		publisher,
		httpMetrics,
		domain.ExtractionLimits{
			AttemptTimeout: cfg.AnalysisTimeout,
			CopyIndicator:  cfg.CopyIndicator,
			MaxConcurrent:  int64(cfg.MaxConcurrentExtractions),
		},
		logger,
	)

	return &App{
		Config:       cfg,
		ExtractionUC: extractionUC,
		Sessions:     sessions,
		Exporter:     xlsx.NewExporter(),
		HTTPMetrics:  httpMetrics,
		Resilience:   executor,

		closeFn: func() {
			stopSweep()
			if queue != nil {
				queue.Close()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// Worker consumes extraction events and writes the audit trail.
type Worker struct {
	Config config.Config

	Subscriber ports.EventSubscriber
	Auditor    ports.ExtractionAuditor
	Metrics    *metrics.WorkerMetrics

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewAuditRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: resilience.NewExecutor(resilience.PublishConfig(), logger),
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	workerMetrics := metrics.NewWorkerMetrics("worker")
	return &Worker{
		Config:     cfg,
		Subscriber: queue,
		Auditor:    usecase.NewAuditUseCase(repo, workerMetrics, "worker", logger),
		Metrics:    workerMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	out.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	out.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	out.BreakerMinRequests = cfg.ResilienceBreakerMinRequests
	out.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	out.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	return out
}
