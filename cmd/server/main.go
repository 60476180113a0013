// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages. Unset optional
// backends (postgres, redis, kafka) degrade to in-process implementations,
// so a bare `go run ./cmd/server` gives a fully working development server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"certtrust/internal/catalog"
	"certtrust/internal/certificate"
	"certtrust/internal/events"
	"certtrust/internal/evidence"
	"certtrust/internal/platform/config"
	"certtrust/internal/platform/httpserver"
	"certtrust/internal/platform/logger"
	"certtrust/internal/platform/metrics"
	"certtrust/internal/platform/middleware"
	"certtrust/internal/platform/postgres"
	platformredis "certtrust/internal/platform/redis"
	"certtrust/internal/platform/token"
	"certtrust/internal/project"
	"certtrust/internal/review"
	httptransport "certtrust/internal/transport/http"
	"certtrust/internal/workflow"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Error("catalog load failed", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}

	// Stores: PostgreSQL when configured, in-memory otherwise.
	var (
		projectStore  project.Store
		reviewStore   review.Store
		documentStore evidence.Store
		decisionStore workflow.DecisionStore
		certStore     certificate.Store
	)
	if cfg.DatabaseURL != "" {
		if err := postgres.Migrate(ctx, cfg.DatabaseURL); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		projectStore = project.NewPostgresStore(pool)
		reviewStore = review.NewPostgresStore(pool)
		documentStore = evidence.NewPostgresStore(pool)
		decisionStore = workflow.NewPostgresDecisionStore(pool)
		certStore = certificate.NewPostgresStore(pool)
		log.Info("using postgres stores")
	} else {
		projectStore = project.NewInMemoryStore()
		reviewStore = review.NewInMemoryStore()
		documentStore = evidence.NewInMemoryStore()
		decisionStore = workflow.NewInMemoryDecisionStore()
		certStore = certificate.NewInMemoryStore()
		log.Info("using in-memory stores")
	}

	cache, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
		log.Info("progress cache enabled")
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// Event pipeline: Kafka when brokers are configured, otherwise an
	// in-process channel drained into the log.
	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		publisher = kafka
		log.Info("publishing events to kafka", "topic", cfg.KafkaTopic)
	} else {
		channel := events.NewChannelPublisher(0, log)
		worker := events.NewWorker(channel.Inbox(), events.LogSink{Logger: log})
		group.Go(func() error {
			err := worker.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		publisher = channel
	}
	defer publisher.Close()

	m := metrics.New()
	locks := project.NewLocks()

	reviewSvc := review.NewService(cat, projectStore, reviewStore, documentStore, locks, publisher, log, m)
	workflowSvc := workflow.NewService(cat, projectStore, reviewStore, documentStore, decisionStore,
		locks, publisher, cache, cfg.ProgressCacheTTL, log, m)
	certSvc := certificate.NewService(projectStore, decisionStore, certStore, locks, publisher,
		cfg.CertValidityMonths, log, m)

	var validator middleware.ActorValidator
	if cfg.JWTSigningKey != "" {
		validator = token.NewValidator(cfg.JWTSigningKey)
	} else {
		log.Warn("no JWT signing key configured, trusting actor headers")
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Projects:     httptransport.NewProjectHandler(workflowSvc, log),
		Reviews:      httptransport.NewReviewHandler(reviewSvc, log),
		Certificates: httptransport.NewCertificateHandler(certSvc, cat, log),
		Validator:    validator,
		Logger:       log,
		Metrics:      m,
	})

	srv := httpserver.New(cfg.Addr, router)
	group.Go(func() error {
		log.Info("starting certtrust", "addr", cfg.Addr, "indicators", cat.Size())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}
