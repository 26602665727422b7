package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"handover/internal/audit"
	auditstore "handover/internal/audit/store"
	"handover/internal/dispatch"
	itemhandler "handover/internal/items/handler"
	itemservice "handover/internal/items/service"
	itemstore "handover/internal/items/store"
	jwttoken "handover/internal/jwt_token"
	"handover/internal/platform/config"
	"handover/internal/platform/httpserver"
	"handover/internal/platform/logger"
	"handover/internal/platform/metrics"
	"handover/internal/platform/middleware"
	"handover/internal/platform/postgres"
	"handover/internal/platform/redis"
	queryhandler "handover/internal/queries/handler"
	queryservice "handover/internal/queries/service"
	querystore "handover/internal/queries/store"
	reghandler "handover/internal/registration/handler"
	regmetrics "handover/internal/registration/metrics"
	regservice "handover/internal/registration/service"
	regstore "handover/internal/registration/store"
	wizardhandler "handover/internal/wizard/handler"
	wizardmetrics "handover/internal/wizard/metrics"
	wizardservice "handover/internal/wizard/service"
	wizardstore "handover/internal/wizard/store"
	"handover/pkg/platform/httputil"
	"handover/pkg/platform/middleware/metadata"
	"handover/pkg/platform/middleware/requesttime"
)

const (
	requestTimeout = 30 * time.Second
	sweepInterval  = time.Minute
	drainTimeout   = 10 * time.Second
)

// main wires stores, services and handlers, then runs the HTTP server next
// to the background workers until a shutdown signal arrives.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("handover exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if cfg.Database.RunMigrations {
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
		}
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	g, gctx := errgroup.WithContext(ctx)

	// Audit
	var auditSink audit.Store
	if len(cfg.Audit.KafkaBrokers) > 0 {
		kafka, err := auditstore.NewKafka(ctx, cfg.Audit.KafkaBrokers, cfg.Audit.Topic)
		if err != nil {
			return err
		}
		defer kafka.Close()
		auditSink = kafka
	} else {
		auditSink = auditstore.NewInMemory()
	}
	publisher := audit.NewPublisher(cfg.Audit.BufferSize, log)
	g.Go(func() error {
		return audit.NewWorker(auditSink, publisher.Events(), log).Run(gctx)
	})

	// Registrations
	var registrations regservice.Store
	switch {
	case cfg.Backend.URL != "":
		registrations = regstore.NewPostgREST(cfg.Backend.URL, cfg.Backend.APIKey, cfg.Backend.Timeout,
			regstore.WithServiceKey(cfg.Backend.ServiceKey))
	case db != nil:
		registrations = regstore.NewPostgres(db.Pool)
	default:
		registrations = regstore.NewInMemory()
	}
	regService := regservice.New(registrations,
		regservice.WithLogger(log),
		regservice.WithAuditPublisher(publisher),
		regservice.WithMetrics(regmetrics.New()),
	)

	// Items
	var items itemservice.Store = itemstore.NewInMemory()
	if db != nil {
		items = itemstore.NewPostgres(db.Pool)
	}
	itemService := itemservice.New(items, itemservice.WithLogger(log))

	// Homeowner queries
	var queries queryservice.Store = querystore.NewInMemory()
	if db != nil {
		queries = querystore.NewPostgres(db.Pool)
	}
	queryService := queryservice.New(queries, regService,
		queryservice.WithLogger(log),
		queryservice.WithAuditPublisher(publisher),
	)

	// Dispatch
	var dispatcher dispatch.Dispatcher
	switch cfg.Dispatch.Mode {
	case config.DispatchModeAMQP:
		amqpDispatcher, err := dispatch.NewAMQPDispatcher(cfg.Dispatch.AMQPURL, cfg.Dispatch.Exchange, log)
		if err != nil {
			return err
		}
		defer amqpDispatcher.Close()
		receipts, err := dispatch.NewReceiptConsumer(cfg.Dispatch.AMQPURL, cfg.Dispatch.Exchange, cfg.Dispatch.ReceiptQueue, regService, log)
		if err != nil {
			return err
		}
		defer receipts.Close()
		g.Go(func() error { return receipts.Run(gctx) })
		dispatcher = amqpDispatcher
	default:
		simulated := dispatch.NewSimulated(cfg.Dispatch.SimulatedDelay, log)
		simulated.SetRecorder(regService)
		defer simulated.Close()
		dispatcher = simulated
	}

	// Wizard
	var sessions wizardservice.SessionStore
	if rdb != nil {
		sessions = wizardstore.NewRedis(rdb.Client, cfg.Wizard.SessionTTL)
	} else {
		sessions = wizardstore.NewInMemory(cfg.Wizard.SessionTTL)
	}
	wizardService := wizardservice.New(regService, dispatcher, itemService, sessions,
		wizardservice.WithLogger(log),
		wizardservice.WithAuditPublisher(publisher),
		wizardservice.WithMetrics(wizardmetrics.New()),
		wizardservice.WithIdleTTL(cfg.Wizard.SessionTTL),
	)
	g.Go(func() error { return wizardService.Run(gctx, sweepInterval) })

	// HTTP
	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	httpMetrics := metrics.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.LatencyMiddleware(httpMetrics))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		if db != nil {
			if err := db.Health(req.Context()); err != nil {
				status["database"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		if rdb != nil {
			if err := rdb.Health(req.Context()); err != nil {
				status["redis"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		if code != http.StatusOK {
			status["status"] = "degraded"
		}
		httputil.WriteJSON(w, code, status)
	})
	r.Handle("/metrics", promhttp.Handler())

	wizards := wizardhandler.New(wizardService, log)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwttoken.NewJWTServiceAdapter(jwtService), log))
		// The event stream stays open for the life of the session.
		wizards.RegisterStream(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Use(middleware.ContentTypeJSON)
			reghandler.New(regService, log).Register(r)
			itemhandler.New(itemService, log).Register(r)
			queryhandler.New(queryService, log).Register(r)
			wizards.Register(r)
		})
	})

	srv := httpserver.New(cfg.Server.Addr, r)
	g.Go(func() error {
		log.Info("starting handover", "addr", cfg.Server.Addr, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
