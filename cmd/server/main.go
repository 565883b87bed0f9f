package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"housing/internal/gateway"
	identityservice "housing/internal/identity/service"
	identitystore "housing/internal/identity/store"
	"housing/internal/notify"
	"housing/internal/platform/config"
	"housing/internal/platform/httpserver"
	"housing/internal/platform/logger"
	"housing/internal/platform/metrics"
	"housing/internal/platform/postgres"
	"housing/internal/platform/redis"
	"housing/internal/policy"
	"housing/internal/ratelimit"
	"housing/internal/session"
	httptransport "housing/internal/transport/http"
	workflowservice "housing/internal/workflow/service"
	workflowstore "housing/internal/workflow/store"
	"housing/pkg/domain"
	"housing/pkg/platform/circuit"
	"housing/pkg/secrets"
)

// main wires the portal: stores, identity directory, workflow engine,
// sessions, gateway and HTTP surface, then serves until signalled.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.Error("housing portal stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mx := metrics.New(reg)
	checks := map[string]func(context.Context) error{}

	stores, cleanup, err := openStores(ctx, cfg, log, checks)
	if err != nil {
		return err
	}
	defer cleanup()

	sinks := []notify.Sink{notify.NewLogNotifier(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		client, err := notify.NewKafkaClient(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := notify.EnsureTopics(ctx, client, cfg.Kafka.NoticesTopic, cfg.Kafka.PaymentRequestTopic); err != nil {
			return err
		}
		sinks = append(sinks, notify.NewKafkaPublisher(client,
			notify.WithTopics(cfg.Kafka.NoticesTopic, cfg.Kafka.PaymentRequestTopic),
			notify.WithBreaker(circuit.New("kafka")),
			notify.WithKafkaLogger(log),
		))
		log.Info("publishing notices to kafka", "brokers", cfg.Kafka.Brokers)
	}
	sink := notify.NewMulti(sinks...)

	authority := workflowservice.DefaultAuthority()
	if cfg.Workflow.ProfileChangeAdminOnly {
		authority = workflowservice.AdminOnlyProfileChanges()
	}

	identitySvc := identityservice.New(stores.identity, identityservice.WithLogger(log))
	engine := workflowservice.New(stores.requests,
		workflowservice.WithLogger(log),
		workflowservice.WithMetrics(mx),
		workflowservice.WithAuthority(authority),
		workflowservice.WithPaymentWindow(cfg.Workflow.PaymentWindow),
		workflowservice.WithNotifier(sink),
		workflowservice.WithBilling(sink),
		workflowservice.WithAccountStatusSetter(identitySvc),
	)
	identitySvc.AttachApprovals(engine)

	signingKey := cfg.Session.SigningKey
	if signingKey == "" {
		if signingKey, err = secrets.Generate(); err != nil {
			return err
		}
		log.Warn("SESSION_SIGNING_KEY unset; sessions will not survive a restart")
	}
	sessions := session.NewManager(stores.credentials,
		session.NewTokenService(signingKey, cfg.Session.Issuer),
		session.WithLogger(log),
		session.WithMetrics(mx),
		session.WithIdentityResolver(identitySvc),
		session.WithTTL(cfg.Session.TTL),
	)

	limiter, err := ratelimit.New(stores.loginFailures,
		ratelimit.WithLogger(log),
		ratelimit.WithLimits(ratelimit.Limits{
			MaxAttempts: cfg.Login.MaxAttempts,
			Window:      cfg.Login.Window,
			LockFor:     cfg.Login.LockFor,
		}),
	)
	if err != nil {
		return err
	}

	exposed := httptransport.ExposedAreas()
	table, err := loadPolicy(cfg.Policy, exposed)
	if err != nil {
		return err
	}
	gw, err := gateway.New(table, exposed,
		gateway.WithLogger(log),
		gateway.WithMetrics(mx),
		gateway.WithSessions(sessions),
		gateway.WithCookieName(cfg.Session.CookieName),
	)
	if err != nil {
		return err
	}

	if cfg.Bootstrap.AdminEmail != "" {
		admin, err := identitySvc.EnsureAdministrator(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword)
		if err != nil {
			return err
		}
		log.Info("bootstrap administrator ready", "identity_id", admin.ID.String())
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         log,
		Metrics:        mx,
		Gatherer:       reg,
		RequestTimeout: cfg.Server.RequestTimeout,
		Checks:         checks,
	},
		httptransport.NewAuthHandler(identitySvc, sessions, limiter, gw, log, httptransport.CookieConfig{Secure: cfg.Session.CookieSecure}),
		httptransport.NewRequestHandler(engine, gw, log),
		httptransport.NewBillingHandler(engine, cfg.Billing.Token, log),
	)
	if cfg.Billing.Token == "" {
		log.Warn("BILLING_TOKEN unset; payment confirmations will be refused")
	}

	if cfg.Workflow.ExpirySweepInterval > 0 {
		go func() {
			if err := engine.RunSweeper(ctx, cfg.Workflow.ExpirySweepInterval); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("expiry sweeper stopped", "error", err)
			}
		}()
	}

	srv := httpserver.New(cfg.Server, router)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting housing portal", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type storeSet struct {
	identity    identityservice.Store
	requests    workflowservice.Store
	credentials session.CredentialStore
	// loginFailures follows credentials: Redis when configured.
	loginFailures ratelimit.Store
}

// openStores picks Postgres and Redis when configured and falls back to the
// in-memory stores otherwise. Ready checks are registered for what it opens.
func openStores(ctx context.Context, cfg config.Config, log *slog.Logger, checks map[string]func(context.Context) error) (storeSet, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	set := storeSet{
		identity:      identitystore.NewInMemory(),
		requests:      workflowstore.NewInMemory(),
		credentials:   session.NewMemoryCredentialStore(),
		loginFailures: ratelimit.NewMemoryStore(),
	}

	if cfg.Database.URL != "" {
		db, err := postgres.OpenDB(ctx, cfg.Database.URL)
		if err != nil {
			return set, func() {}, err
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			cleanup()
			return set, func() {}, err
		}
		pool, err := postgres.NewPool(ctx, cfg.Database.URL)
		if err != nil {
			cleanup()
			return set, func() {}, err
		}
		closers = append(closers, pool.Close)

		set.identity = identitystore.NewPostgres(db)
		set.requests = workflowstore.NewPostgres(pool)
		checks["postgres"] = db.PingContext
		log.Info("using postgres stores")
	} else {
		log.Warn("DATABASE_URL unset; identities and requests are kept in memory")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		cleanup()
		return set, func() {}, err
	}
	if rc != nil {
		closers = append(closers, func() { _ = rc.Close() })
		set.credentials = session.NewRedisCredentialStore(rc.Client)
		set.loginFailures = ratelimit.NewRedisStore(rc.Client)
		checks["redis"] = rc.Health
		log.Info("using redis credential store")
	}
	return set, cleanup, nil
}

func loadPolicy(cfg config.Policy, exposed []domain.Area) (*policy.Table, error) {
	if cfg.File != "" {
		return policy.LoadFile(cfg.File, exposed)
	}
	return policy.Default(exposed)
}
