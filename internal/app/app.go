// Package app builds the service graph shared by the API server and the
// rights worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"privata/internal/access"
	accessmetrics "privata/internal/access/metrics"
	"privata/internal/cache"
	cachememory "privata/internal/cache/memory"
	cacheredis "privata/internal/cache/redis"
	consentmetrics "privata/internal/consent/metrics"
	consentservice "privata/internal/consent/service"
	consentstore "privata/internal/consent/store"
	"privata/internal/gate"
	"privata/internal/gate/adapters"
	gatemetrics "privata/internal/gate/metrics"
	jwttoken "privata/internal/jwt_token"
	"privata/internal/platform/config"
	"privata/internal/platform/database"
	"privata/internal/platform/health"
	"privata/internal/platform/kafka"
	"privata/internal/platform/kafka/producer"
	platformmongo "privata/internal/platform/mongo"
	"privata/internal/platform/privacy"
	platformredis "privata/internal/platform/redis"
	"privata/internal/query"
	"privata/internal/region/geo"
	regionservice "privata/internal/region/service"
	regionstore "privata/internal/region/store"
	restrictionservice "privata/internal/restriction/service"
	restrictionstore "privata/internal/restriction/store"
	rightsmetrics "privata/internal/rights/metrics"
	"privata/internal/rights/queue"
	rightsservice "privata/internal/rights/service"
	rightsstore "privata/internal/rights/store"
	"privata/internal/schema"
	"privata/internal/seeder"
	"privata/internal/storage"
	"privata/internal/storage/memory"
	storagemongo "privata/internal/storage/mongo"
	storagepostgres "privata/internal/storage/postgres"
	"privata/pkg/domain"
	"privata/pkg/platform/audit"
	"privata/pkg/platform/audit/outbox"
	outboxmetrics "privata/pkg/platform/audit/outbox/metrics"
	outboxpostgres "privata/pkg/platform/audit/outbox/store/postgres"
	outboxworker "privata/pkg/platform/audit/outbox/worker"
	"privata/pkg/platform/audit/publishers/compliance"
	auditmemory "privata/pkg/platform/audit/store/memory"
	auditpostgres "privata/pkg/platform/audit/store/postgres"
	"privata/pkg/platform/circuit"
	"privata/pkg/platform/tracer"
)

const (
	tokenIssuer        = "privata"
	regionPoolMaxConns = 10
	recordCachePrefix  = "privata:records:"
	regionCachePrefix  = "privata:regions:"
	recordCacheBreaker = "record-cache"
)

// App holds every long-lived component. Components backed by optional
// infrastructure are nil when that infrastructure is not configured.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Health *health.Handler

	Auditor      *compliance.Publisher
	Consent      *consentservice.Service
	Restrictions *restrictionservice.Service
	Regions      *regionservice.Router
	Gate         *gate.Gate
	Engine       *access.Engine
	Query        *query.Filter
	Rights       *rightsservice.Service
	Tokens       *jwttoken.Service

	// Outbox relays audit events to Kafka. Nil without a database.
	Outbox *outboxworker.Worker
	// Queue schedules rights requests. Nil without Redis, in which case
	// requests only run through the execute endpoint.
	Queue     *queue.Client
	RedisOpts asynq.RedisConnOpt

	closers []func() error
}

// New connects to the configured infrastructure and builds the services.
// Without DATABASE_URL every ledger is kept in memory.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
		Health: health.New(cfg.Server.Env),
	}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if db != nil {
		a.closers = append(a.closers, db.Close)
		a.Health.RegisterCheck("postgres", db.Health)
	} else {
		a.Logger.Warn("DATABASE_URL not set, ledgers are kept in memory")
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rc != nil {
		a.closers = append(a.closers, rc.Close)
		a.Health.RegisterCheck("redis", rc.Health)
		if err := rc.RegisterPoolMetrics(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register redis metrics: %w", err)
		}
	}

	var (
		consentStore     consentstore.TxStore
		restrictionStore restrictionstore.TxStore
		regionStore      regionstore.Store
		rightsStore      rightsstore.Store
		auditStore       audit.Store
		outboxStore      outbox.Store
	)
	if db != nil {
		consentStore = consentstore.NewPostgres(db.DB(), consentstore.WithReplica(db.Replica()))
		restrictionStore = restrictionstore.NewPostgres(db.DB())
		regionStore = regionstore.NewPostgres(db.DB())
		rightsStore = rightsstore.NewPostgres(db.DB())
		auditStore = auditpostgres.New(db.DB(), auditpostgres.WithOutbox())
		outboxStore = outboxpostgres.New(db.DB())
	} else {
		consentStore = consentstore.New()
		restrictionStore = restrictionstore.New()
		regionStore = regionstore.New()
		rightsStore = rightsstore.New()
		auditStore = auditmemory.New()
	}

	a.Auditor = compliance.New(auditStore,
		compliance.WithLogger(a.Logger),
		compliance.WithMetrics(compliance.NewMetrics()),
		compliance.WithRetentionPolicy(audit.NewRetentionPolicy(retentionOverrides(cfg.Compliance.RetentionDays))),
	)
	if outboxStore != nil {
		if err := a.buildOutbox(outboxStore); err != nil {
			return err
		}
	}

	recordCache, regionCache := a.caches(rc)

	schemas := schema.NewRegistry()
	if cfg.Compliance.SchemaFile != "" {
		if err := schema.LoadFile(cfg.Compliance.SchemaFile, schemas); err != nil {
			return fmt.Errorf("load schemas: %w", err)
		}
	} else {
		a.Logger.Warn("PRIVATA_SCHEMA_FILE not set, no models are registered")
	}

	a.Consent = consentservice.New(consentStore, a.Auditor,
		consentservice.WithConsentTTL(cfg.Compliance.ConsentTTL),
		consentservice.WithMetrics(consentmetrics.New()),
		consentservice.WithLogger(a.Logger),
	)
	a.Restrictions = restrictionservice.New(restrictionStore, a.Auditor,
		restrictionservice.WithLogger(a.Logger),
	)

	regionOpts := []regionservice.Option{
		regionservice.WithCache(regionCache, cfg.Storage.CacheTTL),
		regionservice.WithLogger(a.Logger),
	}
	if len(cfg.Compliance.GeoPrefixes) > 0 {
		locator, err := geo.NewPrefixLocator(cfg.Compliance.GeoPrefixes)
		if err != nil {
			return fmt.Errorf("geo prefixes: %w", err)
		}
		regionOpts = append(regionOpts, regionservice.WithLocator(locator))
	}
	a.Regions = regionservice.New(regionStore, regionOpts...)

	mode, err := gate.ParseMode(cfg.Compliance.Mode)
	if err != nil {
		return err
	}
	tr := tracer.NewOTel()
	a.Gate = gate.New(schemas, adapters.NewConsentAdapter(a.Consent), a.Restrictions, a.Auditor,
		gate.WithMode(mode),
		gate.WithMetrics(gatemetrics.New()),
		gate.WithLogger(a.Logger),
		gate.WithTracer(tr),
	)

	stores, err := a.regionStores(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	pseudonymizer, err := privacy.NewPseudonymizer([]byte(cfg.Rights.PseudonymKey))
	if err != nil {
		return err
	}
	a.Engine = access.New(schemas, a.Regions, a.Gate, stores, a.Auditor,
		access.WithCache(recordCache, circuit.New(recordCacheBreaker), cfg.Storage.CacheTTL),
		access.WithPseudonymizer(pseudonymizer),
		access.WithMetrics(accessmetrics.New()),
		access.WithLogger(a.Logger),
		access.WithTracer(tr),
	)
	a.Query = query.NewFilter(a.Engine, a.Logger)

	a.Tokens = jwttoken.New(cfg.Rights.TokenSigningKey, tokenIssuer)

	if rc != nil {
		opts, err := asynq.ParseRedisURI(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url for queue: %w", err)
		}
		a.RedisOpts = opts
		a.Queue = queue.NewClient(opts)
		a.closers = append(a.closers, a.Queue.Close)
	}

	rightsOpts := []rightsservice.Option{
		rightsservice.WithTokens(a.Tokens, cfg.Rights.TokenTTL),
		rightsservice.WithRetryPolicy(rightsservice.RetryPolicy{
			Attempts: cfg.Rights.MaxAttempts,
			Base:     cfg.Rights.BaseBackoff,
			Max:      cfg.Rights.MaxBackoff,
		}),
		rightsservice.WithMetrics(rightsmetrics.New()),
		rightsservice.WithLogger(a.Logger),
	}
	if a.Queue != nil {
		rightsOpts = append(rightsOpts, rightsservice.WithQueue(a.Queue))
	}
	a.Rights = rightsservice.New(rightsStore, a.Engine, a.Consent, a.Restrictions, a.Auditor, rightsOpts...)

	if cfg.Server.SeedDemo {
		if db != nil {
			a.Logger.Warn("PRIVATA_SEED_DEMO ignored with a database configured")
		} else if err := seeder.New(a.Consent, a.Regions, a.Engine, a.Logger).SeedAll(ctx); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}
	return nil
}

func (a *App) buildOutbox(st outbox.Store) error {
	cfg := a.Config
	var prod outboxworker.Producer = producer.NoopProducer{}
	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(cfg.Kafka, a.Logger)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		a.Health.RegisterCheck("kafka", kafka.NewBrokerCheck(p.Client(), cfg.Compliance.AuditTopic).Check)
		prod = p
	} else {
		a.Logger.Warn("KAFKA_BROKERS not set, audit outbox entries are marked processed without publishing")
	}
	a.Outbox = outboxworker.New(st, prod,
		outboxworker.WithTopic(cfg.Compliance.AuditTopic),
		outboxworker.WithMetrics(outboxmetrics.New()),
		outboxworker.WithLogger(a.Logger),
	)
	return nil
}

func (a *App) caches(rc *platformredis.Client) (records, regions cache.Cache) {
	if rc == nil {
		return cachememory.New(), cachememory.New()
	}
	m := cache.NewMetrics()
	records = cacheredis.New(rc.Client, cacheredis.WithPrefix(recordCachePrefix), cacheredis.WithMetrics("records", m))
	regions = cacheredis.New(rc.Client, cacheredis.WithPrefix(regionCachePrefix), cacheredis.WithMetrics("regions", m))
	return records, regions
}

// regionStores opens one adapter per configured region. The DSN scheme picks
// the adapter.
func (a *App) regionStores(ctx context.Context, cfg config.Storage) (*storage.Registry, error) {
	reg := storage.NewRegistry()
	mongoClients := map[string]*platformmongo.Client{}

	codes := make([]string, 0, len(cfg.Regions))
	for code := range cfg.Regions {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	for _, code := range codes {
		dsn := cfg.Regions[code]
		region, err := domain.ParseRegion(code)
		if err != nil {
			return nil, fmt.Errorf("region store %s: %w", code, err)
		}
		switch {
		case dsn == "memory":
			reg.Register(region, memory.New())

		case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
			pool, err := database.NewPgxPool(ctx, dsn, regionPoolMaxConns)
			if err != nil {
				return nil, fmt.Errorf("region store %s: %w", code, err)
			}
			a.closers = append(a.closers, func() error { pool.Close(); return nil })
			a.Health.RegisterCheck("store_"+strings.ToLower(code), pool.Ping)
			reg.Register(region, storagepostgres.New(pool, region))

		case strings.HasPrefix(dsn, "mongodb://"), strings.HasPrefix(dsn, "mongodb+srv://"):
			client, ok := mongoClients[dsn]
			if !ok {
				client, err = platformmongo.New(ctx, dsn)
				if err != nil {
					return nil, fmt.Errorf("region store %s: %w", code, err)
				}
				mongoClients[dsn] = client
				a.closers = append(a.closers, func() error { return client.Close(context.Background()) })
			}
			a.Health.RegisterCheck("store_"+strings.ToLower(code), client.Health)
			reg.Register(region, storagemongo.New(client.Database(cfg.MongoDB)))

		default:
			return nil, fmt.Errorf("region store %s: unsupported DSN scheme", code)
		}
		a.Logger.Info("region store configured", "region", region, "kind", storeKind(dsn))
	}
	return reg, nil
}

func storeKind(dsn string) string {
	kind, _, found := strings.Cut(dsn, "://")
	if !found {
		return dsn
	}
	return kind
}

func retentionOverrides(days map[string]int) map[audit.Framework]int {
	out := make(map[audit.Framework]int, len(days))
	for framework, d := range days {
		out[audit.Framework(strings.ToUpper(framework))] = d
	}
	return out
}

// Close releases infrastructure in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
