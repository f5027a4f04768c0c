package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/events"
	httpapi "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/order"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/storage"
	"github.com/fjod/storefront/internal/telemetry"
	"github.com/fjod/storefront/pkg/circuitbreaker"
	"github.com/redis/go-redis/v9"
)

// remote is everything the hosted backend offers: catalog, orders and accounts.
type remote interface {
	httpapi.Catalog
	repository.OrderRepository
	auth.Provider
}

// app holds one process lifetime of wired components.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	storage   storage.Storage
	remote    remote
	catalog   httpapi.Catalog
	cache     *catalog.Cached
	backend   order.Backend
	guarded   *repository.Guarded
	postgres  *repository.Repository
	publisher *events.KafkaPublisher

	cart      *cart.Store
	auth      *auth.Store
	orders    *order.Store
	orderOpts []order.Option

	closers []func(ctx context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Options{
		Endpoint:       cfg.Tracing.Endpoint,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: Version,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, tp.Shutdown)

	if a.storage, err = a.openStorage(ctx); err != nil {
		return nil, err
	}
	if err = a.openRemote(ctx); err != nil {
		return nil, err
	}
	if err = a.openCatalog(ctx); err != nil {
		return nil, err
	}

	a.orderOpts = append(a.orderOpts, order.WithLogger(logger))
	if len(cfg.Events.Brokers) > 0 {
		a.publisher = events.NewKafkaPublisher(cfg.Events.Topic, cfg.Events.Brokers...)
		a.closers = append(a.closers, func(context.Context) error { return a.publisher.Close() })
		a.orderOpts = append(a.orderOpts, order.WithPublisher(a.publisher))
		logger.Info("order events enabled", "topic", cfg.Events.Topic, "brokers", cfg.Events.Brokers)
	}

	a.cart = cart.NewStore(ctx, a.storage, logger)
	a.auth = auth.NewStore(ctx, a.remote, a.storage, logger)
	a.orders = order.NewStore(a.auth, a.backend, a.orderOpts...)
	return a, nil
}

func (a *app) openStorage(ctx context.Context) (storage.Storage, error) {
	sc := a.cfg.Storage
	switch sc.Driver {
	case config.StorageMemory:
		return storage.NewMemory(), nil

	case config.StorageSQLite:
		st, err := storage.NewSQLite(sc.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return st.Close() })
		if err := st.RunMigrations(sc.MigrationsDir); err != nil {
			return nil, err
		}
		return st, nil

	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{Addr: sc.RedisAddr})
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return storage.NewRedis(client, sc.RedisPrefix), nil

	case config.StorageMongo:
		db, err := storage.ConnectMongoDB(ctx, sc.MongoURI, sc.MongoDatabase)
		if err != nil {
			return nil, err
		}
		st := storage.NewMongo(db)
		a.closers = append(a.closers, st.Close)
		return st, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
}

func (a *app) openRemote(ctx context.Context) error {
	rc := a.cfg.Remote
	switch rc.Driver {
	case config.RemoteMemory:
		// The demo remote keeps its tables on the device next to the cart, so
		// accounts and orders outlive a single CLI invocation.
		mem := repository.NewMemoryRepository(repository.SeedProducts(time.Now().UTC())...)
		if err := mem.Persist(ctx, a.storage, repository.RemoteStorageKey, a.logger); err != nil {
			return err
		}
		a.remote = mem
	case config.RemotePostgres:
		repo, err := repository.NewRepository(a.credentials())
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return repo.Close() })
		a.postgres = repo
		a.remote = repo
	default:
		return fmt.Errorf("unknown remote driver %q", rc.Driver)
	}

	a.backend = a.remote
	if rc.Breaker.Enabled {
		settings := circuitbreaker.DefaultSettings("remote")
		settings.FailureThreshold = rc.Breaker.FailureThreshold
		settings.Timeout = rc.Breaker.Timeout
		settings.Interval = rc.Breaker.Interval
		a.guarded = repository.NewGuarded(a.remote, settings, a.logger)
		a.backend = a.guarded
	}
	return nil
}

// openCatalog puts the Redis cache in front of catalog reads when configured.
func (a *app) openCatalog(ctx context.Context) error {
	a.catalog = a.remote
	cc := a.cfg.Catalog
	if cc.CacheRedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: cc.CacheRedisAddr})
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to catalog cache: %w", err)
	}
	a.cache = catalog.NewCached(a.remote, client, cc.CacheTTL, a.logger)
	a.catalog = a.cache
	return nil
}

func (a *app) credentials() *repository.Credentials {
	pg := a.cfg.Remote.Postgres
	return &repository.Credentials{
		Host:              pg.Host,
		Port:              pg.Port,
		User:              pg.User,
		Password:          pg.Password,
		DBName:            pg.DBName,
		SSLMode:           pg.SSLMode,
		MigrationsDirPath: pg.MigrationsDir,
	}
}

// migrate applies the remote schema. The memory remote has nothing to migrate.
func (a *app) migrate() error {
	if a.postgres == nil {
		a.logger.Info("remote driver has no schema to migrate", "driver", a.cfg.Remote.Driver)
		return nil
	}
	if err := a.postgres.RunMigrations(a.credentials()); err != nil {
		return err
	}
	a.logger.Info("remote migrations applied", "dir", a.cfg.Remote.Postgres.MigrationsDir)
	return nil
}

func (a *app) status() map[string]string {
	st := map[string]string{
		"storage": a.cfg.Storage.Driver,
		"remote":  a.cfg.Remote.Driver,
	}
	if a.guarded != nil {
		st["breaker"] = a.guarded.State()
	}
	return st
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
