package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	libdb "smartparking/backend/libs/db"
	libredis "smartparking/backend/libs/redis"
	"smartparking/backend/libs/telemetry"
	"smartparking/backend/services/parking-service/internal/config"
	httpserver "smartparking/backend/services/parking-service/internal/http"
	"smartparking/backend/services/parking-service/internal/http/handlers"
	"smartparking/backend/services/parking-service/internal/metrics"
	redisstore "smartparking/backend/services/parking-service/internal/redis"
	"smartparking/backend/services/parking-service/internal/repository"
	"smartparking/backend/services/parking-service/internal/sensor"
	"smartparking/backend/services/parking-service/internal/service"
	"smartparking/backend/services/parking-service/internal/ws"
)

const (
	serviceVersion = "1.0.0"
	connectTimeout = 10 * time.Second
)

// App wires parking-service dependencies.
type App struct {
	cfg         *config.Config
	server      *httpserver.Server
	reconciler  *service.Reconciler
	hub         *ws.Hub
	db          *sql.DB
	mongoClient *mongo.Client
	redisClient *redis.Client
	shutdown    telemetry.ShutdownFunc
	logger      *zap.Logger
}

// New constructs the application graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.ServiceName, serviceVersion, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	a.shutdown = shutdown

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var cache service.ActiveSessionCache
	if cfg.Redis.Addr != "" {
		redisClient, err := libredis.NewRedisClient(libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redisClient = redisClient
		cache = redisstore.NewStore(redisClient, cfg.ActiveSessionTTL())
	}

	bindings, err := cfg.SensorSlots()
	if err != nil {
		a.Close()
		return nil, err
	}
	staticSlots, err := cfg.StaticSlots()
	if err != nil {
		a.Close()
		return nil, err
	}

	recorder := metrics.NewRecorder()
	gatewayBindings := make([]sensor.Binding, 0, len(bindings))
	for _, b := range bindings {
		gatewayBindings = append(gatewayBindings, sensor.Binding{Slot: b.Name, Key: b.SensorKey})
	}
	gateway := sensor.NewGateway(cfg.Sensor.URL, cfg.Sensor.StatusPath, gatewayBindings, cfg.SensorTimeout(), recorder, logger.Named("sensor"))

	static := make([]service.StaticSlot, 0, len(staticSlots))
	for _, s := range staticSlots {
		static = append(static, service.StaticSlot{Name: s.Name, Occupied: s.Occupied})
	}

	a.hub = ws.NewHub(logger.Named("ws"))
	a.reconciler = service.NewReconciler(service.ReconcilerDeps{
		Gateway:   gateway,
		Store:     store,
		Billing:   service.NewBillingCalculator(cfg.Billing.RatePerMinute),
		Cache:     cache,
		Recorder:  recorder,
		Publisher: a.hub,
		Static:    static,
		Logger:    logger.Named("reconciler"),
	})
	parkingService := service.NewParkingService(a.reconciler, store, cfg.Reconcile.Mode == config.ModeOnRead, logger)

	parkingHandler := handlers.NewParkingHandler(parkingService, logger)
	wsServer := ws.NewServer(a.hub, a.reconciler.Layout, cfg.WriteTimeout(), cfg.PingInterval(), logger.Named("ws"))

	routes := httpserver.Routes{
		Layout:            parkingHandler.HandleLayout,
		Reserve:           parkingHandler.HandleReserve,
		CancelReservation: parkingHandler.HandleCancelReservation,
		History:           handlers.NewHistoryHandler(parkingService, logger),
		Pay:               handlers.NewPayHandler(parkingService, logger),
		ActiveSessions:    handlers.NewActiveSessionsHandler(parkingService, logger),
		Reconcile:         parkingHandler.HandleReconcile,
		LayoutFeed:        wsServer.HandleWS,
		Health:            handlers.NewHealthHandler(a.reconciler.LastTick),
		Metrics:           recorder.Handler(),
	}

	router := httpserver.NewRouter(routes)
	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (repository.SessionStore, error) {
	switch a.cfg.Storage.Driver {
	case config.StoragePostgres:
		sqlDB, err := libdb.NewPostgresDB(a.cfg.Database.DSN, libdb.PoolOptions{
			MaxOpenConns: a.cfg.Database.MaxOpenConns,
			MaxIdleConns: a.cfg.Database.MaxIdleConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.db = sqlDB
		repo := repository.NewSessionRepository(sqlDB)
		if err := repo.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return repo, nil

	case config.StorageMongo:
		client, err := mongo.Connect(options.Client().ApplyURI(a.cfg.Mongo.URI).SetConnectTimeout(connectTimeout))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		a.mongoClient = client
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		repo := repository.NewMongoSessionRepository(client.Database(a.cfg.Mongo.Database))
		if err := repo.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate mongo: %w", err)
		}
		return repo, nil

	default:
		a.logger.Warn("using in-memory session store, sessions are lost on restart")
		return repository.NewMemoryStore(), nil
	}
}

// Run starts the HTTP server, the layout feed and, in ticker mode, the reconciliation loop.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Reconcile.CancelStaleOnStart {
		n, err := a.reconciler.CancelStaleSessions(ctx)
		if err != nil {
			return fmt.Errorf("cancel stale sessions: %w", err)
		}
		if n > 0 {
			a.logger.Warn("cancelled sessions left open by previous run", zap.Int("count", n))
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(ctx)
	})
	g.Go(func() error {
		a.hub.Start(ctx)
		a.hub.CloseAll()
		return nil
	})
	if a.cfg.Reconcile.Mode == config.ModeTicker {
		g.Go(func() error {
			return a.reconciler.Run(ctx, a.cfg.ReconcileInterval())
		})
	}
	return g.Wait()
}

// Close releases resources.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(ctx); err != nil {
			a.logger.Warn("failed to disconnect mongo", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			a.logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
}
