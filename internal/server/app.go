// Package server wires the auth service together from configuration and
// runs its HTTP and gRPC health servers until a shutdown signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/imagestore"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/queue"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/gophauth/internal/server/rest"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

const meterName = "github.com/dmitrijs2005/gophauth"

type App struct {
	config        *config.Config
	logger        logging.Logger
	repos         repomanager.RepositoryManager
	redis         *redis.Client
	producer      queue.Producer
	meterProvider *sdkmetric.MeterProvider
	metrics       metrics.Client
	service       *services.AuthService
	httpServer    *rest.HTTPServer
	grpcServer    *gs.GRPCServer
}

// NewApp builds every component named by c. Anything opened before a
// failure is released again.
func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {

	app := &App{
		config:  c,
		logger:  logging.New(c.LogBackend, os.Stdout),
		metrics: metrics.NoneClient{},
	}

	defer func() {
		if err != nil {
			app.close(ctx)
		}
	}()

	if err := app.initRepositories(ctx); err != nil {
		return nil, err
	}

	cache := app.initTokenCache()

	store, err := app.initImageStore()
	if err != nil {
		return nil, fmt.Errorf("image storage init error: %w", err)
	}

	codec, err := auth.NewTokenCodec(c.SecretKey, c.TokenAlgorithm)
	if err != nil {
		return nil, err
	}

	if err := app.initMetrics(ctx); err != nil {
		return nil, fmt.Errorf("metrics init error: %w", err)
	}

	app.producer = queue.NewKafkaProducer(queue.Config{
		Brokers:       c.KafkaBrokers,
		Topic:         c.KafkaTopic,
		RetryInterval: c.KafkaRetryInterval,
	}, store, app.logger)

	app.service = services.NewAuthService(
		app.repos.Users(),
		cache,
		cryptox.NewBcryptHasher(cryptox.WithCost(c.BcryptCost)),
		codec,
		app.producer,
		app.logger,
		services.AuthServiceConfig{OperationTimeout: c.OperationTimeout, UploadTimeout: c.UploadTimeout},
	)

	gin.SetMode(gin.ReleaseMode)
	app.httpServer = rest.NewHTTPServer(c.HTTPAddress, app.logger, app.service, app.producer, app.metrics)
	app.grpcServer = gs.NewGRPCServer(c.GRPCAddress, app.logger, app.producer, c.ReadinessInterval)

	return app, nil
}

func (app *App) initRepositories(ctx context.Context) error {
	if app.config.UserStorage == config.StorageMemory {
		app.repos = repomanager.NewInMemoryRepositoryManager()
		return nil
	}

	db, err := repomanager.OpenPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}

	repos, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("db init error: %w", err)
	}
	app.repos = repos

	if err := repos.RunMigrations(ctx); err != nil {
		return fmt.Errorf("db migration error: %w", err)
	}
	return nil
}

func (app *App) initTokenCache() tokens.Cache {
	if app.config.TokenCache == config.CacheMemory {
		return tokens.NewMemoryCache()
	}
	app.redis = tokens.NewRedisClient(app.config.RedisAddr, app.config.RedisPassword, app.config.RedisDB)
	return tokens.NewRedisCache(app.redis)
}

func (app *App) initImageStore() (imagestore.Store, error) {
	c := app.config
	if c.ImageStorage == config.ImageStorageS3 {
		return imagestore.NewS3Store(imagestore.S3Config{
			User:         c.S3User,
			Password:     c.S3Password,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		}, &http.Client{Timeout: c.UploadTimeout}), nil
	}
	return imagestore.NewLocalStore(c.ImageStoragePath)
}

func (app *App) initMetrics(ctx context.Context) error {
	if !app.config.MetricsEnabled {
		return nil
	}

	mp, err := metrics.InitMeterProvider(ctx, metrics.ProviderConfig{
		Endpoint: app.config.MetricsEndpoint,
		Insecure: app.config.MetricsInsecure,
		Interval: app.config.MetricsInterval,
	})
	if err != nil {
		return err
	}
	app.meterProvider = mp

	client, err := metrics.NewOtelClient(mp.Meter(meterName), app.config.MetricsPrefix)
	if err != nil {
		return err
	}
	app.metrics = client
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startProducer(ctx context.Context) {
	if err := app.producer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		app.logger.Error(ctx, "kafka producer start error", "error", err)
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpcServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is canceled, a signal arrives or a server fails,
// then releases all resources.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startProducer(ctx)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
}

func (app *App) close(ctx context.Context) {
	if app.producer != nil {
		if err := app.producer.Stop(ctx); err != nil {
			app.logger.Error(ctx, "error stopping kafka producer", "error", err)
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "error closing redis client", "error", err)
		}
	}
	if app.repos != nil {
		if err := app.repos.Close(); err != nil {
			app.logger.Error(ctx, "error closing repositories", "error", err)
		}
	}
	if app.meterProvider != nil {
		if err := app.meterProvider.Shutdown(ctx); err != nil {
			app.logger.Error(ctx, "error shutting down meter provider", "error", err)
		}
	}
}
