package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/dwidmapper/internal/config"
	"github.com/lllypuk/dwidmapper/internal/dataset"
	"github.com/lllypuk/dwidmapper/internal/domain/user"
	"github.com/lllypuk/dwidmapper/internal/infrastructure/httpserver"
	"github.com/lllypuk/dwidmapper/internal/infrastructure/metrics"
	mongodbinfra "github.com/lllypuk/dwidmapper/internal/infrastructure/mongodb"
	"github.com/lllypuk/dwidmapper/internal/infrastructure/repository/mongodb"
	"github.com/lllypuk/dwidmapper/internal/infrastructure/repository/redisrepo"
	"github.com/lllypuk/dwidmapper/internal/middleware"
	"github.com/lllypuk/dwidmapper/internal/plugin/dwidmapper"
	"github.com/lllypuk/dwidmapper/internal/resolver"
	"github.com/lllypuk/dwidmapper/internal/simulator"
	"github.com/lllypuk/dwidmapper/web"
)

// Container initialization timeouts.
const (
	containerInitTimeout   = 30 * time.Second
	redisPingTimeout       = 5 * time.Second
	mongoDisconnectTimeout = 10 * time.Second
)

// Container holds the simulator dependencies and manages their lifecycle.
// It implements httpserver.HealthChecker.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Dataset backends; nil unless the configured source needs them.
	MongoDB *mongo.Client
	Redis   *redis.Client

	Source    dataset.Source
	Directory *user.Directory
	Resolver  *resolver.Resolver

	Registry *prometheus.Registry
	Metrics  *metrics.SimulatorMetrics

	Templates *simulator.Templates
	Host      *simulator.Host
	Router    *httpserver.Router
	Server    *httpserver.Server
}

// Ensure Container implements httpserver.HealthChecker.
var _ httpserver.HealthChecker = (*Container)(nil)

// ContainerOption configures the Container.
type ContainerOption func(*Container)

// WithLogger sets a custom logger for the container.
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		c.Logger = logger
	}
}

// WithSource replaces the configured dataset source. No backend client is
// created when a source is given.
func WithSource(src dataset.Source) ContainerOption {
	return func(c *Container) {
		c.Source = src
	}
}

// NewContainer wires the simulator. The user directory is loaded here, so an
// unreadable or empty dataset fails startup.
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), containerInitTimeout)
	defer cancel()

	if err := c.setupSource(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup dataset source: %w", err)
	}

	if err := c.setupResolver(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup resolver: %w", err)
	}

	c.setupMetrics()

	if err := c.setupSimulator(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup simulator: %w", err)
	}

	c.setupHTTP()

	return c, nil
}

// setupSource builds the dataset source selected by config.
func (c *Container) setupSource(ctx context.Context) error {
	if c.Source != nil {
		return nil
	}

	switch strings.ToLower(c.Config.Dataset.Source) {
	case config.SourceMongoDB:
		if err := c.setupMongoDB(ctx); err != nil {
			return fmt.Errorf("mongodb: %w", err)
		}
		coll := c.MongoDB.Database(c.Config.MongoDB.Database).Collection(c.Config.Dataset.MongoCollection)
		c.Source = mongodb.NewMongoUserRepository(coll, mongodb.WithUserRepoLogger(c.Logger))

	case config.SourceRedis:
		if err := c.setupRedis(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		c.Source = redisrepo.NewUserRepository(redisrepo.UserRepositoryConfig{
			Client: c.Redis,
			Key:    c.Config.Dataset.RedisKey,
		})

	default:
		order, err := dataset.ParseKeyOrder(c.Config.Dataset.KeyOrder)
		if err != nil {
			return err
		}
		c.Source = dataset.NewFileSource(c.Config.Dataset.Path, dataset.WithKeyOrder(order))
	}

	return nil
}

// setupMongoDB initializes the MongoDB client.
func (c *Container) setupMongoDB(ctx context.Context) error {
	clientOpts := options.Client().
		ApplyURI(c.Config.MongoDB.URI).
		SetMaxPoolSize(c.Config.MongoDB.MaxPoolSize)

	client, connectErr := mongo.Connect(clientOpts)
	if connectErr != nil {
		return fmt.Errorf("failed to connect: %w", connectErr)
	}
	c.MongoDB = client

	pingCtx, cancel := context.WithTimeout(ctx, c.Config.MongoDB.Timeout)
	defer cancel()

	if pingErr := client.Ping(pingCtx, nil); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.Logger.InfoContext(ctx, "connected to MongoDB",
		slog.String("database", c.Config.MongoDB.Database),
	)

	db := client.Database(c.Config.MongoDB.Database)
	if indexErr := mongodbinfra.CreateAllIndexes(pingCtx, db, c.Config.Dataset.MongoCollection); indexErr != nil {
		return fmt.Errorf("failed to create indexes: %w", indexErr)
	}

	return nil
}

// setupRedis initializes the Redis client.
func (c *Container) setupRedis(ctx context.Context) error {
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
		PoolSize: c.Config.Redis.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if pingErr := c.Redis.Ping(pingCtx).Err(); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.Logger.InfoContext(ctx, "connected to Redis",
		slog.String("addr", c.Config.Redis.Addr),
	)

	return nil
}

// setupResolver loads the directory and builds the resolver.
func (c *Container) setupResolver(ctx context.Context) error {
	mode, err := resolver.ParseFallbackMode(c.Config.Dataset.FallbackMode)
	if err != nil {
		return err
	}

	dir, err := dataset.LoadDirectory(ctx, c.Source, c.Logger)
	if err != nil {
		return err
	}

	r, err := resolver.New(dir, resolver.WithFallbackMode(mode))
	if err != nil {
		return err
	}

	c.Directory = dir
	c.Resolver = r
	return nil
}

// setupMetrics creates a dedicated registry with the runtime collectors.
func (c *Container) setupMetrics() {
	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c.Metrics = metrics.NewSimulatorMetrics(c.Registry)
	c.Metrics.SetDirectorySize(c.Directory.Len())
}

// setupSimulator loads templates and installs the plugins.
func (c *Container) setupSimulator() error {
	var (
		fsys fs.FS = web.TemplatesFS
		root       = web.TemplatesDir
	)
	if dir := c.Config.Simulator.TemplatesDir; dir != "" {
		fsys, root = os.DirFS(dir), "."
	}

	templates, err := simulator.LoadTemplates(fsys, root)
	if err != nil {
		return err
	}
	c.Templates = templates

	c.Host = simulator.NewHost(simulator.HostConfig{
		Templates: templates,
		Logger:    c.Logger,
		Observer:  c.Metrics,
	})

	return c.Host.Install(dwidmapper.New(c.Resolver, c.Logger, c.Metrics))
}

// setupHTTP builds the server, the middleware chain and all routes.
func (c *Container) setupHTTP() {
	c.Server = httpserver.NewServer(httpserver.ServerConfig{
		Host:            c.Config.Server.Host,
		Port:            c.Config.Server.Port,
		ReadTimeout:     c.Config.Server.ReadTimeout,
		WriteTimeout:    c.Config.Server.WriteTimeout,
		ShutdownTimeout: c.Config.Server.ShutdownTimeout,
		BodyLimit:       c.Config.Server.BodyLimit,
	}, c.Logger)

	loggingCfg := middleware.DefaultLoggingConfig()
	loggingCfg.Logger = c.Logger
	if c.Config.Metrics.Enabled {
		loggingCfg.SkipPaths = append(loggingCfg.SkipPaths, c.Config.Metrics.Path)
	}
	recoveryCfg := middleware.DefaultRecoveryConfig()
	recoveryCfg.Logger = c.Logger

	c.Router = httpserver.NewRouter(c.Server.Echo(), httpserver.RouterConfig{
		Logger:          c.Logger,
		LoggingConfig:   loggingCfg,
		RecoveryConfig:  recoveryCfg,
		SimulatorPrefix: c.Config.Simulator.RoutePrefix,
	})

	c.Router.RegisterHealthEndpoints(c)
	if c.Config.Metrics.Enabled {
		c.Router.RegisterMetricsEndpoint(c.Config.Metrics.Path, c.Registry)
	}

	c.Host.Mount(c.Router.Simulator())
	c.Router.PrintRoutes()
}

// Close releases backend connections.
func (c *Container) Close() error {
	var errs []error

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		} else {
			c.Logger.Debug("redis connection closed")
		}
	}

	if c.MongoDB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		defer cancel()
		if err := c.MongoDB.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect: %w", err))
		} else {
			c.Logger.Debug("mongodb connection closed")
		}
	}

	return errors.Join(errs...)
}

// IsReady implements httpserver.HealthChecker.
func (c *Container) IsReady(ctx context.Context) bool {
	for _, s := range c.GetHealthStatus(ctx) {
		if s.Status == httpserver.StatusUnhealthy {
			return false
		}
	}
	return true
}

// GetHealthStatus implements httpserver.HealthChecker. Backends are reported
// only when the dataset source uses them; a backend outage after startup is
// degraded, not unhealthy, since the directory is already in memory.
func (c *Container) GetHealthStatus(ctx context.Context) []httpserver.ComponentStatus {
	dirStatus := httpserver.ComponentStatus{Name: "directory", Status: httpserver.StatusHealthy}
	if c.Directory == nil || c.Directory.Len() == 0 {
		dirStatus.Status = httpserver.StatusUnhealthy
		dirStatus.Message = "user directory not loaded"
	} else {
		dirStatus.Message = fmt.Sprintf("%d users from %s", c.Directory.Len(), c.Source.Name())
	}
	statuses := []httpserver.ComponentStatus{dirStatus}

	if c.MongoDB != nil {
		s := httpserver.ComponentStatus{Name: "mongodb", Status: httpserver.StatusHealthy}
		if err := c.MongoDB.Ping(ctx, nil); err != nil {
			s.Status = httpserver.StatusDegraded
			s.Message = err.Error()
		}
		statuses = append(statuses, s)
	}

	if c.Redis != nil {
		s := httpserver.ComponentStatus{Name: "redis", Status: httpserver.StatusHealthy}
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			s.Status = httpserver.StatusDegraded
			s.Message = err.Error()
		}
		statuses = append(statuses, s)
	}

	return statuses
}

// DirectoryInfo implements httpserver.DirectoryReporter.
func (c *Container) DirectoryInfo() httpserver.DirectoryInfo {
	var info httpserver.DirectoryInfo
	if c.Directory != nil {
		info.Users = c.Directory.Len()
	}
	if c.Source != nil {
		info.Source = c.Source.Name()
	}
	if c.Resolver != nil {
		info.FallbackMode = string(c.Resolver.Mode())
	}
	return info
}
