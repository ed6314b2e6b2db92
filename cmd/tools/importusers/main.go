// Command importusers copies a user directory file into MongoDB or Redis so the
// simulator can load it with the mongodb or redis dataset source.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/dwidmapper/internal/config"
	"github.com/lllypuk/dwidmapper/internal/dataset"
	"github.com/lllypuk/dwidmapper/internal/domain/user"
	mongodbinfra "github.com/lllypuk/dwidmapper/internal/infrastructure/mongodb"
	"github.com/lllypuk/dwidmapper/internal/infrastructure/repository/mongodb"
	"github.com/lllypuk/dwidmapper/internal/infrastructure/repository/redisrepo"
)

// Destinations accepted by -to.
const (
	destMongoDB = "mongodb"
	destRedis   = "redis"
)

var errUsage = errors.New("usage error")

type importOptions struct {
	from     string
	to       string
	keyOrder dataset.KeyOrder
	dryRun   bool
}

// writer replaces the stored directory. ReplaceAll either stores every record
// or leaves the previous directory in place.
type writer interface {
	Name() string
	ReplaceAll(ctx context.Context, records []user.Record) error
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		logger.Error("invalid arguments", slog.String("error", err.Error()))
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if runErr := run(ctx, cfg, opts, logger); runErr != nil {
		logger.ErrorContext(ctx, "import failed", slog.String("error", runErr.Error()))
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}

func parseFlags(args []string, output io.Writer) (importOptions, error) {
	flags := flag.NewFlagSet("importusers", flag.ContinueOnError)
	flags.SetOutput(output)

	from := flags.String("from", "", "User directory file (.json, .yaml or .yml)")
	to := flags.String("to", "", "Destination: mongodb or redis")
	keyOrder := flags.String("key-order", string(dataset.KeyOrderDocument), "Order of keyed records: document or ecmascript")
	dryRun := flags.Bool("dry-run", false, "Validate the file without writing")

	if err := flags.Parse(args); err != nil {
		return importOptions{}, fmt.Errorf("%w: %w", errUsage, err)
	}

	if *from == "" {
		return importOptions{}, fmt.Errorf("%w: -from is required", errUsage)
	}
	if *to != destMongoDB && *to != destRedis {
		return importOptions{}, fmt.Errorf("%w: -to must be %s or %s, got %q", errUsage, destMongoDB, destRedis, *to)
	}

	order, err := dataset.ParseKeyOrder(*keyOrder)
	if err != nil {
		return importOptions{}, fmt.Errorf("%w: %w", errUsage, err)
	}

	return importOptions{from: *from, to: *to, keyOrder: order, dryRun: *dryRun}, nil
}

func run(ctx context.Context, cfg *config.Config, opts importOptions, logger *slog.Logger) error {
	src := dataset.NewFileSource(opts.from, dataset.WithKeyOrder(opts.keyOrder))

	if opts.dryRun {
		dir, err := dataset.LoadDirectory(ctx, src, logger)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "dry run: file is valid", slog.Int("users", dir.Len()))
		return nil
	}

	dst, closeFn, err := openWriter(ctx, cfg, opts.to)
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := importRecords(ctx, src, dst, logger)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "import complete",
		slog.String("from", src.Name()),
		slog.String("to", dst.Name()),
		slog.Int("users", n),
	)
	return nil
}

// importRecords validates the source as a directory before replacing dst,
// so a bad file never clears the stored users.
func importRecords(ctx context.Context, src dataset.Source, dst writer, logger *slog.Logger) (int, error) {
	dir, err := dataset.LoadDirectory(ctx, src, logger)
	if err != nil {
		return 0, err
	}

	if err := dst.ReplaceAll(ctx, dir.Records()); err != nil {
		return 0, fmt.Errorf("write users to %s: %w", dst.Name(), err)
	}

	return dir.Len(), nil
}

func openWriter(ctx context.Context, cfg *config.Config, to string) (writer, func(), error) {
	switch to {
	case destMongoDB:
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoDB.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to MongoDB: %w", err)
		}
		closeFn := func() { _ = client.Disconnect(context.WithoutCancel(ctx)) }

		db := client.Database(cfg.MongoDB.Database)
		if err := mongodbinfra.CreateAllIndexes(ctx, db, cfg.Dataset.MongoCollection); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("create indexes: %w", err)
		}
		return mongodb.NewMongoUserRepository(db.Collection(cfg.Dataset.MongoCollection)), closeFn, nil

	case destRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closeFn := func() { _ = client.Close() }

		if err := client.Ping(ctx).Err(); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("ping Redis: %w", err)
		}
		repo := redisrepo.NewUserRepository(redisrepo.UserRepositoryConfig{
			Client: client,
			Key:    cfg.Dataset.RedisKey,
		})
		return repo, closeFn, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown destination %q", errUsage, to)
	}
}
