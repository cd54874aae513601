package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"apiview/internal/bootstrap/config"
	"apiview/internal/bootstrap/database"
	"apiview/internal/bootstrap/logging"
	"apiview/internal/infrastructure/artifact"
	"apiview/internal/infrastructure/authz"
	cacheinfra "apiview/internal/infrastructure/cache"
	"apiview/internal/infrastructure/notify"
	"apiview/internal/infrastructure/objectstore"
	"apiview/internal/infrastructure/parser"
	"apiview/internal/infrastructure/persistence/gormstore/repository"
	"apiview/internal/infrastructure/persistence/gormstore/uow"
	"apiview/internal/ports"
	"apiview/internal/usecase/review"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			repository.NewReviewRepository,
			fx.As(new(ports.ReviewRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			uow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewDatabaseCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideObjectStore),
	fx.Provide(
		fx.Annotate(
			artifact.NewBlobStore,
			fx.As(new(ports.BlobStore)),
		),
	),
	fx.Provide(provideCodeFileStore),
	fx.Provide(provideParserRegistry),
	fx.Provide(provideAuthorizer),
	fx.Provide(notify.NewSubscriptionRepository),
	fx.Provide(providePublisher),
	fx.Provide(provideNotifier),
	fx.Provide(provideReviewOptions),
	fx.Provide(review.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideObjectStore(ctx context.Context, cfg config.Config, db *gorm.DB) (ports.ObjectStore, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	switch strings.ToLower(cfg.Storage.Driver) {
	case "database":
		return objectstore.NewDatabaseStore(db), nil
	case "s3":
		store, err := objectstore.NewS3Store(objectstore.S3Config{
			Endpoint:  cfg.Storage.S3.Endpoint,
			Region:    cfg.Storage.S3.Region,
			AccessKey: cfg.Storage.S3.AccessKeyID,
			SecretKey: cfg.Storage.S3.SecretAccessKey,
			Bucket:    cfg.Storage.S3.Bucket,
			Prefix:    cfg.Storage.S3.Prefix,
			UseSSL:    cfg.Storage.S3.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		logging.Info(logCtx, "object store ready", slog.String("driver", "s3"), slog.String("bucket", cfg.Storage.S3.Bucket))
		return store, nil
	case "memory":
		logging.Warn(logCtx, "memory object store loses uploads on exit")
		return objectstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

func provideCodeFileStore(cfg config.Config, objects ports.ObjectStore) (ports.CodeFileStore, error) {
	codec, err := artifact.NewCodec(cfg.Storage.Compression)
	if err != nil {
		return nil, err
	}
	return artifact.NewCodeFileStore(objects, codec, cfg.Storage.CodeFileCacheEntries)
}

func provideParserRegistry(cfg config.Config) (ports.ParserRegistry, error) {
	return parser.NewDefaultRegistry(cfg.Parsers.LanguageDefaults)
}

func provideAuthorizer(cfg config.Config) ports.Authorizer {
	return authz.NewPolicyAuthorizer(authz.Policy{
		Admins:             cfg.Authz.Admins,
		Approvers:          cfg.Authz.Approvers,
		AutomaticModifiers: cfg.Authz.AutomaticModifiers,
	})
}

func providePublisher(lc fx.Lifecycle, cfg config.Config) (notify.Publisher, error) {
	var publisher notify.Publisher
	switch strings.ToLower(cfg.Notify.Driver) {
	case "nats":
		nats, err := notify.NewNATSPublisher(cfg.Notify.NATSURL, cfg.App.Name)
		if err != nil {
			return nil, err
		}
		publisher = nats
	default:
		publisher = notify.LogPublisher{}
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}

func provideNotifier(cfg config.Config, subs *notify.SubscriptionRepository, publisher notify.Publisher) ports.Notifier {
	return notify.NewDispatcher(subs, publisher, cfg.Notify.SubjectPrefix)
}

func provideReviewOptions(cfg config.Config) review.Options {
	return review.Options{
		MaxConflictRetries: cfg.Review.MaxConflictRetries,
		ConflictBackoff:    cfg.Review.ConflictBackoff,
	}
}
