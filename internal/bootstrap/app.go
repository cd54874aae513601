package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"apiview/internal/bootstrap/config"
	"apiview/internal/bootstrap/logging"
	"apiview/internal/errs"
	"apiview/internal/infrastructure/persistence/gormstore/model"
)

// App exposes the loaded config and the review database to commands that
// work below the review service, such as schema setup.
type App struct {
	Config config.Config
	DB     *gorm.DB
}

// InitSchema creates or upgrades the review, blob, subscriber and kv tables
// and returns their names. Running it again is a no-op.
func (a *App) InitSchema(ctx context.Context) ([]string, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	if a.DB == nil {
		return nil, errors.New("database is required")
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "bootstrap.app"),
		slog.String("database_driver", a.Config.Database.Driver),
	)
	logging.Info(logCtx, "start schema migration")

	models := model.All()
	tables := make([]string, 0, len(models))
	for _, m := range models {
		stmt := &gorm.Statement{DB: a.DB}
		if err := stmt.Parse(m); err != nil {
			return nil, errs.Wrapf(err, "parse model %T", m)
		}
		tables = append(tables, stmt.Schema.Table)
	}

	if err := a.DB.WithContext(ctx).AutoMigrate(models...); err != nil {
		return nil, errs.Wrap(err, "auto migrate schema")
	}

	logging.Info(logCtx, "schema migration completed", slog.Any("tables", tables))
	return tables, nil
}
