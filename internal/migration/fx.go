package migration

import (
	"strings"

	"github.com/stillpoint/sona/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		// Embedded migrations target postgres. Other dialects (sqlite in
		// tests) create their schema directly.
		if strings.ToLower(strings.TrimSpace(cfg.DBType)) != "postgres" {
			log.Named("migration").Info("skipping migrations for non-postgres database",
				zap.String("db_type", cfg.DBType),
			)
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
