package database

import (
	"fmt"

	"placement_backend/internal/config"
	"placement_backend/internal/model"
	"placement_backend/internal/util"
	"placement_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DSN builds the connection string for the configured driver.
func DSN(cfg *config.DatabaseConfig) string {
	if cfg.Driver == util.DatabasePostgres {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)
}

func dialector(cfg *config.DatabaseConfig) gorm.Dialector {
	if cfg.Driver == util.DatabasePostgres {
		return postgres.Open(DSN(cfg))
	}
	return mysql.Open(DSN(cfg))
}

// GormConfig is shared with tests. TranslateError lets repositories detect
// unique violations through gorm.ErrDuplicatedKey on every driver.
func GormConfig(mode string) *gorm.Config {
	level := gormlogger.Warn
	if mode == "debug" {
		level = gormlogger.Info
	}
	return &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	}
}

func InitDB(cfg *config.DatabaseConfig, mode string) (*gorm.DB, error) {
	db, err := gorm.Open(dialector(cfg), GormConfig(mode))
	if err != nil {
		return nil, err
	}
	if err := ConfigurePool(db, cfg); err != nil {
		return nil, err
	}

	logger.Log.Info("Database connection established", zap.String("driver", cfg.Driver))
	return db, nil
}

// ConfigurePool applies the connection limits from cfg. Zero values keep the
// database/sql defaults.
func ConfigurePool(db *gorm.DB, cfg *config.DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime())
	}
	return nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.Models()...); err != nil {
		return err
	}
	logger.Log.Info("Database migration completed")
	return nil
}
