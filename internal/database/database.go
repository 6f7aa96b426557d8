package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sparkcampus/doubts/backend/internal/config"
	"github.com/sparkcampus/doubts/backend/internal/logging"
	"github.com/sparkcampus/doubts/backend/internal/models"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health(ctx context.Context) map[string]string

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error

	DB() *gorm.DB
}

type service struct {
	db     *gorm.DB
	name   string
	logger *zap.Logger
}

// New connects to Postgres. The returned handle is shared by every component
// of the process; callers own its lifetime.
func New(cfg config.DatabaseConfig, log *zap.Logger) (Service, error) {
	return Open(postgres.Open(cfg.DSN()), cfg, log)
}

// Open connects through an arbitrary gorm dialector and tunes the pool.
func Open(dialector gorm.Dialector, cfg config.DatabaseConfig, log *zap.Logger) (Service, error) {
	gormLogger := logger.New(
		logging.StdLog(log, "gorm"),
		logger.Config{
			SlowThreshold:             cfg.SlowQuery,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnLifetime)
	}

	log.Info("database connected", zap.String("dialect", dialector.Name()), zap.String("database", cfg.DBName))

	return &service{db: db, name: cfg.DBName, logger: log}, nil
}

// Migrate brings the schema up to date with the models.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.LedgerEntry{},
		&models.Community{},
		&models.CommunityMember{},
		&models.Doubt{},
		&models.Answer{},
		&models.Vote{},
		&models.ChatSession{},
		&models.ChatMessage{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *service) DB() *gorm.DB {
	return s.db
}

// Health checks the health of the database connection by pinging the database.
func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stats := make(map[string]string)

	sqlDB, err := s.db.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db error: %v", err)
		return stats
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		s.logger.Warn("database ping failed", zap.Error(err))
		return stats
	}

	stats["status"] = "up"

	dbStats := sqlDB.Stats()
	stats["open_connections"] = fmt.Sprintf("%d", dbStats.OpenConnections)
	stats["in_use"] = fmt.Sprintf("%d", dbStats.InUse)
	stats["idle"] = fmt.Sprintf("%d", dbStats.Idle)
	stats["wait_count"] = fmt.Sprintf("%d", dbStats.WaitCount)

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	s.logger.Info("disconnected from database", zap.String("database", s.name))
	return sqlDB.Close()
}

// IsUniqueViolation reports whether err came from a unique constraint. gorm
// translates most drivers to ErrDuplicatedKey; raw pgx errors are checked by
// SQLSTATE.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
