package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Postgres struct {
	DB *gorm.DB
}

// dsn - Data Source Name
func NewPostgres(dsn string, logger *slog.Logger) (*Postgres, error) {
	return open(postgres.Open(dsn), logger)
}

// NewWithDialector opens any gorm dialector; tests use it with SQLite.
func NewWithDialector(dialector gorm.Dialector, logger *slog.Logger) (*Postgres, error) {
	return open(dialector, logger)
}

func open(dialector gorm.Dialector, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         slogGorm.New(slogGorm.WithLogger(logger)),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Postgres{DB: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

func (p *Postgres) AutoMigrate() error {
	return p.DB.AutoMigrate(
		&models.User{},
		&models.ActionRecord{},
		&models.Reputation{},
		&models.Actor{},
		&models.Ring{},
		&models.Post{},
		&models.Membership{},
	)
}

func (p *Postgres) Close() error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
