// Package postgres contains PostgreSQL implementations of repository
// interfaces, built on gorm.
package postgres

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/dispatch/internal/ports/secondary"
)

// Open connects to PostgreSQL and migrates the schema.
func Open(dsn string, log logrus.FieldLogger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Debug("postgres schema migrated")
	return db, nil
}

// Migrate creates or updates the tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&invoiceRow{}, &lineRow{}, &scanRow{}, &alertRow{}); err != nil {
		return fmt.Errorf("failed to migrate postgres schema: %w", err)
	}
	return nil
}

// Store implements secondary.Store with PostgreSQL. ForUpdate reads take
// SELECT ... FOR UPDATE row locks inside the transaction.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new PostgreSQL store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTransaction runs fn inside one gorm transaction. fn's error is
// returned unchanged.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos secondary.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, repositories(tx))
	})
}

// Repositories returns repositories bound to the connection pool.
func (s *Store) Repositories() secondary.Repositories {
	return repositories(s.db)
}

func repositories(db *gorm.DB) secondary.Repositories {
	return secondary.Repositories{
		Invoices: NewInvoiceRepository(db),
		Scans:    NewScanRepository(db),
		Alerts:   NewAlertRepository(db),
	}
}

// requireRow maps an update that touched nothing to notFound.
func requireRow(result *gorm.DB, notFound error) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound
	}
	return nil
}

var _ secondary.Store = (*Store)(nil)
