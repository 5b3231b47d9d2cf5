// Package wire provides dependency injection for the dispatch application.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	cliadapter "github.com/example/dispatch/internal/adapters/cli"
	"github.com/example/dispatch/internal/adapters/events"
	httpadapter "github.com/example/dispatch/internal/adapters/http"
	"github.com/example/dispatch/internal/adapters/postgres"
	"github.com/example/dispatch/internal/adapters/redis"
	"github.com/example/dispatch/internal/adapters/spreadsheet"
	"github.com/example/dispatch/internal/adapters/sqlite"
	"github.com/example/dispatch/internal/app"
	"github.com/example/dispatch/internal/config"
	"github.com/example/dispatch/internal/db"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/ports/secondary"
)

// lockPrefix namespaces dispatch locks in a shared Redis.
const lockPrefix = "dispatch:lock:"

// Container holds the services built for one configuration.
type Container struct {
	Invoices primary.InvoiceService
	Audit    primary.AuditService
	Loading  primary.LoadingService
	Mismatch primary.MismatchService

	// SQLite is the underlying database when the sqlite driver is used.
	SQLite *sql.DB

	closers []func() error
}

// Build wires the store, event transport and services described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*Container, error) {
	c := &Container{}

	store, err := c.openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	var (
		publisher secondary.EventPublisher
		locker    secondary.Locker
	)
	if cfg.RedisAddr != "" {
		client, err := redis.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, client.Close)
		publisher = redis.NewPublisher(client, cfg.EventChannel)
		locker = redis.NewLocker(client, lockPrefix)
		logger.WithField("addr", cfg.RedisAddr).Debug("publishing events to redis")
	} else {
		publisher = events.NewLogPublisher(logger)
		locker = events.NewLocalLocker()
	}

	c.Invoices = app.NewInvoiceService(store, spreadsheet.NewInvoiceReader(), logger)
	c.Audit = app.NewAuditService(store, publisher, logger)
	c.Loading = app.NewLoadingService(store, publisher, locker, logger)
	c.Mismatch = app.NewMismatchService(store, publisher, logger)
	return c, nil
}

func (c *Container) openStore(cfg *config.Config, logger logrus.FieldLogger) (secondary.Store, error) {
	if cfg.DBDriver == config.DriverPostgres {
		gdb, err := postgres.Open(cfg.DBDSN, logger)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, sqlDB.Close)
		return postgres.NewStore(gdb), nil
	}

	path := cfg.DBPath
	if path == "" {
		var err error
		if path, err = db.DefaultPath(); err != nil {
			return nil, err
		}
	}
	database, err := db.Open(path, logger)
	if err != nil {
		return nil, err
	}
	c.SQLite = database
	c.closers = append(c.closers, database.Close)
	return sqlite.NewStore(database), nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}

var (
	cfg       *config.Config
	logger    *logrus.Logger
	container *Container
	once      sync.Once
)

// initServices resolves configuration from the working directory and
// builds the container. This is called once via sync.Once.
func initServices() {
	dir, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("failed to get working directory: %v", err)
	}
	if cfg, err = config.Resolve(dir); err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}
	if logger, err = config.NewLogger(cfg); err != nil {
		logrus.Fatalf("failed to build logger: %v", err)
	}
	if container, err = Build(context.Background(), cfg, logger); err != nil {
		logger.WithError(err).Fatal("failed to initialize services")
	}
}

// Config returns the resolved configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// Logger returns the process logger.
func Logger() *logrus.Logger {
	once.Do(initServices)
	return logger
}

// Services returns the singleton container.
func Services() *Container {
	once.Do(initServices)
	return container
}

// ScanAdapter returns a new ScanAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func ScanAdapter() *cliadapter.ScanAdapter {
	return ScanAdapterWithOutput(os.Stdout)
}

// ScanAdapterWithOutput returns a new ScanAdapter writing to the given output.
func ScanAdapterWithOutput(out io.Writer) *cliadapter.ScanAdapter {
	c := Services()
	return cliadapter.NewScanAdapter(c.Audit, c.Loading, out)
}

// InvoiceAdapter returns a new InvoiceAdapter writing to stdout.
func InvoiceAdapter() *cliadapter.InvoiceAdapter {
	return cliadapter.NewInvoiceAdapter(Services().Invoices, os.Stdout)
}

// AlertAdapter returns a new AlertAdapter writing to stdout.
func AlertAdapter() *cliadapter.AlertAdapter {
	return cliadapter.NewAlertAdapter(Services().Mismatch, os.Stdout)
}

// HTTPServer returns a new HTTP server over the singleton services.
func HTTPServer() *httpadapter.Server {
	c := Services()
	return httpadapter.NewServer(httpadapter.Services{
		Invoices: c.Invoices,
		Audit:    c.Audit,
		Loading:  c.Loading,
		Mismatch: c.Mismatch,
	}, Logger())
}
