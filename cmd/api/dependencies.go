package api

import (
	"fmt"
	"log/slog"
	"time"

	importhandler "github.com/inmofin/inmofin/internal/domain/importer/handler"
	importrepo "github.com/inmofin/inmofin/internal/domain/importer/repository"
	importservice "github.com/inmofin/inmofin/internal/domain/importer/service"
	inboxhandler "github.com/inmofin/inmofin/internal/domain/inbox/handler"
	"github.com/inmofin/inmofin/internal/domain/inbox/ocr"
	inboxrepo "github.com/inmofin/inmofin/internal/domain/inbox/repository"
	inboxservice "github.com/inmofin/inmofin/internal/domain/inbox/service"
	loanshandler "github.com/inmofin/inmofin/internal/domain/loans/handler"
	treasuryhandler "github.com/inmofin/inmofin/internal/domain/treasury/handler"
	treasuryrepo "github.com/inmofin/inmofin/internal/domain/treasury/repository"

	"github.com/inmofin/inmofin/pkg/config"
	"github.com/inmofin/inmofin/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	ImportRepo   importrepo.ImportRepository
	InboxRepo    inboxrepo.InboxRepository
	TreasuryRepo treasuryrepo.TreasuryRepository

	// Services
	ImportService *importservice.ImportService
	InboxService  *inboxservice.InboxService

	// Handlers
	ImportHandler   *importhandler.ImportHandler
	InboxHandler    *inboxhandler.InboxHandler
	TreasuryHandler *treasuryhandler.TreasuryHandler
	LoansHandler    *loanshandler.LoansHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initRepositories()
	deps.initServices()
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() {
	d.ImportRepo = importrepo.NewPostgresImportRepository(d.DB.Pool)
	d.InboxRepo = inboxrepo.NewPostgresInboxRepository(d.DB.Pool)
	d.TreasuryRepo = treasuryrepo.NewPostgresTreasuryRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() {
	d.ImportService = importservice.NewImportService(d.ImportRepo, d.Logger)

	processor := ocr.NewClient(d.Config.OCR.BaseURL, d.Config.OCR.APIKey)
	d.InboxService = inboxservice.NewInboxService(d.InboxRepo, d.TreasuryRepo, processor, d.Logger)

	d.Logger.Info("services initialized")
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Logger)
	d.InboxHandler = inboxhandler.NewInboxHandler(d.InboxService, d.Logger)
	d.TreasuryHandler = treasuryhandler.NewTreasuryHandler(d.TreasuryRepo, d.Logger)
	d.LoansHandler = loanshandler.NewLoansHandler(d.Logger)

	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
