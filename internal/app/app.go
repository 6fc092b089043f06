package app

import (
	"database/sql"

	"db-premigrate/internal/config"
	"db-premigrate/internal/migration"
	"db-premigrate/internal/services"

	"github.com/hashicorp/go-hclog"
)

type Application struct {
	Config        *config.AppConfig
	DB            *sql.DB
	Logger        hclog.Logger
	RepairService *services.RepairService
	WatchService  *services.WatchService
	Registry      *migration.Registry
	Migrator      *migration.Migrator
}

func NewApplication(cfg *config.AppConfig, db *sql.DB, logger hclog.Logger) (*Application, error) {
	app := &Application{
		Config:   cfg,
		DB:       db,
		Logger:   logger,
		Registry: migration.NewRegistry(),
	}

	app.RepairService = services.NewRepairService(logger)
	app.WatchService = services.NewWatchService(db, app.RepairService, cfg.Watch.Schedule, logger)

	if err := RegisterScripts(app.Registry, app.RepairService); err != nil {
		return nil, err
	}
	app.Migrator = migration.NewMigrator(db, app.Registry, logger)

	return app, nil
}

// RegisterScripts wires the known migration scripts into reg.
func RegisterScripts(reg *migration.Registry, repair *services.RepairService) error {
	return reg.Register("base", "16.0.1.3", migration.Pre, repair.Migrate)
}

func (app *Application) Close() {
	if app.WatchService != nil && app.WatchService.IsRunning() {
		app.WatchService.Stop()
	}

	if app.DB != nil {
		app.DB.Close()
	}
}
