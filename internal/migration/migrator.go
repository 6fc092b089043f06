package migration

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// Migrator owns the transaction the registered scripts run in.
type Migrator struct {
	db       *sql.DB
	registry *Registry
	logger   hclog.Logger
}

func NewMigrator(db *sql.DB, registry *Registry, logger hclog.Logger) *Migrator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Migrator{
		db:       db,
		registry: registry,
		logger:   logger.Named("migrator"),
	}
}

// Run executes the pre-migration scripts of module between installed and
// target. All scripts share one transaction; the first error rolls it back.
func (m *Migrator) Run(ctx context.Context, module, installed, target string) error {
	keys, scripts, err := m.registry.Scripts(module, Pre, installed, target)
	if err != nil {
		return err
	}
	if len(scripts) == 0 {
		m.logger.Info("no pre-migration scripts to run", "module", module, "installed", installed, "target", target)
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}

	for i, script := range scripts {
		m.logger.Info("running script", "script", keys[i], "installed", installed)
		if err := script(ctx, tx, installed); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				m.logger.Error("rollback failed", "script", keys[i], "error", rbErr)
			}
			return fmt.Errorf("script %s failed: %w", keys[i], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	m.logger.Info("pre-migration scripts committed", "module", module, "count", len(scripts))
	return nil
}
