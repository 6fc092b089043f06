package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"db-premigrate/internal/models"

	"github.com/hashicorp/go-hclog"
	"github.com/lib/pq"
)

const (
	// LegacyColumnPrefix marks scratch columns OpenUpgrade leaves behind when
	// a previous run was interrupted.
	LegacyColumnPrefix = "openupgrade_legacy_"

	DefaultSchema = "public"

	dropColumnSavepoint = "premigrate_drop_column"
)

var standardModules = [...]string{
	"base", "crm", "sale", "purchase", "stock", "account", "hr", "project",
	"mail", "contacts", "calendar", "website", "mrp", "point_of_sale",
	"fleet", "maintenance", "helpdesk", "survey", "event", "sale_management",
	"purchase_stock", "account_payment", "hr_expense", "hr_holidays",
}

// StandardModules returns the modules whose window actions are trusted to own
// their view associations. The slice is a fresh copy on every call.
func StandardModules() []string {
	mods := make([]string, len(standardModules))
	copy(mods, standardModules[:])
	return mods
}

const orphanActWindowViewPredicate = `
	NOT EXISTS (
		SELECT 1 FROM ir_model_data imd2
		WHERE imd2.model = 'ir.actions.act_window.view'
		  AND imd2.res_id = awv.id
	)
	AND EXISTS (
		SELECT 1 FROM ir_model_data imd
		WHERE imd.model = 'ir.actions.act_window'
		  AND imd.res_id = awv.act_window_id
		  AND imd.module = ANY($1)
	)`

const (
	countOrphanActWindowViewsQuery = `SELECT COUNT(*) FROM ir_act_window_view awv WHERE` +
		orphanActWindowViewPredicate

	deleteOrphanActWindowViewsQuery = `DELETE FROM ir_act_window_view awv WHERE` +
		orphanActWindowViewPredicate + `
	RETURNING awv.id`

	legacyColumnsQuery = `SELECT table_schema, table_name, column_name
	FROM information_schema.columns
	WHERE column_name LIKE $1
	  AND table_schema NOT IN ('pg_catalog', 'information_schema')
	ORDER BY table_schema, table_name, column_name`

	countSequencesQuery = `SELECT COUNT(*) FROM information_schema.sequences WHERE sequence_schema = $1`
)

// Conn is satisfied by *sql.DB, *sql.Tx and *sql.Conn. Legacy column drops
// are isolated with savepoints only when the runner knows it is inside a
// transaction: a *sql.Tx, or any Conn wrapped with TxConn (for example a
// *sql.Conn on which the caller issued BEGIN).
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txConn struct {
	Conn
}

// TxConn marks conn as running inside a transaction the caller opened.
func TxConn(conn Conn) Conn {
	if _, ok := conn.(txConn); ok {
		return conn
	}
	return txConn{Conn: conn}
}

func inTransaction(conn Conn) bool {
	switch conn.(type) {
	case *sql.Tx, txConn:
		return true
	}
	return false
}

// RepairService fixes the data defects that make the OpenUpgrade base
// pre-migration for 16.0 fail. It never begins or ends transactions; the
// caller owns those.
type RepairService struct {
	logger hclog.Logger
}

func NewRepairService(logger hclog.Logger) *RepairService {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &RepairService{
		logger: logger.Named("repair"),
	}
}

// Run executes the orphan cleanup, legacy column cleanup and sequence check
// in that order. An empty version means a fresh install and nothing is
// executed. Failures to drop individual columns are recorded in the summary
// and do not make Run fail.
func (s *RepairService) Run(ctx context.Context, conn Conn, version string) (*models.RepairSummary, error) {
	summary := &models.RepairSummary{
		Version:   version,
		StartedAt: time.Now(),
	}
	if version == "" {
		summary.Skipped = true
		summary.FinishedAt = summary.StartedAt
		return summary, nil
	}

	s.logger.Info("running pre-migration fixes", "version", version)

	found, removed, err := s.FixOrphanActWindowViews(ctx, conn)
	if err != nil {
		return summary, err
	}
	summary.OrphansFound = found
	summary.OrphansRemoved = removed

	summary.Columns, err = s.CleanupLegacyColumns(ctx, conn)
	if err != nil {
		return summary, err
	}

	summary.SequenceCount, err = s.CountSequences(ctx, conn)
	if err != nil {
		return summary, err
	}

	summary.FinishedAt = time.Now()
	s.logger.Info("pre-migration fixes completed",
		"orphans_removed", summary.OrphansRemoved,
		"columns_dropped", len(summary.DroppedColumns()),
		"columns_failed", len(summary.FailedColumns()),
		"duration", summary.FinishedAt.Sub(summary.StartedAt))

	return summary, nil
}

// Migrate adapts Run to the migration host's script signature.
func (s *RepairService) Migrate(ctx context.Context, tx *sql.Tx, version string) error {
	summary, err := s.Run(ctx, tx, version)
	if err != nil {
		return err
	}
	if err := summary.Err(); err != nil {
		s.logger.Warn("some legacy columns were left in place", "error", err)
	}
	return nil
}

// FixOrphanActWindowViews deletes ir_act_window_view rows that have no
// external id while their window action has one under a standard module.
// Odoo cannot match such rows on upgrade and tries to insert duplicates.
func (s *RepairService) FixOrphanActWindowViews(ctx context.Context, conn Conn) (found, removed int, err error) {
	s.logger.Info("fixing orphan ir_act_window_view records")

	found, err = s.CountOrphanActWindowViews(ctx, conn)
	if err != nil {
		return 0, 0, err
	}
	if found == 0 {
		s.logger.Info("no orphan records found, database is clean")
		return 0, 0, nil
	}

	s.logger.Info("found orphan ir_act_window_view records", "count", found)

	rows, err := conn.QueryContext(ctx, deleteOrphanActWindowViewsQuery, pq.Array(StandardModules()))
	if err != nil {
		return found, 0, fmt.Errorf("failed to delete orphan act window views: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return found, removed, fmt.Errorf("failed to scan deleted act window view id: %w", err)
		}
		removed++
	}
	if err := rows.Err(); err != nil {
		return found, removed, fmt.Errorf("failed to delete orphan act window views: %w", err)
	}

	s.logger.Info("removed orphan records", "count", removed)
	return found, removed, nil
}

func (s *RepairService) CountOrphanActWindowViews(ctx context.Context, conn Conn) (int, error) {
	var count int
	err := conn.QueryRowContext(ctx, countOrphanActWindowViewsQuery, pq.Array(StandardModules())).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orphan act window views: %w", err)
	}
	return count, nil
}

// CleanupLegacyColumns drops every column carrying LegacyColumnPrefix. Each
// drop is attempted independently; when conn is a *sql.Tx the drop runs
// under a savepoint so a failure leaves the transaction usable.
func (s *RepairService) CleanupLegacyColumns(ctx context.Context, conn Conn) ([]models.ColumnResult, error) {
	s.logger.Info("cleaning up leftover OpenUpgrade legacy columns")

	columns, err := s.LegacyColumns(ctx, conn)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		s.logger.Info("no legacy columns found")
		return nil, nil
	}

	s.logger.Info("found legacy columns to remove", "count", len(columns))

	inTx := inTransaction(conn)
	results := make([]models.ColumnResult, 0, len(columns))
	for _, col := range columns {
		var dropErr error
		if inTx {
			dropErr, err = s.dropColumnInSavepoint(ctx, conn, col)
			if err != nil {
				return results, err
			}
		} else {
			dropErr = s.dropColumn(ctx, conn, col)
		}

		result := models.ColumnResult{Column: col, Dropped: dropErr == nil}
		if dropErr != nil {
			result.Error = dropErr.Error()
			s.logger.Warn("could not drop legacy column",
				"schema", col.SchemaName, "table", col.TableName, "column", col.ColumnName, "error", dropErr)
		} else {
			s.logger.Info("dropped legacy column",
				"schema", col.SchemaName, "table", col.TableName, "column", col.ColumnName)
		}
		results = append(results, result)
	}

	return results, nil
}

func (s *RepairService) LegacyColumns(ctx context.Context, conn Conn) ([]models.LegacyColumn, error) {
	rows, err := conn.QueryContext(ctx, legacyColumnsQuery, likePrefix(LegacyColumnPrefix))
	if err != nil {
		return nil, fmt.Errorf("failed to list legacy columns: %w", err)
	}
	defer rows.Close()

	var columns []models.LegacyColumn
	for rows.Next() {
		var col models.LegacyColumn
		if err := rows.Scan(&col.SchemaName, &col.TableName, &col.ColumnName); err != nil {
			return nil, fmt.Errorf("failed to scan legacy column: %w", err)
		}
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (s *RepairService) dropColumn(ctx context.Context, conn Conn, col models.LegacyColumn) error {
	_, err := conn.ExecContext(ctx, dropColumnStatement(col))
	return err
}

// dropColumnInSavepoint returns the drop failure separately from failures of
// the savepoint bookkeeping, which leave the transaction unusable.
func (s *RepairService) dropColumnInSavepoint(ctx context.Context, conn Conn, col models.LegacyColumn) (dropErr, err error) {
	if _, err := conn.ExecContext(ctx, "SAVEPOINT "+dropColumnSavepoint); err != nil {
		return nil, fmt.Errorf("failed to create savepoint: %w", err)
	}

	if dropErr = s.dropColumn(ctx, conn, col); dropErr != nil {
		if _, err := conn.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+dropColumnSavepoint); err != nil {
			return dropErr, fmt.Errorf("failed to roll back to savepoint: %w", err)
		}
		return dropErr, nil
	}

	if _, err := conn.ExecContext(ctx, "RELEASE SAVEPOINT "+dropColumnSavepoint); err != nil {
		return nil, fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil, nil
}

func dropColumnStatement(col models.LegacyColumn) string {
	table := pq.QuoteIdentifier(col.TableName)
	if col.SchemaName != "" {
		table = pq.QuoteIdentifier(col.SchemaName) + "." + table
	}
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", table, pq.QuoteIdentifier(col.ColumnName))
}

// likePrefix turns a literal prefix into a LIKE pattern, escaping wildcards.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// CountSequences reports how many sequences live in the public schema. It is
// informational only.
func (s *RepairService) CountSequences(ctx context.Context, conn Conn) (int, error) {
	s.logger.Info("checking sequences")

	count, err := countSequences(ctx, conn)
	if err != nil {
		return 0, err
	}

	s.logger.Info("sequence check completed", "schema", DefaultSchema, "count", count)
	return count, nil
}

func countSequences(ctx context.Context, conn Conn) (int, error) {
	var count int
	if err := conn.QueryRowContext(ctx, countSequencesQuery, DefaultSchema).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sequences: %w", err)
	}
	return count, nil
}

// Diagnose runs the same checks as Run without changing anything.
func (s *RepairService) Diagnose(ctx context.Context, conn Conn) (*models.Diagnosis, error) {
	orphans, err := s.CountOrphanActWindowViews(ctx, conn)
	if err != nil {
		return nil, err
	}

	columns, err := s.LegacyColumns(ctx, conn)
	if err != nil {
		return nil, err
	}

	sequences, err := countSequences(ctx, conn)
	if err != nil {
		return nil, err
	}

	return &models.Diagnosis{
		OrphanActWindowViews: orphans,
		LegacyColumns:        columns,
		SequenceCount:        sequences,
		CheckedAt:            time.Now(),
	}, nil
}
