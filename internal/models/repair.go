package models

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

type LegacyColumn struct {
	SchemaName string `json:"schema_name"`
	TableName  string `json:"table_name"`
	ColumnName string `json:"column_name"`
}

func (c LegacyColumn) String() string {
	if c.SchemaName == "" {
		return fmt.Sprintf("%s.%s", c.TableName, c.ColumnName)
	}
	return fmt.Sprintf("%s.%s.%s", c.SchemaName, c.TableName, c.ColumnName)
}

// ColumnResult records the outcome of dropping a single legacy column.
type ColumnResult struct {
	Column  LegacyColumn `json:"column"`
	Dropped bool         `json:"dropped"`
	Error   string       `json:"error,omitempty"`
}

type RepairSummary struct {
	Version        string         `json:"version"`
	Skipped        bool           `json:"skipped"`
	OrphansFound   int            `json:"orphans_found"`
	OrphansRemoved int            `json:"orphans_removed"`
	Columns        []ColumnResult `json:"columns"`
	SequenceCount  int            `json:"sequence_count"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}

func (s *RepairSummary) DroppedColumns() []LegacyColumn {
	var cols []LegacyColumn
	for _, r := range s.Columns {
		if r.Dropped {
			cols = append(cols, r.Column)
		}
	}
	return cols
}

func (s *RepairSummary) FailedColumns() []ColumnResult {
	var failed []ColumnResult
	for _, r := range s.Columns {
		if !r.Dropped {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err aggregates every failed column drop. It is nil when all drops succeeded.
func (s *RepairSummary) Err() error {
	var result *multierror.Error
	for _, r := range s.FailedColumns() {
		result = multierror.Append(result, fmt.Errorf("drop %s: %s", r.Column, r.Error))
	}
	return result.ErrorOrNil()
}

// Diagnosis is a read-only snapshot of the defects the repair runner targets.
type Diagnosis struct {
	OrphanActWindowViews int            `json:"orphan_act_window_views"`
	LegacyColumns        []LegacyColumn `json:"legacy_columns"`
	SequenceCount        int            `json:"sequence_count"`
	CheckedAt            time.Time      `json:"checked_at"`
}

func (d *Diagnosis) Clean() bool {
	return d.OrphanActWindowViews == 0 && len(d.LegacyColumns) == 0
}
