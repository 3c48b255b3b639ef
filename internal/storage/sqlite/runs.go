package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/steveyegge/swarm/internal/types"
)

const runColumns = `id, target_dir, max_iterations, model, status, discovered, total, validated,
	failed, input_tokens, output_tokens, cost_usd, started_at, completed_at`

// CreateRun inserts a new run
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *types.RunRecord) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.TargetDir, run.MaxIterations, run.Model, string(run.Status),
		run.Discovered, run.Total, run.Validated, run.Failed,
		run.InputTokens, run.OutputTokens, run.CostUSD,
		formatTime(run.StartedAt), nullTime(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return nil
}

// CompleteRun stores a run's final status, counts and usage
func (s *SQLiteStorage) CompleteRun(ctx context.Context, run *types.RunRecord) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, discovered = ?, total = ?, validated = ?, failed = ?,
		    input_tokens = ?, output_tokens = ?, cost_usd = ?, completed_at = ?
		WHERE id = ?
	`,
		string(run.Status), run.Discovered, run.Total, run.Validated, run.Failed,
		run.InputTokens, run.OutputTokens, run.CostUSD, nullTime(run.CompletedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", run.ID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// GetRun returns the run with id, or nil if there is none
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*types.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*types.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*types.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*types.RunRecord, error) {
	var (
		run         types.RunRecord
		status      string
		startedAt   string
		completedAt sql.NullString
	)
	err := row.Scan(
		&run.ID, &run.TargetDir, &run.MaxIterations, &run.Model, &status,
		&run.Discovered, &run.Total, &run.Validated, &run.Failed,
		&run.InputTokens, &run.OutputTokens, &run.CostUSD,
		&startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = types.RunStatus(status)
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		run.CompletedAt = &t
	}
	return &run, nil
}

// RecordFile appends a file outcome to a run, preserving processing order
func (s *SQLiteStorage) RecordFile(ctx context.Context, runID string, rec *types.FileRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_records (
			run_id, seq, file_path, file_name, status, failure_reason, failure_detail,
			iterations, findings_seen, findings_remediated, changed, duration_ms,
			input_tokens, output_tokens
		) VALUES (
			?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM file_records WHERE run_id = ?),
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		)
	`,
		runID, runID,
		rec.FilePath, rec.FileName, string(rec.Status), string(rec.FailureReason), rec.FailureDetail,
		rec.Iterations, rec.FindingsSeen, rec.FindingsRemediated, rec.Changed, rec.Duration.Milliseconds(),
		rec.InputTokens, rec.OutputTokens,
	)
	if err != nil {
		return fmt.Errorf("failed to record file %s for run %s: %w", rec.FilePath, runID, err)
	}
	return nil
}

// GetFileRecords returns a run's file outcomes in processing order
func (s *SQLiteStorage) GetFileRecords(ctx context.Context, runID string) ([]*types.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_path, file_name, status, failure_reason, failure_detail,
		       iterations, findings_seen, findings_remediated, changed, duration_ms,
		       input_tokens, output_tokens
		FROM file_records
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query file records: %w", err)
	}
	defer rows.Close()

	var records []*types.FileRecord
	for rows.Next() {
		var (
			rec        types.FileRecord
			status     string
			reason     string
			durationMs int64
		)
		err := rows.Scan(
			&rec.FilePath, &rec.FileName, &status, &reason, &rec.FailureDetail,
			&rec.Iterations, &rec.FindingsSeen, &rec.FindingsRemediated, &rec.Changed, &durationMs,
			&rec.InputTokens, &rec.OutputTokens,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file record: %w", err)
		}
		rec.RunID = runID
		rec.Status = types.WorkflowStatus(status)
		rec.FailureReason = types.FailureReason(reason)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file record rows: %w", err)
	}
	return records, nil
}

// PruneRuns deletes all but the keep most recent runs, with their file
// records and events. keep <= 0 deletes nothing. Returns the number of runs deleted.
func (s *SQLiteStorage) PruneRuns(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Runs beyond the newest keep, in the same order ListRuns uses
	const stale = `
		SELECT id FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT -1 OFFSET ?
	`
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE run_id IN (`+stale+`)`, keep); err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id IN (`+stale+`)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return int(deleted), nil
}
