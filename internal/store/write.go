package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/kiln/internal/engine"
	"github.com/roach88/kiln/internal/ir"
)

// RecordBuild writes a finished build to the manifest in one transaction
// and returns the stored record.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency: recording the same
// build ID twice returns the existing record and writes nothing.
func (s *Store) RecordBuild(ctx context.Context, report *engine.Report, strict bool) (BuildRecord, error) {
	blob, err := ir.Encode(report)
	if err != nil {
		return BuildRecord{}, fmt.Errorf("record build: encode report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return BuildRecord{}, fmt.Errorf("record build: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM builds`).Scan(&seq); err != nil {
		return BuildRecord{}, fmt.Errorf("record build: next seq: %w", err)
	}

	rec := BuildRecord{
		ID:         report.BuildID,
		Seq:        seq,
		Started:    report.Started.UTC(),
		Finished:   report.Finished.UTC(),
		OK:         report.OK(strict),
		Strict:     strict,
		Cancelled:  report.Cancelled,
		Rules:      len(report.Rules),
		Outputs:    report.Outputs(),
		Failures:   len(report.Failures),
		Collisions: len(report.Collisions),
		Warnings:   len(report.Warnings),
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO builds
		(id, seq, started, finished, ok, strict, cancelled, rules, outputs, failures, collisions, warnings, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		formatTime(rec.Started),
		formatTime(rec.Finished),
		rec.OK,
		rec.Strict,
		rec.Cancelled,
		rec.Rules,
		rec.Outputs,
		rec.Failures,
		rec.Collisions,
		rec.Warnings,
		blob,
	)
	if err != nil {
		return BuildRecord{}, fmt.Errorf("record build: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return BuildRecord{}, fmt.Errorf("record build: rows affected: %w", err)
	} else if n == 0 {
		tx.Rollback()
		return s.Build(ctx, report.BuildID)
	}

	if err := insertRules(ctx, tx, report); err != nil {
		return BuildRecord{}, err
	}
	if err := insertFailures(ctx, tx, report); err != nil {
		return BuildRecord{}, err
	}

	if err := tx.Commit(); err != nil {
		return BuildRecord{}, fmt.Errorf("record build: commit: %w", err)
	}
	return rec, nil
}

func insertRules(ctx context.Context, tx *sql.Tx, report *engine.Report) error {
	ruleStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rule_results
		(build_id, position, name, mode, state, selected, committed, skipped, failed, cancelled, digest, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("record build: prepare rules: %w", err)
	}
	defer ruleStmt.Close()

	outStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outputs (build_id, rule, path) VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("record build: prepare outputs: %w", err)
	}
	defer outStmt.Close()

	for i, rr := range report.Rules {
		_, err := ruleStmt.ExecContext(ctx,
			report.BuildID, i, rr.Name, rr.Mode, string(rr.State),
			rr.Selected, rr.Committed, rr.Skipped, rr.Failed, rr.Cancelled,
			rr.Digest, rr.Reason,
		)
		if err != nil {
			return fmt.Errorf("record build: rule %s: %w", rr.Name, err)
		}
		for _, out := range rr.Outputs {
			if _, err := outStmt.ExecContext(ctx, report.BuildID, rr.Name, out); err != nil {
				return fmt.Errorf("record build: output %s: %w", out, err)
			}
		}
	}
	return nil
}

func insertFailures(ctx context.Context, tx *sql.Tx, report *engine.Report) error {
	if len(report.Failures) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO failures (build_id, position, rule, source, step, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("record build: prepare failures: %w", err)
	}
	defer stmt.Close()

	for i, f := range report.Failures {
		if _, err := stmt.ExecContext(ctx, report.BuildID, i, f.Rule, f.Source, f.Step, f.Message); err != nil {
			return fmt.Errorf("record build: failure %d: %w", i, err)
		}
	}
	return nil
}

// Prune deletes all but the newest keep builds. Dependent rows go with
// them through ON DELETE CASCADE. Returns the number of builds deleted.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("prune: keep must be >= 0, got %d", keep)
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM builds
		WHERE seq NOT IN (SELECT seq FROM builds ORDER BY seq DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune: rows affected: %w", err)
	}
	return n, nil
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
