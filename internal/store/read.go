package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/kiln/internal/engine"
	"github.com/roach88/kiln/internal/ir"
)

var buildColumns = []string{
	"id", "seq", "started", "finished", "ok", "strict", "cancelled",
	"rules", "outputs", "failures", "collisions", "warnings",
}

// Builds returns the most recent builds, newest first. limit <= 0 returns
// all of them.
//
// Returns an empty slice (not nil) if the manifest is empty.
func (s *Store) Builds(ctx context.Context, limit int) ([]BuildRecord, error) {
	q := Query{
		From:    "builds",
		Columns: buildColumns,
		Order:   []string{"seq DESC"},
		Limit:   limit,
	}
	rows, err := s.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	builds := []BuildRecord{}
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	return builds, nil
}

// Build retrieves a single build by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) Build(ctx context.Context, id string) (BuildRecord, error) {
	q := Query{
		From:    "builds",
		Columns: buildColumns,
		Filter:  Equals{Field: "id", Value: id},
		Order:   []string{"seq"},
	}
	query, params, err := compileQuery(q)
	if err != nil {
		return BuildRecord{}, err
	}
	return scanBuild(s.db.QueryRowContext(ctx, query, params...))
}

// LatestBuild returns the newest build.
// Returns sql.ErrNoRows if the manifest is empty.
func (s *Store) LatestBuild(ctx context.Context) (BuildRecord, error) {
	query, params, err := compileQuery(Query{
		From:    "builds",
		Columns: buildColumns,
		Order:   []string{"seq DESC"},
		Limit:   1,
	})
	if err != nil {
		return BuildRecord{}, err
	}
	return scanBuild(s.db.QueryRowContext(ctx, query, params...))
}

// LoadReport decodes the full report stored with a build. Failure.Err and
// the trace are not stored.
// Returns sql.ErrNoRows if not found.
func (s *Store) LoadReport(ctx context.Context, id string) (*engine.Report, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT report FROM builds WHERE id = ?`, id).Scan(&blob)
	if err != nil {
		return nil, err
	}
	var report engine.Report
	if err := ir.Decode(blob, &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &report, nil
}

// RuleResults returns the rule rows of a build in registration order.
func (s *Store) RuleResults(ctx context.Context, buildID string, f RuleFilter) ([]RuleRecord, error) {
	q := Query{
		From: "rule_results",
		Columns: []string{
			"build_id", "position", "name", "mode", "state",
			"selected", "committed", "skipped", "failed", "cancelled", "digest", "reason",
		},
		Filter: Where("build_id", buildID, "name", f.Name, "state", f.State),
		Order:  []string{"position"},
	}
	rows, err := s.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query rule results: %w", err)
	}
	defer rows.Close()

	out := []RuleRecord{}
	for rows.Next() {
		var r RuleRecord
		err := rows.Scan(&r.BuildID, &r.Position, &r.Name, &r.Mode, &r.State,
			&r.Selected, &r.Committed, &r.Skipped, &r.Failed, &r.Cancelled, &r.Digest, &r.Reason)
		if err != nil {
			return nil, fmt.Errorf("scan rule result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule results: %w", err)
	}
	return out, nil
}

// Outputs returns the committed output paths of a build, optionally for
// one rule, ordered by path.
func (s *Store) Outputs(ctx context.Context, buildID, rule string) ([]OutputRecord, error) {
	q := Query{
		From:    "outputs",
		Columns: []string{"build_id", "rule", "path"},
		Filter:  Where("build_id", buildID, "rule", rule),
		Order:   []string{"path", "rule"},
	}
	rows, err := s.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query outputs: %w", err)
	}
	defer rows.Close()

	out := []OutputRecord{}
	for rows.Next() {
		var o OutputRecord
		if err := rows.Scan(&o.BuildID, &o.Rule, &o.Path); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outputs: %w", err)
	}
	return out, nil
}

// Failures returns the failures of a build in report order.
func (s *Store) Failures(ctx context.Context, buildID string, f FailureFilter) ([]FailureRecord, error) {
	q := Query{
		From:    "failures",
		Columns: []string{"build_id", "position", "rule", "source", "step", "message"},
		Filter:  Where("build_id", buildID, "rule", f.Rule, "step", f.Step),
		Order:   []string{"position"},
	}
	rows, err := s.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	out := []FailureRecord{}
	for rows.Next() {
		var r FailureRecord
		if err := rows.Scan(&r.BuildID, &r.Position, &r.Rule, &r.Source, &r.Step, &r.Message); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return out, nil
}

// Select runs q and returns the rows. Callers are responsible for closing
// them.
func (s *Store) Select(ctx context.Context, q Query) (*sql.Rows, error) {
	query, params, err := compileQuery(q)
	if err != nil {
		return nil, err
	}
	return s.db.QueryContext(ctx, query, params...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuild(row rowScanner) (BuildRecord, error) {
	var (
		b                 BuildRecord
		started, finished string
	)
	err := row.Scan(&b.ID, &b.Seq, &started, &finished, &b.OK, &b.Strict, &b.Cancelled,
		&b.Rules, &b.Outputs, &b.Failures, &b.Collisions, &b.Warnings)
	if err != nil {
		if err == sql.ErrNoRows {
			return BuildRecord{}, err
		}
		return BuildRecord{}, fmt.Errorf("scan build: %w", err)
	}
	if b.Started, err = parseTime(started); err != nil {
		return BuildRecord{}, fmt.Errorf("scan build %s: started: %w", b.ID, err)
	}
	if b.Finished, err = parseTime(finished); err != nil {
		return BuildRecord{}, fmt.Errorf("scan build %s: finished: %w", b.ID, err)
	}
	return b, nil
}
