package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/ports"
)

// ReportRepository persists processed article reports.
type ReportRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.ReportRepository = (*ReportRepository)(nil)

// NewReportRepository wires a sql.DB opened with the given driver.
func NewReportRepository(db *sql.DB, driver string) *ReportRepository {
	return &ReportRepository{db: db, sb: builder(driver)}
}

// AlreadyProcessed returns a map with IDs that already exist in storage.
func (r *ReportRepository) AlreadyProcessed(ctx context.Context, ids []string) (map[string]bool, error) {
	if r.db == nil || len(ids) == 0 {
		return map[string]bool{}, nil
	}

	query, args, err := r.sb.Select("external_id").
		From("processed_articles").
		Where(sq.Eq{"external_id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build processed query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query processed: %w", err)
	}

	result := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = true
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// SaveReport upserts the report snapshot.
func (r *ReportRepository) SaveReport(ctx context.Context, report domain.Report) error {
	if r.db == nil {
		return nil
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	query, args, err := r.sb.Insert("processed_articles").
		Columns("external_id", "run_id", "title", "url", "final_consensus", "verified", "status", "report", "processed_at").
		Values(
			report.Article.ID,
			report.RunID,
			report.Article.Title,
			report.Article.URL,
			report.Consensus.FinalConsensus,
			report.Consensus.Verified,
			string(domain.StatusPublished),
			string(payload),
			report.ProcessedAt.UnixMilli(),
		).
		Suffix(`ON CONFLICT (external_id) DO UPDATE
			SET run_id = EXCLUDED.run_id,
			    final_consensus = EXCLUDED.final_consensus,
			    verified = EXCLUDED.verified,
			    status = EXCLUDED.status,
			    report = EXCLUDED.report,
			    processed_at = EXCLUDED.processed_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// RecentReports returns the newest reports first.
func (r *ReportRepository) RecentReports(ctx context.Context, limit int) ([]domain.Report, error) {
	if r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	query, args, err := r.sb.Select("report").
		From("processed_articles").
		OrderBy("processed_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var reports []domain.Report
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		var report domain.Report
		if err := json.Unmarshal([]byte(raw), &report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return reports, nil
}
