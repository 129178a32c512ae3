package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	sq "github.com/Masterminds/squirrel"

	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/ports"
)

// SQLUsageStore keeps the rationale usage table in the rationale_usage table.
type SQLUsageStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.UsageStore = (*SQLUsageStore)(nil)

func NewSQLUsageStore(db *sql.DB, driver string) *SQLUsageStore {
	return &SQLUsageStore{db: db, sb: builder(driver)}
}

func (s *SQLUsageStore) Load(ctx context.Context) (domain.UsageTable, error) {
	query, args, err := s.sb.Select("evaluator", "uses", "total_engagement").From("rationale_usage").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build usage query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	table := domain.UsageTable{}
	for rows.Next() {
		var (
			name string
			u    domain.Usage
		)
		if err := rows.Scan(&name, &u.Uses, &u.TotalEngagement); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		table[name] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return table, nil
}

// Save upserts every row of the table in one transaction.
func (s *SQLUsageStore) Save(ctx context.Context, table domain.UsageTable) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin usage tx: %w", err)
	}

	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		u := table[name]
		query, args, err := s.sb.Insert("rationale_usage").
			Columns("evaluator", "uses", "total_engagement").
			Values(name, u.Uses, u.TotalEngagement).
			Suffix("ON CONFLICT (evaluator) DO UPDATE SET uses = EXCLUDED.uses, total_engagement = EXCLUDED.total_engagement").
			ToSql()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("build usage upsert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert usage %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit usage: %w", err)
	}
	return nil
}

// MemoryUsageStore is an in-process tracker.
type MemoryUsageStore struct {
	mu    sync.Mutex
	table domain.UsageTable
}

var _ ports.UsageStore = (*MemoryUsageStore)(nil)

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{table: domain.UsageTable{}}
}

func (m *MemoryUsageStore) Load(context.Context) (domain.UsageTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.Clone(), nil
}

func (m *MemoryUsageStore) Save(_ context.Context, table domain.UsageTable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table = table.Clone()
	return nil
}
