package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/strata/internal/types"

	_ "modernc.org/sqlite"
)

// Store is the interface for reading and writing activity entries.
type Store interface {
	// WriteEntries writes one or more activity entries (one event → many entries).
	WriteEntries(ctx context.Context, entries []types.ActivityEntry) error

	// QueryByEntity returns activity entries for a specific entity.
	QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) (entries []types.ActivityEntry, nextCursor string, totalCount int, err error)

	// Search performs a case-insensitive substring search across activity summaries.
	Search(ctx context.Context, query string, opts SearchOptions) (entries []types.ActivityEntry, totalCount int, err error)
}

const table = "activity_entries"

var columns = []string{
	"event_id", "event_type", "occurred_at", "indexed_entity_type", "indexed_entity_id",
	"entity_role", "source_refs", "summary", "category", "weight", "polarity", "payload",
}

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS activity_entries (
		event_id            TEXT NOT NULL,
		event_type          TEXT NOT NULL,
		occurred_at         INTEGER NOT NULL,
		indexed_entity_type TEXT NOT NULL,
		indexed_entity_id   TEXT NOT NULL,
		entity_role         TEXT NOT NULL,
		source_refs         TEXT NOT NULL DEFAULT '[]',
		summary             TEXT NOT NULL,
		category            TEXT NOT NULL,
		weight              TEXT NOT NULL,
		polarity            TEXT NOT NULL,
		payload             BLOB,
		PRIMARY KEY (indexed_entity_type, indexed_entity_id, occurred_at, event_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_entity_time
		ON activity_entries (indexed_entity_type, indexed_entity_id, occurred_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_entity_category_time
		ON activity_entries (indexed_entity_type, indexed_entity_id, category, occurred_at DESC)`,
}

// SQLiteStore implements Store on a SQLite database. occurred_at is stored as
// unix nanoseconds so ordering and range filters stay exact.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and ensures the schema.
// Use ":memory:" for an ephemeral store.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// A single connection keeps in-memory databases coherent and serialises writers.
	db.SetMaxOpenConns(1)
	s := NewSQLiteStore(db)
	if err := s.CreateTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an already opened database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// CreateTable creates the activity_entries table and its indexes.
func (s *SQLiteStore) CreateTable(ctx context.Context) error {
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating activity schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteEntries inserts activity entries. Duplicate keys are ignored.
func (s *SQLiteStore) WriteEntries(ctx context.Context, entries []types.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ins := entsql.Dialect(dialect.SQLite).Insert(table).Columns(columns...)
	for _, e := range entries {
		refsJSON, err := json.Marshal(e.SourceRefs)
		if err != nil {
			return fmt.Errorf("encoding source refs: %w", err)
		}
		if e.SourceRefs == nil {
			refsJSON = []byte("[]")
		}
		var payload any
		if len(e.Payload) > 0 {
			payload = []byte(e.Payload)
		}
		ins.Values(
			e.EventID, e.EventType, e.OccurredAt.UnixNano(), e.IndexedEntityType, e.IndexedEntityID,
			e.EntityRole, string(refsJSON), e.Summary, e.Category, e.Weight, e.Polarity, payload,
		)
	}
	query, args := ins.OnConflict(entsql.DoNothing()).Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting activity entries: %w", err)
	}
	return nil
}

// QueryByEntity returns activity entries for a specific entity with filtering and pagination.
func (s *SQLiteStore) QueryByEntity(ctx context.Context, entityType, entityID string, opts QueryOptions) ([]types.ActivityEntry, string, int, error) {
	before, err := opts.before()
	if err != nil {
		return nil, "", 0, err
	}
	limit := opts.pageSize()

	where := func() *entsql.Predicate {
		preds := []*entsql.Predicate{
			entsql.EQ("indexed_entity_type", entityType),
			entsql.EQ("indexed_entity_id", entityID),
		}
		if opts.Since != nil {
			preds = append(preds, entsql.GTE("occurred_at", opts.Since.UnixNano()))
		}
		if opts.Until != nil {
			preds = append(preds, entsql.LTE("occurred_at", opts.Until.UnixNano()))
		}
		if len(opts.Categories) > 0 {
			preds = append(preds, entsql.In("category", anySlice(opts.Categories)...))
		}
		if opts.MinWeight != "" && opts.MinWeight != "info" {
			preds = append(preds, entsql.In("weight", anySlice(weightsAtLeast(opts.MinWeight))...))
		}
		if !before.IsZero() {
			preds = append(preds, entsql.LT("occurred_at", before.UnixNano()))
		}
		return entsql.And(preds...)
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Select(columns...).
		From(entsql.Table(table)).
		Where(where()).
		OrderBy(entsql.Desc("occurred_at")).
		Limit(limit + 1). // one extra for the cursor
		Query()

	entries, err := s.scan(ctx, query, args)
	if err != nil {
		return nil, "", 0, err
	}

	var nextCursor string
	if len(entries) > limit {
		entries = entries[:limit]
		nextCursor = cursorFor(entries[limit-1])
	}

	total, err := s.count(ctx, where())
	if err != nil {
		return nil, "", 0, err
	}
	return entries, nextCursor, total, nil
}

// Search performs a case-insensitive substring search across activity summaries.
func (s *SQLiteStore) Search(ctx context.Context, q string, opts SearchOptions) ([]types.ActivityEntry, int, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}

	where := func() *entsql.Predicate {
		preds := []*entsql.Predicate{entsql.ContainsFold("summary", q)}
		if opts.EntityType != "" {
			preds = append(preds, entsql.EQ("indexed_entity_type", opts.EntityType))
		}
		if opts.Since != nil {
			preds = append(preds, entsql.GTE("occurred_at", opts.Since.UnixNano()))
		}
		if len(opts.Categories) > 0 {
			preds = append(preds, entsql.In("category", anySlice(opts.Categories)...))
		}
		return entsql.And(preds...)
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Select(columns...).
		From(entsql.Table(table)).
		Where(where()).
		OrderBy(entsql.Desc("occurred_at")).
		Limit(opts.Limit).
		Query()

	entries, err := s.scan(ctx, query, args)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.count(ctx, where())
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *SQLiteStore) count(ctx context.Context, where *entsql.Predicate) (int, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select(entsql.Count("*")).
		From(entsql.Table(table)).
		Where(where).
		Query()
	var total int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("counting activity entries: %w", err)
	}
	return total, nil
}

func (s *SQLiteStore) scan(ctx context.Context, query string, args []any) ([]types.ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity entries: %w", err)
	}
	defer rows.Close()

	var entries []types.ActivityEntry
	for rows.Next() {
		var (
			e           types.ActivityEntry
			occurredAt  int64
			refsJSON    string
			payloadJSON []byte
		)
		err := rows.Scan(
			&e.EventID, &e.EventType, &occurredAt, &e.IndexedEntityType, &e.IndexedEntityID,
			&e.EntityRole, &refsJSON, &e.Summary, &e.Category, &e.Weight, &e.Polarity, &payloadJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}
		e.OccurredAt = time.Unix(0, occurredAt).UTC()
		if refsJSON != "" {
			if err := json.Unmarshal([]byte(refsJSON), &e.SourceRefs); err != nil {
				return nil, fmt.Errorf("decoding source refs for %s: %w", e.EventID, err)
			}
		}
		if len(payloadJSON) > 0 {
			e.Payload = payloadJSON
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// weightsAtLeast lists every weight at least as severe as threshold.
func weightsAtLeast(threshold string) []string {
	var out []string
	for w := range WeightOrder {
		if IsAtLeastWeight(w, threshold) {
			out = append(out, w)
		}
	}
	return out
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
