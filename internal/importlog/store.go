// Package importlog persists per-record batch outcomes for auditing.
package importlog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/catsync/catsync/internal/platform/db"
)

// Entry is one logged record outcome.
type Entry struct {
	ID        int64     `json:"id"`
	BatchID   string    `json:"batch_id"`
	SKU       string    `json:"sku"`
	Operation string    `json:"operation"`
	StoreID   int64     `json:"store_id"`
	Outcome   string    `json:"outcome"`
	Warning   string    `json:"warning,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	BatchID string
	SKU     string
	Outcome string
	Limit   int
	Offset  int
}

const defaultLimit = 200

// Store reads and writes import_batch_log rows.
type Store struct {
	q db.Queryer
}

// NewStore constructs a Store.
func NewStore(q db.Queryer) *Store {
	return &Store{q: q}
}

// Insert appends entries in one statement.
func (s *Store) Insert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO import_batch_log
			(batch_id, sku, operation, store_id, outcome, warning, error, created_at)
		VALUES `)
	args := make([]any, 0, len(entries)*7)
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, NOW())",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, e.BatchID, e.SKU, e.Operation, e.StoreID, e.Outcome, e.Warning, e.Error)
	}
	if _, err := s.q.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("importlog: insert: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	var conds []string
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, cond+"$"+strconv.Itoa(len(args)))
	}
	if f.BatchID != "" {
		add("batch_id = ", f.BatchID)
	}
	if f.SKU != "" {
		add("sku = ", f.SKU)
	}
	if f.Outcome != "" {
		add("outcome = ", f.Outcome)
	}

	query := `
		SELECT id, batch_id, sku, operation, store_id, outcome, warning, error, created_at
		FROM import_batch_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	args = append(args, limit)
	query += " ORDER BY id DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, f.Offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("importlog: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BatchID, &e.SKU, &e.Operation, &e.StoreID, &e.Outcome, &e.Warning, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("importlog: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries older than the cutoff and reports how many went.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM import_batch_log WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("importlog: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}
