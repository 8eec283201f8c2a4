package lineage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository persists split records and the order number sequence in Postgres.
type Repository struct {
	db dbtx
}

// NewRepository constructs a Repository backed by the pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// RecordSplit appends a split record and fills in its id and timestamp.
func (r *Repository) RecordSplit(ctx context.Context, rec *SplitRecord) error {
	if rec == nil || strings.TrimSpace(rec.ParentOrderID) == "" || strings.TrimSpace(rec.ChildOrderID) == "" {
		return errors.New("lineage: parent and child order ids required")
	}
	if rec.ParentOrderID == rec.ChildOrderID {
		return errors.New("lineage: order cannot be split into itself")
	}
	err := r.db.QueryRow(ctx, `INSERT INTO order_splits (parent_order_id, child_order_id, split_reason, created_by)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`, rec.ParentOrderID, rec.ChildOrderID, rec.SplitReason, rec.CreatedBy).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("lineage: insert split: %w", err)
	}
	return nil
}

// SequenceNext atomically increments and returns the counter for prefix.
// The first allocation for a prefix returns 1.
func (r *Repository) SequenceNext(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, errors.New("lineage: sequence prefix required")
	}
	var next int
	err := r.db.QueryRow(ctx, `INSERT INTO split_order_sequence (prefix, current_number) VALUES ($1, 1)
ON CONFLICT (prefix) DO UPDATE SET current_number = split_order_sequence.current_number + 1
RETURNING current_number`, prefix).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("lineage: next sequence %s: %w", prefix, err)
	}
	return next, nil
}

// HistoryFor returns the records where orderID is the parent or the child, newest first.
func (r *Repository) HistoryFor(ctx context.Context, orderID string) ([]SplitRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT id, parent_order_id, child_order_id, COALESCE(split_reason, ''), COALESCE(created_by, ''), created_at
FROM order_splits
WHERE parent_order_id = $1 OR child_order_id = $1
ORDER BY created_at DESC, id DESC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("lineage: query history: %w", err)
	}
	defer rows.Close()

	var out []SplitRecord
	for rows.Next() {
		var rec SplitRecord
		if err := rows.Scan(&rec.ID, &rec.ParentOrderID, &rec.ChildOrderID, &rec.SplitReason, &rec.CreatedBy, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("lineage: scan history: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
