// Package workflow records department review assignments for edited orders.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Assignment asks the selected departments to review an order change.
type Assignment struct {
	ID                  int64     `json:"id"`
	OrderID             string    `json:"netsuite_id"`
	UpdatedBy           string    `json:"updated_by"`
	SelectedDepartments []string  `json:"selected_departments"`
	CreatedAt           time.Time `json:"created_at"`
}

// Recipient is an active staff member reachable on Telegram.
type Recipient struct {
	Name           string
	DepartmentCode string
	ChatID         string
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository persists assignments in order_workflow.
type Repository struct {
	db dbtx
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// SaveAssignment appends an assignment row.
func (r *Repository) SaveAssignment(ctx context.Context, a *Assignment) error {
	if a == nil || strings.TrimSpace(a.OrderID) == "" {
		return errors.New("workflow: order id required")
	}
	if len(a.SelectedDepartments) == 0 {
		return errors.New("workflow: at least one department required")
	}
	err := r.db.QueryRow(ctx, `INSERT INTO order_workflow (netsuite_id, updated_by, selected_departments)
VALUES ($1, $2, $3)
RETURNING id, created_at`, a.OrderID, a.UpdatedBy, a.SelectedDepartments).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("workflow: insert assignment: %w", err)
	}
	return nil
}

// LatestAssignment returns the most recent assignment for an order, or nil.
func (r *Repository) LatestAssignment(ctx context.Context, orderID string) (*Assignment, error) {
	var a Assignment
	err := r.db.QueryRow(ctx, `SELECT id, netsuite_id, updated_by, selected_departments, created_at
FROM order_workflow
WHERE netsuite_id = $1
ORDER BY created_at DESC, id DESC
LIMIT 1`, orderID).Scan(&a.ID, &a.OrderID, &a.UpdatedBy, &a.SelectedDepartments, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("workflow: latest assignment: %w", err)
	}
	return &a, nil
}

// DepartmentRecipients lists active staff with a chat id in any of the departments.
func (r *Repository) DepartmentRecipients(ctx context.Context, departments []string) ([]Recipient, error) {
	if len(departments) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT name, department_code, telegram_chat_id
FROM staff
WHERE active AND department_code = ANY($1) AND COALESCE(telegram_chat_id, '') <> ''
ORDER BY department_code, name`, departments)
	if err != nil {
		return nil, fmt.Errorf("workflow: query recipients: %w", err)
	}
	defer rows.Close()

	var out []Recipient
	for rows.Next() {
		var rec Recipient
		if err := rows.Scan(&rec.Name, &rec.DepartmentCode, &rec.ChatID); err != nil {
			return nil, fmt.Errorf("workflow: scan recipient: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
