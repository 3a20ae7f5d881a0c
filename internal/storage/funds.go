package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"welfarefund/internal/core"
)

const fundColumns = `id, kind, finance_year_id, title, description, target_cents, created_at, closed_at`

func scanFund(row interface{ Scan(...any) error }) (core.Fund, error) {
	var f core.Fund
	var closedAt sql.NullTime
	err := row.Scan(&f.ID, &f.Kind, &f.FinanceYearID, &f.Title, &f.Description,
		&f.TargetAmount.Cents, &f.CreatedAt, &closedAt)
	if closedAt.Valid {
		t := closedAt.Time
		f.ClosedAt = &t
	}
	return f, err
}

// CreateFund inserts a charity or emergency pool and returns it with its
// new ID.
func (r *SQLiteRepository) CreateFund(ctx context.Context, f core.Fund) (core.Fund, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO funds (kind, finance_year_id, title, description, target_cents, closed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.Kind, f.FinanceYearID, f.Title, f.Description, f.TargetAmount.Cents, f.ClosedAt)
	if err != nil {
		return core.Fund{}, fmt.Errorf("insert fund: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Fund{}, fmt.Errorf("fund insert id: %w", err)
	}
	f.ID = id
	return f, nil
}

// GetFund returns the pool by kind and ID, or nil when absent. Kind is part
// of the key so a charity ID cannot be read through the emergency surface.
func (r *SQLiteRepository) GetFund(ctx context.Context, kind core.FundKind, id int64) (*core.Fund, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+fundColumns+` FROM funds WHERE kind = ? AND id = ?`, kind, id)
	f, err := scanFund(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fund: %w", err)
	}
	return &f, nil
}

// ListFunds returns all pools of a kind, optionally scoped to a year
// (yearID 0 means all years). Newest first.
func (r *SQLiteRepository) ListFunds(ctx context.Context, kind core.FundKind, yearID int64) ([]core.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM funds WHERE kind = ?`
	args := []any{kind}
	if yearID != 0 {
		query += ` AND finance_year_id = ?`
		args = append(args, yearID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list funds: %w", err)
	}
	defer rows.Close()

	var funds []core.Fund
	for rows.Next() {
		f, err := scanFund(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fund: %w", err)
		}
		funds = append(funds, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate funds: %w", err)
	}
	return funds, nil
}

// UpdateFund updates a pool's mutable fields.
func (r *SQLiteRepository) UpdateFund(ctx context.Context, f core.Fund) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE funds
		SET title = ?, description = ?, target_cents = ?
		WHERE kind = ? AND id = ?`,
		f.Title, f.Description, f.TargetAmount.Cents, f.Kind, f.ID)
	if err != nil {
		return fmt.Errorf("update fund: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update fund rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundErrorf("%s fund %d not found", f.Kind, f.ID)
	}
	return nil
}

// CloseFund stamps closed_at on a still-open pool. The WHERE clause makes
// the close idempotent-safe: a second close touches zero rows.
func (r *SQLiteRepository) CloseFund(ctx context.Context, kind core.FundKind, id int64, closedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE funds SET closed_at = ? WHERE kind = ? AND id = ? AND closed_at IS NULL`,
		closedAt, kind, id)
	if err != nil {
		return false, fmt.Errorf("close fund: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close fund rows: %w", err)
	}
	return n > 0, nil
}

// DeleteFund removes a pool.
func (r *SQLiteRepository) DeleteFund(ctx context.Context, kind core.FundKind, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM funds WHERE kind = ? AND id = ?`, kind, id)
	if err != nil {
		return fmt.Errorf("delete fund: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete fund rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundErrorf("%s fund %d not found", kind, id)
	}
	return nil
}
