package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"welfarefund/internal/core"
)

const chitfundColumns = `id, finance_year_id, title, description, target_cents, status, created_at, closed_at`

func scanChitfund(row interface{ Scan(...any) error }) (core.Chitfund, error) {
	var cf core.Chitfund
	var closedAt sql.NullTime
	err := row.Scan(&cf.ID, &cf.FinanceYearID, &cf.Title, &cf.Description,
		&cf.TargetAmount.Cents, &cf.Status, &cf.CreatedAt, &closedAt)
	if closedAt.Valid {
		t := closedAt.Time
		cf.ClosedAt = &t
	}
	cf.Kind = core.FundChit
	return cf, err
}

// CreateChitfund inserts the pool and its member roster in one transaction.
func (r *SQLiteRepository) CreateChitfund(ctx context.Context, cf core.Chitfund) (core.Chitfund, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO chitfunds (finance_year_id, title, description, target_cents, status, closed_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			cf.FinanceYearID, cf.Title, cf.Description, cf.TargetAmount.Cents, cf.Status, cf.ClosedAt)
		if err != nil {
			return fmt.Errorf("insert chitfund: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("chitfund insert id: %w", err)
		}
		cf.ID = id

		for _, staffID := range cf.StaffIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chit_members (chitfund_id, staff_id) VALUES (?, ?)`,
				id, staffID); err != nil {
				if isUniqueViolation(err) {
					return core.ConflictErrorf("staff %d enrolled twice in chitfund", staffID)
				}
				return fmt.Errorf("insert chit member: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return core.Chitfund{}, err
	}
	return cf, nil
}

// GetChitfund returns the pool with its member staff IDs, or nil when
// absent.
func (r *SQLiteRepository) GetChitfund(ctx context.Context, id int64) (*core.Chitfund, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+chitfundColumns+` FROM chitfunds WHERE id = ?`, id)
	cf, err := scanChitfund(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chitfund: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT staff_id FROM chit_members WHERE chitfund_id = ? ORDER BY staff_id`, id)
	if err != nil {
		return nil, fmt.Errorf("list chit member ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var staffID int64
		if err := rows.Scan(&staffID); err != nil {
			return nil, fmt.Errorf("scan chit member id: %w", err)
		}
		cf.StaffIDs = append(cf.StaffIDs, staffID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chit member ids: %w", err)
	}
	return &cf, nil
}

// ListChitfunds returns pools, optionally scoped to a year (yearID 0 means
// all years). Member rosters are not loaded for listings.
func (r *SQLiteRepository) ListChitfunds(ctx context.Context, yearID int64) ([]core.Chitfund, error) {
	query := `SELECT ` + chitfundColumns + ` FROM chitfunds`
	var args []any
	if yearID != 0 {
		query += ` WHERE finance_year_id = ?`
		args = append(args, yearID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chitfunds: %w", err)
	}
	defer rows.Close()

	var funds []core.Chitfund
	for rows.Next() {
		cf, err := scanChitfund(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chitfund: %w", err)
		}
		funds = append(funds, cf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chitfunds: %w", err)
	}
	return funds, nil
}

// UpdateChitfund updates the pool's mutable fields and status.
func (r *SQLiteRepository) UpdateChitfund(ctx context.Context, cf core.Chitfund) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE chitfunds
		SET title = ?, description = ?, target_cents = ?, status = ?
		WHERE id = ?`,
		cf.Title, cf.Description, cf.TargetAmount.Cents, cf.Status, cf.ID)
	if err != nil {
		return fmt.Errorf("update chitfund: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update chitfund rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundErrorf("chitfund %d not found", cf.ID)
	}
	return nil
}

// CloseChitfund stamps closed_at and marks the chit completed, only when
// still open.
func (r *SQLiteRepository) CloseChitfund(ctx context.Context, id int64, closedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE chitfunds SET closed_at = ?, status = ?
		WHERE id = ? AND closed_at IS NULL`,
		closedAt, core.ChitCompleted, id)
	if err != nil {
		return false, fmt.Errorf("close chitfund: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close chitfund rows: %w", err)
	}
	return n > 0, nil
}

// DeleteChitfund removes the pool and its roster in one transaction.
func (r *SQLiteRepository) DeleteChitfund(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chit_members WHERE chitfund_id = ?`, id); err != nil {
			return fmt.Errorf("delete chit members: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM chitfunds WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete chitfund: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete chitfund rows: %w", err)
		}
		if n == 0 {
			return core.NotFoundErrorf("chitfund %d not found", id)
		}
		return nil
	})
}

const chitMemberColumns = `id, chitfund_id, staff_id, chit_taken, chit_taken_cents, chit_taken_month, interest_percentage`

func scanChitMember(row interface{ Scan(...any) error }) (core.ChitMember, error) {
	var m core.ChitMember
	err := row.Scan(&m.ID, &m.ChitfundID, &m.StaffID, &m.ChitTaken,
		&m.ChitTakenAmount.Cents, &m.ChitTakenMonth, &m.InterestPercentage)
	return m, err
}

// AddChitMember enrolls a staff member into an existing chitfund.
func (r *SQLiteRepository) AddChitMember(ctx context.Context, chitfundID, staffID int64) (core.ChitMember, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO chit_members (chitfund_id, staff_id) VALUES (?, ?)`,
		chitfundID, staffID)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ChitMember{}, core.ConflictErrorf("staff %d already enrolled in chitfund %d", staffID, chitfundID)
		}
		return core.ChitMember{}, fmt.Errorf("insert chit member: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.ChitMember{}, fmt.Errorf("chit member insert id: %w", err)
	}
	return core.ChitMember{ID: id, ChitfundID: chitfundID, StaffID: staffID}, nil
}

// GetChitMember returns the membership row, or nil when absent.
func (r *SQLiteRepository) GetChitMember(ctx context.Context, chitfundID, staffID int64) (*core.ChitMember, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+chitMemberColumns+` FROM chit_members WHERE chitfund_id = ? AND staff_id = ?`,
		chitfundID, staffID)
	m, err := scanChitMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chit member: %w", err)
	}
	return &m, nil
}

// ListChitMembers returns the full roster for a chitfund.
func (r *SQLiteRepository) ListChitMembers(ctx context.Context, chitfundID int64) ([]core.ChitMember, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+chitMemberColumns+` FROM chit_members WHERE chitfund_id = ? ORDER BY staff_id`,
		chitfundID)
	if err != nil {
		return nil, fmt.Errorf("list chit members: %w", err)
	}
	defer rows.Close()

	var members []core.ChitMember
	for rows.Next() {
		m, err := scanChitMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chit member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chit members: %w", err)
	}
	return members, nil
}

// UpdateChitMember persists the chit-taken fields of a membership row.
func (r *SQLiteRepository) UpdateChitMember(ctx context.Context, m core.ChitMember) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE chit_members
		SET chit_taken = ?, chit_taken_cents = ?, chit_taken_month = ?, interest_percentage = ?
		WHERE id = ?`,
		m.ChitTaken, m.ChitTakenAmount.Cents, m.ChitTakenMonth, m.InterestPercentage, m.ID)
	if err != nil {
		return fmt.Errorf("update chit member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update chit member rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundErrorf("chit member %d not found", m.ID)
	}
	return nil
}

// RemoveChitMember drops a staff member from the roster.
func (r *SQLiteRepository) RemoveChitMember(ctx context.Context, chitfundID, staffID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM chit_members WHERE chitfund_id = ? AND staff_id = ?`,
		chitfundID, staffID)
	if err != nil {
		return fmt.Errorf("remove chit member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove chit member rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundErrorf("staff %d not enrolled in chitfund %d", staffID, chitfundID)
	}
	return nil
}
