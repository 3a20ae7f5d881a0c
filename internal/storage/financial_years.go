package storage

import (
	"context"
	"database/sql"
	"fmt"

	"welfarefund/internal/core"
)

// CreateFinancialYear inserts a year and returns it with its new ID.
func (r *SQLiteRepository) CreateFinancialYear(ctx context.Context, fy core.FinancialYear) (core.FinancialYear, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO financial_years (label, start_from, end_to, currently_active, default_share_cents)
		VALUES (?, ?, ?, ?, ?)`,
		fy.Label, fy.StartFrom, fy.EndTo, fy.CurrentlyActive, fy.DefaultShare.Cents)
	if err != nil {
		if isUniqueViolation(err) {
			return core.FinancialYear{}, core.ConflictErrorf("financial year %q already exists", fy.Label)
		}
		return core.FinancialYear{}, fmt.Errorf("insert financial year: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.FinancialYear{}, fmt.Errorf("financial year insert id: %w", err)
	}
	fy.ID = id
	return fy, nil
}

func scanFinancialYear(row interface{ Scan(...any) error }) (core.FinancialYear, error) {
	var fy core.FinancialYear
	err := row.Scan(&fy.ID, &fy.Label, &fy.StartFrom, &fy.EndTo, &fy.CurrentlyActive, &fy.DefaultShare.Cents)
	return fy, err
}

const financialYearColumns = `id, label, start_from, end_to, currently_active, default_share_cents`

// GetFinancialYear returns the year by ID, or nil when absent.
func (r *SQLiteRepository) GetFinancialYear(ctx context.Context, id int64) (*core.FinancialYear, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+financialYearColumns+` FROM financial_years WHERE id = ?`, id)
	fy, err := scanFinancialYear(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get financial year: %w", err)
	}
	return &fy, nil
}

// GetActiveFinancialYear returns the currently-active year, or nil when no
// year is active. Callers must handle the nil case: under concurrent
// setActive calls a transient window with no active year is possible.
func (r *SQLiteRepository) GetActiveFinancialYear(ctx context.Context) (*core.FinancialYear, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+financialYearColumns+` FROM financial_years WHERE currently_active = 1`)
	fy, err := scanFinancialYear(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active financial year: %w", err)
	}
	return &fy, nil
}

// ListFinancialYears returns all years, newest window first.
func (r *SQLiteRepository) ListFinancialYears(ctx context.Context) ([]core.FinancialYear, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+financialYearColumns+` FROM financial_years ORDER BY start_from DESC`)
	if err != nil {
		return nil, fmt.Errorf("list financial years: %w", err)
	}
	defer rows.Close()

	var years []core.FinancialYear
	for rows.Next() {
		fy, err := scanFinancialYear(rows)
		if err != nil {
			return nil, fmt.Errorf("scan financial year: %w", err)
		}
		years = append(years, fy)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate financial years: %w", err)
	}
	return years, nil
}

// SetActiveFinancialYear clears the active flag on every other year and
// sets it on the target, in one transaction so the at-most-one invariant
// holds at commit.
func (r *SQLiteRepository) SetActiveFinancialYear(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE financial_years SET currently_active = 0 WHERE currently_active = 1`); err != nil {
			return fmt.Errorf("clear active years: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE financial_years SET currently_active = 1 WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("set active year: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("set active year rows: %w", err)
		}
		if n == 0 {
			return core.NotFoundErrorf("financial year %d not found", id)
		}
		return nil
	})
}

// UpdateFinancialYear updates the mutable fields of a year.
func (r *SQLiteRepository) UpdateFinancialYear(ctx context.Context, fy core.FinancialYear) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE financial_years
		SET label = ?, start_from = ?, end_to = ?, default_share_cents = ?
		WHERE id = ?`,
		fy.Label, fy.StartFrom, fy.EndTo, fy.DefaultShare.Cents, fy.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ConflictErrorf("financial year %q already exists", fy.Label)
		}
		return fmt.Errorf("update financial year: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update financial year rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundErrorf("financial year %d not found", fy.ID)
	}
	return nil
}

// DeleteFinancialYear removes a year. Referential checks are done by the
// service before calling this.
func (r *SQLiteRepository) DeleteFinancialYear(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM financial_years WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete financial year: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete financial year rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundErrorf("financial year %d not found", id)
	}
	return nil
}

// CountFundsByYear counts fund instances of every kind still referencing
// the year; a non-zero count blocks deletion.
func (r *SQLiteRepository) CountFundsByYear(ctx context.Context, yearID int64) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM funds WHERE finance_year_id = ?) +
			(SELECT COUNT(*) FROM chitfunds WHERE finance_year_id = ?) +
			(SELECT COUNT(*) FROM loans WHERE finance_year_id = ?) +
			(SELECT COUNT(*) FROM events WHERE finance_year_id = ?)`,
		yearID, yearID, yearID, yearID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count funds by year: %w", err)
	}
	return total, nil
}
