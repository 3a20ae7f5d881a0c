package storage

import (
	"context"
	"database/sql"
	"fmt"

	"welfarefund/internal/core"
)

const staffColumns = `id, employee_id, name, active`

func scanStaff(row interface{ Scan(...any) error }) (core.Staff, error) {
	var s core.Staff
	err := row.Scan(&s.ID, &s.EmployeeID, &s.Name, &s.Active)
	return s, err
}

// CreateStaff inserts a directory entry and returns it with its new ID.
func (r *SQLiteRepository) CreateStaff(ctx context.Context, s core.Staff) (core.Staff, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO staff (employee_id, name, active) VALUES (?, ?, ?)`,
		s.EmployeeID, s.Name, s.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Staff{}, core.ConflictErrorf("staff with employee id %q already exists", s.EmployeeID)
		}
		return core.Staff{}, fmt.Errorf("insert staff: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Staff{}, fmt.Errorf("staff insert id: %w", err)
	}
	s.ID = id
	return s, nil
}

// GetStaff returns the staff member by ID, or nil when absent.
func (r *SQLiteRepository) GetStaff(ctx context.Context, id int64) (*core.Staff, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE id = ?`, id)
	s, err := scanStaff(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get staff: %w", err)
	}
	return &s, nil
}

// GetStaffByEmployeeID returns the staff member by employee ID, or nil.
func (r *SQLiteRepository) GetStaffByEmployeeID(ctx context.Context, employeeID string) (*core.Staff, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE employee_id = ?`, employeeID)
	s, err := scanStaff(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get staff by employee id: %w", err)
	}
	return &s, nil
}

// ListActiveStaff returns the active-user snapshot obligations are derived
// from, ordered by employee ID for stable contributor lists.
func (r *SQLiteRepository) ListActiveStaff(ctx context.Context) ([]core.Staff, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE active = 1 ORDER BY employee_id`)
	if err != nil {
		return nil, fmt.Errorf("list active staff: %w", err)
	}
	defer rows.Close()

	var staff []core.Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("scan staff: %w", err)
		}
		staff = append(staff, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staff: %w", err)
	}
	return staff, nil
}

// SetStaffActive flips the directory active flag.
func (r *SQLiteRepository) SetStaffActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE staff SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("set staff active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set staff active rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundErrorf("staff %d not found", id)
	}
	return nil
}
