package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"welfarefund/internal/core"
)

const loanColumns = `id, finance_year_id, title, description, target_cents,
	max_per_staff_cents, allow_topup, topup_cents, total_staff_slots, created_at, closed_at`

func scanLoan(row interface{ Scan(...any) error }) (core.Loan, error) {
	var l core.Loan
	var closedAt sql.NullTime
	err := row.Scan(&l.ID, &l.FinanceYearID, &l.Title, &l.Description,
		&l.TargetAmount.Cents, &l.MaxAmountPerStaff.Cents, &l.AllowTopup,
		&l.TopupAmount.Cents, &l.TotalStaffSlots, &l.CreatedAt, &closedAt)
	if closedAt.Valid {
		t := closedAt.Time
		l.ClosedAt = &t
	}
	l.Kind = core.FundLoan
	return l, err
}

// CreateLoan inserts a loan scheme and returns it with its new ID.
func (r *SQLiteRepository) CreateLoan(ctx context.Context, l core.Loan) (core.Loan, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO loans (finance_year_id, title, description, target_cents,
			max_per_staff_cents, allow_topup, topup_cents, total_staff_slots, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.FinanceYearID, l.Title, l.Description, l.TargetAmount.Cents,
		l.MaxAmountPerStaff.Cents, l.AllowTopup, l.TopupAmount.Cents,
		l.TotalStaffSlots, l.ClosedAt)
	if err != nil {
		return core.Loan{}, fmt.Errorf("insert loan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Loan{}, fmt.Errorf("loan insert id: %w", err)
	}
	l.ID = id
	return l, nil
}

// GetLoan returns the scheme by ID, or nil when absent.
func (r *SQLiteRepository) GetLoan(ctx context.Context, id int64) (*core.Loan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	l, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return &l, nil
}

// ListLoans returns schemes, optionally scoped to a year (yearID 0 means
// all years). Newest first.
func (r *SQLiteRepository) ListLoans(ctx context.Context, yearID int64) ([]core.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans`
	var args []any
	if yearID != 0 {
		query += ` WHERE finance_year_id = ?`
		args = append(args, yearID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var loans []core.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans: %w", err)
	}
	return loans, nil
}

// UpdateLoan persists the scheme's mutable fields, including the top-up
// switch.
func (r *SQLiteRepository) UpdateLoan(ctx context.Context, l core.Loan) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE loans
		SET title = ?, description = ?, target_cents = ?, max_per_staff_cents = ?,
			allow_topup = ?, topup_cents = ?, total_staff_slots = ?
		WHERE id = ?`,
		l.Title, l.Description, l.TargetAmount.Cents, l.MaxAmountPerStaff.Cents,
		l.AllowTopup, l.TopupAmount.Cents, l.TotalStaffSlots, l.ID)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update loan rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundErrorf("loan %d not found", l.ID)
	}
	return nil
}

// CloseLoan stamps closed_at on a still-open scheme.
func (r *SQLiteRepository) CloseLoan(ctx context.Context, id int64, closedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE loans SET closed_at = ? WHERE id = ? AND closed_at IS NULL`,
		closedAt, id)
	if err != nil {
		return false, fmt.Errorf("close loan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close loan rows: %w", err)
	}
	return n > 0, nil
}

// DeleteLoan removes the scheme and its staff-loan rows in one
// transaction.
func (r *SQLiteRepository) DeleteLoan(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM loan_staff WHERE loan_id = ?`, id); err != nil {
			return fmt.Errorf("delete loan staff: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete loan: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete loan rows: %w", err)
		}
		if n == 0 {
			return core.NotFoundErrorf("loan %d not found", id)
		}
		return nil
	})
}

const loanStaffColumns = `id, loan_id, staff_id, taken_cents, taken_month,
	interest_percentage, due_cents, topup_cents, approver1, approver2,
	eligibility_cents, status, has_topup`

func scanLoanStaff(row interface{ Scan(...any) error }) (core.LoanStaff, error) {
	var ls core.LoanStaff
	err := row.Scan(&ls.ID, &ls.LoanID, &ls.StaffID, &ls.TakenAmount.Cents,
		&ls.TakenMonth, &ls.InterestPercentage, &ls.DueAmount.Cents,
		&ls.TopupAmount.Cents, &ls.Approver1, &ls.Approver2,
		&ls.EligibilityAmount.Cents, &ls.Status, &ls.HasTopup)
	return ls, err
}

// EnrollLoanStaff inserts a staff loan row.
func (r *SQLiteRepository) EnrollLoanStaff(ctx context.Context, ls core.LoanStaff) (core.LoanStaff, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO loan_staff (loan_id, staff_id, taken_cents, taken_month,
			interest_percentage, due_cents, topup_cents, approver1, approver2,
			eligibility_cents, status, has_topup)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ls.LoanID, ls.StaffID, ls.TakenAmount.Cents, ls.TakenMonth,
		ls.InterestPercentage, ls.DueAmount.Cents, ls.TopupAmount.Cents,
		ls.Approver1, ls.Approver2, ls.EligibilityAmount.Cents, ls.Status, ls.HasTopup)
	if err != nil {
		if isUniqueViolation(err) {
			return core.LoanStaff{}, core.ConflictErrorf("staff %d already enrolled in loan %d", ls.StaffID, ls.LoanID)
		}
		return core.LoanStaff{}, fmt.Errorf("insert loan staff: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.LoanStaff{}, fmt.Errorf("loan staff insert id: %w", err)
	}
	ls.ID = id
	return ls, nil
}

// GetLoanStaff returns the staff loan row, or nil when absent.
func (r *SQLiteRepository) GetLoanStaff(ctx context.Context, loanID, staffID int64) (*core.LoanStaff, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+loanStaffColumns+` FROM loan_staff WHERE loan_id = ? AND staff_id = ?`,
		loanID, staffID)
	ls, err := scanLoanStaff(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get loan staff: %w", err)
	}
	return &ls, nil
}

// ListLoanStaff returns every staff loan row under a scheme.
func (r *SQLiteRepository) ListLoanStaff(ctx context.Context, loanID int64) ([]core.LoanStaff, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loanStaffColumns+` FROM loan_staff WHERE loan_id = ? ORDER BY staff_id`,
		loanID)
	if err != nil {
		return nil, fmt.Errorf("list loan staff: %w", err)
	}
	defer rows.Close()

	var staff []core.LoanStaff
	for rows.Next() {
		ls, err := scanLoanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan staff: %w", err)
		}
		staff = append(staff, ls)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loan staff: %w", err)
	}
	return staff, nil
}

// UpdateLoanStaff persists a staff loan row's mutable fields.
func (r *SQLiteRepository) UpdateLoanStaff(ctx context.Context, ls core.LoanStaff) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE loan_staff
		SET taken_cents = ?, taken_month = ?, interest_percentage = ?, due_cents = ?,
			topup_cents = ?, approver1 = ?, approver2 = ?, eligibility_cents = ?,
			status = ?, has_topup = ?
		WHERE id = ?`,
		ls.TakenAmount.Cents, ls.TakenMonth, ls.InterestPercentage, ls.DueAmount.Cents,
		ls.TopupAmount.Cents, ls.Approver1, ls.Approver2, ls.EligibilityAmount.Cents,
		ls.Status, ls.HasTopup, ls.ID)
	if err != nil {
		return fmt.Errorf("update loan staff: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update loan staff rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundErrorf("loan staff %d not found", ls.ID)
	}
	return nil
}

// CountLoanStaff counts enrolled staff rows under a scheme, used against
// the slot limit.
func (r *SQLiteRepository) CountLoanStaff(ctx context.Context, loanID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loan_staff WHERE loan_id = ?`, loanID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count loan staff: %w", err)
	}
	return n, nil
}

// CountLoanStaffWithTopup counts staff rows carrying a top-up; a non-zero
// count blocks disabling top-up on the scheme.
func (r *SQLiteRepository) CountLoanStaffWithTopup(ctx context.Context, loanID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loan_staff WHERE loan_id = ? AND has_topup = 1`, loanID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count loan staff with topup: %w", err)
	}
	return n, nil
}
