package storage

import (
	"context"
	"database/sql"
	"fmt"

	"welfarefund/internal/core"
)

const memberSettingsColumns = `id, finance_year_id, staff_id, share_cents, is_active, notes`

func scanMemberSettings(row interface{ Scan(...any) error }) (core.MemberSettings, error) {
	var ms core.MemberSettings
	err := row.Scan(&ms.ID, &ms.FinanceYearID, &ms.StaffID,
		&ms.ShareAmount.Cents, &ms.IsActive, &ms.Notes)
	return ms, err
}

// UpsertMemberSettings creates or replaces the per-staff, per-year override
// row. The (year, staff) unique key makes the upsert a single statement.
func (r *SQLiteRepository) UpsertMemberSettings(ctx context.Context, ms core.MemberSettings) (core.MemberSettings, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO member_settings (finance_year_id, staff_id, share_cents, is_active, notes)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (finance_year_id, staff_id) DO UPDATE SET
			share_cents = excluded.share_cents,
			is_active = excluded.is_active,
			notes = excluded.notes`,
		ms.FinanceYearID, ms.StaffID, ms.ShareAmount.Cents, ms.IsActive, ms.Notes)
	if err != nil {
		return core.MemberSettings{}, fmt.Errorf("upsert member settings: %w", err)
	}
	// LastInsertId is meaningless on the update path; read the row back.
	stored, err := r.GetMemberSettings(ctx, ms.FinanceYearID, ms.StaffID)
	if err != nil {
		return core.MemberSettings{}, err
	}
	if stored == nil {
		return core.MemberSettings{}, fmt.Errorf("member settings vanished after upsert")
	}
	return *stored, nil
}

// GetMemberSettings returns the override row for a (year, staff) pair, or
// nil when the staff member has no override.
func (r *SQLiteRepository) GetMemberSettings(ctx context.Context, yearID, staffID int64) (*core.MemberSettings, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+memberSettingsColumns+` FROM member_settings
		WHERE finance_year_id = ? AND staff_id = ?`,
		yearID, staffID)
	ms, err := scanMemberSettings(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member settings: %w", err)
	}
	return &ms, nil
}

// ListMemberSettings returns every override row under a year.
func (r *SQLiteRepository) ListMemberSettings(ctx context.Context, yearID int64) ([]core.MemberSettings, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+memberSettingsColumns+` FROM member_settings
		WHERE finance_year_id = ? ORDER BY staff_id`,
		yearID)
	if err != nil {
		return nil, fmt.Errorf("list member settings: %w", err)
	}
	defer rows.Close()

	var settings []core.MemberSettings
	for rows.Next() {
		ms, err := scanMemberSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member settings: %w", err)
		}
		settings = append(settings, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member settings: %w", err)
	}
	return settings, nil
}

// DeactivateMemberSettings soft-deactivates the override row, appending a
// note. The row is kept so the audit trail survives staff churn.
func (r *SQLiteRepository) DeactivateMemberSettings(ctx context.Context, yearID, staffID int64, note string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE member_settings SET is_active = 0, notes = ?
		WHERE finance_year_id = ? AND staff_id = ?`,
		note, yearID, staffID)
	if err != nil {
		return fmt.Errorf("deactivate member settings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate member settings rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundErrorf("member settings for staff %d in year %d not found", staffID, yearID)
	}
	return nil
}
