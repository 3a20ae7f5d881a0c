package services

import (
	"context"
	"fmt"
	"log/slog"

	"welfarefund/internal/core"
	"welfarefund/internal/storage"
)

// MemberSettingsService manages per-staff, per-year share overrides and
// keeps them consistent with the staff directory: activations seed a row,
// deactivations soft-disable it with an audit note.
type MemberSettingsService struct {
	storage *storage.SQLiteRepository
}

func NewMemberSettingsService(storage *storage.SQLiteRepository) *MemberSettingsService {
	return &MemberSettingsService{storage: storage}
}

// Set creates or replaces the override row for a (year, staff) pair.
func (s *MemberSettingsService) Set(ctx context.Context, ms core.MemberSettings) (core.MemberSettings, error) {
	if ms.ShareAmount.Cents < 0 {
		return core.MemberSettings{}, core.ValidationErrorf("share amount cannot be negative")
	}

	fy, err := s.storage.GetFinancialYear(ctx, ms.FinanceYearID)
	if err != nil {
		return core.MemberSettings{}, err
	}
	if fy == nil {
		return core.MemberSettings{}, core.NotFoundErrorf("financial year %d not found", ms.FinanceYearID)
	}

	st, err := s.storage.GetStaff(ctx, ms.StaffID)
	if err != nil {
		return core.MemberSettings{}, err
	}
	if st == nil {
		return core.MemberSettings{}, core.NotFoundErrorf("staff %d not found", ms.StaffID)
	}

	return s.storage.UpsertMemberSettings(ctx, ms)
}

// Get returns the override row for a (year, staff) pair.
func (s *MemberSettingsService) Get(ctx context.Context, yearID, staffID int64) (core.MemberSettings, error) {
	ms, err := s.storage.GetMemberSettings(ctx, yearID, staffID)
	if err != nil {
		return core.MemberSettings{}, err
	}
	if ms == nil {
		return core.MemberSettings{}, core.NotFoundErrorf(
			"no member settings for staff %d in year %d", staffID, yearID)
	}
	return *ms, nil
}

// List returns every override row under a year.
func (s *MemberSettingsService) List(ctx context.Context, yearID int64) ([]core.MemberSettings, error) {
	return s.storage.ListMemberSettings(ctx, yearID)
}

// GetEffectiveShare resolves the share a staff member owes in a year: an
// active override wins, otherwise the year's default applies.
func (s *MemberSettingsService) GetEffectiveShare(ctx context.Context, yearID, staffID int64) (core.Money, error) {
	fy, err := s.storage.GetFinancialYear(ctx, yearID)
	if err != nil {
		return core.Money{}, err
	}
	if fy == nil {
		return core.Money{}, core.NotFoundErrorf("financial year %d not found", yearID)
	}

	ms, err := s.storage.GetMemberSettings(ctx, yearID, staffID)
	if err != nil {
		return core.Money{}, err
	}
	if ms != nil && ms.IsActive {
		return ms.ShareAmount, nil
	}
	return fy.DefaultShare, nil
}

// HandleStaffActivated seeds (or reactivates) the settings row for the
// active year so the staff member immediately carries the default share.
func (s *MemberSettingsService) HandleStaffActivated(ctx context.Context, staffID int64) error {
	fy, err := s.storage.GetActiveFinancialYear(ctx)
	if err != nil {
		return err
	}
	if fy == nil {
		slog.WarnContext(ctx, "No active financial year, skipping settings seed",
			"staff_id", staffID)
		return nil
	}
	if fy.DefaultShare.Cents == 0 {
		slog.WarnContext(ctx, "Active year has no default share, skipping settings seed",
			"staff_id", staffID, "finance_year_id", fy.ID)
		return nil
	}

	_, err = s.storage.UpsertMemberSettings(ctx, core.MemberSettings{
		FinanceYearID: fy.ID,
		StaffID:       staffID,
		ShareAmount:   fy.DefaultShare,
		IsActive:      true,
	})
	if err != nil {
		return fmt.Errorf("seed member settings: %w", err)
	}

	slog.InfoContext(ctx, "Member settings seeded",
		"staff_id", staffID, "finance_year_id", fy.ID)
	return nil
}

// HandleStaffDeactivated soft-disables the settings row for the active
// year, keeping the row for the audit trail.
func (s *MemberSettingsService) HandleStaffDeactivated(ctx context.Context, staffID int64) error {
	fy, err := s.storage.GetActiveFinancialYear(ctx)
	if err != nil {
		return err
	}
	if fy == nil {
		slog.WarnContext(ctx, "No active financial year, skipping settings deactivation",
			"staff_id", staffID)
		return nil
	}

	err = s.storage.DeactivateMemberSettings(ctx, fy.ID, staffID, "staff deactivated")
	if core.IsNotFound(err) {
		// Never had an override; nothing to disable.
		return nil
	}
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Member settings deactivated",
		"staff_id", staffID, "finance_year_id", fy.ID)
	return nil
}

// SyncResult summarizes a repair pass over a year's settings rows.
type SyncResult struct {
	Created int
	Updated int
	Skipped int
}

// Sync reconciles a year's settings rows against the staff directory:
// active staff without a row get one seeded at the default share, active
// staff with a disabled row get it switched back on, rows whose staff
// member went inactive are disabled, everything else is left untouched.
func (s *MemberSettingsService) Sync(ctx context.Context, yearID int64) (SyncResult, error) {
	var result SyncResult

	fy, err := s.storage.GetFinancialYear(ctx, yearID)
	if err != nil {
		return result, err
	}
	if fy == nil {
		return result, core.NotFoundErrorf("financial year %d not found", yearID)
	}

	existing, err := s.storage.ListMemberSettings(ctx, yearID)
	if err != nil {
		return result, err
	}
	byStaff := make(map[int64]core.MemberSettings, len(existing))
	for _, ms := range existing {
		byStaff[ms.StaffID] = ms
	}

	active, err := s.storage.ListActiveStaff(ctx)
	if err != nil {
		return result, err
	}
	activeIDs := make(map[int64]bool, len(active))
	for _, st := range active {
		activeIDs[st.ID] = true
		if ms, ok := byStaff[st.ID]; ok {
			if ms.IsActive {
				result.Skipped++
				continue
			}
			// Staff came back: switch the row on, keeping its share.
			ms.IsActive = true
			if _, err := s.storage.UpsertMemberSettings(ctx, ms); err != nil {
				return result, fmt.Errorf("reactivate settings for staff %d: %w", st.ID, err)
			}
			result.Updated++
			continue
		}
		_, err := s.storage.UpsertMemberSettings(ctx, core.MemberSettings{
			FinanceYearID: yearID,
			StaffID:       st.ID,
			ShareAmount:   fy.DefaultShare,
			IsActive:      true,
		})
		if err != nil {
			return result, fmt.Errorf("seed settings for staff %d: %w", st.ID, err)
		}
		result.Created++
	}

	for _, ms := range existing {
		if !ms.IsActive || activeIDs[ms.StaffID] {
			continue
		}
		if err := s.storage.DeactivateMemberSettings(ctx, yearID, ms.StaffID, "staff deactivated"); err != nil {
			return result, fmt.Errorf("deactivate settings for staff %d: %w", ms.StaffID, err)
		}
		result.Updated++
	}

	slog.InfoContext(ctx, "Member settings synced",
		"finance_year_id", yearID, "created", result.Created,
		"updated", result.Updated, "skipped", result.Skipped)
	return result, nil
}
