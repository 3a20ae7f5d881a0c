// Package services holds the ledger's business rules: fiscal-year
// registry, fund lifecycles, obligation derivation, collection recording
// and statistics, layered over SQLite storage and AMQP messaging.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"welfarefund/internal/core"
	"welfarefund/internal/storage"
)

// FinancialYearService manages the fiscal-year registry and the
// at-most-one-active invariant.
type FinancialYearService struct {
	storage *storage.SQLiteRepository
}

func NewFinancialYearService(storage *storage.SQLiteRepository) *FinancialYearService {
	return &FinancialYearService{storage: storage}
}

// Create validates and registers a new financial year. When markActive is
// set the new year atomically takes over the active flag.
func (s *FinancialYearService) Create(ctx context.Context, fy core.FinancialYear, markActive bool) (core.FinancialYear, error) {
	if err := fy.Validate(); err != nil {
		return core.FinancialYear{}, err
	}

	fy.CurrentlyActive = false
	created, err := s.storage.CreateFinancialYear(ctx, fy)
	if err != nil {
		return core.FinancialYear{}, err
	}

	if markActive {
		if err := s.storage.SetActiveFinancialYear(ctx, created.ID); err != nil {
			return core.FinancialYear{}, fmt.Errorf("activate new year: %w", err)
		}
		created.CurrentlyActive = true
	}

	slog.InfoContext(ctx, "Financial year created",
		"finance_year_id", created.ID, "label", created.Label, "active", created.CurrentlyActive)
	return created, nil
}

// Get returns a year by ID.
func (s *FinancialYearService) Get(ctx context.Context, id int64) (core.FinancialYear, error) {
	fy, err := s.storage.GetFinancialYear(ctx, id)
	if err != nil {
		return core.FinancialYear{}, err
	}
	if fy == nil {
		return core.FinancialYear{}, core.NotFoundErrorf("financial year %d not found", id)
	}
	return *fy, nil
}

// GetActive returns the currently-active year. Exactly one is expected in
// steady state; none is a not-found for callers.
func (s *FinancialYearService) GetActive(ctx context.Context) (core.FinancialYear, error) {
	fy, err := s.storage.GetActiveFinancialYear(ctx)
	if err != nil {
		return core.FinancialYear{}, err
	}
	if fy == nil {
		return core.FinancialYear{}, core.NotFoundErrorf("no active financial year")
	}
	return *fy, nil
}

// List returns all registered years.
func (s *FinancialYearService) List(ctx context.Context) ([]core.FinancialYear, error) {
	return s.storage.ListFinancialYears(ctx)
}

// SetActive switches the active year to the given one.
func (s *FinancialYearService) SetActive(ctx context.Context, id int64) error {
	if err := s.storage.SetActiveFinancialYear(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Active financial year switched", "finance_year_id", id)
	return nil
}

// Update edits a year's label, window and default share.
func (s *FinancialYearService) Update(ctx context.Context, fy core.FinancialYear) (core.FinancialYear, error) {
	if err := fy.Validate(); err != nil {
		return core.FinancialYear{}, err
	}
	if err := s.storage.UpdateFinancialYear(ctx, fy); err != nil {
		return core.FinancialYear{}, err
	}
	return s.Get(ctx, fy.ID)
}

// Delete removes a year that no fund instance references. The active year
// cannot be deleted.
func (s *FinancialYearService) Delete(ctx context.Context, id int64) error {
	fy, err := s.storage.GetFinancialYear(ctx, id)
	if err != nil {
		return err
	}
	if fy == nil {
		return core.NotFoundErrorf("financial year %d not found", id)
	}
	if fy.CurrentlyActive {
		return core.ConflictErrorf("cannot delete the active financial year")
	}

	refs, err := s.storage.CountFundsByYear(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return core.ConflictErrorf("financial year %d still has %d funds", id, refs)
	}

	return s.storage.DeleteFinancialYear(ctx, id)
}

// requireYearContains resolves a year and checks the date falls inside its
// window. Shared by the fund services' close paths.
func requireYearContains(ctx context.Context, repo *storage.SQLiteRepository, yearID int64, d time.Time) error {
	fy, err := repo.GetFinancialYear(ctx, yearID)
	if err != nil {
		return err
	}
	if fy == nil {
		return core.NotFoundErrorf("financial year %d not found", yearID)
	}
	if !fy.Contains(d) {
		return core.ValidationErrorf("date %s falls outside financial year %q",
			d.Format("2006-01-02"), fy.Label)
	}
	return nil
}
