package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"welfarefund/internal/core"
	"welfarefund/internal/storage"
)

// ChitfundService manages the recurring monthly pool with an explicit
// member roster and a chit-taken record per member.
type ChitfundService struct {
	storage *storage.SQLiteRepository
	now     func() time.Time
}

func NewChitfundService(storage *storage.SQLiteRepository) *ChitfundService {
	return &ChitfundService{storage: storage, now: time.Now}
}

// Create registers a chitfund with its initial roster. Enrolled staff must
// exist and be active.
func (s *ChitfundService) Create(ctx context.Context, cf core.Chitfund) (core.Chitfund, error) {
	cf.Kind = core.FundChit
	cf.ClosedAt = nil
	if cf.Status == "" {
		cf.Status = core.ChitCreated
	}
	if err := cf.Validate(); err != nil {
		return core.Chitfund{}, err
	}

	fy, err := s.storage.GetFinancialYear(ctx, cf.FinanceYearID)
	if err != nil {
		return core.Chitfund{}, err
	}
	if fy == nil {
		return core.Chitfund{}, core.NotFoundErrorf("financial year %d not found", cf.FinanceYearID)
	}

	for _, staffID := range cf.StaffIDs {
		if err := s.requireActiveStaff(ctx, staffID); err != nil {
			return core.Chitfund{}, err
		}
	}

	created, err := s.storage.CreateChitfund(ctx, cf)
	if err != nil {
		return core.Chitfund{}, err
	}
	slog.InfoContext(ctx, "Chitfund created",
		"fund_id", created.ID, "members", len(created.StaffIDs))
	return created, nil
}

// Get returns a chitfund with its roster.
func (s *ChitfundService) Get(ctx context.Context, id int64) (core.Chitfund, error) {
	cf, err := s.storage.GetChitfund(ctx, id)
	if err != nil {
		return core.Chitfund{}, err
	}
	if cf == nil {
		return core.Chitfund{}, core.NotFoundErrorf("chitfund %d not found", id)
	}
	return *cf, nil
}

// List returns chitfunds, optionally scoped to one year.
func (s *ChitfundService) List(ctx context.Context, yearID int64) ([]core.Chitfund, error) {
	return s.storage.ListChitfunds(ctx, yearID)
}

// ListByStatus filters chitfunds by their derived status; an empty status
// means no filter.
func (s *ChitfundService) ListByStatus(ctx context.Context, yearID int64, status core.FundStatus) ([]core.Chitfund, error) {
	funds, err := s.List(ctx, yearID)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return funds, nil
	}
	now := s.now()
	filtered := make([]core.Chitfund, 0, len(funds))
	for _, cf := range funds {
		if cf.FundStatus(now) == status {
			filtered = append(filtered, cf)
		}
	}
	return filtered, nil
}

// ListActive returns the still-open chitfunds.
func (s *ChitfundService) ListActive(ctx context.Context, yearID int64) ([]core.Chitfund, error) {
	return s.ListByStatus(ctx, yearID, core.StatusActive)
}

// Update edits an open chitfund's fields and status.
func (s *ChitfundService) Update(ctx context.Context, cf core.Chitfund) (core.Chitfund, error) {
	current, err := s.Get(ctx, cf.ID)
	if err != nil {
		return core.Chitfund{}, err
	}
	if current.ClosedAt != nil {
		return core.Chitfund{}, core.InvalidStateErrorf("chitfund %d is closed", cf.ID)
	}

	cf.Kind = core.FundChit
	cf.CreatedAt = current.CreatedAt
	if cf.Status == "" {
		cf.Status = current.Status
	}
	if err := cf.Validate(); err != nil {
		return core.Chitfund{}, err
	}
	if err := s.storage.UpdateChitfund(ctx, cf); err != nil {
		return core.Chitfund{}, err
	}
	return s.Get(ctx, cf.ID)
}

// Close stamps the closing date and completes the chit. The date must fall
// inside the chitfund's financial year.
func (s *ChitfundService) Close(ctx context.Context, id int64, closedAt time.Time) (core.Chitfund, error) {
	cf, err := s.Get(ctx, id)
	if err != nil {
		return core.Chitfund{}, err
	}
	if closedAt.IsZero() {
		closedAt = s.now()
	}
	if err := requireYearContains(ctx, s.storage, cf.FinanceYearID, closedAt); err != nil {
		return core.Chitfund{}, err
	}

	closed, err := s.storage.CloseChitfund(ctx, id, closedAt)
	if err != nil {
		return core.Chitfund{}, err
	}
	if !closed {
		return core.Chitfund{}, core.ConflictErrorf("chitfund %d is already closed", id)
	}

	slog.InfoContext(ctx, "Chitfund closed", "fund_id", id)
	return s.Get(ctx, id)
}

// AddMember enrolls an active staff member into an open chitfund.
func (s *ChitfundService) AddMember(ctx context.Context, chitfundID, staffID int64) (core.ChitMember, error) {
	cf, err := s.Get(ctx, chitfundID)
	if err != nil {
		return core.ChitMember{}, err
	}
	if cf.ClosedAt != nil {
		return core.ChitMember{}, core.InvalidStateErrorf("chitfund %d is closed", chitfundID)
	}
	if err := s.requireActiveStaff(ctx, staffID); err != nil {
		return core.ChitMember{}, err
	}
	return s.storage.AddChitMember(ctx, chitfundID, staffID)
}

// Members returns the full roster with chit-taken details.
func (s *ChitfundService) Members(ctx context.Context, chitfundID int64) ([]core.ChitMember, error) {
	if _, err := s.Get(ctx, chitfundID); err != nil {
		return nil, err
	}
	return s.storage.ListChitMembers(ctx, chitfundID)
}

// RecordChitTaken marks a member as having taken the chit for a month.
// Each member may take the chit once.
func (s *ChitfundService) RecordChitTaken(ctx context.Context, chitfundID, staffID int64, amount core.Money, month int, interestPct float64) (core.ChitMember, error) {
	cf, err := s.Get(ctx, chitfundID)
	if err != nil {
		return core.ChitMember{}, err
	}
	if cf.ClosedAt != nil {
		return core.ChitMember{}, core.InvalidStateErrorf("chitfund %d is closed", chitfundID)
	}

	m, err := s.storage.GetChitMember(ctx, chitfundID, staffID)
	if err != nil {
		return core.ChitMember{}, err
	}
	if m == nil {
		return core.ChitMember{}, core.NotFoundErrorf("staff %d not enrolled in chitfund %d", staffID, chitfundID)
	}
	if m.ChitTaken {
		return core.ChitMember{}, core.ConflictErrorf("staff %d already took the chit in month %d", staffID, m.ChitTakenMonth)
	}

	m.ChitTaken = true
	m.ChitTakenAmount = amount
	m.ChitTakenMonth = month
	m.InterestPercentage = interestPct
	if err := m.Validate(); err != nil {
		return core.ChitMember{}, err
	}
	if err := s.storage.UpdateChitMember(ctx, *m); err != nil {
		return core.ChitMember{}, err
	}

	// First chit taken moves the fund out of its created state.
	if cf.Status == core.ChitCreated {
		cf.Status = core.ChitOngoing
		if err := s.storage.UpdateChitfund(ctx, cf); err != nil {
			return core.ChitMember{}, err
		}
	}

	slog.InfoContext(ctx, "Chit taken",
		"fund_id", chitfundID, "staff_id", staffID, "month", month)
	return *m, nil
}

// RemoveMember drops a member that has not taken the chit.
func (s *ChitfundService) RemoveMember(ctx context.Context, chitfundID, staffID int64) error {
	cf, err := s.Get(ctx, chitfundID)
	if err != nil {
		return err
	}
	if cf.ClosedAt != nil {
		return core.InvalidStateErrorf("chitfund %d is closed", chitfundID)
	}

	m, err := s.storage.GetChitMember(ctx, chitfundID, staffID)
	if err != nil {
		return err
	}
	if m == nil {
		return core.NotFoundErrorf("staff %d not enrolled in chitfund %d", staffID, chitfundID)
	}
	if m.ChitTaken {
		return core.InvalidStateErrorf("staff %d has taken the chit and cannot leave", staffID)
	}
	return s.storage.RemoveChitMember(ctx, chitfundID, staffID)
}

// Delete removes a chitfund that has no recorded payments, dropping its
// roster with it. Chitfunds with history are kept for the audit trail.
func (s *ChitfundService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.storage.CountCollections(ctx, core.FundChit, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return core.ConflictErrorf("chitfund %d has %d recorded payments", id, n)
	}

	if err := s.storage.DeleteChitfund(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Chitfund deleted", "fund_id", id)
	return nil
}

// GetWithSummary returns every chitfund in a year annotated with stats,
// summing collections for each concurrently.
func (s *ChitfundService) GetWithSummary(ctx context.Context, yearID int64) ([]core.FundSummary, error) {
	funds, err := s.storage.ListChitfunds(ctx, yearID)
	if err != nil {
		return nil, err
	}

	summaries := make([]core.FundSummary, len(funds))
	g, gctx := errgroup.WithContext(ctx)
	now := s.now()
	for i, cf := range funds {
		g.Go(func() error {
			total, err := s.storage.SumCollections(gctx, core.FundChit, cf.ID)
			if err != nil {
				return err
			}
			summaries[i] = core.FundSummary{
				Kind:   core.FundChit,
				FundID: cf.ID,
				Title:  cf.Title,
				Status: cf.FundStatus(now),
				Target: cf.TargetAmount,
				Stats:  core.ComputeStats(cf.TargetAmount, total),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// GetStats derives the completion picture for a chitfund.
func (s *ChitfundService) GetStats(ctx context.Context, id int64) (core.FundStats, error) {
	cf, err := s.Get(ctx, id)
	if err != nil {
		return core.FundStats{}, err
	}
	total, err := s.storage.SumCollections(ctx, core.FundChit, id)
	if err != nil {
		return core.FundStats{}, err
	}
	return core.ComputeStats(cf.TargetAmount, total), nil
}

func (s *ChitfundService) requireActiveStaff(ctx context.Context, staffID int64) error {
	st, err := s.storage.GetStaff(ctx, staffID)
	if err != nil {
		return err
	}
	if st == nil {
		return core.NotFoundErrorf("staff %d not found", staffID)
	}
	if !st.Active {
		return core.ValidationErrorf("staff %d is not active", staffID)
	}
	return nil
}
