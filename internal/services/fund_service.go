package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"welfarefund/internal/core"
	"welfarefund/internal/storage"
)

// FundService manages charity and emergency pools: the two plain fund
// kinds that share the same shape and differ only in their kind tag.
type FundService struct {
	storage *storage.SQLiteRepository
	kind    core.FundKind
	now     func() time.Time
}

// NewFundService builds a service bound to one plain kind. Only charity
// and emergency are valid; the other kinds have their own services.
func NewFundService(storage *storage.SQLiteRepository, kind core.FundKind) *FundService {
	return &FundService{storage: storage, kind: kind, now: time.Now}
}

// Create registers a pool under a financial year.
func (s *FundService) Create(ctx context.Context, f core.Fund) (core.Fund, error) {
	f.Kind = s.kind
	f.ClosedAt = nil
	if err := f.Validate(); err != nil {
		return core.Fund{}, err
	}

	fy, err := s.storage.GetFinancialYear(ctx, f.FinanceYearID)
	if err != nil {
		return core.Fund{}, err
	}
	if fy == nil {
		return core.Fund{}, core.NotFoundErrorf("financial year %d not found", f.FinanceYearID)
	}

	created, err := s.storage.CreateFund(ctx, f)
	if err != nil {
		return core.Fund{}, err
	}
	slog.InfoContext(ctx, "Fund created",
		"fund_kind", s.kind, "fund_id", created.ID, "finance_year_id", created.FinanceYearID)
	return created, nil
}

// Get returns a pool by ID.
func (s *FundService) Get(ctx context.Context, id int64) (core.Fund, error) {
	f, err := s.storage.GetFund(ctx, s.kind, id)
	if err != nil {
		return core.Fund{}, err
	}
	if f == nil {
		return core.Fund{}, core.NotFoundErrorf("%s fund %d not found", s.kind, id)
	}
	return *f, nil
}

// List returns pools, optionally scoped to one year (yearID 0 means all).
func (s *FundService) List(ctx context.Context, yearID int64) ([]core.Fund, error) {
	return s.storage.ListFunds(ctx, s.kind, yearID)
}

// ListByStatus filters pools by their derived status; an empty status
// means no filter.
func (s *FundService) ListByStatus(ctx context.Context, yearID int64, status core.FundStatus) ([]core.Fund, error) {
	funds, err := s.List(ctx, yearID)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return funds, nil
	}
	now := s.now()
	filtered := make([]core.Fund, 0, len(funds))
	for _, f := range funds {
		if f.FundStatus(now) == status {
			filtered = append(filtered, f)
		}
	}
	return filtered, nil
}

// ListActive returns the still-open pools.
func (s *FundService) ListActive(ctx context.Context, yearID int64) ([]core.Fund, error) {
	return s.ListByStatus(ctx, yearID, core.StatusActive)
}

// Update edits a pool's title, description and target. Closed pools are
// frozen.
func (s *FundService) Update(ctx context.Context, f core.Fund) (core.Fund, error) {
	current, err := s.Get(ctx, f.ID)
	if err != nil {
		return core.Fund{}, err
	}
	if current.ClosedAt != nil {
		return core.Fund{}, core.InvalidStateErrorf("%s fund %d is closed", s.kind, f.ID)
	}

	f.Kind = s.kind
	f.CreatedAt = current.CreatedAt
	if err := f.Validate(); err != nil {
		return core.Fund{}, err
	}
	if err := s.storage.UpdateFund(ctx, f); err != nil {
		return core.Fund{}, err
	}
	return s.Get(ctx, f.ID)
}

// Close stamps the closing date on an open pool. The date must fall inside
// the pool's financial year. Closing twice is a conflict.
func (s *FundService) Close(ctx context.Context, id int64, closedAt time.Time) (core.Fund, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return core.Fund{}, err
	}
	if closedAt.IsZero() {
		closedAt = s.now()
	}
	if err := requireYearContains(ctx, s.storage, f.FinanceYearID, closedAt); err != nil {
		return core.Fund{}, err
	}

	closed, err := s.storage.CloseFund(ctx, s.kind, id, closedAt)
	if err != nil {
		return core.Fund{}, err
	}
	if !closed {
		return core.Fund{}, core.ConflictErrorf("%s fund %d is already closed", s.kind, id)
	}

	slog.InfoContext(ctx, "Fund closed", "fund_kind", s.kind, "fund_id", id)
	return s.Get(ctx, id)
}

// Delete removes a pool that has no recorded payments. Pools with
// history are kept for the audit trail; close them instead.
func (s *FundService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.storage.CountCollections(ctx, s.kind, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return core.ConflictErrorf("%s fund %d has %d recorded payments", s.kind, id, n)
	}

	if err := s.storage.DeleteFund(ctx, s.kind, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Fund deleted", "fund_kind", s.kind, "fund_id", id)
	return nil
}

// GetStats derives the completion picture for one pool.
func (s *FundService) GetStats(ctx context.Context, id int64) (core.FundStats, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return core.FundStats{}, err
	}
	total, err := s.storage.SumCollections(ctx, s.kind, id)
	if err != nil {
		return core.FundStats{}, err
	}
	return core.ComputeStats(f.TargetAmount, total), nil
}

// GetWithSummary returns every pool in a year annotated with stats,
// summing collections for each pool concurrently.
func (s *FundService) GetWithSummary(ctx context.Context, yearID int64) ([]core.FundSummary, error) {
	funds, err := s.storage.ListFunds(ctx, s.kind, yearID)
	if err != nil {
		return nil, err
	}

	summaries := make([]core.FundSummary, len(funds))
	g, gctx := errgroup.WithContext(ctx)
	now := s.now()
	for i, f := range funds {
		g.Go(func() error {
			total, err := s.storage.SumCollections(gctx, s.kind, f.ID)
			if err != nil {
				return err
			}
			summaries[i] = core.FundSummary{
				Kind:   s.kind,
				FundID: f.ID,
				Title:  f.Title,
				Status: f.FundStatus(now),
				Target: f.TargetAmount,
				Stats:  core.ComputeStats(f.TargetAmount, total),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}
