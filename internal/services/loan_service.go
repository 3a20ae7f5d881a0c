package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"welfarefund/internal/core"
	"welfarefund/internal/storage"
)

// LoanService manages loan schemes and the per-staff loans taken under
// them, including the scheme-level top-up switch.
type LoanService struct {
	storage *storage.SQLiteRepository
	now     func() time.Time
}

func NewLoanService(storage *storage.SQLiteRepository) *LoanService {
	return &LoanService{storage: storage, now: time.Now}
}

// Create registers a loan scheme under a financial year.
func (s *LoanService) Create(ctx context.Context, l core.Loan) (core.Loan, error) {
	l.Kind = core.FundLoan
	l.ClosedAt = nil
	if err := l.Validate(); err != nil {
		return core.Loan{}, err
	}

	fy, err := s.storage.GetFinancialYear(ctx, l.FinanceYearID)
	if err != nil {
		return core.Loan{}, err
	}
	if fy == nil {
		return core.Loan{}, core.NotFoundErrorf("financial year %d not found", l.FinanceYearID)
	}

	created, err := s.storage.CreateLoan(ctx, l)
	if err != nil {
		return core.Loan{}, err
	}
	slog.InfoContext(ctx, "Loan scheme created",
		"fund_id", created.ID, "slots", created.TotalStaffSlots)
	return created, nil
}

// Get returns a scheme by ID.
func (s *LoanService) Get(ctx context.Context, id int64) (core.Loan, error) {
	l, err := s.storage.GetLoan(ctx, id)
	if err != nil {
		return core.Loan{}, err
	}
	if l == nil {
		return core.Loan{}, core.NotFoundErrorf("loan %d not found", id)
	}
	return *l, nil
}

// List returns schemes, optionally scoped to one year.
func (s *LoanService) List(ctx context.Context, yearID int64) ([]core.Loan, error) {
	return s.storage.ListLoans(ctx, yearID)
}

// ListByStatus filters schemes by their derived status; an empty status
// means no filter.
func (s *LoanService) ListByStatus(ctx context.Context, yearID int64, status core.FundStatus) ([]core.Loan, error) {
	loans, err := s.List(ctx, yearID)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return loans, nil
	}
	now := s.now()
	filtered := make([]core.Loan, 0, len(loans))
	for _, l := range loans {
		if l.FundStatus(now) == status {
			filtered = append(filtered, l)
		}
	}
	return filtered, nil
}

// ListActive returns the still-open schemes.
func (s *LoanService) ListActive(ctx context.Context, yearID int64) ([]core.Loan, error) {
	return s.ListByStatus(ctx, yearID, core.StatusActive)
}

// Update edits an open scheme's fields, leaving the top-up switch to its
// dedicated operations.
func (s *LoanService) Update(ctx context.Context, l core.Loan) (core.Loan, error) {
	current, err := s.Get(ctx, l.ID)
	if err != nil {
		return core.Loan{}, err
	}
	if current.ClosedAt != nil {
		return core.Loan{}, core.InvalidStateErrorf("loan %d is closed", l.ID)
	}

	l.Kind = core.FundLoan
	l.CreatedAt = current.CreatedAt
	l.AllowTopup = current.AllowTopup
	l.TopupAmount = current.TopupAmount
	if err := l.Validate(); err != nil {
		return core.Loan{}, err
	}
	if err := s.storage.UpdateLoan(ctx, l); err != nil {
		return core.Loan{}, err
	}
	return s.Get(ctx, l.ID)
}

// Close stamps the closing date on an open scheme; the date must fall
// inside the scheme's financial year.
func (s *LoanService) Close(ctx context.Context, id int64, closedAt time.Time) (core.Loan, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return core.Loan{}, err
	}
	if closedAt.IsZero() {
		closedAt = s.now()
	}
	if err := requireYearContains(ctx, s.storage, l.FinanceYearID, closedAt); err != nil {
		return core.Loan{}, err
	}

	closed, err := s.storage.CloseLoan(ctx, id, closedAt)
	if err != nil {
		return core.Loan{}, err
	}
	if !closed {
		return core.Loan{}, core.ConflictErrorf("loan %d is already closed", id)
	}

	slog.InfoContext(ctx, "Loan scheme closed", "fund_id", id)
	return s.Get(ctx, id)
}

// EnableTopup switches top-up on with the given per-staff amount.
func (s *LoanService) EnableTopup(ctx context.Context, id int64, amount core.Money) (core.Loan, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return core.Loan{}, err
	}
	if l.ClosedAt != nil {
		return core.Loan{}, core.InvalidStateErrorf("loan %d is closed", id)
	}
	if err := amount.Validate(); err != nil {
		return core.Loan{}, core.ValidationErrorf("top-up amount must be positive")
	}

	l.AllowTopup = true
	l.TopupAmount = amount
	if err := s.storage.UpdateLoan(ctx, l); err != nil {
		return core.Loan{}, err
	}
	slog.InfoContext(ctx, "Loan top-up enabled", "fund_id", id, "amount_cents", amount.Cents)
	return s.Get(ctx, id)
}

// DisableTopup switches top-up off. Blocked while any staff loan still
// carries a top-up.
func (s *LoanService) DisableTopup(ctx context.Context, id int64) (core.Loan, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return core.Loan{}, err
	}
	if l.ClosedAt != nil {
		return core.Loan{}, core.InvalidStateErrorf("loan %d is closed", id)
	}
	if !l.AllowTopup {
		return core.Loan{}, core.InvalidStateErrorf("top-up is not enabled on loan %d", id)
	}

	withTopup, err := s.storage.CountLoanStaffWithTopup(ctx, id)
	if err != nil {
		return core.Loan{}, err
	}
	if withTopup > 0 {
		return core.Loan{}, core.ConflictErrorf("%d staff loans still carry a top-up", withTopup)
	}

	l.AllowTopup = false
	l.TopupAmount = core.Money{}
	if err := s.storage.UpdateLoan(ctx, l); err != nil {
		return core.Loan{}, err
	}
	slog.InfoContext(ctx, "Loan top-up disabled", "fund_id", id)
	return s.Get(ctx, id)
}

// UpdateTopupAmount changes the per-staff top-up amount while enabled.
func (s *LoanService) UpdateTopupAmount(ctx context.Context, id int64, amount core.Money) (core.Loan, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return core.Loan{}, err
	}
	if l.ClosedAt != nil {
		return core.Loan{}, core.InvalidStateErrorf("loan %d is closed", id)
	}
	if !l.AllowTopup {
		return core.Loan{}, core.InvalidStateErrorf("top-up is not enabled on loan %d", id)
	}
	if err := amount.Validate(); err != nil {
		return core.Loan{}, core.ValidationErrorf("top-up amount must be positive")
	}

	l.TopupAmount = amount
	if err := s.storage.UpdateLoan(ctx, l); err != nil {
		return core.Loan{}, err
	}
	return s.Get(ctx, id)
}

// Enroll adds a staff member's loan application under a scheme, bounded by
// the slot limit and the per-staff maximum.
func (s *LoanService) Enroll(ctx context.Context, ls core.LoanStaff) (core.LoanStaff, error) {
	l, err := s.Get(ctx, ls.LoanID)
	if err != nil {
		return core.LoanStaff{}, err
	}
	if l.ClosedAt != nil {
		return core.LoanStaff{}, core.InvalidStateErrorf("loan %d is closed", ls.LoanID)
	}

	st, err := s.storage.GetStaff(ctx, ls.StaffID)
	if err != nil {
		return core.LoanStaff{}, err
	}
	if st == nil {
		return core.LoanStaff{}, core.NotFoundErrorf("staff %d not found", ls.StaffID)
	}
	if !st.Active {
		return core.LoanStaff{}, core.ValidationErrorf("staff %d is not active", ls.StaffID)
	}

	enrolled, err := s.storage.CountLoanStaff(ctx, ls.LoanID)
	if err != nil {
		return core.LoanStaff{}, err
	}
	if enrolled >= int64(l.TotalStaffSlots) {
		return core.LoanStaff{}, core.ConflictErrorf("loan %d has no free staff slots", ls.LoanID)
	}

	if ls.TakenAmount.Cents > l.MaxAmountPerStaff.Cents {
		return core.LoanStaff{}, core.ValidationErrorf(
			"taken amount exceeds the per-staff maximum of %s", l.MaxAmountPerStaff)
	}
	if ls.Status == "" {
		ls.Status = core.LoanPending
	}
	if ls.EligibilityAmount.Cents == 0 {
		ls.EligibilityAmount = l.MaxAmountPerStaff
	}
	if err := ls.Validate(); err != nil {
		return core.LoanStaff{}, err
	}

	created, err := s.storage.EnrollLoanStaff(ctx, ls)
	if err != nil {
		return core.LoanStaff{}, err
	}
	slog.InfoContext(ctx, "Staff enrolled in loan",
		"fund_id", ls.LoanID, "staff_id", ls.StaffID)
	return created, nil
}

// GetStaffLoan returns a staff member's loan row under a scheme.
func (s *LoanService) GetStaffLoan(ctx context.Context, loanID, staffID int64) (core.LoanStaff, error) {
	ls, err := s.storage.GetLoanStaff(ctx, loanID, staffID)
	if err != nil {
		return core.LoanStaff{}, err
	}
	if ls == nil {
		return core.LoanStaff{}, core.NotFoundErrorf("staff %d has no loan under scheme %d", staffID, loanID)
	}
	return *ls, nil
}

// ListStaffLoans returns all staff loans under a scheme.
func (s *LoanService) ListStaffLoans(ctx context.Context, loanID int64) ([]core.LoanStaff, error) {
	if _, err := s.Get(ctx, loanID); err != nil {
		return nil, err
	}
	return s.storage.ListLoanStaff(ctx, loanID)
}

// UpdateStaffLoan persists amounts, approvers and status on a staff loan.
func (s *LoanService) UpdateStaffLoan(ctx context.Context, ls core.LoanStaff) (core.LoanStaff, error) {
	current, err := s.GetStaffLoan(ctx, ls.LoanID, ls.StaffID)
	if err != nil {
		return core.LoanStaff{}, err
	}
	ls.ID = current.ID

	l, err := s.Get(ctx, ls.LoanID)
	if err != nil {
		return core.LoanStaff{}, err
	}
	if ls.TakenAmount.Cents > l.MaxAmountPerStaff.Cents {
		return core.LoanStaff{}, core.ValidationErrorf(
			"taken amount exceeds the per-staff maximum of %s", l.MaxAmountPerStaff)
	}
	if ls.HasTopup && !l.AllowTopup {
		return core.LoanStaff{}, core.InvalidStateErrorf("top-up is not enabled on loan %d", ls.LoanID)
	}
	if err := ls.Validate(); err != nil {
		return core.LoanStaff{}, err
	}

	if err := s.storage.UpdateLoanStaff(ctx, ls); err != nil {
		return core.LoanStaff{}, err
	}
	return s.GetStaffLoan(ctx, ls.LoanID, ls.StaffID)
}

// Delete removes a scheme that has no recorded payments, dropping its
// staff-loan rows with it. Schemes with history are kept for the audit
// trail.
func (s *LoanService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.storage.CountCollections(ctx, core.FundLoan, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return core.ConflictErrorf("loan %d has %d recorded payments", id, n)
	}

	if err := s.storage.DeleteLoan(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Loan scheme deleted", "fund_id", id)
	return nil
}

// GetWithSummary returns every scheme in a year annotated with stats,
// summing collections for each concurrently.
func (s *LoanService) GetWithSummary(ctx context.Context, yearID int64) ([]core.FundSummary, error) {
	loans, err := s.storage.ListLoans(ctx, yearID)
	if err != nil {
		return nil, err
	}

	summaries := make([]core.FundSummary, len(loans))
	g, gctx := errgroup.WithContext(ctx)
	now := s.now()
	for i, l := range loans {
		g.Go(func() error {
			total, err := s.storage.SumCollections(gctx, core.FundLoan, l.ID)
			if err != nil {
				return err
			}
			summaries[i] = core.FundSummary{
				Kind:   core.FundLoan,
				FundID: l.ID,
				Title:  l.Title,
				Status: l.FundStatus(now),
				Target: l.TargetAmount,
				Stats:  core.ComputeStats(l.TargetAmount, total),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// GetStats derives the completion picture for a scheme.
func (s *LoanService) GetStats(ctx context.Context, id int64) (core.FundStats, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return core.FundStats{}, err
	}
	total, err := s.storage.SumCollections(ctx, core.FundLoan, id)
	if err != nil {
		return core.FundStats{}, err
	}
	return core.ComputeStats(l.TargetAmount, total), nil
}
