package services

import (
	"context"
	"testing"
	"time"

	"welfarefund/internal/core"
)

func newLoanScheme(t *testing.T, svc *LoanService, fy core.FinancialYear, slots int) core.Loan {
	t.Helper()
	l, err := svc.Create(context.Background(), core.Loan{
		Fund: core.Fund{
			FinanceYearID: fy.ID,
			Title:         "Festival advance",
			TargetAmount:  core.Money{Cents: 1000000},
		},
		MaxAmountPerStaff: core.Money{Cents: 200000},
		TotalStaffSlots:   slots,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return l
}

func TestLoanCloseAndDeleteGuards(t *testing.T) {
	repo := newRepo(t)
	svc := NewLoanService(repo)
	svc.now = pinned()
	ctx := context.Background()
	fy := seedYear(t, repo)
	st := seedStaff(t, repo, "EMP001", "Asha")

	withPayments := newLoanScheme(t, svc, fy, 5)
	if _, err := svc.Enroll(ctx, core.LoanStaff{
		LoanID:      withPayments.ID,
		StaffID:     st.ID,
		TakenAmount: core.Money{Cents: 100000},
		DueAmount:   core.Money{Cents: 100000},
	}); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if _, err := repo.CreateCollection(ctx, core.Collection{
		FundKind:   core.FundLoan,
		FundID:     withPayments.ID,
		StaffID:    st.ID,
		Amount:     core.Money{Cents: 25000},
		RecordedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}
	if err := svc.Delete(ctx, withPayments.ID); !core.IsConflict(err) {
		t.Errorf("deleting scheme with payments: got %v, want conflict", err)
	}

	// A scheme with enrollments but no payments goes, rows and all.
	unpaid := newLoanScheme(t, svc, fy, 5)
	if _, err := svc.Enroll(ctx, core.LoanStaff{
		LoanID:      unpaid.ID,
		StaffID:     st.ID,
		TakenAmount: core.Money{Cents: 100000},
		DueAmount:   core.Money{Cents: 100000},
	}); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if err := svc.Delete(ctx, unpaid.ID); err != nil {
		t.Errorf("Delete(unpaid) error = %v", err)
	}
	if _, err := svc.Get(ctx, unpaid.ID); !core.IsNotFound(err) {
		t.Errorf("Get() after delete: got %v, want not found", err)
	}

	if _, err := svc.Close(ctx, withPayments.ID, time.Time{}); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := svc.Close(ctx, withPayments.ID, time.Time{}); !core.IsConflict(err) {
		t.Errorf("second close: got %v, want conflict", err)
	}
}

func TestLoanEnrollBounds(t *testing.T) {
	repo := newRepo(t)
	svc := NewLoanService(repo)
	ctx := context.Background()
	fy := seedYear(t, repo)
	a := seedStaff(t, repo, "EMP001", "Asha")
	b := seedStaff(t, repo, "EMP002", "Binu")
	l := newLoanScheme(t, svc, fy, 1)

	over := core.LoanStaff{
		LoanID:      l.ID,
		StaffID:     a.ID,
		TakenAmount: core.Money{Cents: 250000},
		DueAmount:   core.Money{Cents: 250000},
	}
	if _, err := svc.Enroll(ctx, over); !core.IsValidation(err) {
		t.Errorf("taken above per-staff max: got %v, want validation error", err)
	}

	ls, err := svc.Enroll(ctx, core.LoanStaff{
		LoanID:      l.ID,
		StaffID:     a.ID,
		TakenAmount: core.Money{Cents: 150000},
		DueAmount:   core.Money{Cents: 160000},
	})
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if ls.Status != core.LoanPending {
		t.Errorf("status = %s, want %s", ls.Status, core.LoanPending)
	}
	if ls.EligibilityAmount.Cents != 200000 {
		t.Errorf("eligibility = %d, want scheme max 200000", ls.EligibilityAmount.Cents)
	}

	// Single slot scheme is now full.
	if _, err := svc.Enroll(ctx, core.LoanStaff{
		LoanID:      l.ID,
		StaffID:     b.ID,
		TakenAmount: core.Money{Cents: 100000},
		DueAmount:   core.Money{Cents: 100000},
	}); !core.IsConflict(err) {
		t.Errorf("enrolling past the slot limit: got %v, want conflict", err)
	}
}

func TestLoanTopupSwitch(t *testing.T) {
	repo := newRepo(t)
	svc := NewLoanService(repo)
	ctx := context.Background()
	fy := seedYear(t, repo)
	a := seedStaff(t, repo, "EMP001", "Asha")
	l := newLoanScheme(t, svc, fy, 5)

	if _, err := svc.UpdateTopupAmount(ctx, l.ID, core.Money{Cents: 50000}); !core.IsInvalidState(err) {
		t.Errorf("changing amount while disabled: got %v, want invalid state", err)
	}

	enabled, err := svc.EnableTopup(ctx, l.ID, core.Money{Cents: 50000})
	if err != nil {
		t.Fatalf("EnableTopup() error = %v", err)
	}
	if !enabled.AllowTopup || enabled.TopupAmount.Cents != 50000 {
		t.Errorf("scheme after enable = %+v", enabled)
	}

	ls, err := svc.Enroll(ctx, core.LoanStaff{
		LoanID:      l.ID,
		StaffID:     a.ID,
		TakenAmount: core.Money{Cents: 150000},
		DueAmount:   core.Money{Cents: 160000},
	})
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	ls.HasTopup = true
	ls.TopupAmount = core.Money{Cents: 50000}
	if _, err := svc.UpdateStaffLoan(ctx, ls); err != nil {
		t.Fatalf("UpdateStaffLoan() error = %v", err)
	}

	// A staff loan still carries the top-up, so the switch stays on.
	if _, err := svc.DisableTopup(ctx, l.ID); !core.IsConflict(err) {
		t.Errorf("disabling with outstanding top-ups: got %v, want conflict", err)
	}

	ls.HasTopup = false
	ls.TopupAmount = core.Money{}
	if _, err := svc.UpdateStaffLoan(ctx, ls); err != nil {
		t.Fatalf("UpdateStaffLoan() clearing top-up error = %v", err)
	}
	disabled, err := svc.DisableTopup(ctx, l.ID)
	if err != nil {
		t.Fatalf("DisableTopup() error = %v", err)
	}
	if disabled.AllowTopup || disabled.TopupAmount.Cents != 0 {
		t.Errorf("scheme after disable = %+v", disabled)
	}
}

func TestLoanUpdatePreservesTopupSwitch(t *testing.T) {
	repo := newRepo(t)
	svc := NewLoanService(repo)
	ctx := context.Background()
	fy := seedYear(t, repo)
	l := newLoanScheme(t, svc, fy, 5)

	if _, err := svc.EnableTopup(ctx, l.ID, core.Money{Cents: 50000}); err != nil {
		t.Fatalf("EnableTopup() error = %v", err)
	}

	edit := l
	edit.Title = "Festival advance (revised)"
	edit.AllowTopup = false
	edit.TopupAmount = core.Money{}

	updated, err := svc.Update(ctx, edit)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != "Festival advance (revised)" {
		t.Errorf("title = %q", updated.Title)
	}
	if !updated.AllowTopup || updated.TopupAmount.Cents != 50000 {
		t.Error("general update must not touch the top-up switch")
	}
}

func TestLoanStaffTopupRequiresSchemeSwitch(t *testing.T) {
	repo := newRepo(t)
	svc := NewLoanService(repo)
	ctx := context.Background()
	fy := seedYear(t, repo)
	a := seedStaff(t, repo, "EMP001", "Asha")
	l := newLoanScheme(t, svc, fy, 5)

	ls, err := svc.Enroll(ctx, core.LoanStaff{
		LoanID:      l.ID,
		StaffID:     a.ID,
		TakenAmount: core.Money{Cents: 150000},
		DueAmount:   core.Money{Cents: 160000},
	})
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	ls.HasTopup = true
	ls.TopupAmount = core.Money{Cents: 50000}
	if _, err := svc.UpdateStaffLoan(ctx, ls); !core.IsInvalidState(err) {
		t.Errorf("staff top-up without scheme switch: got %v, want invalid state", err)
	}
}
