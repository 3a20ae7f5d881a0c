package services

import (
	"context"
	"testing"
	"time"

	"welfarefund/internal/core"
)

// Collection tests run with a nil AMQP client: publishing is skipped and
// the record stays in the export backlog.

func TestCollectionRecordGuards(t *testing.T) {
	repo := newRepo(t)
	svc := NewCollectionService(repo, nil)
	svc.now = pinned()
	ctx := context.Background()
	fy := seedYear(t, repo)
	st := seedStaff(t, repo, "EMP001", "Asha")

	fundSvc := NewFundService(repo, core.FundCharity)
	fundSvc.now = pinned()
	fund, err := fundSvc.Create(ctx, core.Fund{
		FinanceYearID: fy.ID,
		Title:         "Charity pool",
		TargetAmount:  core.Money{Cents: 100000},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	payment := core.Collection{
		FundKind: core.FundCharity,
		FundID:   fund.ID,
		StaffID:  st.ID,
		Amount:   core.Money{Cents: 50000},
	}

	missingStaff := payment
	missingStaff.StaffID = 9999
	if _, err := svc.Record(ctx, missingStaff); !core.IsNotFound(err) {
		t.Errorf("unknown staff: got %v, want not found", err)
	}

	missingFund := payment
	missingFund.FundID = 9999
	if _, err := svc.Record(ctx, missingFund); !core.IsNotFound(err) {
		t.Errorf("unknown fund: got %v, want not found", err)
	}

	recorded, err := svc.Record(ctx, payment)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if recorded.RecordedAt.IsZero() {
		t.Error("recorded payment has no timestamp")
	}

	if _, err := svc.Record(ctx, payment); !core.IsConflict(err) {
		t.Errorf("duplicate payment: got %v, want conflict", err)
	}

	if _, err := fundSvc.Close(ctx, fund.ID, time.Time{}); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	late := payment
	late.StaffID = seedStaff(t, repo, "EMP002", "Binu").ID
	if _, err := svc.Record(ctx, late); !core.IsInvalidState(err) {
		t.Errorf("payment against closed fund: got %v, want invalid state", err)
	}
}

func TestCollectionRecurringPeriods(t *testing.T) {
	repo := newRepo(t)
	svc := NewCollectionService(repo, nil)
	svc.now = pinned()
	ctx := context.Background()
	fy := seedYear(t, repo)
	st := seedStaff(t, repo, "EMP001", "Asha")

	chitSvc := NewChitfundService(repo)
	cf := newChitfund(t, chitSvc, fy, st.ID)

	base := core.Collection{
		FundKind:    core.FundChit,
		FundID:      cf.ID,
		StaffID:     st.ID,
		Amount:      core.Money{Cents: 50000},
		PeriodMonth: 4,
	}

	noPeriod := base
	noPeriod.PeriodMonth = 0
	if _, err := svc.Record(ctx, noPeriod); !core.IsValidation(err) {
		t.Errorf("recurring payment without period: got %v, want validation error", err)
	}

	if _, err := svc.Record(ctx, base); err != nil {
		t.Fatalf("Record(month 4) error = %v", err)
	}
	if _, err := svc.Record(ctx, base); !core.IsConflict(err) {
		t.Errorf("same member, same month: got %v, want conflict", err)
	}

	next := base
	next.PeriodMonth = 5
	if _, err := svc.Record(ctx, next); err != nil {
		t.Errorf("same member, next month: %v", err)
	}
}

func TestCollectionCorrectAmount(t *testing.T) {
	repo := newRepo(t)
	svc := NewCollectionService(repo, nil)
	svc.now = pinned()
	ctx := context.Background()
	fy := seedYear(t, repo)
	st := seedStaff(t, repo, "EMP001", "Asha")

	fundSvc := NewFundService(repo, core.FundEmergency)
	fund, err := fundSvc.Create(ctx, core.Fund{
		FinanceYearID: fy.ID,
		Title:         "Emergency pool",
		TargetAmount:  core.Money{Cents: 100000},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	recorded, err := svc.Record(ctx, core.Collection{
		FundKind: core.FundEmergency,
		FundID:   fund.ID,
		StaffID:  st.ID,
		Amount:   core.Money{Cents: 50000},
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	corrected, err := svc.CorrectAmount(ctx, recorded.ID, core.Money{Cents: 45000})
	if err != nil {
		t.Fatalf("CorrectAmount() error = %v", err)
	}
	if corrected.Amount.Cents != 45000 {
		t.Errorf("amount = %d, want 45000", corrected.Amount.Cents)
	}

	if _, err := svc.CorrectAmount(ctx, recorded.ID, core.Money{Cents: 0}); !core.IsValidation(err) {
		t.Errorf("zero correction: got %v, want validation error", err)
	}
	if _, err := svc.CorrectAmount(ctx, 9999, core.Money{Cents: 100}); !core.IsNotFound(err) {
		t.Errorf("correcting unknown collection: got %v, want not found", err)
	}
}
