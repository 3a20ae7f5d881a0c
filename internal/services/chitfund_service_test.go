package services

import (
	"context"
	"testing"
	"time"

	"welfarefund/internal/core"
)

func newChitfund(t *testing.T, svc *ChitfundService, fy core.FinancialYear, staffIDs ...int64) core.Chitfund {
	t.Helper()
	cf, err := svc.Create(context.Background(), core.Chitfund{
		Fund: core.Fund{
			FinanceYearID: fy.ID,
			Title:         "Monthly chit",
			TargetAmount:  core.Money{Cents: 600000},
		},
		StaffIDs: staffIDs,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return cf
}

func TestChitfundCreateRequiresActiveRoster(t *testing.T) {
	repo := newRepo(t)
	svc := NewChitfundService(repo)
	ctx := context.Background()
	fy := seedYear(t, repo)
	st := seedStaff(t, repo, "EMP001", "Asha")
	inactive := seedStaff(t, repo, "EMP002", "Binu")
	if err := repo.SetStaffActive(ctx, inactive.ID, false); err != nil {
		t.Fatalf("SetStaffActive() error = %v", err)
	}

	if _, err := svc.Create(ctx, core.Chitfund{
		Fund: core.Fund{
			FinanceYearID: fy.ID,
			Title:         "Monthly chit",
			TargetAmount:  core.Money{Cents: 600000},
		},
		StaffIDs: []int64{st.ID, inactive.ID},
	}); !core.IsValidation(err) {
		t.Errorf("roster with inactive staff: got %v, want validation error", err)
	}

	cf := newChitfund(t, svc, fy, st.ID)
	if cf.Status != core.ChitCreated {
		t.Errorf("status = %s, want %s", cf.Status, core.ChitCreated)
	}
	if len(cf.StaffIDs) != 1 {
		t.Errorf("roster size = %d, want 1", len(cf.StaffIDs))
	}
}

func TestChitfundDeleteGuards(t *testing.T) {
	repo := newRepo(t)
	svc := NewChitfundService(repo)
	ctx := context.Background()
	fy := seedYear(t, repo)
	st := seedStaff(t, repo, "EMP001", "Asha")

	withPayments := newChitfund(t, svc, fy, st.ID)
	if _, err := repo.CreateCollection(ctx, core.Collection{
		FundKind:   core.FundChit,
		FundID:     withPayments.ID,
		StaffID:    st.ID,
		Amount:     core.Money{Cents: 50000},
		RecordedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}
	if err := svc.Delete(ctx, withPayments.ID); !core.IsConflict(err) {
		t.Errorf("deleting chitfund with payments: got %v, want conflict", err)
	}

	empty := newChitfund(t, svc, fy, st.ID)
	if err := svc.Delete(ctx, empty.ID); err != nil {
		t.Errorf("Delete(empty) error = %v", err)
	}
	if _, err := svc.Get(ctx, empty.ID); !core.IsNotFound(err) {
		t.Errorf("Get() after delete: got %v, want not found", err)
	}
	if err := svc.Delete(ctx, 9999); !core.IsNotFound(err) {
		t.Errorf("deleting unknown chitfund: got %v, want not found", err)
	}
}

func TestChitTakenOncePerMember(t *testing.T) {
	repo := newRepo(t)
	svc := NewChitfundService(repo)
	ctx := context.Background()
	fy := seedYear(t, repo)
	a := seedStaff(t, repo, "EMP001", "Asha")
	b := seedStaff(t, repo, "EMP002", "Binu")
	cf := newChitfund(t, svc, fy, a.ID, b.ID)

	m, err := svc.RecordChitTaken(ctx, cf.ID, a.ID, core.Money{Cents: 550000}, 6, 2.5)
	if err != nil {
		t.Fatalf("RecordChitTaken() error = %v", err)
	}
	if !m.ChitTaken || m.ChitTakenMonth != 6 {
		t.Errorf("member = %+v, want chit taken in month 6", m)
	}

	// The first take moves the fund out of its created state.
	got, err := svc.Get(ctx, cf.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != core.ChitOngoing {
		t.Errorf("status after first take = %s, want %s", got.Status, core.ChitOngoing)
	}

	if _, err := svc.RecordChitTaken(ctx, cf.ID, a.ID, core.Money{Cents: 550000}, 7, 2.5); !core.IsConflict(err) {
		t.Errorf("second take by same member: got %v, want conflict", err)
	}
	if _, err := svc.RecordChitTaken(ctx, cf.ID, b.ID, core.Money{Cents: 550000}, 13, 2.5); !core.IsValidation(err) {
		t.Errorf("month 13: got %v, want validation error", err)
	}
}

func TestChitfundRemoveMemberGuards(t *testing.T) {
	repo := newRepo(t)
	svc := NewChitfundService(repo)
	ctx := context.Background()
	fy := seedYear(t, repo)
	a := seedStaff(t, repo, "EMP001", "Asha")
	b := seedStaff(t, repo, "EMP002", "Binu")
	cf := newChitfund(t, svc, fy, a.ID, b.ID)

	if _, err := svc.RecordChitTaken(ctx, cf.ID, a.ID, core.Money{Cents: 550000}, 6, 2.5); err != nil {
		t.Fatalf("RecordChitTaken() error = %v", err)
	}

	if err := svc.RemoveMember(ctx, cf.ID, a.ID); !core.IsInvalidState(err) {
		t.Errorf("removing member who took the chit: got %v, want invalid state", err)
	}
	if err := svc.RemoveMember(ctx, cf.ID, b.ID); err != nil {
		t.Errorf("removing untaken member: %v", err)
	}
	if err := svc.RemoveMember(ctx, cf.ID, 9999); !core.IsNotFound(err) {
		t.Errorf("removing unknown member: got %v, want not found", err)
	}
}

func TestChitfundClosedIsFrozen(t *testing.T) {
	repo := newRepo(t)
	svc := NewChitfundService(repo)
	svc.now = pinned()
	ctx := context.Background()
	fy := seedYear(t, repo)
	a := seedStaff(t, repo, "EMP001", "Asha")
	b := seedStaff(t, repo, "EMP002", "Binu")
	cf := newChitfund(t, svc, fy, a.ID)

	closed, err := svc.Close(ctx, cf.ID, time.Time{})
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if closed.ClosedAt == nil {
		t.Fatal("closed chitfund has no closing date")
	}

	if _, err := svc.AddMember(ctx, cf.ID, b.ID); !core.IsInvalidState(err) {
		t.Errorf("adding member to closed chitfund: got %v, want invalid state", err)
	}
	if _, err := svc.RecordChitTaken(ctx, cf.ID, a.ID, core.Money{Cents: 550000}, 6, 2.5); !core.IsInvalidState(err) {
		t.Errorf("taking chit on closed chitfund: got %v, want invalid state", err)
	}
	if _, err := svc.Close(ctx, cf.ID, time.Time{}); !core.IsConflict(err) {
		t.Errorf("second close: got %v, want conflict", err)
	}
}
