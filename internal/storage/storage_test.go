package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"welfarefund/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedYear(t *testing.T, repo *SQLiteRepository, label string) core.FinancialYear {
	t.Helper()
	fy, err := repo.CreateFinancialYear(context.Background(), core.FinancialYear{
		Label:        label,
		StartFrom:    time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		EndTo:        time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
		DefaultShare: core.Money{Cents: 50000},
	})
	if err != nil {
		t.Fatalf("CreateFinancialYear(%q) error = %v", label, err)
	}
	return fy
}

func seedStaff(t *testing.T, repo *SQLiteRepository, employeeID, name string) core.Staff {
	t.Helper()
	st, err := repo.CreateStaff(context.Background(), core.Staff{
		EmployeeID: employeeID,
		Name:       name,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("CreateStaff(%q) error = %v", employeeID, err)
	}
	return st
}

func TestFinancialYearUniqueLabel(t *testing.T) {
	repo := newTestRepo(t)
	seedYear(t, repo, "2025-26")

	_, err := repo.CreateFinancialYear(context.Background(), core.FinancialYear{
		Label:     "2025-26",
		StartFrom: time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		EndTo:     time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
	})
	if !core.IsConflict(err) {
		t.Errorf("duplicate label: got %v, want conflict", err)
	}
}

func TestSetActiveFinancialYearSwapsSingleActive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	first := seedYear(t, repo, "2024-25")
	second := seedYear(t, repo, "2025-26")

	if err := repo.SetActiveFinancialYear(ctx, first.ID); err != nil {
		t.Fatalf("SetActiveFinancialYear(first) error = %v", err)
	}
	if err := repo.SetActiveFinancialYear(ctx, second.ID); err != nil {
		t.Fatalf("SetActiveFinancialYear(second) error = %v", err)
	}

	active, err := repo.GetActiveFinancialYear(ctx)
	if err != nil {
		t.Fatalf("GetActiveFinancialYear() error = %v", err)
	}
	if active == nil || active.ID != second.ID {
		t.Fatalf("active year = %+v, want id %d", active, second.ID)
	}

	old, err := repo.GetFinancialYear(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetFinancialYear(first) error = %v", err)
	}
	if old.CurrentlyActive {
		t.Error("previous year still marked active after swap")
	}

	if err := repo.SetActiveFinancialYear(ctx, 9999); !core.IsNotFound(err) {
		t.Errorf("activating missing year: got %v, want not found", err)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	fy, err := repo.GetFinancialYear(ctx, 42)
	if err != nil || fy != nil {
		t.Errorf("GetFinancialYear(missing) = %v, %v, want nil, nil", fy, err)
	}
	active, err := repo.GetActiveFinancialYear(ctx)
	if err != nil || active != nil {
		t.Errorf("GetActiveFinancialYear(none) = %v, %v, want nil, nil", active, err)
	}
	c, err := repo.GetCollection(ctx, 42)
	if err != nil || c != nil {
		t.Errorf("GetCollection(missing) = %v, %v, want nil, nil", c, err)
	}
}

func TestCollectionDuplicateGuard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fy := seedYear(t, repo, "2025-26")
	st := seedStaff(t, repo, "EMP001", "Asha")

	fund, err := repo.CreateFund(ctx, core.Fund{
		Kind:          core.FundCharity,
		FinanceYearID: fy.ID,
		Title:         "Flood relief",
		TargetAmount:  core.Money{Cents: 500000},
	})
	if err != nil {
		t.Fatalf("CreateFund() error = %v", err)
	}

	base := core.Collection{
		FundKind:   core.FundCharity,
		FundID:     fund.ID,
		StaffID:    st.ID,
		Amount:     core.Money{Cents: 50000},
		RecordedAt: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
	}

	if _, err := repo.CreateCollection(ctx, base); err != nil {
		t.Fatalf("first collection error = %v", err)
	}
	if _, err := repo.CreateCollection(ctx, base); !core.IsConflict(err) {
		t.Errorf("duplicate non-recurring collection: got %v, want conflict", err)
	}
}

func TestCollectionPeriodGuardForRecurringKinds(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fy := seedYear(t, repo, "2025-26")
	st := seedStaff(t, repo, "EMP001", "Asha")

	cf, err := repo.CreateChitfund(ctx, core.Chitfund{
		Fund: core.Fund{
			Kind:          core.FundChit,
			FinanceYearID: fy.ID,
			Title:         "Monthly chit",
			TargetAmount:  core.Money{Cents: 1200000},
		},
		Status:   core.ChitCreated,
		StaffIDs: []int64{st.ID},
	})
	if err != nil {
		t.Fatalf("CreateChitfund() error = %v", err)
	}

	mk := func(month int) core.Collection {
		return core.Collection{
			FundKind:    core.FundChit,
			FundID:      cf.ID,
			StaffID:     st.ID,
			Amount:      core.Money{Cents: 100000},
			PeriodMonth: month,
			RecordedAt:  time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		}
	}

	if _, err := repo.CreateCollection(ctx, mk(4)); err != nil {
		t.Fatalf("month 4 error = %v", err)
	}
	if _, err := repo.CreateCollection(ctx, mk(5)); err != nil {
		t.Fatalf("month 5 error = %v", err)
	}
	if _, err := repo.CreateCollection(ctx, mk(4)); !core.IsConflict(err) {
		t.Errorf("duplicate month 4: got %v, want conflict", err)
	}

	got, err := repo.GetCollectionForPeriod(ctx, core.FundChit, cf.ID, st.ID, 5)
	if err != nil {
		t.Fatalf("GetCollectionForPeriod() error = %v", err)
	}
	if got == nil || got.PeriodMonth != 5 {
		t.Errorf("GetCollectionForPeriod(5) = %+v, want month 5", got)
	}
}

func TestSumAndCountCollections(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fy := seedYear(t, repo, "2025-26")
	a := seedStaff(t, repo, "EMP001", "Asha")
	b := seedStaff(t, repo, "EMP002", "Binu")

	fund, err := repo.CreateFund(ctx, core.Fund{
		Kind:          core.FundEmergency,
		FinanceYearID: fy.ID,
		Title:         "Emergency pool",
		TargetAmount:  core.Money{Cents: 200000},
	})
	if err != nil {
		t.Fatalf("CreateFund() error = %v", err)
	}

	sum, err := repo.SumCollections(ctx, core.FundEmergency, fund.ID)
	if err != nil {
		t.Fatalf("SumCollections(empty) error = %v", err)
	}
	if sum.Cents != 0 {
		t.Errorf("empty sum = %d, want 0", sum.Cents)
	}

	for _, c := range []core.Collection{
		{FundKind: core.FundEmergency, FundID: fund.ID, StaffID: a.ID, Amount: core.Money{Cents: 50000}, RecordedAt: time.Now()},
		{FundKind: core.FundEmergency, FundID: fund.ID, StaffID: b.ID, Amount: core.Money{Cents: 75000}, RecordedAt: time.Now()},
	} {
		if _, err := repo.CreateCollection(ctx, c); err != nil {
			t.Fatalf("CreateCollection() error = %v", err)
		}
	}

	sum, err = repo.SumCollections(ctx, core.FundEmergency, fund.ID)
	if err != nil {
		t.Fatalf("SumCollections() error = %v", err)
	}
	if sum.Cents != 125000 {
		t.Errorf("sum = %d, want 125000", sum.Cents)
	}

	count, err := repo.CountCollections(ctx, core.FundEmergency, fund.ID)
	if err != nil {
		t.Fatalf("CountCollections() error = %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestPendingExportLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fy := seedYear(t, repo, "2025-26")
	st := seedStaff(t, repo, "EMP001", "Asha")

	fund, err := repo.CreateFund(ctx, core.Fund{
		Kind:          core.FundCharity,
		FinanceYearID: fy.ID,
		Title:         "Charity pool",
		TargetAmount:  core.Money{Cents: 100000},
	})
	if err != nil {
		t.Fatalf("CreateFund() error = %v", err)
	}

	c, err := repo.CreateCollection(ctx, core.Collection{
		FundKind:   core.FundCharity,
		FundID:     fund.ID,
		StaffID:    st.ID,
		Amount:     core.Money{Cents: 50000},
		RecordedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}

	pending, err := repo.ListPendingExportCollections(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExportCollections() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != c.ID {
		t.Fatalf("pending = %+v, want the new collection", pending)
	}

	if err := repo.SetCollectionSyncStatus(ctx, c.ID, SyncSynced); err != nil {
		t.Fatalf("SetCollectionSyncStatus() error = %v", err)
	}

	pending, err = repo.ListPendingExportCollections(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExportCollections() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after sync = %d rows, want 0", len(pending))
	}

	// Correcting the amount re-queues the row for export.
	if err := repo.UpdateCollectionAmount(ctx, c.ID, core.Money{Cents: 60000}); err != nil {
		t.Fatalf("UpdateCollectionAmount() error = %v", err)
	}
	pending, err = repo.ListPendingExportCollections(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExportCollections() error = %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending after correction = %d rows, want 1", len(pending))
	}
}

func TestCloseFundOnlyOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fy := seedYear(t, repo, "2025-26")

	fund, err := repo.CreateFund(ctx, core.Fund{
		Kind:          core.FundCharity,
		FinanceYearID: fy.ID,
		Title:         "Charity pool",
		TargetAmount:  core.Money{Cents: 100000},
	})
	if err != nil {
		t.Fatalf("CreateFund() error = %v", err)
	}

	closedAt := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)
	closed, err := repo.CloseFund(ctx, core.FundCharity, fund.ID, closedAt)
	if err != nil {
		t.Fatalf("CloseFund() error = %v", err)
	}
	if !closed {
		t.Fatal("first close reported no rows affected")
	}

	closed, err = repo.CloseFund(ctx, core.FundCharity, fund.ID, closedAt)
	if err != nil {
		t.Fatalf("second CloseFund() error = %v", err)
	}
	if closed {
		t.Error("second close succeeded, want no-op")
	}

	// Kind mismatch must not leak across fund surfaces.
	got, err := repo.GetFund(ctx, core.FundEmergency, fund.ID)
	if err != nil {
		t.Fatalf("GetFund(wrong kind) error = %v", err)
	}
	if got != nil {
		t.Error("charity fund readable through the emergency surface")
	}
}

func TestMarkElapsedEventsCompleted(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fy := seedYear(t, repo, "2025-26")

	mk := func(title string, closedAt time.Time) core.Event {
		return core.Event{
			FinanceYearID:  fy.ID,
			Title:          title,
			Amount:         core.Money{Cents: 50000},
			TargetAmount:   core.Money{Cents: 100000},
			HostEmployeeID: "EMP001",
			ClosedAt:       closedAt,
			Contributors:   []core.Contributor{},
		}
	}

	past, err := repo.CreateEvent(ctx, mk("Past event", time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("CreateEvent(past) error = %v", err)
	}
	if _, err := repo.CreateEvent(ctx, mk("Future event", time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("CreateEvent(future) error = %v", err)
	}

	n, err := repo.MarkElapsedEventsCompleted(ctx, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("MarkElapsedEventsCompleted() error = %v", err)
	}
	if n != 1 {
		t.Errorf("marked %d events, want 1", n)
	}

	got, err := repo.GetEvent(ctx, past.ID)
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if !got.Completed {
		t.Error("past event not flagged completed")
	}

	// Second sweep finds nothing left to do.
	n, err = repo.MarkElapsedEventsCompleted(ctx, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("second MarkElapsedEventsCompleted() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep marked %d events, want 0", n)
	}
}

func TestUpsertMemberSettings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fy := seedYear(t, repo, "2025-26")
	st := seedStaff(t, repo, "EMP001", "Asha")

	created, err := repo.UpsertMemberSettings(ctx, core.MemberSettings{
		FinanceYearID: fy.ID,
		StaffID:       st.ID,
		ShareAmount:   core.Money{Cents: 40000},
		IsActive:      true,
	})
	if err != nil {
		t.Fatalf("UpsertMemberSettings(insert) error = %v", err)
	}
	if created.ID == 0 {
		t.Fatal("insert returned zero id")
	}

	updated, err := repo.UpsertMemberSettings(ctx, core.MemberSettings{
		FinanceYearID: fy.ID,
		StaffID:       st.ID,
		ShareAmount:   core.Money{Cents: 30000},
		IsActive:      true,
		Notes:         "reduced share",
	})
	if err != nil {
		t.Fatalf("UpsertMemberSettings(update) error = %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("update created a new row: id %d != %d", updated.ID, created.ID)
	}
	if updated.ShareAmount.Cents != 30000 || updated.Notes != "reduced share" {
		t.Errorf("updated row = %+v", updated)
	}

	if err := repo.DeactivateMemberSettings(ctx, fy.ID, st.ID, "left fund"); err != nil {
		t.Fatalf("DeactivateMemberSettings() error = %v", err)
	}
	got, err := repo.GetMemberSettings(ctx, fy.ID, st.ID)
	if err != nil {
		t.Fatalf("GetMemberSettings() error = %v", err)
	}
	if got == nil || got.IsActive {
		t.Errorf("deactivated settings = %+v, want inactive row kept", got)
	}
}

func TestChitMemberRosterUnique(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fy := seedYear(t, repo, "2025-26")
	st := seedStaff(t, repo, "EMP001", "Asha")

	cf, err := repo.CreateChitfund(ctx, core.Chitfund{
		Fund: core.Fund{
			Kind:          core.FundChit,
			FinanceYearID: fy.ID,
			Title:         "Monthly chit",
			TargetAmount:  core.Money{Cents: 1200000},
		},
		Status:   core.ChitCreated,
		StaffIDs: []int64{st.ID},
	})
	if err != nil {
		t.Fatalf("CreateChitfund() error = %v", err)
	}

	if _, err := repo.AddChitMember(ctx, cf.ID, st.ID); !core.IsConflict(err) {
		t.Errorf("re-adding roster member: got %v, want conflict", err)
	}

	loaded, err := repo.GetChitfund(ctx, cf.ID)
	if err != nil {
		t.Fatalf("GetChitfund() error = %v", err)
	}
	if len(loaded.StaffIDs) != 1 || loaded.StaffIDs[0] != st.ID {
		t.Errorf("roster = %v, want [%d]", loaded.StaffIDs, st.ID)
	}
}
