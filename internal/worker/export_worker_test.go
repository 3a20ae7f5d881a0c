package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"welfarefund/internal/amqp"
	"welfarefund/internal/core"
	"welfarefund/internal/services"
	"welfarefund/internal/sheets"
	"welfarefund/internal/sheets/memory"
	"welfarefund/internal/storage"
)

func newWorkerFixture(t *testing.T, ledger sheets.LedgerWriter) (*ExportWorker, *storage.SQLiteRepository, core.Collection) {
	t.Helper()
	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	fy, err := repo.CreateFinancialYear(ctx, core.FinancialYear{
		Label:        "2025-26",
		StartFrom:    time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		EndTo:        time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
		DefaultShare: core.Money{Cents: 50000},
	})
	if err != nil {
		t.Fatalf("CreateFinancialYear() error = %v", err)
	}
	st, err := repo.CreateStaff(ctx, core.Staff{EmployeeID: "EMP001", Name: "Asha", Active: true})
	if err != nil {
		t.Fatalf("CreateStaff() error = %v", err)
	}
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
		RecordedAt: time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}

	w := NewExportWorker(repo, ledger, services.NewMemberSettingsService(repo), 10)
	return w, repo, c
}

func TestHandleExportMessage(t *testing.T) {
	ledger := memory.New()
	w, repo, c := newWorkerFixture(t, ledger)
	ctx := context.Background()

	if err := w.HandleExportMessage(ctx, &amqp.CollectionExportMessage{CollectionID: c.ID}); err != nil {
		t.Fatalf("HandleExportMessage() error = %v", err)
	}

	rows := ledger.Rows()
	if len(rows) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.CollectionID != c.ID || row.EmployeeID != "EMP001" || row.StaffName != "Asha" {
		t.Errorf("row = %+v", row)
	}
	if row.FundTitle != "Charity pool" || row.Amount.Cents != 50000 {
		t.Errorf("row = %+v", row)
	}

	// The export clears the backlog.
	pending, err := repo.ListPendingExportCollections(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExportCollections() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after export = %d, want 0", len(pending))
	}

	// A collection deleted between publish and consume is not an error.
	if err := w.HandleExportMessage(ctx, &amqp.CollectionExportMessage{CollectionID: 9999}); err != nil {
		t.Errorf("HandleExportMessage(vanished) error = %v", err)
	}
}

func TestProcessPendingCollections(t *testing.T) {
	ledger := memory.New()
	w, repo, c := newWorkerFixture(t, ledger)
	ctx := context.Background()

	if err := w.ProcessPendingCollections(ctx); err != nil {
		t.Fatalf("ProcessPendingCollections() error = %v", err)
	}
	if got := len(ledger.Rows()); got != 1 {
		t.Fatalf("ledger rows = %d, want 1", got)
	}

	// A second pass finds nothing to do.
	if err := w.ProcessPendingCollections(ctx); err != nil {
		t.Fatalf("second pass error = %v", err)
	}
	if got := len(ledger.Rows()); got != 1 {
		t.Errorf("ledger rows after idle pass = %d, want 1", got)
	}

	// An amount correction re-queues the record.
	if err := repo.UpdateCollectionAmount(ctx, c.ID, core.Money{Cents: 45000}); err != nil {
		t.Fatalf("UpdateCollectionAmount() error = %v", err)
	}
	if err := w.ProcessPendingCollections(ctx); err != nil {
		t.Fatalf("third pass error = %v", err)
	}
	rows := ledger.Rows()
	if len(rows) != 2 || rows[1].Amount.Cents != 45000 {
		t.Errorf("rows after correction = %+v", rows)
	}
}

type failingLedger struct{}

func (failingLedger) Append(context.Context, sheets.LedgerRow) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestExportFailureMarksError(t *testing.T) {
	w, repo, c := newWorkerFixture(t, failingLedger{})
	ctx := context.Background()

	if err := w.HandleExportMessage(ctx, &amqp.CollectionExportMessage{CollectionID: c.ID}); err == nil {
		t.Fatal("HandleExportMessage() with failing ledger returned nil")
	}

	// The record moved out of the pending backlog into the error state, so
	// the ticker pass stops retrying it.
	pending, err := repo.ListPendingExportCollections(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExportCollections() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after failed export = %d, want 0", len(pending))
	}
}
