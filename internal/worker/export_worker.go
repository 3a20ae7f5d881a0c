// Package worker exports recorded collections to the audit ledger and
// repairs member settings on staff lifecycle messages.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"welfarefund/internal/amqp"
	"welfarefund/internal/core"
	applog "welfarefund/internal/log"
	"welfarefund/internal/services"
	"welfarefund/internal/sheets"
	"welfarefund/internal/storage"
)

// ExportWorker drains collection export messages into the ledger writer.
// A periodic backlog pass re-exports anything still pending, covering
// lost messages and worker downtime.
type ExportWorker struct {
	storage   *storage.SQLiteRepository
	ledger    sheets.LedgerWriter
	settings  *services.MemberSettingsService
	batchSize int
}

func NewExportWorker(storage *storage.SQLiteRepository, ledger sheets.LedgerWriter, settings *services.MemberSettingsService, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		ledger:    ledger,
		settings:  settings,
		batchSize: batchSize,
	}
}

// HandleExportMessage processes one collection export message.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.CollectionExportMessage) error {
	slog.InfoContext(ctx, "Processing export message", "collection_id", msg.CollectionID)

	c, err := w.storage.GetCollection(ctx, msg.CollectionID)
	if err != nil {
		return fmt.Errorf("get collection: %w", err)
	}
	if c == nil {
		// Deleted between publish and consume; nothing to export.
		slog.WarnContext(ctx, "Collection vanished before export", "collection_id", msg.CollectionID)
		return nil
	}

	return w.exportCollection(ctx, *c)
}

// HandleLifecycleMessage repairs member settings after a staff activation
// or deactivation. The API already cascades synchronously; this catches
// the cases where that call failed.
func (w *ExportWorker) HandleLifecycleMessage(ctx context.Context, msg *amqp.StaffLifecycleMessage) error {
	slog.InfoContext(ctx, "Processing lifecycle message",
		"staff_id", msg.StaffID, "activated", msg.Activated)

	if msg.Activated {
		return w.settings.HandleStaffActivated(ctx, msg.StaffID)
	}
	return w.settings.HandleStaffDeactivated(ctx, msg.StaffID)
}

// ProcessPendingCollections exports a batch of collections still marked
// pending. Called on a ticker as the backup for lost messages.
func (w *ExportWorker) ProcessPendingCollections(ctx context.Context) error {
	pending, err := w.storage.ListPendingExportCollections(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending collections: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending collections", "count", len(pending))
	for _, c := range pending {
		if err := w.exportCollection(ctx, c); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending collection",
				"collection_id", c.ID, "error", err)
		}
	}
	return nil
}

// StartupCheck drains a larger pending batch once at worker startup to
// recover from downtime.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.ListPendingExportCollections(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending collections for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending collections found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending collections on startup, processing...",
		"count", len(pending))

	exported := 0
	failed := 0
	for _, c := range pending {
		if err := w.exportCollection(ctx, c); err != nil {
			slog.ErrorContext(ctx, "Failed to export collection during startup",
				"collection_id", c.ID, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending), "exported", exported, "errors", failed)
	return nil
}

func (w *ExportWorker) exportCollection(ctx context.Context, c core.Collection) error {
	row, err := w.buildLedgerRow(ctx, c)
	if err != nil {
		if markErr := w.storage.SetCollectionSyncStatus(ctx, c.ID, storage.SyncError); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error",
				"collection_id", c.ID, "error", markErr)
		}
		return fmt.Errorf("build ledger row: %w", err)
	}

	ref, err := w.ledger.Append(ctx, row)
	if err != nil {
		if markErr := w.storage.SetCollectionSyncStatus(ctx, c.ID, storage.SyncError); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error",
				"collection_id", c.ID, "error", markErr)
		}
		return fmt.Errorf("append to ledger: %w", err)
	}

	if err := w.storage.SetCollectionSyncStatus(ctx, c.ID, storage.SyncSynced); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "collection_id", c.ID, "error", err)
		// Don't return an error - the export actually worked
	}

	fields := applog.NewFields().
		WithComponent(applog.ComponentWorker).
		WithFund(string(c.FundKind), c.FundID).
		WithCollection(c.StaffID, c.Amount.Cents, c.PeriodMonth)
	fields["collection_id"] = c.ID
	fields[applog.FieldSheetsRef] = ref
	slog.InfoContext(ctx, "Collection exported", fields.ToSlice()...)
	return nil
}

// buildLedgerRow flattens a collection with its staff and fund names for
// the spreadsheet.
func (w *ExportWorker) buildLedgerRow(ctx context.Context, c core.Collection) (sheets.LedgerRow, error) {
	row := sheets.LedgerRow{
		CollectionID: c.ID,
		FundKind:     c.FundKind,
		FundID:       c.FundID,
		Amount:       c.Amount,
		PeriodMonth:  c.PeriodMonth,
		RecordedAt:   c.RecordedAt,
	}

	st, err := w.storage.GetStaff(ctx, c.StaffID)
	if err != nil {
		return sheets.LedgerRow{}, fmt.Errorf("get staff: %w", err)
	}
	if st != nil {
		row.EmployeeID = st.EmployeeID
		row.StaffName = st.Name
	}

	title, err := w.fundTitle(ctx, c.FundKind, c.FundID)
	if err != nil {
		return sheets.LedgerRow{}, err
	}
	row.FundTitle = title
	return row, nil
}

func (w *ExportWorker) fundTitle(ctx context.Context, kind core.FundKind, fundID int64) (string, error) {
	switch kind {
	case core.FundCharity, core.FundEmergency:
		f, err := w.storage.GetFund(ctx, kind, fundID)
		if err != nil {
			return "", fmt.Errorf("get fund: %w", err)
		}
		if f != nil {
			return f.Title, nil
		}
	case core.FundChit:
		cf, err := w.storage.GetChitfund(ctx, fundID)
		if err != nil {
			return "", fmt.Errorf("get chitfund: %w", err)
		}
		if cf != nil {
			return cf.Title, nil
		}
	case core.FundLoan:
		l, err := w.storage.GetLoan(ctx, fundID)
		if err != nil {
			return "", fmt.Errorf("get loan: %w", err)
		}
		if l != nil {
			return l.Title, nil
		}
	case core.FundEvent:
		e, err := w.storage.GetEvent(ctx, fundID)
		if err != nil {
			return "", fmt.Errorf("get event: %w", err)
		}
		if e != nil {
			return e.Title, nil
		}
	}
	return "", nil
}
