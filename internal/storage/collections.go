package storage

import (
	"context"
	"database/sql"
	"fmt"

	"welfarefund/internal/core"
)

// Collection sync states tracked for the ledger export worker.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

const collectionColumns = `id, fund_kind, fund_id, staff_id, amount_cents, period_month, recorded_at`

func scanCollection(row interface{ Scan(...any) error }) (core.Collection, error) {
	var c core.Collection
	var period sql.NullInt64
	err := row.Scan(&c.ID, &c.FundKind, &c.FundID, &c.StaffID,
		&c.Amount.Cents, &period, &c.RecordedAt)
	if period.Valid {
		c.PeriodMonth = int(period.Int64)
	}
	return c, err
}

// nullablePeriod maps the zero month to NULL; the unique index coalesces
// NULL back to 0 so non-recurring kinds dedupe on (fund, staff) alone.
func nullablePeriod(month int) any {
	if month == 0 {
		return nil
	}
	return month
}

// CreateCollection inserts a payment record. A duplicate (fund, staff,
// period) hits the unique index and comes back as a conflict.
func (r *SQLiteRepository) CreateCollection(ctx context.Context, c core.Collection) (core.Collection, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO collections (fund_kind, fund_id, staff_id, amount_cents, period_month, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.FundKind, c.FundID, c.StaffID, c.Amount.Cents,
		nullablePeriod(c.PeriodMonth), c.RecordedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Collection{}, core.ConflictErrorf(
				"collection already recorded for %s fund %d, staff %d", c.FundKind, c.FundID, c.StaffID)
		}
		return core.Collection{}, fmt.Errorf("insert collection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Collection{}, fmt.Errorf("collection insert id: %w", err)
	}
	c.ID = id
	return c, nil
}

// GetCollection returns a payment record by ID, or nil when absent.
func (r *SQLiteRepository) GetCollection(ctx context.Context, id int64) (*core.Collection, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id)
	c, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return &c, nil
}

// GetCollectionForPeriod returns the payment record for a (fund, staff,
// period) key, or nil. Month 0 looks up the non-recurring record.
func (r *SQLiteRepository) GetCollectionForPeriod(ctx context.Context, kind core.FundKind, fundID, staffID int64, month int) (*core.Collection, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+collectionColumns+` FROM collections
		WHERE fund_kind = ? AND fund_id = ? AND staff_id = ? AND COALESCE(period_month, 0) = ?`,
		kind, fundID, staffID, month)
	c, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get collection for period: %w", err)
	}
	return &c, nil
}

// ListCollectionsByFund returns all payment records against a fund, oldest
// first for ledger-style reading.
func (r *SQLiteRepository) ListCollectionsByFund(ctx context.Context, kind core.FundKind, fundID int64) ([]core.Collection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+collectionColumns+` FROM collections
		WHERE fund_kind = ? AND fund_id = ?
		ORDER BY recorded_at, id`,
		kind, fundID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var collections []core.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return collections, nil
}

// UpdateCollectionAmount corrects a recorded amount in place.
func (r *SQLiteRepository) UpdateCollectionAmount(ctx context.Context, id int64, amount core.Money) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE collections SET amount_cents = ?, sync_status = ? WHERE id = ?`,
		amount.Cents, SyncPending, id)
	if err != nil {
		return fmt.Errorf("update collection amount: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update collection amount rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundErrorf("collection %d not found", id)
	}
	return nil
}

// SumCollections totals recorded amounts for a fund; zero when none exist.
func (r *SQLiteRepository) SumCollections(ctx context.Context, kind core.FundKind, fundID int64) (core.Money, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM collections
		WHERE fund_kind = ? AND fund_id = ?`,
		kind, fundID).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum collections: %w", err)
	}
	return core.Money{Cents: total}, nil
}

// CountCollections counts payment records against a fund.
func (r *SQLiteRepository) CountCollections(ctx context.Context, kind core.FundKind, fundID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM collections WHERE fund_kind = ? AND fund_id = ?`,
		kind, fundID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count collections: %w", err)
	}
	return n, nil
}

// ListPendingExportCollections returns up to limit records awaiting ledger
// export, oldest first.
func (r *SQLiteRepository) ListPendingExportCollections(ctx context.Context, limit int) ([]core.Collection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+collectionColumns+` FROM collections
		WHERE sync_status = ?
		ORDER BY recorded_at, id
		LIMIT ?`,
		SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending exports: %w", err)
	}
	defer rows.Close()

	var collections []core.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending exports: %w", err)
	}
	return collections, nil
}

// SetCollectionSyncStatus records the export outcome for a collection.
func (r *SQLiteRepository) SetCollectionSyncStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE collections SET sync_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set collection sync status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set collection sync status rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundErrorf("collection %d not found", id)
	}
	return nil
}
