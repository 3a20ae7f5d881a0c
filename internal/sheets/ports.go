// Package sheets defines the ledger-export port. The worker appends
// recorded collections to an external spreadsheet that the welfare
// committee audits; adapters live in subpackages.
package sheets

import (
	"context"
	"time"

	"welfarefund/internal/core"
)

// LedgerRow is one exported collection, flattened for a spreadsheet.
type LedgerRow struct {
	CollectionID int64
	FundKind     core.FundKind
	FundID       int64
	FundTitle    string
	EmployeeID   string
	StaffName    string
	Amount       core.Money
	PeriodMonth  int // 0 for non-recurring kinds
	RecordedAt   time.Time
}

// LedgerWriter appends rows to the audit ledger. Append returns an opaque
// reference to where the row landed (a sheet range for Google Sheets).
type LedgerWriter interface {
	Append(ctx context.Context, row LedgerRow) (string, error)
}
