// Package memory is an in-memory ledger writer for tests and local runs
// without Sheets credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "welfarefund/internal/sheets"
)

type Writer struct {
	mu   sync.Mutex
	rows []ports.LedgerRow
}

var _ ports.LedgerWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

func (w *Writer) Append(_ context.Context, row ports.LedgerRow) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, row)
	return fmt.Sprintf("memory!A%d", len(w.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (w *Writer) Rows() []ports.LedgerRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]ports.LedgerRow, len(w.rows))
	copy(out, w.rows)
	return out
}
