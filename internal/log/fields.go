package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldFundKind    = "fund_kind"
	FieldFundID      = "fund_id"
	FieldStaffID     = "staff_id"
	FieldYearID      = "finance_year_id"
	FieldAmountCents = "amount_cents"
	FieldPeriodMonth = "period_month"
	FieldSheetsRef   = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentRegistry   = "financial_year"
	ComponentFunds      = "funds"
	ComponentCollection = "collections"
	ComponentSettings   = "member_settings"
	ComponentSweep      = "sweep"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentCache      = "cache"
)

// LogFields provides a builder for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds the component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds the error field when err is non-nil
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds the operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithFund adds fund identity fields
func (f LogFields) WithFund(kind string, fundID int64) LogFields {
	f[FieldFundKind] = kind
	f[FieldFundID] = fundID
	return f
}

// WithCollection adds collection fields
func (f LogFields) WithCollection(staffID, amountCents int64, periodMonth int) LogFields {
	f[FieldStaffID] = staffID
	f[FieldAmountCents] = amountCents
	f[FieldPeriodMonth] = periodMonth
	return f
}

// ToSlice converts LogFields to a key-value slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
