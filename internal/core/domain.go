package core

import (
	"strings"
	"time"
)

// FundKind discriminates the five fund variants.
type FundKind string

const (
	FundCharity   FundKind = "charity"
	FundEmergency FundKind = "emergency"
	FundChit      FundKind = "chitfund"
	FundLoan      FundKind = "loan"
	FundEvent     FundKind = "event"
)

// Recurring reports whether collections against this kind are recorded
// per month rather than once per staff member.
func (k FundKind) Recurring() bool {
	return k == FundChit || k == FundLoan
}

// FundStatus is the derived lifecycle state of a fund instance.
type FundStatus string

const (
	StatusActive    FundStatus = "active"
	StatusClosed    FundStatus = "closed"
	StatusCompleted FundStatus = "completed"
)

// ChitfundStatus is the chitfund-specific lifecycle.
type ChitfundStatus string

const (
	ChitCreated   ChitfundStatus = "created"
	ChitOngoing   ChitfundStatus = "on-going"
	ChitCompleted ChitfundStatus = "completed"
)

// PaymentStatus marks an event contributor's position.
type PaymentStatus string

const (
	PaymentHost   PaymentStatus = "host"
	PaymentPaid   PaymentStatus = "paid"
	PaymentUnpaid PaymentStatus = "unpaid"
)

// LoanStaffStatus is the approval lifecycle of a staff loan row.
type LoanStaffStatus string

const (
	LoanPending   LoanStaffStatus = "pending"
	LoanApproved  LoanStaffStatus = "approved"
	LoanRejected  LoanStaffStatus = "rejected"
	LoanActive    LoanStaffStatus = "active"
	LoanCompleted LoanStaffStatus = "completed"
	LoanDefaulted LoanStaffStatus = "defaulted"
)

// FinancialYear bounds the fiscal window fund instances are created in.
// At most one year is currently active system-wide.
type FinancialYear struct {
	ID              int64
	Label           string
	StartFrom       time.Time
	EndTo           time.Time
	CurrentlyActive bool
	DefaultShare    Money
}

// Contains reports whether d falls inside [StartFrom, EndTo], inclusive.
// EndTo is normalized to end-of-day so a date on the boundary day passes.
func (fy FinancialYear) Contains(d time.Time) bool {
	start := startOfDay(fy.StartFrom)
	end := endOfDay(fy.EndTo)
	return !d.Before(start) && !d.After(end)
}

func (fy FinancialYear) Validate() error {
	if strings.TrimSpace(fy.Label) == "" {
		return ValidationErrorf("financial year label is required")
	}
	if fy.StartFrom.IsZero() || fy.EndTo.IsZero() {
		return ValidationErrorf("financial year range is required")
	}
	if fy.EndTo.Before(fy.StartFrom) {
		return ValidationErrorf("financial year ends before it starts")
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// FundInstance is the shared surface of the five fund variants.
type FundInstance interface {
	// FundStatus derives the lifecycle state at the given instant.
	FundStatus(now time.Time) FundStatus
	// Within reports whether the instance's closing date (if any) falls
	// inside the financial year's window.
	Within(fy FinancialYear) bool
	// Target returns the pool's target amount.
	Target() Money
}

// Fund is the common pool shape used directly by charity and emergency
// funds. Chitfund, Loan and Event embed it and add their own fields.
type Fund struct {
	ID            int64
	Kind          FundKind
	FinanceYearID int64
	Title         string
	Description   string
	TargetAmount  Money
	CreatedAt     time.Time
	ClosedAt      *time.Time
}

// FundStatus derives status purely from ClosedAt: set means closed.
func (f Fund) FundStatus(time.Time) FundStatus {
	if f.ClosedAt != nil {
		return StatusClosed
	}
	return StatusActive
}

func (f Fund) Within(fy FinancialYear) bool {
	if f.ClosedAt == nil {
		return true
	}
	return fy.Contains(*f.ClosedAt)
}

func (f Fund) Target() Money { return f.TargetAmount }

func (f Fund) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return ValidationErrorf("fund title is required")
	}
	if err := f.TargetAmount.Validate(); err != nil {
		return ValidationErrorf("fund target amount must be positive")
	}
	if f.ClosedAt != nil && !f.CreatedAt.IsZero() && f.ClosedAt.Before(f.CreatedAt) {
		return ValidationErrorf("fund cannot close before it was created")
	}
	return nil
}

// Chitfund is a recurring monthly pool with an explicit member roster.
type Chitfund struct {
	Fund
	Status   ChitfundStatus
	StaffIDs []int64
}

// ChitMember is the staff × chitfund association. A member that has taken
// the chit carries the taken amount, month and interest percentage.
type ChitMember struct {
	ID                 int64
	ChitfundID         int64
	StaffID            int64
	ChitTaken          bool
	ChitTakenAmount    Money
	ChitTakenMonth     int // 1-12, 0 when not taken
	InterestPercentage float64
}

func (m ChitMember) Validate() error {
	if m.ChitTaken {
		if m.ChitTakenAmount.Cents <= 0 {
			return ValidationErrorf("chit taken requires a positive taken amount")
		}
		if m.ChitTakenMonth < 1 || m.ChitTakenMonth > 12 {
			return ValidationErrorf("chit taken requires a taken month between 1 and 12")
		}
	} else if m.ChitTakenAmount.Cents != 0 {
		return ValidationErrorf("chit not taken but taken amount is set")
	}
	if m.InterestPercentage < 0 {
		return ValidationErrorf("interest percentage cannot be negative")
	}
	return nil
}

// Loan is a scheme template: it bounds what each enrolled staff member may
// borrow, not an individual loan.
type Loan struct {
	Fund
	MaxAmountPerStaff Money
	AllowTopup        bool
	TopupAmount       Money
	TotalStaffSlots   int
}

func (l Loan) Validate() error {
	if err := l.Fund.Validate(); err != nil {
		return err
	}
	if l.MaxAmountPerStaff.Cents <= 0 {
		return ValidationErrorf("loan max amount per staff must be positive")
	}
	if l.TotalStaffSlots <= 0 {
		return ValidationErrorf("loan staff slots must be positive")
	}
	if !l.AllowTopup && l.TopupAmount.Cents != 0 {
		return ValidationErrorf("top-up amount set while top-up is disabled")
	}
	return nil
}

// LoanStaff is the staff × loan association tracking an individual loan.
type LoanStaff struct {
	ID                 int64
	LoanID             int64
	StaffID            int64
	TakenAmount        Money
	TakenMonth         int
	InterestPercentage float64
	DueAmount          Money
	TopupAmount        Money
	Approver1          string
	Approver2          string
	EligibilityAmount  Money
	Status             LoanStaffStatus
	HasTopup           bool
}

func (ls LoanStaff) Validate() error {
	if ls.TakenAmount.Cents < 0 || ls.DueAmount.Cents < 0 {
		return ValidationErrorf("loan amounts cannot be negative")
	}
	if ls.DueAmount.Cents < ls.TakenAmount.Cents {
		return ValidationErrorf("loan due amount cannot be below the taken amount")
	}
	if ls.HasTopup != (ls.TopupAmount.Cents > 0) {
		return ValidationErrorf("top-up flag inconsistent with top-up amount")
	}
	switch ls.Status {
	case LoanPending, LoanApproved, LoanRejected, LoanActive, LoanCompleted, LoanDefaulted:
	default:
		return ValidationErrorf("unknown loan status %q", ls.Status)
	}
	return nil
}

// Contributor is an event-embedded obligation + payment-status record,
// captured from the active-staff snapshot at creation time.
type Contributor struct {
	StaffID       int64         `json:"staff_id"`
	EmployeeID    string        `json:"employee_id"`
	Name          string        `json:"name"`
	Amount        Money         `json:"amount"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// Event is the host-exempt fund kind. ClosedAt is a mandatory future end
// date, not a manual close flag: status is derived from the clock.
type Event struct {
	ID             int64
	FinanceYearID  int64
	Title          string
	Description    string
	Amount         Money // per-contributor share
	TargetAmount   Money // Amount × paying contributors, fixed at derivation
	HostEmployeeID string
	Location       string
	Time           string // wall-clock start, "18:00"
	ClosedAt       time.Time
	CreatedAt      time.Time
	Completed      bool // cached flag kept fresh by the sweep; advisory only
	Contributors   []Contributor
}

// FundStatus derives the event state from the clock, never from Completed.
func (e Event) FundStatus(now time.Time) FundStatus {
	if now.After(e.ClosedAt) {
		return StatusCompleted
	}
	return StatusActive
}

func (e Event) Within(fy FinancialYear) bool { return fy.Contains(e.ClosedAt) }

func (e Event) Target() Money { return e.TargetAmount }

func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ValidationErrorf("event title is required")
	}
	if strings.TrimSpace(e.HostEmployeeID) == "" {
		return ValidationErrorf("event host employee id is required")
	}
	if err := e.Amount.Validate(); err != nil {
		return ValidationErrorf("event amount must be positive")
	}
	if e.ClosedAt.IsZero() {
		return ValidationErrorf("event end date is required")
	}
	return nil
}

// Host returns the host contributor entry, if present.
func (e Event) Host() (Contributor, bool) {
	for _, c := range e.Contributors {
		if c.PaymentStatus == PaymentHost {
			return c, true
		}
	}
	return Contributor{}, false
}

// Collection is a recorded actual payment against a fund + staff pair.
// PeriodMonth is zero for non-recurring kinds, 1-12 for recurring ones.
type Collection struct {
	ID          int64
	FundKind    FundKind
	FundID      int64
	StaffID     int64
	Amount      Money
	PeriodMonth int
	RecordedAt  time.Time
}

func (c Collection) Validate() error {
	if err := c.Amount.Validate(); err != nil {
		return err
	}
	if c.FundKind.Recurring() {
		if c.PeriodMonth < 1 || c.PeriodMonth > 12 {
			return ValidationErrorf("recurring collection requires a period month between 1 and 12")
		}
	} else if c.PeriodMonth != 0 {
		return ValidationErrorf("period month only applies to recurring funds")
	}
	return nil
}

// MemberSettings is a per-staff, per-year share override. Rows are
// soft-deactivated, never deleted, to preserve the audit trail.
type MemberSettings struct {
	ID            int64
	FinanceYearID int64
	StaffID       int64
	ShareAmount   Money
	IsActive      bool
	Notes         string
}

// Staff is the active-user directory entry the obligation deriver
// snapshots from.
type Staff struct {
	ID         int64
	EmployeeID string
	Name       string
	Active     bool
}
