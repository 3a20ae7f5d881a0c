package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"welfarefund/internal/core"
	"welfarefund/internal/storage"
)

// EventService manages the host-exempt fund kind. Creating an event
// snapshots the active-staff directory into an embedded contributor list;
// the host owes nothing and everyone else is derived as a contributor.
type EventService struct {
	storage *storage.SQLiteRepository
	now     func() time.Time
}

func NewEventService(storage *storage.SQLiteRepository) *EventService {
	return &EventService{storage: storage, now: time.Now}
}

// Create validates the event, derives its contributor list from the
// current active-staff snapshot and fixes the target amount.
func (s *EventService) Create(ctx context.Context, e core.Event) (core.Event, error) {
	if err := e.Validate(); err != nil {
		return core.Event{}, err
	}
	if !e.ClosedAt.After(s.now()) {
		return core.Event{}, core.ValidationErrorf("event end date must be in the future")
	}

	fy, err := s.storage.GetFinancialYear(ctx, e.FinanceYearID)
	if err != nil {
		return core.Event{}, err
	}
	if fy == nil {
		return core.Event{}, core.NotFoundErrorf("financial year %d not found", e.FinanceYearID)
	}
	if !fy.Contains(e.ClosedAt) {
		return core.Event{}, core.ValidationErrorf(
			"event end date falls outside financial year %q", fy.Label)
	}

	staff, err := s.storage.ListActiveStaff(ctx)
	if err != nil {
		return core.Event{}, err
	}
	contributors, hostFound := deriveContributors(staff, e.HostEmployeeID, e.Amount)
	if !hostFound {
		return core.Event{}, core.NotFoundErrorf(
			"host %q is not an active staff member", e.HostEmployeeID)
	}

	e.Contributors = contributors
	e.TargetAmount = eventTarget(e.Amount, contributors)
	e.Completed = false

	created, err := s.storage.CreateEvent(ctx, e)
	if err != nil {
		return core.Event{}, err
	}
	slog.InfoContext(ctx, "Event created",
		"fund_id", created.ID, "contributors", len(created.Contributors),
		"target_cents", created.TargetAmount.Cents)
	return created, nil
}

// deriveContributors snapshots the staff list into contributor records.
// The host is carried at amount zero; everyone else owes the event amount
// and starts in the paid state, flipped to unpaid individually.
func deriveContributors(staff []core.Staff, hostEmployeeID string, amount core.Money) ([]core.Contributor, bool) {
	contributors := make([]core.Contributor, 0, len(staff))
	hostFound := false
	for _, st := range staff {
		c := core.Contributor{
			StaffID:       st.ID,
			EmployeeID:    st.EmployeeID,
			Name:          st.Name,
			Amount:        amount,
			PaymentStatus: core.PaymentPaid,
		}
		if st.EmployeeID == hostEmployeeID {
			c.Amount = core.Money{}
			c.PaymentStatus = core.PaymentHost
			hostFound = true
		}
		contributors = append(contributors, c)
	}
	return contributors, hostFound
}

// eventTarget is the event amount times the number of paying contributors.
func eventTarget(amount core.Money, contributors []core.Contributor) core.Money {
	var paying int64
	for _, c := range contributors {
		if c.PaymentStatus != core.PaymentHost {
			paying++
		}
	}
	return core.Money{Cents: amount.Cents * paying}
}

// Get returns an event by ID.
func (s *EventService) Get(ctx context.Context, id int64) (core.Event, error) {
	e, err := s.storage.GetEvent(ctx, id)
	if err != nil {
		return core.Event{}, err
	}
	if e == nil {
		return core.Event{}, core.NotFoundErrorf("event %d not found", id)
	}
	return *e, nil
}

// List returns events, optionally scoped to one year.
func (s *EventService) List(ctx context.Context, yearID int64) ([]core.Event, error) {
	return s.storage.ListEvents(ctx, yearID)
}

// ListByStatus filters events by their clock-derived status; an empty
// status means no filter.
func (s *EventService) ListByStatus(ctx context.Context, yearID int64, status core.FundStatus) ([]core.Event, error) {
	events, err := s.List(ctx, yearID)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return events, nil
	}
	now := s.now()
	filtered := make([]core.Event, 0, len(events))
	for _, e := range events {
		if e.FundStatus(now) == status {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// ListActive returns the events whose end date has not passed.
func (s *EventService) ListActive(ctx context.Context, yearID int64) ([]core.Event, error) {
	return s.ListByStatus(ctx, yearID, core.StatusActive)
}

// Update edits a still-active event. Changing the per-contributor amount
// reprices every paid contributor and refreshes the target; changing the
// host re-derives the host exemption against the existing list.
func (s *EventService) Update(ctx context.Context, e core.Event) (core.Event, error) {
	current, err := s.Get(ctx, e.ID)
	if err != nil {
		return core.Event{}, err
	}
	if current.FundStatus(s.now()) == core.StatusCompleted {
		return core.Event{}, core.InvalidStateErrorf("event %d is completed", e.ID)
	}
	if err := e.Validate(); err != nil {
		return core.Event{}, err
	}

	e.FinanceYearID = current.FinanceYearID
	e.CreatedAt = current.CreatedAt
	e.Completed = current.Completed
	e.Contributors = current.Contributors

	if e.HostEmployeeID != current.HostEmployeeID {
		if !rehost(e.Contributors, e.HostEmployeeID, e.Amount) {
			return core.Event{}, core.NotFoundErrorf(
				"host %q is not an event contributor", e.HostEmployeeID)
		}
	}
	if e.Amount.Cents != current.Amount.Cents {
		reprice(e.Contributors, e.Amount)
	}
	e.TargetAmount = eventTarget(e.Amount, e.Contributors)

	if err := s.storage.UpdateEvent(ctx, e); err != nil {
		return core.Event{}, err
	}
	return s.Get(ctx, e.ID)
}

// rehost moves the host exemption to the named contributor. The previous
// host becomes a paying contributor in the default paid state.
func rehost(contributors []core.Contributor, hostEmployeeID string, amount core.Money) bool {
	hostFound := false
	for i := range contributors {
		c := &contributors[i]
		if c.EmployeeID == hostEmployeeID {
			c.Amount = core.Money{}
			c.PaymentStatus = core.PaymentHost
			hostFound = true
		} else if c.PaymentStatus == core.PaymentHost {
			c.Amount = amount
			c.PaymentStatus = core.PaymentPaid
		}
	}
	return hostFound
}

// reprice sets every paid contributor's amount. Unpaid entries keep what
// they owed and the host stays at zero.
func reprice(contributors []core.Contributor, amount core.Money) {
	for i := range contributors {
		if contributors[i].PaymentStatus == core.PaymentPaid {
			contributors[i].Amount = amount
		}
	}
}

// SetContributorStatus flips a contributor between paid and unpaid. The
// host entry cannot be touched.
func (s *EventService) SetContributorStatus(ctx context.Context, eventID, staffID int64, status core.PaymentStatus) (core.Event, error) {
	if status != core.PaymentPaid && status != core.PaymentUnpaid {
		return core.Event{}, core.ValidationErrorf("contributor status must be paid or unpaid")
	}

	e, err := s.Get(ctx, eventID)
	if err != nil {
		return core.Event{}, err
	}
	if e.FundStatus(s.now()) == core.StatusCompleted {
		return core.Event{}, core.InvalidStateErrorf("event %d is completed", eventID)
	}

	found := false
	for i := range e.Contributors {
		c := &e.Contributors[i]
		if c.StaffID != staffID {
			continue
		}
		if c.PaymentStatus == core.PaymentHost {
			return core.Event{}, core.InvalidStateErrorf("host contribution status cannot change")
		}
		c.PaymentStatus = status
		found = true
		break
	}
	if !found {
		return core.Event{}, core.NotFoundErrorf("staff %d is not an event contributor", staffID)
	}

	if err := s.storage.UpdateEvent(ctx, e); err != nil {
		return core.Event{}, err
	}
	slog.InfoContext(ctx, "Event contributor status changed",
		"fund_id", eventID, "staff_id", staffID, "status", status)
	return s.Get(ctx, eventID)
}

// Delete removes an event that has no recorded collections.
func (s *EventService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.storage.CountCollections(ctx, core.FundEvent, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return core.ConflictErrorf("event %d has %d recorded collections", id, n)
	}
	return s.storage.DeleteEvent(ctx, id)
}

// GetStats derives the completion picture for an event from recorded
// collections against the derived target.
func (s *EventService) GetStats(ctx context.Context, id int64) (core.FundStats, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return core.FundStats{}, err
	}
	total, err := s.storage.SumCollections(ctx, core.FundEvent, id)
	if err != nil {
		return core.FundStats{}, err
	}
	return core.ComputeStats(e.TargetAmount, total), nil
}

// GetWithSummary returns every event in a year annotated with stats,
// summing collections for each concurrently.
func (s *EventService) GetWithSummary(ctx context.Context, yearID int64) ([]core.FundSummary, error) {
	events, err := s.storage.ListEvents(ctx, yearID)
	if err != nil {
		return nil, err
	}

	summaries := make([]core.FundSummary, len(events))
	g, gctx := errgroup.WithContext(ctx)
	now := s.now()
	for i, e := range events {
		g.Go(func() error {
			total, err := s.storage.SumCollections(gctx, core.FundEvent, e.ID)
			if err != nil {
				return err
			}
			summaries[i] = core.FundSummary{
				Kind:   core.FundEvent,
				FundID: e.ID,
				Title:  e.Title,
				Status: e.FundStatus(now),
				Target: e.TargetAmount,
				Stats:  core.ComputeStats(e.TargetAmount, total),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}
