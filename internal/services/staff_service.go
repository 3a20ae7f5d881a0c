package services

import (
	"context"
	"log/slog"
	"strconv"

	"welfarefund/internal/amqp"
	"welfarefund/internal/cache"
	"welfarefund/internal/core"
	"welfarefund/internal/storage"
)

// StaffService manages the staff directory. Activation flips cascade to
// the member-settings service directly and are also published as
// lifecycle messages for the worker's repair pass.
type StaffService struct {
	storage    *storage.SQLiteRepository
	settings   *MemberSettingsService
	amqpClient *amqp.Client
	profiles   cache.Cache[core.Staff]
}

func NewStaffService(storage *storage.SQLiteRepository, settings *MemberSettingsService, amqpClient *amqp.Client, profiles cache.Cache[core.Staff]) *StaffService {
	return &StaffService{
		storage:    storage,
		settings:   settings,
		amqpClient: amqpClient,
		profiles:   profiles,
	}
}

// Create registers a staff member. New members start active and get a
// settings row seeded for the active year.
func (s *StaffService) Create(ctx context.Context, st core.Staff) (core.Staff, error) {
	if st.EmployeeID == "" {
		return core.Staff{}, core.ValidationErrorf("employee id is required")
	}
	if st.Name == "" {
		return core.Staff{}, core.ValidationErrorf("staff name is required")
	}

	st.Active = true
	created, err := s.storage.CreateStaff(ctx, st)
	if err != nil {
		return core.Staff{}, err
	}

	if err := s.settings.HandleStaffActivated(ctx, created.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to seed settings for new staff",
			"staff_id", created.ID, "error", err)
	}

	slog.InfoContext(ctx, "Staff created",
		"staff_id", created.ID, "employee_id", created.EmployeeID)
	return created, nil
}

// Get returns a staff member, read through the profile cache.
func (s *StaffService) Get(ctx context.Context, id int64) (core.Staff, error) {
	key := strconv.FormatInt(id, 10)
	if s.profiles != nil {
		if st, ok := s.profiles.Get(key); ok {
			return st, nil
		}
	}

	st, err := s.storage.GetStaff(ctx, id)
	if err != nil {
		return core.Staff{}, err
	}
	if st == nil {
		return core.Staff{}, core.NotFoundErrorf("staff %d not found", id)
	}

	if s.profiles != nil {
		s.profiles.Set(key, *st)
	}
	return *st, nil
}

// GetByEmployeeID returns a staff member by their employee ID.
func (s *StaffService) GetByEmployeeID(ctx context.Context, employeeID string) (core.Staff, error) {
	st, err := s.storage.GetStaffByEmployeeID(ctx, employeeID)
	if err != nil {
		return core.Staff{}, err
	}
	if st == nil {
		return core.Staff{}, core.NotFoundErrorf("staff %q not found", employeeID)
	}
	return *st, nil
}

// ListActive returns the active-staff snapshot.
func (s *StaffService) ListActive(ctx context.Context) ([]core.Staff, error) {
	return s.storage.ListActiveStaff(ctx)
}

// SetActive flips the directory flag, cascades to member settings and
// publishes a lifecycle message. The settings cascade is synchronous so
// the common path never depends on the broker; the message lets the
// worker repair anything the direct call missed.
func (s *StaffService) SetActive(ctx context.Context, id int64, active bool) (core.Staff, error) {
	st, err := s.storage.GetStaff(ctx, id)
	if err != nil {
		return core.Staff{}, err
	}
	if st == nil {
		return core.Staff{}, core.NotFoundErrorf("staff %d not found", id)
	}
	if st.Active == active {
		return *st, nil
	}

	if err := s.storage.SetStaffActive(ctx, id, active); err != nil {
		return core.Staff{}, err
	}
	if s.profiles != nil {
		s.profiles.Delete(strconv.FormatInt(id, 10))
	}

	var cascade error
	if active {
		cascade = s.settings.HandleStaffActivated(ctx, id)
	} else {
		cascade = s.settings.HandleStaffDeactivated(ctx, id)
	}
	if cascade != nil {
		slog.ErrorContext(ctx, "Failed to cascade staff lifecycle to settings",
			"staff_id", id, "active", active, "error", cascade)
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.PublishStaffLifecycle(ctx, id, st.EmployeeID, active); err != nil {
			slog.ErrorContext(ctx, "Failed to publish lifecycle message",
				"staff_id", id, "error", err)
			// Don't fail the request - the flag is flipped locally
		}
	}

	slog.InfoContext(ctx, "Staff active flag changed", "staff_id", id, "active", active)
	st.Active = active
	return *st, nil
}
