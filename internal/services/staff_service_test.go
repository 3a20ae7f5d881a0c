package services

import (
	"context"
	"testing"
	"time"

	"welfarefund/internal/cache"
	"welfarefund/internal/core"
	"welfarefund/internal/storage"
)

func newStaffService(t *testing.T, repo *storage.SQLiteRepository) *StaffService {
	t.Helper()
	settings := NewMemberSettingsService(repo)
	profiles := cache.NewLRUCache[core.Staff](16, time.Minute)
	return NewStaffService(repo, settings, nil, profiles)
}

func TestStaffCreateSeedsSettings(t *testing.T) {
	repo := newRepo(t)
	svc := newStaffService(t, repo)
	ctx := context.Background()
	fy := seedActiveYear(t, repo)

	st, err := svc.Create(ctx, core.Staff{EmployeeID: "EMP001", Name: "Asha"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !st.Active {
		t.Error("new staff must start active")
	}

	ms, err := repo.GetMemberSettings(ctx, fy.ID, st.ID)
	if err != nil {
		t.Fatalf("GetMemberSettings() error = %v", err)
	}
	if ms == nil || !ms.IsActive || ms.ShareAmount.Cents != 50000 {
		t.Errorf("seeded settings = %+v, want active row at the year default", ms)
	}

	if _, err := svc.Create(ctx, core.Staff{Name: "no id"}); !core.IsValidation(err) {
		t.Errorf("missing employee id: got %v, want validation error", err)
	}
	if _, err := svc.Create(ctx, core.Staff{EmployeeID: "EMP001", Name: "dup"}); !core.IsConflict(err) {
		t.Errorf("duplicate employee id: got %v, want conflict", err)
	}
}

func TestStaffSetActiveCascades(t *testing.T) {
	repo := newRepo(t)
	svc := newStaffService(t, repo)
	ctx := context.Background()
	fy := seedActiveYear(t, repo)

	st, err := svc.Create(ctx, core.Staff{EmployeeID: "EMP001", Name: "Asha"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Warm the profile cache, then flip the flag.
	if _, err := svc.Get(ctx, st.ID); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	flipped, err := svc.SetActive(ctx, st.ID, false)
	if err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	if flipped.Active {
		t.Error("SetActive(false) returned an active staff member")
	}

	// The flip invalidated the cached profile.
	got, err := svc.Get(ctx, st.ID)
	if err != nil {
		t.Fatalf("Get() after flip error = %v", err)
	}
	if got.Active {
		t.Error("cached profile survived deactivation")
	}

	ms, err := repo.GetMemberSettings(ctx, fy.ID, st.ID)
	if err != nil {
		t.Fatalf("GetMemberSettings() error = %v", err)
	}
	if ms == nil || ms.IsActive {
		t.Errorf("settings = %+v, want soft-disabled row", ms)
	}

	if _, err := svc.SetActive(ctx, 9999, true); !core.IsNotFound(err) {
		t.Errorf("flipping unknown staff: got %v, want not found", err)
	}
}

func TestStaffSetActiveIsIdempotent(t *testing.T) {
	repo := newRepo(t)
	svc := newStaffService(t, repo)
	ctx := context.Background()
	seedActiveYear(t, repo)

	st, err := svc.Create(ctx, core.Staff{EmployeeID: "EMP001", Name: "Asha"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	same, err := svc.SetActive(ctx, st.ID, true)
	if err != nil {
		t.Fatalf("SetActive(already active) error = %v", err)
	}
	if !same.Active {
		t.Error("no-op flip changed the flag")
	}
}
