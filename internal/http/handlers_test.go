package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"welfarefund/internal/core"
	"welfarefund/internal/services"
	"welfarefund/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	settings := services.NewMemberSettingsService(repo)
	srv := NewServer(":0", Services{
		Years:       services.NewFinancialYearService(repo),
		Charity:     services.NewFundService(repo, core.FundCharity),
		Emergency:   services.NewFundService(repo, core.FundEmergency),
		Chitfunds:   services.NewChitfundService(repo),
		Loans:       services.NewLoanService(repo),
		Events:      services.NewEventService(repo),
		Collections: services.NewCollectionService(repo, nil),
		Settings:    settings,
		Staff:       services.NewStaffService(repo, settings, nil, nil),
	})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, repo
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestChitfundAndLoanEndpoints(t *testing.T) {
	srv, repo := newTestServer(t)
	ctx := context.Background()

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

	rec := doJSON(t, srv, http.MethodPost, "/chitfunds", map[string]any{
		"finance_year_id": fy.ID,
		"title":           "Monthly chit",
		"target_amount":   "6000.00",
		"staff_ids":       []int64{st.ID},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /chitfunds = %d, body %s", rec.Code, rec.Body.String())
	}
	var chit struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, rec, &chit)

	rec = doJSON(t, srv, http.MethodGet, "/chitfunds?status=active", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /chitfunds?status=active = %d", rec.Code)
	}
	var listed []json.RawMessage
	decodeBody(t, rec, &listed)
	if len(listed) != 1 {
		t.Errorf("active chitfunds = %d, want 1", len(listed))
	}

	rec = doJSON(t, srv, http.MethodGet, "/chitfunds?status=bogus", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bogus status filter = %d, want 422", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/chitfunds/"+strconv.FormatInt(chit.ID, 10), nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE /chitfunds/{id} = %d, want 204", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/chitfunds/"+strconv.FormatInt(chit.ID, 10), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET deleted chitfund = %d, want 404", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/loans", map[string]any{
		"finance_year_id":      fy.ID,
		"title":                "Festival advance",
		"target_amount":        "10000.00",
		"max_amount_per_staff": "2000.00",
		"total_staff_slots":    5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /loans = %d, body %s", rec.Code, rec.Body.String())
	}
	var loan struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, rec, &loan)

	rec = doJSON(t, srv, http.MethodGet, "/loans/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /loans/summary = %d", rec.Code)
	}
	var summaries []struct {
		FundID int64  `json:"fund_id"`
		Status string `json:"status"`
		Stats  struct {
			TotalCollected string `json:"total_collected"`
		} `json:"stats"`
	}
	decodeBody(t, rec, &summaries)
	if len(summaries) != 1 || summaries[0].FundID != loan.ID {
		t.Fatalf("loan summaries = %+v, want scheme %d", summaries, loan.ID)
	}
	if summaries[0].Status != "active" || summaries[0].Stats.TotalCollected != "0.00" {
		t.Errorf("loan summary = %+v", summaries[0])
	}

	rec = doJSON(t, srv, http.MethodDelete, "/loans/"+strconv.FormatInt(loan.ID, 10), nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE /loans/{id} = %d, want 204", rec.Code)
	}
}

func TestYearEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	create := map[string]any{
		"label":         "2025-26",
		"start_from":    "2025-04-01",
		"end_to":        "2026-03-31",
		"default_share": "500.00",
		"mark_active":   true,
	}
	rec := doJSON(t, srv, http.MethodPost, "/years", create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /years = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID              int64  `json:"id"`
		Label           string `json:"label"`
		CurrentlyActive bool   `json:"currently_active"`
		DefaultShare    string `json:"default_share"`
	}
	decodeBody(t, rec, &created)
	if !created.CurrentlyActive || created.DefaultShare != "500.00" {
		t.Errorf("created year = %+v", created)
	}

	rec = doJSON(t, srv, http.MethodGet, "/years/active", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /years/active = %d", rec.Code)
	}

	// Duplicate label maps to 409.
	rec = doJSON(t, srv, http.MethodPost, "/years", create)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate label = %d, want 409", rec.Code)
	}

	// Broken date maps to 422.
	bad := map[string]any{
		"label":         "2026-27",
		"start_from":    "01/04/2026",
		"end_to":        "2027-03-31",
		"default_share": "500.00",
	}
	rec = doJSON(t, srv, http.MethodPost, "/years", bad)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad date = %d, want 422", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/years/9999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET missing year = %d, want 404", rec.Code)
	}
}

func TestFundAndCollectionEndpoints(t *testing.T) {
	srv, repo := newTestServer(t)
	ctx := context.Background()

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

	rec := doJSON(t, srv, http.MethodPost, "/funds/charity", map[string]any{
		"finance_year_id": fy.ID,
		"title":           "Flood relief",
		"target_amount":   "1000.00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /funds/charity = %d, body %s", rec.Code, rec.Body.String())
	}
	var fund struct {
		ID     int64  `json:"id"`
		Kind   string `json:"kind"`
		Status string `json:"status"`
	}
	decodeBody(t, rec, &fund)
	if fund.Kind != "charity" || fund.Status != "active" {
		t.Errorf("fund = %+v", fund)
	}

	// Unknown kind segment maps to 422.
	rec = doJSON(t, srv, http.MethodPost, "/funds/lottery", map[string]any{
		"finance_year_id": fy.ID,
		"title":           "Nope",
		"target_amount":   "1.00",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown kind = %d, want 422", rec.Code)
	}

	payment := map[string]any{
		"fund_kind": "charity",
		"fund_id":   fund.ID,
		"staff_id":  st.ID,
		"amount":    "250.00",
	}
	rec = doJSON(t, srv, http.MethodPost, "/collections", payment)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /collections = %d, body %s", rec.Code, rec.Body.String())
	}
	var recorded struct {
		ID     int64  `json:"id"`
		Amount string `json:"amount"`
	}
	decodeBody(t, rec, &recorded)
	if recorded.Amount != "250.00" {
		t.Errorf("recorded amount = %q", recorded.Amount)
	}

	rec = doJSON(t, srv, http.MethodPost, "/collections", payment)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate collection = %d, want 409", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/funds/charity/1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET stats = %d", rec.Code)
	}
	var stats struct {
		TotalCollected       string  `json:"total_collected"`
		Remaining            string  `json:"remaining"`
		CompletionPercentage float64 `json:"completion_percentage"`
	}
	decodeBody(t, rec, &stats)
	if stats.TotalCollected != "250.00" || stats.Remaining != "750.00" {
		t.Errorf("stats = %+v", stats)
	}
	if stats.CompletionPercentage != 25 {
		t.Errorf("completion = %v, want 25", stats.CompletionPercentage)
	}

	rec = doJSON(t, srv, http.MethodPut, "/collections/1/amount", map[string]any{"amount": "300.00"})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT amount = %d, body %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &recorded)
	if recorded.Amount != "300.00" {
		t.Errorf("corrected amount = %q", recorded.Amount)
	}

	// Closing the fund freezes further payments with a 409.
	rec = doJSON(t, srv, http.MethodPost, "/funds/charity/1/close", map[string]any{
		"closed_at": "2025-06-30",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST close = %d, body %s", rec.Code, rec.Body.String())
	}
	late := map[string]any{
		"fund_kind": "charity",
		"fund_id":   fund.ID,
		"staff_id":  st.ID,
		"amount":    "10.00",
	}
	rec = doJSON(t, srv, http.MethodPost, "/collections", late)
	if rec.Code != http.StatusConflict {
		t.Errorf("payment against closed fund = %d, want 409", rec.Code)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/years", map[string]any{
		"label":  "2025-26",
		"bogus":  true,
		"start":  "2025-04-01",
		"end_to": "2026-03-31",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown fields = %d, want 422", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("Content-Security-Policy"); got == "" {
		t.Error("Content-Security-Policy header missing")
	}
}
