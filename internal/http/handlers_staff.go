package http

import (
	"net/http"

	"welfarefund/internal/core"
)

type staffRequest struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
}

type staffResponse struct {
	ID         int64  `json:"id"`
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Active     bool   `json:"active"`
}

func toStaffResponse(st core.Staff) staffResponse {
	return staffResponse{
		ID:         st.ID,
		EmployeeID: st.EmployeeID,
		Name:       st.Name,
		Active:     st.Active,
	}
}

func (s *Server) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	var req staffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.svc.Staff.Create(r.Context(), core.Staff{
		EmployeeID: req.EmployeeID,
		Name:       req.Name,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStaffResponse(created))
}

func (s *Server) handleListActiveStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := s.svc.Staff.ListActive(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]staffResponse, 0, len(staff))
	for _, st := range staff {
		out = append(out, toStaffResponse(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetStaff(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.svc.Staff.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(st))
}

type staffActiveRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleSetStaffActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req staffActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	st, err := s.svc.Staff.SetActive(r.Context(), id, req.Active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(st))
}

type memberSettingsRequest struct {
	ShareAmount string `json:"share_amount"`
	IsActive    *bool  `json:"is_active,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type memberSettingsResponse struct {
	ID            int64  `json:"id"`
	FinanceYearID int64  `json:"finance_year_id"`
	StaffID       int64  `json:"staff_id"`
	ShareAmount   string `json:"share_amount"`
	IsActive      bool   `json:"is_active"`
	Notes         string `json:"notes,omitempty"`
}

func toMemberSettingsResponse(ms core.MemberSettings) memberSettingsResponse {
	return memberSettingsResponse{
		ID:            ms.ID,
		FinanceYearID: ms.FinanceYearID,
		StaffID:       ms.StaffID,
		ShareAmount:   amountString(ms.ShareAmount),
		IsActive:      ms.IsActive,
		Notes:         ms.Notes,
	}
}

func (s *Server) handleListMemberSettings(w http.ResponseWriter, r *http.Request) {
	yearID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	settings, err := s.svc.Settings.List(r.Context(), yearID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]memberSettingsResponse, 0, len(settings))
	for _, ms := range settings {
		out = append(out, toMemberSettingsResponse(ms))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetMemberSettings(w http.ResponseWriter, r *http.Request) {
	yearID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	staffID, err := pathID(r, "staffID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req memberSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	share, err := parseAmount(req.ShareAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ms := core.MemberSettings{
		FinanceYearID: yearID,
		StaffID:       staffID,
		ShareAmount:   share,
		IsActive:      true,
		Notes:         req.Notes,
	}
	if req.IsActive != nil {
		ms.IsActive = *req.IsActive
	}

	stored, err := s.svc.Settings.Set(r.Context(), ms)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberSettingsResponse(stored))
}

func (s *Server) handleGetMemberSettings(w http.ResponseWriter, r *http.Request) {
	yearID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	staffID, err := pathID(r, "staffID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ms, err := s.svc.Settings.Get(r.Context(), yearID, staffID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberSettingsResponse(ms))
}

type effectiveShareResponse struct {
	FinanceYearID int64  `json:"finance_year_id"`
	StaffID       int64  `json:"staff_id"`
	ShareAmount   string `json:"share_amount"`
}

func (s *Server) handleEffectiveShare(w http.ResponseWriter, r *http.Request) {
	yearID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	staffID, err := pathID(r, "staffID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	share, err := s.svc.Settings.GetEffectiveShare(r.Context(), yearID, staffID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, effectiveShareResponse{
		FinanceYearID: yearID,
		StaffID:       staffID,
		ShareAmount:   amountString(share),
	})
}

type syncResultResponse struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

func (s *Server) handleSyncMemberSettings(w http.ResponseWriter, r *http.Request) {
	yearID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.svc.Settings.Sync(r.Context(), yearID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResultResponse{
		Created: result.Created,
		Updated: result.Updated,
		Skipped: result.Skipped,
	})
}
