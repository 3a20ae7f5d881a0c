package http

import (
	"net/http"

	"welfarefund/internal/core"
)

type chitfundRequest struct {
	FinanceYearID int64   `json:"finance_year_id"`
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	TargetAmount  string  `json:"target_amount"`
	Status        string  `json:"status,omitempty"`
	StaffIDs      []int64 `json:"staff_ids,omitempty"`
}

type chitfundResponse struct {
	fundResponse
	ChitStatus string  `json:"chit_status"`
	StaffIDs   []int64 `json:"staff_ids,omitempty"`
}

type chitMemberResponse struct {
	ID                 int64   `json:"id"`
	ChitfundID         int64   `json:"chitfund_id"`
	StaffID            int64   `json:"staff_id"`
	ChitTaken          bool    `json:"chit_taken"`
	ChitTakenAmount    string  `json:"chit_taken_amount,omitempty"`
	ChitTakenMonth     int     `json:"chit_taken_month,omitempty"`
	InterestPercentage float64 `json:"interest_percentage,omitempty"`
}

func toChitfundResponse(cf core.Chitfund) chitfundResponse {
	return chitfundResponse{
		fundResponse: toFundResponse(cf.Fund),
		ChitStatus:   string(cf.Status),
		StaffIDs:     cf.StaffIDs,
	}
}

func toChitMemberResponse(m core.ChitMember) chitMemberResponse {
	resp := chitMemberResponse{
		ID:                 m.ID,
		ChitfundID:         m.ChitfundID,
		StaffID:            m.StaffID,
		ChitTaken:          m.ChitTaken,
		ChitTakenMonth:     m.ChitTakenMonth,
		InterestPercentage: m.InterestPercentage,
	}
	if m.ChitTaken {
		resp.ChitTakenAmount = amountString(m.ChitTakenAmount)
	}
	return resp
}

func (s *Server) handleCreateChitfund(w http.ResponseWriter, r *http.Request) {
	var req chitfundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	target, err := parseAmount(req.TargetAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.svc.Chitfunds.Create(r.Context(), core.Chitfund{
		Fund: core.Fund{
			FinanceYearID: req.FinanceYearID,
			Title:         req.Title,
			Description:   req.Description,
			TargetAmount:  target,
		},
		Status:   core.ChitfundStatus(req.Status),
		StaffIDs: req.StaffIDs,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChitfundResponse(created))
}

func (s *Server) handleListChitfunds(w http.ResponseWriter, r *http.Request) {
	yearID, err := queryYearID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status, err := queryStatus(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	funds, err := s.svc.Chitfunds.ListByStatus(r.Context(), yearID, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]chitfundResponse, 0, len(funds))
	for _, cf := range funds {
		out = append(out, toChitfundResponse(cf))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetChitfund(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cf, err := s.svc.Chitfunds.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChitfundResponse(cf))
}

func (s *Server) handleUpdateChitfund(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req chitfundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	target, err := parseAmount(req.TargetAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.svc.Chitfunds.Update(r.Context(), core.Chitfund{
		Fund: core.Fund{
			ID:            id,
			FinanceYearID: req.FinanceYearID,
			Title:         req.Title,
			Description:   req.Description,
			TargetAmount:  target,
		},
		Status: core.ChitfundStatus(req.Status),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChitfundResponse(updated))
}

func (s *Server) handleCloseChitfund(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req closeRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	closedAt, err := parseOptionalDate("closed_at", req.ClosedAt)
	if err != nil {
		writeError(w, r, err)
		return
	}

	closed, err := s.svc.Chitfunds.Close(r.Context(), id, closedAt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChitfundResponse(closed))
}

func (s *Server) handleDeleteChitfund(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Chitfunds.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleChitfundSummary(w http.ResponseWriter, r *http.Request) {
	yearID, err := queryYearID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summaries, err := s.svc.Chitfunds.GetWithSummary(r.Context(), yearID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]summaryResponse, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, toSummaryResponse(sum))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChitfundStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := s.svc.Chitfunds.GetStats(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

func (s *Server) handleListChitMembers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	members, err := s.svc.Chitfunds.Members(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]chitMemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toChitMemberResponse(m))
	}
	writeJSON(w, http.StatusOK, out)
}

type chitMemberRequest struct {
	StaffID int64 `json:"staff_id"`
}

func (s *Server) handleAddChitMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req chitMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	member, err := s.svc.Chitfunds.AddMember(r.Context(), id, req.StaffID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChitMemberResponse(member))
}

func (s *Server) handleRemoveChitMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	staffID, err := pathID(r, "staffID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Chitfunds.RemoveMember(r.Context(), id, staffID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type chitTakenRequest struct {
	Amount             string  `json:"amount"`
	Month              int     `json:"month"`
	InterestPercentage float64 `json:"interest_percentage,omitempty"`
}

func (s *Server) handleRecordChitTaken(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	staffID, err := pathID(r, "staffID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req chitTakenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	member, err := s.svc.Chitfunds.RecordChitTaken(r.Context(), id, staffID, amount, req.Month, req.InterestPercentage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChitMemberResponse(member))
}
