package http

import (
	"net/http"

	"welfarefund/internal/core"
)

type yearRequest struct {
	Label        string `json:"label"`
	StartFrom    string `json:"start_from"`
	EndTo        string `json:"end_to"`
	DefaultShare string `json:"default_share"`
	MarkActive   bool   `json:"mark_active,omitempty"`
}

type yearResponse struct {
	ID              int64  `json:"id"`
	Label           string `json:"label"`
	StartFrom       string `json:"start_from"`
	EndTo           string `json:"end_to"`
	CurrentlyActive bool   `json:"currently_active"`
	DefaultShare    string `json:"default_share"`
}

func toYearResponse(fy core.FinancialYear) yearResponse {
	return yearResponse{
		ID:              fy.ID,
		Label:           fy.Label,
		StartFrom:       formatDate(fy.StartFrom),
		EndTo:           formatDate(fy.EndTo),
		CurrentlyActive: fy.CurrentlyActive,
		DefaultShare:    amountString(fy.DefaultShare),
	}
}

func (s *Server) yearFromRequest(req yearRequest) (core.FinancialYear, error) {
	start, err := parseDate("start_from", req.StartFrom)
	if err != nil {
		return core.FinancialYear{}, err
	}
	end, err := parseDate("end_to", req.EndTo)
	if err != nil {
		return core.FinancialYear{}, err
	}
	fy := core.FinancialYear{
		Label:     req.Label,
		StartFrom: start,
		EndTo:     end,
	}
	if req.DefaultShare != "" {
		share, err := parseAmount(req.DefaultShare)
		if err != nil {
			return core.FinancialYear{}, err
		}
		fy.DefaultShare = share
	}
	return fy, nil
}

func (s *Server) handleCreateYear(w http.ResponseWriter, r *http.Request) {
	var req yearRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fy, err := s.yearFromRequest(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.svc.Years.Create(r.Context(), fy, req.MarkActive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toYearResponse(created))
}

func (s *Server) handleListYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.svc.Years.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]yearResponse, 0, len(years))
	for _, fy := range years {
		out = append(out, toYearResponse(fy))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetYear(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	fy, err := s.svc.Years.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toYearResponse(fy))
}

func (s *Server) handleGetActiveYear(w http.ResponseWriter, r *http.Request) {
	fy, err := s.svc.Years.GetActive(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toYearResponse(fy))
}

func (s *Server) handleUpdateYear(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req yearRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fy, err := s.yearFromRequest(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fy.ID = id

	updated, err := s.svc.Years.Update(r.Context(), fy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toYearResponse(updated))
}

func (s *Server) handleDeleteYear(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Years.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleActivateYear(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Years.SetActive(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	fy, err := s.svc.Years.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toYearResponse(fy))
}
