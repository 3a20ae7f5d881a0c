package http

import (
	"net/http"

	"welfarefund/internal/core"
	"welfarefund/internal/services"
)

type fundRequest struct {
	FinanceYearID int64  `json:"finance_year_id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	TargetAmount  string `json:"target_amount"`
}

type fundResponse struct {
	ID            int64  `json:"id"`
	Kind          string `json:"kind"`
	FinanceYearID int64  `json:"finance_year_id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	TargetAmount  string `json:"target_amount"`
	Status        string `json:"status"`
	ClosedAt      string `json:"closed_at,omitempty"`
}

type statsResponse struct {
	TotalCollected       string  `json:"total_collected"`
	Remaining            string  `json:"remaining"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

type summaryResponse struct {
	Kind   string        `json:"kind"`
	FundID int64         `json:"fund_id"`
	Title  string        `json:"title"`
	Status string        `json:"status"`
	Target string        `json:"target"`
	Stats  statsResponse `json:"stats"`
}

func toFundResponse(f core.Fund) fundResponse {
	resp := fundResponse{
		ID:            f.ID,
		Kind:          string(f.Kind),
		FinanceYearID: f.FinanceYearID,
		Title:         f.Title,
		Description:   f.Description,
		TargetAmount:  amountString(f.TargetAmount),
		Status:        string(f.FundStatus(timeNow())),
	}
	if f.ClosedAt != nil {
		resp.ClosedAt = formatDate(*f.ClosedAt)
	}
	return resp
}

func toStatsResponse(st core.FundStats) statsResponse {
	return statsResponse{
		TotalCollected:       amountString(st.TotalCollected),
		Remaining:            amountString(st.Remaining),
		CompletionPercentage: st.CompletionPercentage,
	}
}

func toSummaryResponse(sum core.FundSummary) summaryResponse {
	return summaryResponse{
		Kind:   string(sum.Kind),
		FundID: sum.FundID,
		Title:  sum.Title,
		Status: string(sum.Status),
		Target: amountString(sum.Target),
		Stats:  toStatsResponse(sum.Stats),
	}
}

// plainFundService resolves the {kind} path segment to the charity or
// emergency service; the other kinds have their own routes.
func (s *Server) plainFundService(r *http.Request) (*services.FundService, error) {
	switch core.FundKind(r.PathValue("kind")) {
	case core.FundCharity:
		return s.svc.Charity, nil
	case core.FundEmergency:
		return s.svc.Emergency, nil
	default:
		return nil, core.ValidationErrorf("unknown fund kind %q", r.PathValue("kind"))
	}
}

func (s *Server) handleCreateFund(w http.ResponseWriter, r *http.Request) {
	svc, err := s.plainFundService(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req fundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	target, err := parseAmount(req.TargetAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := svc.Create(r.Context(), core.Fund{
		FinanceYearID: req.FinanceYearID,
		Title:         req.Title,
		Description:   req.Description,
		TargetAmount:  target,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFundResponse(created))
}

func (s *Server) handleListFunds(w http.ResponseWriter, r *http.Request) {
	svc, err := s.plainFundService(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
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
	funds, err := svc.ListByStatus(r.Context(), yearID, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]fundResponse, 0, len(funds))
	for _, f := range funds {
		out = append(out, toFundResponse(f))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetFund(w http.ResponseWriter, r *http.Request) {
	svc, err := s.plainFundService(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFundResponse(f))
}

func (s *Server) handleUpdateFund(w http.ResponseWriter, r *http.Request) {
	svc, err := s.plainFundService(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req fundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	target, err := parseAmount(req.TargetAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := svc.Update(r.Context(), core.Fund{
		ID:            id,
		FinanceYearID: req.FinanceYearID,
		Title:         req.Title,
		Description:   req.Description,
		TargetAmount:  target,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFundResponse(updated))
}

func (s *Server) handleDeleteFund(w http.ResponseWriter, r *http.Request) {
	svc, err := s.plainFundService(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type closeRequest struct {
	ClosedAt string `json:"closed_at,omitempty"`
}

func (s *Server) handleCloseFund(w http.ResponseWriter, r *http.Request) {
	svc, err := s.plainFundService(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
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

	closed, err := svc.Close(r.Context(), id, closedAt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFundResponse(closed))
}

func (s *Server) handleFundStats(w http.ResponseWriter, r *http.Request) {
	svc, err := s.plainFundService(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := svc.GetStats(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

func (s *Server) handleFundSummary(w http.ResponseWriter, r *http.Request) {
	svc, err := s.plainFundService(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	yearID, err := queryYearID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summaries, err := svc.GetWithSummary(r.Context(), yearID)
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
