package http

import (
	"net/http"

	"welfarefund/internal/core"
)

type eventRequest struct {
	FinanceYearID  int64  `json:"finance_year_id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Amount         string `json:"amount"`
	HostEmployeeID string `json:"host_employee_id"`
	Location       string `json:"location,omitempty"`
	Time           string `json:"time,omitempty"`
	ClosedAt       string `json:"closed_at"`
}

type contributorResponse struct {
	StaffID       int64  `json:"staff_id"`
	EmployeeID    string `json:"employee_id"`
	Name          string `json:"name"`
	Amount        string `json:"amount"`
	PaymentStatus string `json:"payment_status"`
}

type eventResponse struct {
	ID             int64                 `json:"id"`
	FinanceYearID  int64                 `json:"finance_year_id"`
	Title          string                `json:"title"`
	Description    string                `json:"description,omitempty"`
	Amount         string                `json:"amount"`
	TargetAmount   string                `json:"target_amount"`
	HostEmployeeID string                `json:"host_employee_id"`
	Location       string                `json:"location,omitempty"`
	Time           string                `json:"time,omitempty"`
	ClosedAt       string                `json:"closed_at"`
	Status         string                `json:"status"`
	Contributors   []contributorResponse `json:"contributors"`
}

func toEventResponse(e core.Event) eventResponse {
	resp := eventResponse{
		ID:             e.ID,
		FinanceYearID:  e.FinanceYearID,
		Title:          e.Title,
		Description:    e.Description,
		Amount:         amountString(e.Amount),
		TargetAmount:   amountString(e.TargetAmount),
		HostEmployeeID: e.HostEmployeeID,
		Location:       e.Location,
		Time:           e.Time,
		ClosedAt:       formatDate(e.ClosedAt),
		Status:         string(e.FundStatus(timeNow())),
	}
	for _, c := range e.Contributors {
		resp.Contributors = append(resp.Contributors, contributorResponse{
			StaffID:       c.StaffID,
			EmployeeID:    c.EmployeeID,
			Name:          c.Name,
			Amount:        amountString(c.Amount),
			PaymentStatus: string(c.PaymentStatus),
		})
	}
	return resp
}

func (s *Server) eventFromRequest(req eventRequest) (core.Event, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return core.Event{}, err
	}
	closedAt, err := parseDate("closed_at", req.ClosedAt)
	if err != nil {
		return core.Event{}, err
	}
	return core.Event{
		FinanceYearID:  req.FinanceYearID,
		Title:          req.Title,
		Description:    req.Description,
		Amount:         amount,
		HostEmployeeID: req.HostEmployeeID,
		Location:       req.Location,
		Time:           req.Time,
		ClosedAt:       closedAt,
	}, nil
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.eventFromRequest(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.svc.Events.Create(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventResponse(created))
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
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
	events, err := s.svc.Events.ListByStatus(r.Context(), yearID, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEventSummary(w http.ResponseWriter, r *http.Request) {
	yearID, err := queryYearID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summaries, err := s.svc.Events.GetWithSummary(r.Context(), yearID)
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

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Events.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(e))
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.eventFromRequest(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e.ID = id

	updated, err := s.svc.Events.Update(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(updated))
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Events.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleEventStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := s.svc.Events.GetStats(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

type contributorStatusRequest struct {
	PaymentStatus string `json:"payment_status"`
}

func (s *Server) handleSetContributorStatus(w http.ResponseWriter, r *http.Request) {
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
	var req contributorStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.svc.Events.SetContributorStatus(r.Context(), id, staffID, core.PaymentStatus(req.PaymentStatus))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(e))
}
