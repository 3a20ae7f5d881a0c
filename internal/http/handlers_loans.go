package http

import (
	"net/http"

	"welfarefund/internal/core"
)

type loanRequest struct {
	FinanceYearID     int64  `json:"finance_year_id"`
	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	TargetAmount      string `json:"target_amount"`
	MaxAmountPerStaff string `json:"max_amount_per_staff"`
	TotalStaffSlots   int    `json:"total_staff_slots"`
}

type loanResponse struct {
	fundResponse
	MaxAmountPerStaff string `json:"max_amount_per_staff"`
	AllowTopup        bool   `json:"allow_topup"`
	TopupAmount       string `json:"topup_amount,omitempty"`
	TotalStaffSlots   int    `json:"total_staff_slots"`
}

type loanStaffRequest struct {
	StaffID            int64   `json:"staff_id"`
	TakenAmount        string  `json:"taken_amount,omitempty"`
	TakenMonth         int     `json:"taken_month,omitempty"`
	InterestPercentage float64 `json:"interest_percentage,omitempty"`
	DueAmount          string  `json:"due_amount,omitempty"`
	TopupAmount        string  `json:"topup_amount,omitempty"`
	Approver1          string  `json:"approver1,omitempty"`
	Approver2          string  `json:"approver2,omitempty"`
	Status             string  `json:"status,omitempty"`
}

type loanStaffResponse struct {
	ID                 int64   `json:"id"`
	LoanID             int64   `json:"loan_id"`
	StaffID            int64   `json:"staff_id"`
	TakenAmount        string  `json:"taken_amount"`
	TakenMonth         int     `json:"taken_month,omitempty"`
	InterestPercentage float64 `json:"interest_percentage,omitempty"`
	DueAmount          string  `json:"due_amount"`
	TopupAmount        string  `json:"topup_amount,omitempty"`
	Approver1          string  `json:"approver1,omitempty"`
	Approver2          string  `json:"approver2,omitempty"`
	EligibilityAmount  string  `json:"eligibility_amount"`
	Status             string  `json:"status"`
	HasTopup           bool    `json:"has_topup"`
}

func toLoanResponse(l core.Loan) loanResponse {
	resp := loanResponse{
		fundResponse:      toFundResponse(l.Fund),
		MaxAmountPerStaff: amountString(l.MaxAmountPerStaff),
		AllowTopup:        l.AllowTopup,
		TotalStaffSlots:   l.TotalStaffSlots,
	}
	if l.AllowTopup {
		resp.TopupAmount = amountString(l.TopupAmount)
	}
	return resp
}

func toLoanStaffResponse(ls core.LoanStaff) loanStaffResponse {
	resp := loanStaffResponse{
		ID:                 ls.ID,
		LoanID:             ls.LoanID,
		StaffID:            ls.StaffID,
		TakenAmount:        amountString(ls.TakenAmount),
		TakenMonth:         ls.TakenMonth,
		InterestPercentage: ls.InterestPercentage,
		DueAmount:          amountString(ls.DueAmount),
		Approver1:          ls.Approver1,
		Approver2:          ls.Approver2,
		EligibilityAmount:  amountString(ls.EligibilityAmount),
		Status:             string(ls.Status),
		HasTopup:           ls.HasTopup,
	}
	if ls.HasTopup {
		resp.TopupAmount = amountString(ls.TopupAmount)
	}
	return resp
}

func (s *Server) loanFromRequest(req loanRequest) (core.Loan, error) {
	target, err := parseAmount(req.TargetAmount)
	if err != nil {
		return core.Loan{}, err
	}
	maxPerStaff, err := parseAmount(req.MaxAmountPerStaff)
	if err != nil {
		return core.Loan{}, err
	}
	return core.Loan{
		Fund: core.Fund{
			FinanceYearID: req.FinanceYearID,
			Title:         req.Title,
			Description:   req.Description,
			TargetAmount:  target,
		},
		MaxAmountPerStaff: maxPerStaff,
		TotalStaffSlots:   req.TotalStaffSlots,
	}, nil
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.loanFromRequest(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.svc.Loans.Create(r.Context(), l)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanResponse(created))
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
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
	loans, err := s.svc.Loans.ListByStatus(r.Context(), yearID, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]loanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, toLoanResponse(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Loans.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleLoanSummary(w http.ResponseWriter, r *http.Request) {
	yearID, err := queryYearID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summaries, err := s.svc.Loans.GetWithSummary(r.Context(), yearID)
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

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.svc.Loans.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(l))
}

func (s *Server) handleUpdateLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req loanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.loanFromRequest(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	l.ID = id

	updated, err := s.svc.Loans.Update(r.Context(), l)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(updated))
}

func (s *Server) handleCloseLoan(w http.ResponseWriter, r *http.Request) {
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

	closed, err := s.svc.Loans.Close(r.Context(), id, closedAt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(closed))
}

func (s *Server) handleLoanStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := s.svc.Loans.GetStats(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

type topupRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleEnableTopup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req topupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	l, err := s.svc.Loans.EnableTopup(r.Context(), id, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(l))
}

func (s *Server) handleDisableTopup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.svc.Loans.DisableTopup(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(l))
}

func (s *Server) handleUpdateTopup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req topupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	l, err := s.svc.Loans.UpdateTopupAmount(r.Context(), id, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanResponse(l))
}

func (s *Server) loanStaffFromRequest(loanID int64, req loanStaffRequest) (core.LoanStaff, error) {
	ls := core.LoanStaff{
		LoanID:             loanID,
		StaffID:            req.StaffID,
		TakenMonth:         req.TakenMonth,
		InterestPercentage: req.InterestPercentage,
		Approver1:          req.Approver1,
		Approver2:          req.Approver2,
		Status:             core.LoanStaffStatus(req.Status),
	}
	if req.TakenAmount != "" {
		amount, err := parseAmount(req.TakenAmount)
		if err != nil {
			return core.LoanStaff{}, err
		}
		ls.TakenAmount = amount
	}
	if req.DueAmount != "" {
		amount, err := parseAmount(req.DueAmount)
		if err != nil {
			return core.LoanStaff{}, err
		}
		ls.DueAmount = amount
	}
	if req.TopupAmount != "" {
		amount, err := parseAmount(req.TopupAmount)
		if err != nil {
			return core.LoanStaff{}, err
		}
		ls.TopupAmount = amount
		ls.HasTopup = true
	}
	return ls, nil
}

func (s *Server) handleEnrollLoanStaff(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req loanStaffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ls, err := s.loanStaffFromRequest(id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.svc.Loans.Enroll(r.Context(), ls)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanStaffResponse(created))
}

func (s *Server) handleListLoanStaff(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	staff, err := s.svc.Loans.ListStaffLoans(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]loanStaffResponse, 0, len(staff))
	for _, ls := range staff {
		out = append(out, toLoanStaffResponse(ls))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetLoanStaff(w http.ResponseWriter, r *http.Request) {
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
	ls, err := s.svc.Loans.GetStaffLoan(r.Context(), id, staffID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanStaffResponse(ls))
}

func (s *Server) handleUpdateLoanStaff(w http.ResponseWriter, r *http.Request) {
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
	var req loanStaffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.StaffID = staffID
	ls, err := s.loanStaffFromRequest(id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.svc.Loans.UpdateStaffLoan(r.Context(), ls)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanStaffResponse(updated))
}
