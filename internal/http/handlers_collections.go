package http

import (
	"net/http"

	"welfarefund/internal/core"
)

type collectionRequest struct {
	FundKind    string `json:"fund_kind"`
	FundID      int64  `json:"fund_id"`
	StaffID     int64  `json:"staff_id"`
	Amount      string `json:"amount"`
	PeriodMonth int    `json:"period_month,omitempty"`
}

type collectionResponse struct {
	ID          int64  `json:"id"`
	FundKind    string `json:"fund_kind"`
	FundID      int64  `json:"fund_id"`
	StaffID     int64  `json:"staff_id"`
	Amount      string `json:"amount"`
	PeriodMonth int    `json:"period_month,omitempty"`
	RecordedAt  string `json:"recorded_at"`
}

func toCollectionResponse(c core.Collection) collectionResponse {
	return collectionResponse{
		ID:          c.ID,
		FundKind:    string(c.FundKind),
		FundID:      c.FundID,
		StaffID:     c.StaffID,
		Amount:      amountString(c.Amount),
		PeriodMonth: c.PeriodMonth,
		RecordedAt:  formatDate(c.RecordedAt),
	}
}

func (s *Server) handleRecordCollection(w http.ResponseWriter, r *http.Request) {
	var req collectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.svc.Collections.Record(r.Context(), core.Collection{
		FundKind:    core.FundKind(req.FundKind),
		FundID:      req.FundID,
		StaffID:     req.StaffID,
		Amount:      amount,
		PeriodMonth: req.PeriodMonth,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCollectionResponse(created))
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.Collections.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCollectionResponse(c))
}

type amountRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleCorrectCollection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.svc.Collections.CorrectAmount(r.Context(), id, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCollectionResponse(updated))
}

func (s *Server) handleListFundCollections(w http.ResponseWriter, r *http.Request) {
	kind := core.FundKind(r.PathValue("kind"))
	switch kind {
	case core.FundCharity, core.FundEmergency, core.FundChit, core.FundLoan, core.FundEvent:
	default:
		writeError(w, r, core.ValidationErrorf("unknown fund kind %q", r.PathValue("kind")))
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	collections, err := s.svc.Collections.ListByFund(r.Context(), kind, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]collectionResponse, 0, len(collections))
	for _, c := range collections {
		out = append(out, toCollectionResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}
