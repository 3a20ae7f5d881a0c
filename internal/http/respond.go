package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"welfarefund/internal/core"
	applog "welfarefund/internal/log"
	"welfarefund/internal/middleware/trace"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

var httpLog = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		httpLog.Error("Failed to encode response", applog.FieldError, err.Error())
	}
}

// writeError maps domain error kinds to stable status codes; anything
// unclassified is a 500 with the detail kept out of the response body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var kind core.Kind
	switch {
	case core.IsValidation(err):
		status, kind = http.StatusUnprocessableEntity, core.KindValidation
	case core.IsNotFound(err):
		status, kind = http.StatusNotFound, core.KindNotFound
	case core.IsConflict(err):
		status, kind = http.StatusConflict, core.KindConflict
	case core.IsInvalidState(err):
		status, kind = http.StatusConflict, core.KindInvalidState
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldRequestID, trace.GetRequestID(r.Context()),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: string(kind)})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.ValidationErrorf("invalid request body: %v", err)
	}
	return nil
}

// pathID parses a numeric path segment.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.ValidationErrorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// queryYearID reads the optional ?year= filter; zero means unfiltered.
func queryYearID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.ValidationErrorf("invalid year filter %q", raw)
	}
	return id, nil
}

// queryStatus reads the optional ?status= filter; empty means unfiltered.
func queryStatus(r *http.Request) (core.FundStatus, error) {
	raw := core.FundStatus(r.URL.Query().Get("status"))
	switch raw {
	case "", core.StatusActive, core.StatusClosed, core.StatusCompleted:
		return raw, nil
	}
	return "", core.ValidationErrorf("invalid status filter %q", raw)
}

// parseAmount converts a decimal-string amount from a request body.
func parseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, core.ValidationErrorf("invalid amount %q", s)
	}
	return core.Money{Cents: cents}, nil
}

// timeNow is swapped in tests that pin the clock.
var timeNow = time.Now

const dateLayout = "2006-01-02"

// parseDate parses a required "2006-01-02" date field.
func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, core.ValidationErrorf("invalid %s %q (want %s)", field, s, dateLayout)
	}
	return t, nil
}

// parseOptionalDate parses a date field that may be empty.
func parseOptionalDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return parseDate(field, s)
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func amountString(m core.Money) string {
	return m.String()
}
