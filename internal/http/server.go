// Package http exposes the ledger as a thin JSON API. Handlers only
// translate between HTTP and the services; every rule lives below.
package http

import (
	"context"
	"net/http"
	"sync"

	applog "welfarefund/internal/log"
	"welfarefund/internal/middleware/ratelimit"
	"welfarefund/internal/middleware/security"
	"welfarefund/internal/middleware/trace"
	"welfarefund/internal/services"
)

// Services bundles everything the API serves.
type Services struct {
	Years       *services.FinancialYearService
	Charity     *services.FundService
	Emergency   *services.FundService
	Chitfunds   *services.ChitfundService
	Loans       *services.LoanService
	Events      *services.EventService
	Collections *services.CollectionService
	Settings    *services.MemberSettingsService
	Staff       *services.StaffService
}

type Server struct {
	http.Server
	svc          Services
	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, svc Services) *Server {
	mux := http.NewServeMux()

	s := &Server{
		svc:     svc,
		limiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	// Financial year registry
	mux.HandleFunc("POST /years", s.handleCreateYear)
	mux.HandleFunc("GET /years", s.handleListYears)
	mux.HandleFunc("GET /years/active", s.handleGetActiveYear)
	mux.HandleFunc("GET /years/{id}", s.handleGetYear)
	mux.HandleFunc("PUT /years/{id}", s.handleUpdateYear)
	mux.HandleFunc("DELETE /years/{id}", s.handleDeleteYear)
	mux.HandleFunc("POST /years/{id}/activate", s.handleActivateYear)

	// Charity and emergency pools (plain funds)
	mux.HandleFunc("POST /funds/{kind}", s.handleCreateFund)
	mux.HandleFunc("GET /funds/{kind}", s.handleListFunds)
	mux.HandleFunc("GET /funds/{kind}/summary", s.handleFundSummary)
	mux.HandleFunc("GET /funds/{kind}/{id}", s.handleGetFund)
	mux.HandleFunc("PUT /funds/{kind}/{id}", s.handleUpdateFund)
	mux.HandleFunc("DELETE /funds/{kind}/{id}", s.handleDeleteFund)
	mux.HandleFunc("POST /funds/{kind}/{id}/close", s.handleCloseFund)
	mux.HandleFunc("GET /funds/{kind}/{id}/stats", s.handleFundStats)

	// Chitfunds
	mux.HandleFunc("POST /chitfunds", s.handleCreateChitfund)
	mux.HandleFunc("GET /chitfunds", s.handleListChitfunds)
	mux.HandleFunc("GET /chitfunds/summary", s.handleChitfundSummary)
	mux.HandleFunc("GET /chitfunds/{id}", s.handleGetChitfund)
	mux.HandleFunc("PUT /chitfunds/{id}", s.handleUpdateChitfund)
	mux.HandleFunc("DELETE /chitfunds/{id}", s.handleDeleteChitfund)
	mux.HandleFunc("POST /chitfunds/{id}/close", s.handleCloseChitfund)
	mux.HandleFunc("GET /chitfunds/{id}/stats", s.handleChitfundStats)
	mux.HandleFunc("GET /chitfunds/{id}/members", s.handleListChitMembers)
	mux.HandleFunc("POST /chitfunds/{id}/members", s.handleAddChitMember)
	mux.HandleFunc("DELETE /chitfunds/{id}/members/{staffID}", s.handleRemoveChitMember)
	mux.HandleFunc("POST /chitfunds/{id}/members/{staffID}/take", s.handleRecordChitTaken)

	// Loan schemes
	mux.HandleFunc("POST /loans", s.handleCreateLoan)
	mux.HandleFunc("GET /loans", s.handleListLoans)
	mux.HandleFunc("GET /loans/summary", s.handleLoanSummary)
	mux.HandleFunc("GET /loans/{id}", s.handleGetLoan)
	mux.HandleFunc("PUT /loans/{id}", s.handleUpdateLoan)
	mux.HandleFunc("DELETE /loans/{id}", s.handleDeleteLoan)
	mux.HandleFunc("POST /loans/{id}/close", s.handleCloseLoan)
	mux.HandleFunc("GET /loans/{id}/stats", s.handleLoanStats)
	mux.HandleFunc("POST /loans/{id}/topup/enable", s.handleEnableTopup)
	mux.HandleFunc("POST /loans/{id}/topup/disable", s.handleDisableTopup)
	mux.HandleFunc("PUT /loans/{id}/topup", s.handleUpdateTopup)
	mux.HandleFunc("POST /loans/{id}/staff", s.handleEnrollLoanStaff)
	mux.HandleFunc("GET /loans/{id}/staff", s.handleListLoanStaff)
	mux.HandleFunc("GET /loans/{id}/staff/{staffID}", s.handleGetLoanStaff)
	mux.HandleFunc("PUT /loans/{id}/staff/{staffID}", s.handleUpdateLoanStaff)

	// Events
	mux.HandleFunc("POST /events", s.handleCreateEvent)
	mux.HandleFunc("GET /events", s.handleListEvents)
	mux.HandleFunc("GET /events/summary", s.handleEventSummary)
	mux.HandleFunc("GET /events/{id}", s.handleGetEvent)
	mux.HandleFunc("PUT /events/{id}", s.handleUpdateEvent)
	mux.HandleFunc("DELETE /events/{id}", s.handleDeleteEvent)
	mux.HandleFunc("GET /events/{id}/stats", s.handleEventStats)
	mux.HandleFunc("PUT /events/{id}/contributors/{staffID}", s.handleSetContributorStatus)

	// Collections
	mux.HandleFunc("POST /collections", s.handleRecordCollection)
	mux.HandleFunc("GET /collections/{id}", s.handleGetCollection)
	mux.HandleFunc("PUT /collections/{id}/amount", s.handleCorrectCollection)
	mux.HandleFunc("GET /funds/{kind}/{id}/collections", s.handleListFundCollections)

	// Staff directory and member settings
	mux.HandleFunc("POST /staff", s.handleCreateStaff)
	mux.HandleFunc("GET /staff", s.handleListActiveStaff)
	mux.HandleFunc("GET /staff/{id}", s.handleGetStaff)
	mux.HandleFunc("PUT /staff/{id}/active", s.handleSetStaffActive)
	mux.HandleFunc("GET /years/{id}/settings", s.handleListMemberSettings)
	mux.HandleFunc("PUT /years/{id}/settings/{staffID}", s.handleSetMemberSettings)
	mux.HandleFunc("GET /years/{id}/settings/{staffID}", s.handleGetMemberSettings)
	mux.HandleFunc("GET /years/{id}/staff/{staffID}/share", s.handleEffectiveShare)
	mux.HandleFunc("POST /years/{id}/settings/sync", s.handleSyncMemberSettings)

	// Middleware chain, outermost first: security headers, request
	// tracing, rate limiting, request-scoped logger.
	detector := security.NewDetector()
	tracer := trace.NewMiddleware(detector.ExtractClientIP, detector.DetectSuspiciousRequest)
	httpLogger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)

	var handler http.Handler = mux
	handler = applog.Middleware(httpLogger)(handler)
	handler = s.limiter.Middleware(detector.ExtractClientIP)(handler)
	handler = tracer.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:    addr,
		Handler: handler,
	}

	return s
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
