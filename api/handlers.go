/*
handlers.go - HTTP API handlers for the leave ledger

PURPOSE:
  Exposes leave.Service over REST. Handlers parse the request, take the
  actor from the verified token, call exactly one service operation and
  serialize the result. No balance logic lives here.

ENDPOINTS:
  Companies (admin writes):
    GET    /api/companies/{companyID}
    PUT    /api/companies/{companyID}
    GET    /api/companies/{companyID}/overrides?from=&to=
    PUT    /api/companies/{companyID}/overrides/{date}
    DELETE /api/companies/{companyID}/overrides/{date}
    GET    /api/companies/{companyID}/chargeable?from=&to=
    POST   /api/companies/{companyID}/employees
    POST   /api/companies/{companyID}/backfill
    POST   /api/companies/{companyID}/accrual?month=YYYY-MM

  Employees:
    GET    /api/employees/{employeeID}/ledger
    POST   /api/employees/{employeeID}/requests
    POST   /api/employees/{employeeID}/preview

  Requests:
    GET    /api/requests/{requestID}
    POST   /api/requests/{requestID}/approve
    POST   /api/requests/{requestID}/reject

ERROR HANDLING:
  writeDomainError maps the generic error classes to HTTP status:
  - 400: ValidationError, invalid period
  - 401: missing or invalid token (RequireActor)
  - 403: AuthorizationError
  - 404: NotFoundError
  - 409: StateConflictError, lost ledger race, duplicate key
  - 422: InsufficientLeaveError
  - 500: everything else (logged)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *leave.Service
	logger  *zap.Logger
}

// NewHandler creates a handler. A nil logger disables logging.
func NewHandler(svc *leave.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Service: svc, logger: logger.Named("api")}
}

// =============================================================================
// COMPANY HANDLERS
// =============================================================================

func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.memberOnly(w, r, "read")
	if !ok {
		return
	}
	c, err := h.Service.GetCompany(r.Context(), companyID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyDTO(c))
}

func (h *Handler) SaveCompany(w http.ResponseWriter, r *http.Request) {
	var req SaveCompanyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actor, _ := ActorFrom(r.Context())

	c, err := h.Service.SaveCompany(r.Context(), leave.Company{
		ID:           chi.URLParam(r, "companyID"),
		Name:         req.Name,
		Policy:       req.Policy,
		BankHolidays: req.BankHolidays,
	}, actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyDTO(c))
}

func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.memberOnly(w, r, "list overrides of")
	if !ok {
		return
	}
	p, ok := periodFromQuery(w, r)
	if !ok {
		return
	}
	list, err := h.Service.ListDayOverrides(r.Context(), companyID, p)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := make([]OverrideDTO, 0, len(list))
	for _, o := range list {
		out = append(out, toOverrideDTO(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) PutOverride(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r, "date")
	if !ok {
		return
	}
	var req PutOverrideRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actor, _ := ActorFrom(r.Context())

	o, err := h.Service.UpsertDayOverride(r.Context(), leave.DayOverride{
		CompanyID: chi.URLParam(r, "companyID"),
		Date:      date,
		Kind:      leave.OverrideKind(req.Kind),
		Note:      req.Note,
	}, actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOverrideDTO(o))
}

func (h *Handler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r, "date")
	if !ok {
		return
	}
	actor, _ := ActorFrom(r.Context())

	if err := h.Service.DeleteDayOverride(r.Context(), chi.URLParam(r, "companyID"), date, actor); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Chargeable(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.memberOnly(w, r, "compute chargeable days for")
	if !ok {
		return
	}
	p, ok := periodFromQuery(w, r)
	if !ok {
		return
	}
	c, err := h.Service.ChargeableDays(r.Context(), companyID, p)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChargeableDTO(c))
}

// memberOnly returns the route's company when the caller belongs to it and
// writes 403 otherwise.
func (h *Handler) memberOnly(w http.ResponseWriter, r *http.Request, action string) (string, bool) {
	actor, _ := ActorFrom(r.Context())
	companyID := chi.URLParam(r, "companyID")
	if err := leave.RequireMember(actor, companyID, action); err != nil {
		h.writeDomainError(w, r, err)
		return "", false
	}
	return companyID, true
}

func (h *Handler) RegisterEmployee(w http.ResponseWriter, r *http.Request) {
	var in leave.RegisterEmployeeInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.CompanyID = chi.URLParam(r, "companyID")
	actor, _ := ActorFrom(r.Context())

	emp, err := h.Service.RegisterEmployee(r.Context(), in, actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	var req BackfillRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actor, _ := ActorFrom(r.Context())

	res, err := h.Service.Backfill(r.Context(), chi.URLParam(r, "companyID"), actor, req.Rows)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	// Row failures are part of a successful batch response.
	writeJSON(w, http.StatusOK, toBackfillResultDTO(res))
}

// RunAccrual credits the given month (default: current) to every employee
// of the company. Admin only.
func (h *Handler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	companyID := chi.URLParam(r, "companyID")
	if !actor.AdminOf(companyID) {
		h.writeDomainError(w, r, &generic.AuthorizationError{ActorID: actor.ID, Action: "run accrual for", Resource: "company " + companyID})
		return
	}

	month := generic.Today().YearMonth()
	if q := r.URL.Query().Get("month"); q != "" {
		ym, err := generic.ParseYearMonth(q)
		if err != nil {
			h.writeDomainError(w, r, generic.NewValidation("month", "%v", err))
			return
		}
		month = ym
	}

	rep, err := h.Service.RunAccrual(r.Context(), companyID, month)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AccrualReportDTO{
		Month:    string(rep.Month),
		Checked:  rep.Checked,
		Credited: rep.Credited,
		Failed:   rep.Failed,
	})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	actor, _ := ActorFrom(r.Context())

	l, err := h.Service.GetLedger(r.Context(), employeeID, actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LedgerDTO{EmployeeID: employeeID, EmployeeLedger: l})
}

func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var in leave.CreateRequestInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.EmployeeID = chi.URLParam(r, "employeeID")
	actor, _ := ActorFrom(r.Context())

	req, err := h.Service.CreateRequest(r.Context(), in, actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

// Preview is open to whoever may read the employee's ledger.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var in leave.PreviewInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.EmployeeID = chi.URLParam(r, "employeeID")
	actor, _ := ActorFrom(r.Context())

	if _, err := h.Service.GetLedger(r.Context(), in.EmployeeID, actor); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	p, err := h.Service.Preview(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewDTO{
		Chargeable:  toChargeableDTO(p.Chargeable),
		Allocations: p.Allocations,
		Before:      p.Before,
		After:       p.After,
	})
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// GetRequest is visible to the requester, the assigned approver and the
// company's admins.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	req, err := h.Service.GetRequest(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	visible := actor.AdminOf(req.CompanyID) ||
		(actor.MemberOf(req.CompanyID) && (actor.ID == req.EmployeeID || actor.ID == req.ApproverID))
	if !visible {
		h.writeDomainError(w, r, &generic.AuthorizationError{ActorID: actor.ID, Action: "read", Resource: "leave request " + req.ID})
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")
	actor, _ := ActorFrom(r.Context())

	l, err := h.Service.Approve(r.Context(), id, actor)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	req, err := h.Service.GetRequest(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ApproveResponse{
		Request: toRequestDTO(req),
		Ledger:  LedgerDTO{EmployeeID: req.EmployeeID, EmployeeLedger: l},
	})
}

func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	var body RejectRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &body) {
		return
	}
	actor, _ := ActorFrom(r.Context())

	req, err := h.Service.Reject(r.Context(), chi.URLParam(r, "requestID"), actor, body.Reason)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the generic error classes to a status code.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *generic.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Field: verr.Field, Details: verr.Message})
	case errors.Is(err, generic.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, "invalid period", err)
	case generic.IsForbidden(err):
		writeError(w, http.StatusForbidden, "forbidden", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case generic.IsConflict(err), generic.IsRetryable(err), errors.Is(err, generic.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, generic.ErrInsufficientLeave):
		writeError(w, http.StatusUnprocessableEntity, "insufficient leave", err)
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", err)
		return false
	}
	return true
}

func dateParam(w http.ResponseWriter, r *http.Request, name string) (generic.Date, bool) {
	d, err := generic.ParseDate(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Field: name, Details: err.Error()})
		return generic.Date{}, false
	}
	return d, true
}

func periodFromQuery(w http.ResponseWriter, r *http.Request) (generic.Period, bool) {
	q := r.URL.Query()
	var p generic.Period
	for _, f := range []struct {
		name string
		dst  *generic.Date
	}{{"from", &p.Start}, {"to", &p.End}} {
		d, err := generic.ParseDate(q.Get(f.name))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "validation failed",
				Field:   f.name,
				Details: fmt.Sprintf("query parameter %s: %v", f.name, err),
			})
			return generic.Period{}, false
		}
		*f.dst = d
	}
	return p, true
}
