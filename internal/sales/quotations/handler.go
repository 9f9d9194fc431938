package quotations

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/quotedesk/internal/platform/httpx"
	"github.com/odyssey-erp/quotedesk/internal/rbac"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		rbac:    rbac,
	}
}

type loadRequest struct {
	Reload bool `json:"reload"`
}

func (h *Handler) LoadSession(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}
	}
	sess, err := h.service.Load(r.Context(), chi.URLParam(r, "id"), req.Reload)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View(""))
}

func (h *Handler) ShowSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("q"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) DiscardSession(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Discard(r.Context(), chi.URLParam(r, "id"), -1); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var in ItemInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	h.apply(w, r, AddItem{Input: in})
}

func (h *Handler) EditItem(w http.ResponseWriter, r *http.Request) {
	var in ItemInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	h.apply(w, r, EditItem{Key: chi.URLParam(r, "key"), Input: in})
}

func (h *Handler) SetItemDiscount(w http.ResponseWriter, r *http.Request) {
	var req ItemDiscountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	h.apply(w, r, SetItemDiscount{Key: chi.URLParam(r, "key"), Rate: req.DiscountRate})
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, DeleteItem{Key: chi.URLParam(r, "key")})
}

func (h *Handler) UndoItem(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, UndoItem{Key: chi.URLParam(r, "key")})
}

func (h *Handler) UndoDelete(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, UndoDelete{})
}

func (h *Handler) ResolveSelection(w http.ResponseWriter, r *http.Request) {
	lineNo, ok := lineNoParam(w, r)
	if !ok {
		return
	}
	var req ResolveSelectionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := validateStruct(req); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.apply(w, r, ResolveSelection{LineNo: lineNo, OptionIndex: *req.OptionIndex, Quantity: req.Quantity})
}

func (h *Handler) ManualEntry(w http.ResponseWriter, r *http.Request) {
	lineNo, ok := lineNoParam(w, r)
	if !ok {
		return
	}
	var in ItemInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	h.apply(w, r, ApplyManualEntry{LineNo: lineNo, Input: in})
}

type pickSKURequest struct {
	SKU      SKU      `json:"sku"`
	Quantity *float64 `json:"quantity,omitempty"`
}

func (h *Handler) PickSKU(w http.ResponseWriter, r *http.Request) {
	lineNo, ok := lineNoParam(w, r)
	if !ok {
		return
	}
	var req pickSKURequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	h.apply(w, r, PickSKU{LineNo: lineNo, SKU: req.SKU, Quantity: req.Quantity})
}

func (h *Handler) UpdateRates(w http.ResponseWriter, r *http.Request) {
	var req RatesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := validateStruct(req); err != nil {
		h.respondError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	var (
		sess *Session
		err  error
	)
	if req.TaxRate == nil && req.DiscountRate == nil {
		sess, err = h.service.Session(r.Context(), id)
	} else {
		sess, err = h.service.Apply(r.Context(), id, SetRates{TaxRate: req.TaxRate, DiscountRate: req.DiscountRate})
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View(""))
}

func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	h.apply(w, r, SetCustomer{
		ReferenceNumber: req.ReferenceNumber,
		Customer:        req.Customer,
		Project:         req.Project,
		SenderEmail:     req.SenderEmail,
	})
}

func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Save(r.Context(), chi.URLParam(r, "id"))
	h.respondCommit(w, r, sess, err)
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Preview(r.Context(), chi.URLParam(r, "id"))
	h.respondCommit(w, r, sess, err)
}

func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.FinalizeOnce(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	h.respondCommit(w, r, sess, err)
}

func (h *Handler) SearchSKUs(w http.ResponseWriter, r *http.Request) {
	req := SKUSearchRequest{Query: strings.TrimSpace(r.URL.Query().Get("q"))}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			httpx.ValidationProblem(w, map[string]string{"limit": "numeric"})
			return
		}
		req.Limit = limit
	}
	skus, err := h.service.SearchSKUs(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if skus == nil {
		skus = []SKU{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": skus})
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, action Action) {
	sess, err := h.service.Apply(r.Context(), chi.URLParam(r, "id"), action)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.View(r.URL.Query().Get("q")))
}

// respondCommit reports a failed commit together with the session so the
// client keeps showing the local edits.
func (h *Handler) respondCommit(w http.ResponseWriter, r *http.Request, sess *Session, err error) {
	if err == nil {
		httpx.JSON(w, http.StatusOK, sess.View(""))
		return
	}
	if sess == nil {
		h.respondError(w, r, err)
		return
	}
	status, title := problemStatus(err)
	httpx.JSON(w, status, commitProblem{
		ProblemDetail: httpx.ProblemDetail{Title: title, Status: status, Detail: err.Error()},
		Session:       sess.View(""),
	})
}

type commitProblem struct {
	httpx.ProblemDetail
	Session SessionView `json:"session"`
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		httpx.ValidationProblem(w, validationErr.Fields)
		return
	}
	status, title := problemStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("quotation request failed",
			slog.String("path", r.URL.Path),
			slog.String("quotation_id", chi.URLParam(r, "id")),
			slog.Any("error", err),
		)
		httpx.RespondError(w, err)
		return
	}
	httpx.Problem(w, status, title, err.Error())
}

func problemStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrItemNotFound), errors.Is(err, ErrQuotationNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, ErrInvalidOption):
		return http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, ErrReadOnly), errors.Is(err, ErrOperationInFlight), errors.Is(err, ErrNothingToUndo),
		errors.Is(err, ErrDuplicateRequest), errors.Is(err, ErrStaleSession):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, ErrNotAmbiguous), errors.Is(err, ErrGlobalDiscountDisabled),
		errors.Is(err, ErrUnmatchedItems), errors.Is(err, ErrSelectionRequired):
		return http.StatusUnprocessableEntity, "Unprocessable"
	case errors.Is(err, ErrRemote):
		return http.StatusBadGateway, "Bad Gateway"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}

func lineNoParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	lineNo, err := strconv.Atoi(chi.URLParam(r, "lineNo"))
	if err != nil || lineNo < 0 {
		httpx.ValidationProblem(w, map[string]string{"line_no": "non-negative integer"})
		return 0, false
	}
	return lineNo, true
}
