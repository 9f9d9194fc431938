package quotations

import (
	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/quotedesk/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermQuotationView))
		r.Post("/quotations/{id}/session", h.LoadSession)
		r.Get("/quotations/{id}/session", h.ShowSession)
		r.Get("/skus", h.SearchSKUs)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermQuotationEdit))
		r.Delete("/quotations/{id}/session", h.DiscardSession)
		r.Post("/quotations/{id}/items", h.AddItem)
		r.Put("/quotations/{id}/items/{key}", h.EditItem)
		r.Delete("/quotations/{id}/items/{key}", h.DeleteItem)
		r.Put("/quotations/{id}/items/{key}/discount", h.SetItemDiscount)
		r.Post("/quotations/{id}/items/{key}/undo", h.UndoItem)
		r.Post("/quotations/{id}/undo-delete", h.UndoDelete)
		r.Post("/quotations/{id}/lines/{lineNo}/select", h.ResolveSelection)
		r.Post("/quotations/{id}/lines/{lineNo}/manual", h.ManualEntry)
		r.Post("/quotations/{id}/lines/{lineNo}/sku", h.PickSKU)
		r.Put("/quotations/{id}/rates", h.UpdateRates)
		r.Put("/quotations/{id}/customer", h.UpdateCustomer)
		r.Post("/quotations/{id}/save", h.Save)
		r.Post("/quotations/{id}/preview", h.Preview)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermQuotationEdit, rbac.PermQuotationFinalize))
		r.Post("/quotations/{id}/finalize", h.Finalize)
	})
}
