package quotations

import "fmt"

// UpdatePayload is the body of the quotation update call.
type UpdatePayload struct {
	Updates QuotationUpdates `json:"updates"`
}

type QuotationUpdates struct {
	ReferenceNumber    string              `json:"reference_number"`
	CustomerInfo       CustomerInfo        `json:"customer_info"`
	ProjectInfo        ProjectInfo         `json:"project_info"`
	SenderEmail        string              `json:"sender_email"`
	PricingTotals      PricingTotals       `json:"pricing_totals"`
	ProcessedLineItems []ProcessedLineItem `json:"processed_line_items"`
}

type PricingTotals struct {
	Subtotal              float64 `json:"subtotal"`
	TaxRate               float64 `json:"tax_rate"`
	TaxAmount             float64 `json:"tax_amount"`
	TotalAmount           float64 `json:"total_amount"`
	DiscountRate          float64 `json:"discount_rate"`
	DiscountAmount        float64 `json:"discount_amount"`
	SubtotalAfterDiscount float64 `json:"subtotal_after_discount"`
}

// ProcessedLineItem is one row as the server stores it. unit_price is the
// undiscounted price; total_price is the amount after the line discount.
type ProcessedLineItem struct {
	ID                  string          `json:"id,omitempty"`
	LineNo              int             `json:"line_no"`
	Description         string          `json:"description"`
	OriginalDescription string          `json:"original_description,omitempty"`
	Category            string          `json:"category"`
	Brand               string          `json:"brand"`
	Size                string          `json:"size"`
	HSNCode             string          `json:"hsn_code"`
	ItemCode            string          `json:"item_code,omitempty"`
	MaterialType        string          `json:"material_type,omitempty"`
	SizeSpecification   string          `json:"size_specification,omitempty"`
	Quantity            float64         `json:"quantity"`
	Unit                string          `json:"unit"`
	UnitPrice           float64         `json:"unit_price"`
	TotalPrice          float64         `json:"total_price"`
	DiscountPercentage  float64         `json:"discount_percentage"`
	DiscountAmount      float64         `json:"discount_amount"`
	MatchType           MatchType       `json:"match_type"`
	Options             []Option        `json:"options"`
	RecommendedOption   *int            `json:"recommended_option"`
	Reasoning           string          `json:"reasoning,omitempty"`
	SelectionSource     SelectionSource `json:"selection_source,omitempty"`
}

// BuildUpdatePayload captures every pending local edit of the session.
// discount_rate is the rate actually applied: zero while line discounts
// take precedence over the global one.
func BuildUpdatePayload(s *Session) UpdatePayload {
	q := s.Quotation
	totals := s.Totals()
	discountRate := q.DiscountRate
	if !totals.GlobalDiscountEnabled {
		discountRate = 0
	}

	lines := make([]ProcessedLineItem, 0, len(q.Items))
	for _, raw := range q.Items {
		item := withPricing(raw.Clone())
		options := item.Options
		if options == nil {
			options = []Option{}
		}
		lines = append(lines, ProcessedLineItem{
			ID:                  item.ID,
			LineNo:              item.LineNo,
			Description:         item.Description,
			OriginalDescription: item.OriginalDescription,
			Category:            item.Category,
			Brand:               item.Brand,
			Size:                item.Size,
			HSNCode:             item.HSNCode,
			ItemCode:            item.ItemCode,
			MaterialType:        item.MaterialType,
			SizeSpecification:   item.SizeSpecification,
			Quantity:            item.Quantity,
			Unit:                item.Unit,
			UnitPrice:           item.UnitPrice,
			TotalPrice:          item.FinalAmount,
			DiscountPercentage:  item.DiscountRate,
			DiscountAmount:      item.DiscountAmount,
			MatchType:           item.MatchType,
			Options:             options,
			RecommendedOption:   item.RecommendedOption,
			Reasoning:           item.Reason,
			SelectionSource:     item.SelectionSource,
		})
	}

	return UpdatePayload{Updates: QuotationUpdates{
		ReferenceNumber: q.ReferenceNumber,
		CustomerInfo:    q.Customer,
		ProjectInfo:     q.Project,
		SenderEmail:     q.SenderEmail,
		PricingTotals: PricingTotals{
			Subtotal:              totals.Subtotal,
			TaxRate:               q.TaxRate,
			TaxAmount:             totals.TaxAmount,
			TotalAmount:           totals.Total,
			DiscountRate:          discountRate,
			DiscountAmount:        totals.DiscountAmount,
			SubtotalAfterDiscount: totals.SubtotalAfterDiscount,
		},
		ProcessedLineItems: lines,
	}}
}

// FinalizePayload is the body of the finalize call.
type FinalizePayload struct {
	QuotationID string            `json:"quotationId"`
	Selections  map[string]string `json:"selections"`
}

// BuildFinalizePayload renders the pending selections for the wire.
func BuildFinalizePayload(s *Session) (FinalizePayload, error) {
	out := FinalizePayload{
		QuotationID: s.Quotation.ID,
		Selections:  make(map[string]string, len(s.Selections)),
	}
	for lineKey, sel := range s.Selections {
		v, err := sel.WireValue()
		if err != nil {
			return FinalizePayload{}, fmt.Errorf("selection for line %s: %w", lineKey, err)
		}
		out.Selections[lineKey] = v
	}
	return out, nil
}
