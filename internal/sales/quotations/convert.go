package quotations

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/quotedesk/internal/sales/shared"
)

// QuotationDetail is the detail document returned by the quotation service.
type QuotationDetail struct {
	ID              FlexString     `json:"id"`
	Status          string         `json:"status"`
	ReferenceNumber string         `json:"reference_number"`
	CustomerInfo    CustomerInfo   `json:"customer_info"`
	ProjectInfo     ProjectInfo    `json:"project_info"`
	SenderEmail     string         `json:"sender_email"`
	BrandResults    []BrandResult  `json:"brand_results"`
	OverallTotals   *OverallTotals `json:"overall_totals,omitempty"`
}

// BrandResult groups the line items matched against one brand. Items stay raw
// so one malformed line cannot fail the whole document.
type BrandResult struct {
	Brand     string            `json:"brand"`
	LineItems []json.RawMessage `json:"line_items"`
}

type OverallTotals struct {
	Subtotal     FlexFloat  `json:"subtotal"`
	TaxRate      *FlexFloat `json:"tax_rate,omitempty"`
	TaxAmount    FlexFloat  `json:"tax_amount"`
	DiscountRate FlexFloat  `json:"discount_rate"`
	TotalAmount  FlexFloat  `json:"total_amount"`
}

type wireLineItem struct {
	ID                 FlexString      `json:"id"`
	LineNo             FlexFloat       `json:"line_no"`
	Description        string          `json:"description"`
	Category           string          `json:"category"`
	Brand              string          `json:"brand"`
	Size               string          `json:"size"`
	HSNCode            string          `json:"hsn_code"`
	ItemCode           string          `json:"item_code"`
	MaterialType       string          `json:"material_type"`
	SizeSpecification  string          `json:"size_specification"`
	Quantity           FlexFloat       `json:"quantity"`
	Unit               string          `json:"unit"`
	UnitPrice          FlexFloat       `json:"unit_price"`
	DiscountPercentage FlexFloat       `json:"discount_percentage"`
	MatchType          MatchType       `json:"match_type"`
	Options            []Option        `json:"options"`
	RecommendedOption  *int            `json:"recommended_option"`
	Reasoning          string          `json:"reasoning"`
	Reason             string          `json:"reason"`
	SelectionSource    SelectionSource `json:"selection_source"`
}

const degradedReason = "Error processing item"

// ItemError describes a line that was replaced by a placeholder on load.
type ItemError struct {
	Brand  string
	Index  int
	LineNo int
	Err    error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("brand %q item %d (line %d): %v", e.Brand, e.Index, e.LineNo, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

var errDuplicateLine = errors.New("duplicate line number")

// FromDetail flattens every brand's line items into one quotation. Lines
// that cannot be read degrade to a zeroed placeholder awaiting a selection
// and are reported in the returned errors; the load itself never fails on
// item content. Every line is kept. A line whose key is already taken gets
// a fresh ID, and a repeated line number is reported.
func FromDetail(detail QuotationDetail) (Quotation, []error) {
	q := Quotation{
		ID:              string(detail.ID),
		Status:          normalizeStatus(detail.Status),
		ReferenceNumber: detail.ReferenceNumber,
		Customer:        detail.CustomerInfo,
		Project:         detail.ProjectInfo,
		SenderEmail:     detail.SenderEmail,
	}
	if t := detail.OverallTotals; t != nil {
		q.DiscountRate = float64(t.DiscountRate)
		switch {
		case t.TaxRate != nil:
			q.TaxRate = float64(*t.TaxRate)
		case t.Subtotal > 0:
			q.TaxRate = shared.RatePercent(float64(t.TaxAmount), float64(t.Subtotal))
		}
	}

	var errs []error
	lines := make(map[int]bool)
	keys := make(map[string]bool)
	for _, brand := range detail.BrandResults {
		for idx, raw := range brand.LineItems {
			item, err := convertLineItem(raw)
			if err != nil {
				errs = append(errs, &ItemError{Brand: brand.Brand, Index: idx, LineNo: item.LineNo, Err: err})
			}
			if lines[item.LineNo] {
				errs = append(errs, &ItemError{Brand: brand.Brand, Index: idx, LineNo: item.LineNo, Err: errDuplicateLine})
			}
			lines[item.LineNo] = true
			if keys[item.Key()] {
				item.ID = uuid.NewString()
			}
			keys[item.Key()] = true
			if item.Brand == "" && item.MatchType == MatchTypeMatched {
				item.Brand = brand.Brand
			}
			q.Items = append(q.Items, item)
		}
	}
	return q, errs
}

// convertLineItem reads one wire line. On failure it still returns the
// placeholder carrying whatever line number could be recovered.
func convertLineItem(raw json.RawMessage) (item LineItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			item = placeholder(item.LineNo)
			err = fmt.Errorf("convert line item: %v", r)
		}
	}()

	var w wireLineItem
	if err := json.Unmarshal(raw, &w); err != nil {
		var partial struct {
			LineNo FlexFloat `json:"line_no"`
		}
		_ = json.Unmarshal(raw, &partial)
		return placeholder(int(partial.LineNo)), fmt.Errorf("decode line item: %w", err)
	}
	lineNo := int(w.LineNo)
	if w.Quantity < 0 || w.UnitPrice < 0 {
		return placeholder(lineNo), errors.New("negative quantity or price")
	}
	if w.DiscountPercentage < 0 || w.DiscountPercentage > 100 {
		return placeholder(lineNo), errors.New("discount percentage out of range")
	}
	if w.RecommendedOption != nil && (*w.RecommendedOption < 0 || *w.RecommendedOption >= len(w.Options)) {
		w.RecommendedOption = nil
	}

	reason := w.Reasoning
	if reason == "" {
		reason = w.Reason
	}
	item = LineItem{
		ID:                  string(w.ID),
		LineNo:              lineNo,
		Description:         strings.TrimSpace(w.Description),
		Category:            w.Category,
		Brand:               w.Brand,
		Size:                w.Size,
		HSNCode:             w.HSNCode,
		ItemCode:            w.ItemCode,
		MaterialType:        w.MaterialType,
		SizeSpecification:   w.SizeSpecification,
		OriginalDescription: strings.TrimSpace(w.Description),
		Unit:                w.Unit,
		Quantity:            float64(w.Quantity),
		UnitPrice:           float64(w.UnitPrice),
		DiscountRate:        float64(w.DiscountPercentage),
		MatchType:           w.MatchType,
		Options:             w.Options,
		RecommendedOption:   w.RecommendedOption,
		Reason:              reason,
		SelectionSource:     w.SelectionSource,
	}
	if item.MatchType == MatchTypeMatched && len(item.Options) > 0 {
		fillFromOption(&item, item.Options[recommendedIndex(item)])
	}
	return withPricing(item), nil
}

// fillFromOption completes an auto-matched line from its matched option
// without overriding anything the server already set.
func fillFromOption(item *LineItem, opt Option) {
	if item.UnitPrice == 0 {
		item.UnitPrice = OptionUnitPrice(opt)
	}
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&item.Category, opt.Category},
		{&item.Brand, opt.Brand},
		{&item.Size, opt.Size},
		{&item.HSNCode, opt.HSNCode},
		{&item.ItemCode, opt.ItemCode},
		{&item.Unit, opt.Unit},
	} {
		if *f.dst == "" {
			*f.dst = f.src
		}
	}
	if item.Description == "" {
		item.Description = opt.Description
	}
}

func recommendedIndex(item LineItem) int {
	if item.RecommendedOption != nil {
		return *item.RecommendedOption
	}
	return 0
}

func placeholder(lineNo int) LineItem {
	return LineItem{
		LineNo:    lineNo,
		MatchType: MatchTypeAmbiguous,
		Reason:    degradedReason,
	}
}

func normalizeStatus(status string) QuotationStatus {
	switch s := QuotationStatus(strings.ToLower(strings.TrimSpace(status))); s {
	case QuotationStatusProcessed, QuotationStatusSent, QuotationStatusApproved:
		return s
	default:
		return QuotationStatusDraft
	}
}
