package quotations

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type QuotationStatus string

const (
	QuotationStatusDraft     QuotationStatus = "draft"
	QuotationStatusProcessed QuotationStatus = "processed"
	QuotationStatusSent      QuotationStatus = "sent"
	QuotationStatusApproved  QuotationStatus = "approved"
)

// MatchType is the server's classification of a line. On the wire it is the
// JSON literal true (matched), false (ambiguous) or null (no match).
type MatchType int8

const (
	MatchTypeNone MatchType = iota
	MatchTypeAmbiguous
	MatchTypeMatched
)

func (m MatchType) MarshalJSON() ([]byte, error) {
	switch m {
	case MatchTypeMatched:
		return []byte("true"), nil
	case MatchTypeAmbiguous:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (m *MatchType) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*m = MatchTypeMatched
	case "false":
		*m = MatchTypeAmbiguous
	case "null", "":
		*m = MatchTypeNone
	default:
		return fmt.Errorf("match_type: unexpected value %s", data)
	}
	return nil
}

type SelectionSource string

const (
	SelectionSourceServer   SelectionSource = ""
	SelectionSourceSelected SelectionSource = "selected"
	SelectionSourceManual   SelectionSource = "manual"
)

// FlexString accepts either a JSON string or number.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

// FlexFloat accepts a JSON number, a numeric string or null (zero).
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		v = strings.TrimSpace(v)
		if v == "" {
			*f = 0
			return nil
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse number %q: %w", v, err)
		}
		*f = FlexFloat(parsed)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// Option is one candidate SKU offered for an ambiguous line.
type Option struct {
	OptionID       FlexString `json:"option_id"`
	Description    string     `json:"description"`
	Category       string     `json:"category,omitempty"`
	Brand          string     `json:"brand,omitempty"`
	Size           string     `json:"size,omitempty"`
	HSNCode        string     `json:"hsn_code,omitempty"`
	ItemCode       string     `json:"item_code,omitempty"`
	Unit           string     `json:"unit,omitempty"`
	UnitPricePiece *float64   `json:"unit_price_piece,omitempty"`
	UnitPriceMeter *float64   `json:"unit_price_meter,omitempty"`
	LP             *float64   `json:"lp,omitempty"`
}

func (o Option) clone() Option {
	o.UnitPricePiece = cloneFloat(o.UnitPricePiece)
	o.UnitPriceMeter = cloneFloat(o.UnitPriceMeter)
	o.LP = cloneFloat(o.LP)
	return o
}

// LineItem is one editable row of a quotation.
type LineItem struct {
	ID                  string          `json:"id,omitempty"`
	LineNo              int             `json:"line_no"`
	Description         string          `json:"description"`
	Category            string          `json:"category,omitempty"`
	Brand               string          `json:"brand,omitempty"`
	Size                string          `json:"size,omitempty"`
	HSNCode             string          `json:"hsn_code,omitempty"`
	ItemCode            string          `json:"item_code,omitempty"`
	MaterialType        string          `json:"material_type,omitempty"`
	SizeSpecification   string          `json:"size_specification,omitempty"`
	OriginalDescription string          `json:"original_description,omitempty"`
	Unit                string          `json:"unit,omitempty"`
	Quantity            float64         `json:"quantity"`
	UnitPrice           float64         `json:"unitPrice"`
	Amount              float64         `json:"amount"`
	DiscountRate        float64         `json:"discountRate"`
	DiscountAmount      float64         `json:"discountAmount"`
	FinalAmount         float64         `json:"finalAmount"`
	MatchType           MatchType       `json:"match_type"`
	Options             []Option        `json:"options,omitempty"`
	RecommendedOption   *int            `json:"recommended_option,omitempty"`
	Reason              string          `json:"reason,omitempty"`
	SelectionSource     SelectionSource `json:"selection_source,omitempty"`
}

// Key is the lookup key of the row: its id, or its line number when the
// server did not assign one.
func (i LineItem) Key() string {
	if i.ID != "" {
		return i.ID
	}
	return strconv.Itoa(i.LineNo)
}

// Clone returns a deep copy of the item.
func (i LineItem) Clone() LineItem {
	if i.Options != nil {
		opts := make([]Option, len(i.Options))
		for idx, opt := range i.Options {
			opts[idx] = opt.clone()
		}
		i.Options = opts
	}
	if i.RecommendedOption != nil {
		v := *i.RecommendedOption
		i.RecommendedOption = &v
	}
	return i
}

type CustomerInfo struct {
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type ProjectInfo struct {
	Name        string `json:"name,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// Quotation is the aggregate being edited.
type Quotation struct {
	ID              string          `json:"id"`
	Status          QuotationStatus `json:"status"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Customer        CustomerInfo    `json:"customer_info"`
	Project         ProjectInfo     `json:"project_info"`
	SenderEmail     string          `json:"sender_email,omitempty"`
	Items           []LineItem      `json:"items"`
	TaxRate         float64         `json:"globalTaxRate"`
	DiscountRate    float64         `json:"globalDiscountRate"`
}

// ReadOnly reports whether the quotation can no longer be edited.
func (q Quotation) ReadOnly() bool {
	return q.Status == QuotationStatusApproved
}

// Clone returns a deep copy of the quotation.
func (q Quotation) Clone() Quotation {
	q.Items = cloneItems(q.Items)
	return q
}

// Totals are the derived pricing figures of a quotation.
type Totals struct {
	Subtotal               float64 `json:"subtotal"`
	DiscountAmount         float64 `json:"discount_amount"`
	SubtotalAfterDiscount  float64 `json:"subtotal_after_discount"`
	TaxAmount              float64 `json:"tax_amount"`
	Total                  float64 `json:"total_amount_due"`
	HasIndividualDiscounts bool    `json:"has_individual_discounts"`
	GlobalDiscountEnabled  bool    `json:"global_discount_enabled"`
}

// SKU is a price-list entry returned by the remote search endpoint.
type SKU struct {
	ItemCode    string  `json:"item_code"`
	Description string  `json:"description"`
	Category    string  `json:"category,omitempty"`
	Brand       string  `json:"brand,omitempty"`
	Size        string  `json:"size,omitempty"`
	HSNCode     string  `json:"hsn_code,omitempty"`
	Unit        string  `json:"unit,omitempty"`
	UnitPrice   float64 `json:"unit_price"`
}

func cloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
