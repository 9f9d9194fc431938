package quotations

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type SelectionKind string

const (
	SelectionKindOption SelectionKind = "option"
	SelectionKindManual SelectionKind = "manual"
)

// ManualPayload is what the finalize endpoint expects for a hand-entered line.
type ManualPayload struct {
	LineNo       int                `json:"line_no"`
	Quantity     float64            `json:"quantity"`
	Unit         string             `json:"unit"`
	SelectedItem ManualSelectedItem `json:"selected_item"`
}

type ManualSelectedItem struct {
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Brand       string  `json:"brand"`
	Size        string  `json:"size"`
	HSNCode     string  `json:"hsn_code"`
	UnitPrice   float64 `json:"unit_price"`
}

// Selection is a user resolution waiting for finalize. Exactly one of
// OptionID or Manual is meaningful, depending on Kind.
type Selection struct {
	Kind     SelectionKind  `json:"kind"`
	OptionID string         `json:"option_id,omitempty"`
	Manual   *ManualPayload `json:"manual,omitempty"`
}

// WireValue renders the selection the way the finalize endpoint takes it:
// the bare option id, or the manual payload serialized as a JSON string.
func (s Selection) WireValue() (string, error) {
	switch s.Kind {
	case SelectionKindOption:
		return s.OptionID, nil
	case SelectionKindManual:
		if s.Manual == nil {
			return "", fmt.Errorf("manual selection without payload")
		}
		raw, err := json.Marshal(s.Manual)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	default:
		return "", fmt.Errorf("unknown selection kind %q", s.Kind)
	}
}

// Selections holds pending resolutions keyed by line number.
type Selections map[string]Selection

func SelectionKey(lineNo int) string {
	return strconv.Itoa(lineNo)
}

func (s Selection) clone() *Selection {
	if s.Manual != nil {
		m := *s.Manual
		s.Manual = &m
	}
	return &s
}

func (s Selections) Clone() Selections {
	out := make(Selections, len(s))
	for k, v := range s {
		out[k] = *v.clone()
	}
	return out
}

// OptionUnitPrice picks the price of an option: per piece, then per meter,
// then list price. Zero prices fall through to the next source.
func OptionUnitPrice(opt Option) float64 {
	for _, p := range []*float64{opt.UnitPricePiece, opt.UnitPriceMeter, opt.LP} {
		if p != nil && *p != 0 {
			return *p
		}
	}
	return 0
}

// ResolveOption builds the row that replaces item once the user confirms
// option optionIndex. quantity overrides the original quantity when set.
func ResolveOption(item LineItem, optionIndex int, quantity *float64) (LineItem, Selection, error) {
	if len(item.Options) == 0 || optionIndex < 0 || optionIndex >= len(item.Options) {
		return LineItem{}, Selection{}, ErrInvalidOption
	}
	opt := item.Options[optionIndex]
	qty := item.Quantity
	if quantity != nil {
		qty = *quantity
	}
	unit := item.Unit
	if unit == "" {
		unit = opt.Unit
	}

	resolved := item.Clone()
	resolved.Description = opt.Description
	resolved.Category = opt.Category
	resolved.Brand = opt.Brand
	resolved.Size = opt.Size
	resolved.HSNCode = opt.HSNCode
	resolved.ItemCode = opt.ItemCode
	resolved.Unit = unit
	resolved.Quantity = qty
	resolved.UnitPrice = OptionUnitPrice(opt)
	resolved.DiscountRate = 0
	resolved.MatchType = MatchTypeMatched
	resolved.SelectionSource = SelectionSourceSelected
	if resolved.OriginalDescription == "" {
		resolved.OriginalDescription = item.Description
	}
	resolved = withPricing(resolved)

	sel := Selection{Kind: SelectionKindOption, OptionID: string(opt.OptionID)}
	if sel.OptionID == "" {
		sel.OptionID = strconv.Itoa(optionIndex)
	}
	return resolved, sel, nil
}

// ApplyManual builds the row for a hand-entered resolution of item.
func ApplyManual(item LineItem, in ItemInput) (LineItem, Selection) {
	resolved := item.Clone()
	resolved.Description = in.Description
	resolved.Category = in.Category
	resolved.Brand = in.Brand
	resolved.Size = in.Size
	resolved.HSNCode = in.HSNCode
	resolved.ItemCode = in.ItemCode
	if in.Unit != "" {
		resolved.Unit = in.Unit
	}
	resolved.Quantity = in.Quantity
	resolved.UnitPrice = in.UnitPrice
	resolved.DiscountRate = in.DiscountRate
	resolved.MatchType = MatchTypeMatched
	resolved.SelectionSource = SelectionSourceManual
	if resolved.OriginalDescription == "" {
		resolved.OriginalDescription = item.Description
	}
	resolved = withPricing(resolved)

	sel := Selection{
		Kind: SelectionKindManual,
		Manual: &ManualPayload{
			LineNo:   resolved.LineNo,
			Quantity: resolved.Quantity,
			Unit:     resolved.Unit,
			SelectedItem: ManualSelectedItem{
				Description: resolved.Description,
				Category:    resolved.Category,
				Brand:       resolved.Brand,
				Size:        resolved.Size,
				HSNCode:     resolved.HSNCode,
				UnitPrice:   resolved.UnitPrice,
			},
		},
	}
	return resolved, sel
}
