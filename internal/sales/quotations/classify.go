package quotations

import (
	"regexp"
	"strings"
)

type MatchState string

const (
	MatchStateMatched           MatchState = "matched"
	MatchStateSelectionRequired MatchState = "selection-required"
	MatchStateNoMatch           MatchState = "no-match"
)

// Classify maps the item's match type to its display state.
func Classify(item LineItem) MatchState {
	switch item.MatchType {
	case MatchTypeMatched:
		return MatchStateMatched
	case MatchTypeAmbiguous:
		return MatchStateSelectionRequired
	default:
		return MatchStateNoMatch
	}
}

type RowAction string

const (
	RowActionNone          RowAction = "none"
	RowActionOpenSelection RowAction = "open-selection"
	RowActionOpenManual    RowAction = "open-manual"
)

// RouteRowClick decides which editor a click on the row opens. Ambiguous rows
// without any candidate fall through to manual entry.
func RouteRowClick(item LineItem, readOnly bool) RowAction {
	if readOnly {
		return RowActionNone
	}
	switch Classify(item) {
	case MatchStateSelectionRequired:
		if len(item.Options) > 0 {
			return RowActionOpenSelection
		}
		return RowActionOpenManual
	case MatchStateNoMatch:
		return RowActionOpenManual
	default:
		return RowActionNone
	}
}

// ManualSeed pre-fills the manual entry form of an unresolved row.
type ManualSeed struct {
	LineNo      int     `json:"line_no"`
	Description string  `json:"description"`
	Unit        string  `json:"unit,omitempty"`
	Quantity    float64 `json:"quantity"`
}

var quotedFragment = regexp.MustCompile(`'([^']+)'`)

// SeedManualEntry salvages a description for the manual form from whatever
// free text the failed match still carries.
func SeedManualEntry(item LineItem) ManualSeed {
	return ManualSeed{
		LineNo:      item.LineNo,
		Description: salvageDescription(item),
		Unit:        item.Unit,
		Quantity:    item.Quantity,
	}
}

func salvageDescription(item LineItem) string {
	if d := strings.TrimSpace(item.Description); d != "" {
		return d
	}
	parts := make([]string, 0, 2)
	for _, p := range []string{item.MaterialType, item.SizeSpecification} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if m := quotedFragment.FindStringSubmatch(item.Reason); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}
