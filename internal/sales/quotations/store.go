package quotations

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// MergePreserved applies an edit patch on top of prev. The edit form only
// collects descriptive and commercial fields, so the classification metadata
// below always comes from prev:
//
//	line_no, match_type, options, recommended_option, reason,
//	material_type, size_specification
//
// id, unit, item_code, original_description and selection_source fall back to
// prev when the patch leaves them empty.
func MergePreserved(prev, patch LineItem) LineItem {
	out := patch.Clone()
	out.LineNo = prev.LineNo
	out.MatchType = prev.MatchType
	out.Options = prev.Clone().Options
	out.RecommendedOption = prev.Clone().RecommendedOption
	out.Reason = prev.Reason
	out.MaterialType = prev.MaterialType
	out.SizeSpecification = prev.SizeSpecification
	if out.ID == "" {
		out.ID = prev.ID
	}
	if out.Unit == "" {
		out.Unit = prev.Unit
	}
	if out.ItemCode == "" {
		out.ItemCode = prev.ItemCode
	}
	if out.OriginalDescription == "" {
		out.OriginalDescription = prev.OriginalDescription
	}
	if out.SelectionSource == SelectionSourceServer {
		out.SelectionSource = prev.SelectionSource
	}
	return out
}

// UpsertAtIndex replaces the item at index, merging server metadata from the
// previous occupant. An index outside the slice appends.
func UpsertAtIndex(items []LineItem, index int, item LineItem) []LineItem {
	out := cloneItems(items)
	if index < 0 || index >= len(out) {
		return append(out, withPricing(item))
	}
	out[index] = withPricing(MergePreserved(out[index], item))
	return out
}

// RemoveByKey drops the row matching key and returns it.
func RemoveByKey(items []LineItem, key string) ([]LineItem, *LineItem) {
	idx := IndexByKey(items, key)
	if idx < 0 {
		return cloneItems(items), nil
	}
	removed := items[idx].Clone()
	out := make([]LineItem, 0, len(items)-1)
	for i, item := range items {
		if i == idx {
			continue
		}
		out = append(out, item.Clone())
	}
	return out, &removed
}

// IndexByKey returns the position of the row with key, or -1.
func IndexByKey(items []LineItem, key string) int {
	for i, item := range items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}

// IndexByLineNo returns the position of the row with lineNo, or -1.
func IndexByLineNo(items []LineItem, lineNo int) int {
	for i, item := range items {
		if item.LineNo == lineNo {
			return i
		}
	}
	return -1
}

// ReorderForDisplay returns a copy sorted by line number. The sort is stable
// so rows sharing a line number keep their relative order.
func ReorderForDisplay(items []LineItem) []LineItem {
	out := cloneItems(items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LineNo < out[j].LineNo
	})
	return out
}

// FilterBySearch keeps rows whose description, category, brand, size or item
// code contains term, ignoring case. A blank term returns the input unchanged.
func FilterBySearch(items []LineItem, term string) []LineItem {
	term = strings.TrimSpace(term)
	if term == "" {
		return items
	}
	fold := cases.Fold()
	needle := fold.String(term)
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		for _, field := range []string{item.Description, item.Category, item.Brand, item.Size, item.ItemCode} {
			if field != "" && strings.Contains(fold.String(field), needle) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

func nextLineNo(items []LineItem, deleted DeletedStack) int {
	maxLine := 0
	for _, item := range items {
		if item.LineNo > maxLine {
			maxLine = item.LineNo
		}
	}
	for _, item := range deleted {
		if item.LineNo > maxLine {
			maxLine = item.LineNo
		}
	}
	return maxLine + 1
}
