package quotations

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyAndRouteRowClick(t *testing.T) {
	withOptions := ambiguousItem(1)
	withoutOptions := ambiguousItem(2)
	withoutOptions.Options = nil
	noMatch := LineItem{LineNo: 3, MatchType: MatchTypeNone}
	matched := line(4, 1, 1, 0)

	cases := []struct {
		name     string
		item     LineItem
		readOnly bool
		state    MatchState
		action   RowAction
	}{
		{"ambiguous with options", withOptions, false, MatchStateSelectionRequired, RowActionOpenSelection},
		{"ambiguous without options", withoutOptions, false, MatchStateSelectionRequired, RowActionOpenManual},
		{"no match", noMatch, false, MatchStateNoMatch, RowActionOpenManual},
		{"matched", matched, false, MatchStateMatched, RowActionNone},
		{"read only", withOptions, true, MatchStateSelectionRequired, RowActionNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.state, Classify(tc.item))
			assert.Equal(t, tc.action, RouteRowClick(tc.item, tc.readOnly))
		})
	}
}

func TestSeedManualEntry(t *testing.T) {
	cases := []struct {
		name string
		item LineItem
		want string
	}{
		{"description", LineItem{Description: "  gate valve "}, "gate valve"},
		{"material and size", LineItem{MaterialType: "PVC", SizeSpecification: "40mm"}, "PVC 40mm"},
		{"material only", LineItem{MaterialType: "PVC"}, "PVC"},
		{"quoted reason", LineItem{Reason: "No SKU found for 'brass nipple 1/2'"}, "brass nipple 1/2"},
		{"nothing", LineItem{Reason: "no candidates"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.item.LineNo = 7
			tc.item.Quantity = 2
			tc.item.Unit = "pcs"
			seed := SeedManualEntry(tc.item)
			assert.Equal(t, tc.want, seed.Description)
			assert.Equal(t, 7, seed.LineNo)
			assert.Equal(t, 2.0, seed.Quantity)
			assert.Equal(t, "pcs", seed.Unit)
		})
	}
}
