package quotations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func ambiguousItem(lineNo int) LineItem {
	return withPricing(LineItem{
		ID:                "row-" + SelectionKey(lineNo),
		LineNo:            lineNo,
		Description:       "copper pipe",
		Quantity:          4,
		Unit:              "m",
		MatchType:         MatchTypeAmbiguous,
		MaterialType:      "copper",
		SizeSpecification: "15mm",
		Reason:            "two candidates",
		RecommendedOption: ptr(1),
		Options: []Option{
			{OptionID: "opt-a", Description: "Copper pipe 15mm A", Brand: "Acme", UnitPricePiece: ptr(12.5)},
			{OptionID: "opt-b", Description: "Copper pipe 15mm B", Brand: "Bolt", UnitPriceMeter: ptr(9.0), LP: ptr(11.0)},
		},
	})
}

func TestUpsertAtIndexPreservesServerMetadata(t *testing.T) {
	prev := ambiguousItem(3)
	items := []LineItem{line(1, 1, 10, 0), prev}

	patch := LineItem{Description: "edited pipe", Quantity: 6, UnitPrice: 10, DiscountRate: 5}
	out := UpsertAtIndex(items, 1, patch)

	require.Len(t, out, 2)
	got := out[1]
	assert.Equal(t, "edited pipe", got.Description)
	assert.Equal(t, 3, got.LineNo)
	assert.Equal(t, prev.ID, got.ID)
	assert.Equal(t, prev.Unit, got.Unit)
	assert.Equal(t, MatchTypeAmbiguous, got.MatchType)
	assert.Equal(t, prev.Options, got.Options)
	assert.Equal(t, prev.RecommendedOption, got.RecommendedOption)
	assert.Equal(t, prev.Reason, got.Reason)
	assert.Equal(t, prev.MaterialType, got.MaterialType)
	assert.Equal(t, prev.SizeSpecification, got.SizeSpecification)
	assert.Equal(t, 60.0, got.Amount)
	assert.Equal(t, 57.0, got.FinalAmount)

	// the input slice is untouched
	assert.Equal(t, "copper pipe", items[1].Description)
}

func TestUpsertAtIndexAppendsOutOfRange(t *testing.T) {
	items := []LineItem{line(1, 1, 10, 0)}

	out := UpsertAtIndex(items, -1, LineItem{LineNo: 2, Quantity: 2, UnitPrice: 5})
	require.Len(t, out, 2)
	assert.Equal(t, 10.0, out[1].Amount)

	out = UpsertAtIndex(items, 7, LineItem{LineNo: 9})
	require.Len(t, out, 2)
	assert.Equal(t, 9, out[1].LineNo)
	assert.Len(t, items, 1)
}

func TestMergePreservedClonesOptions(t *testing.T) {
	prev := ambiguousItem(1)
	merged := MergePreserved(prev, LineItem{Description: "x"})

	*merged.Options[0].UnitPricePiece = 1
	*merged.RecommendedOption = 0

	assert.Equal(t, 12.5, *prev.Options[0].UnitPricePiece)
	assert.Equal(t, 1, *prev.RecommendedOption)
}

func TestRemoveByKeyFallsBackToLineNo(t *testing.T) {
	items := []LineItem{line(1, 1, 10, 0), line(2, 1, 20, 0), line(3, 1, 30, 0)}

	out, removed := RemoveByKey(items, "2")
	require.NotNil(t, removed)
	assert.Equal(t, 2, removed.LineNo)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].LineNo)
	assert.Equal(t, 3, out[1].LineNo)

	out, removed = RemoveByKey(items, "missing")
	assert.Nil(t, removed)
	assert.Len(t, out, 3)
}

func TestReorderForDisplayIsStable(t *testing.T) {
	a := line(2, 1, 1, 0)
	a.Description = "first two"
	b := line(1, 1, 1, 0)
	c := line(2, 1, 1, 0)
	c.Description = "second two"
	items := []LineItem{a, b, c}

	out := ReorderForDisplay(items)

	require.Len(t, out, 3)
	assert.Equal(t, 1, out[0].LineNo)
	assert.Equal(t, "first two", out[1].Description)
	assert.Equal(t, "second two", out[2].Description)
	assert.Equal(t, 2, items[0].LineNo)
	assert.Equal(t, out, ReorderForDisplay(out))
}

func TestFilterBySearch(t *testing.T) {
	pipe := line(1, 1, 1, 0)
	pipe.Description = "Copper Pipe"
	valve := line(2, 1, 1, 0)
	valve.Description = "Ball valve"
	valve.Brand = "PIPEWORKS"
	elbow := line(3, 1, 1, 0)
	elbow.Description = "Elbow"
	elbow.ItemCode = "EL-90"
	items := []LineItem{pipe, valve, elbow}

	got := FilterBySearch(items, "pipe")
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].LineNo)
	assert.Equal(t, 2, got[1].LineNo)

	assert.Equal(t, got, FilterBySearch(got, "pipe"))
	assert.Len(t, FilterBySearch(items, "el-90"), 1)
	assert.Empty(t, FilterBySearch(items, "flange"))
	assert.Equal(t, items, FilterBySearch(items, "   "))
}

func TestNextLineNoConsidersDeletedRows(t *testing.T) {
	items := []LineItem{line(1, 1, 1, 0), line(4, 1, 1, 0)}
	deleted := DeletedStack{line(9, 1, 1, 0)}

	assert.Equal(t, 5, nextLineNo(items, nil))
	assert.Equal(t, 10, nextLineNo(items, deleted))
	assert.Equal(t, 1, nextLineNo(nil, nil))
}
