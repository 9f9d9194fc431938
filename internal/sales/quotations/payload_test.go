package quotations

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdatePayload(t *testing.T) {
	s := newTestSession()
	applyAll(t, s,
		SetTaxRate{Rate: 10},
		SetDiscountRate{Rate: 20},
		SetCustomer{ReferenceNumber: "RFQ-1", Customer: CustomerInfo{Name: "Ana"}, SenderEmail: "a@example.com"},
	)

	payload := BuildUpdatePayload(s)
	u := payload.Updates

	assert.Equal(t, "RFQ-1", u.ReferenceNumber)
	assert.Equal(t, "Ana", u.CustomerInfo.Name)
	assert.Equal(t, 1000.0, u.PricingTotals.Subtotal)
	assert.Equal(t, 20.0, u.PricingTotals.DiscountRate)
	assert.Equal(t, 200.0, u.PricingTotals.DiscountAmount)
	assert.Equal(t, 100.0, u.PricingTotals.TaxAmount)
	assert.Equal(t, 900.0, u.PricingTotals.TotalAmount)

	require.Len(t, u.ProcessedLineItems, 3)
	ambiguous := u.ProcessedLineItems[1]
	assert.Equal(t, "row-2", ambiguous.ID)
	assert.Len(t, ambiguous.Options, 2)
	require.NotNil(t, ambiguous.RecommendedOption)
	assert.Equal(t, "two candidates", ambiguous.Reasoning)
	assert.NotNil(t, u.ProcessedLineItems[0].Options)
}

func TestBuildUpdatePayloadSendsEffectiveDiscountRate(t *testing.T) {
	s := newTestSession()
	applyAll(t, s, SetDiscountRate{Rate: 20}, SetItemDiscount{Key: "1", Rate: 10})

	u := BuildUpdatePayload(s).Updates

	assert.Zero(t, u.PricingTotals.DiscountRate)
	assert.Equal(t, 100.0, u.PricingTotals.DiscountAmount)
	line := u.ProcessedLineItems[0]
	assert.Equal(t, 100.0, line.UnitPrice)
	assert.Equal(t, 900.0, line.TotalPrice)
	assert.Equal(t, 10.0, line.DiscountPercentage)
}

func TestBuildUpdatePayloadWireShape(t *testing.T) {
	raw, err := json.Marshal(BuildUpdatePayload(newTestSession()))
	require.NoError(t, err)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	updates := doc["updates"]
	require.Contains(t, updates, "processed_line_items")
	require.Contains(t, updates, "pricing_totals")

	lines := updates["processed_line_items"].([]any)
	assert.Equal(t, true, lines[0].(map[string]any)["match_type"])
	assert.Equal(t, false, lines[1].(map[string]any)["match_type"])
	assert.Nil(t, lines[2].(map[string]any)["match_type"])
}

func TestBuildFinalizePayload(t *testing.T) {
	s := newTestSession()
	applyAll(t, s,
		ResolveSelection{LineNo: 2, OptionIndex: 1},
		ApplyManualEntry{LineNo: 3, Input: ItemInput{Description: "brass nipple", Quantity: 5, Unit: "pcs", UnitPrice: 2}},
	)

	payload, err := BuildFinalizePayload(s)
	require.NoError(t, err)

	assert.Equal(t, "q-1", payload.QuotationID)
	require.Len(t, payload.Selections, 2)
	assert.Equal(t, "opt-b", payload.Selections["2"])

	var manual ManualPayload
	require.NoError(t, json.Unmarshal([]byte(payload.Selections["3"]), &manual))
	assert.Equal(t, 3, manual.LineNo)
	assert.Equal(t, 5.0, manual.Quantity)
	assert.Equal(t, "pcs", manual.Unit)
	assert.Equal(t, "brass nipple", manual.SelectedItem.Description)
}

func TestBuildFinalizePayloadRejectsBrokenSelection(t *testing.T) {
	s := newTestSession()
	s.Selections["2"] = Selection{Kind: SelectionKindManual}

	_, err := BuildFinalizePayload(s)
	assert.Error(t, err)
}

func TestSelectionWireValueFallsBackToIndex(t *testing.T) {
	item := ambiguousItem(1)
	item.Options[1].OptionID = ""

	_, sel, err := ResolveOption(item, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "1", sel.OptionID)
}

func TestOptionUnitPricePrecedence(t *testing.T) {
	assert.Equal(t, 5.0, OptionUnitPrice(Option{UnitPricePiece: ptr(5.0), UnitPriceMeter: ptr(6.0)}))
	assert.Equal(t, 6.0, OptionUnitPrice(Option{UnitPricePiece: ptr(0.0), UnitPriceMeter: ptr(6.0)}))
	assert.Equal(t, 7.0, OptionUnitPrice(Option{LP: ptr(7.0)}))
	assert.Zero(t, OptionUnitPrice(Option{}))
}
