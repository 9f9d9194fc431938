package quotations

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailJSON = `{
  "id": 812,
  "status": "Processed",
  "reference_number": "RFQ-77",
  "customer_info": {"name": "Ana", "company": "Build Co"},
  "sender_email": "buyer@example.com",
  "overall_totals": {"subtotal": "200", "tax_amount": 36, "discount_rate": 0, "total_amount": 236},
  "brand_results": [
    {
      "brand": "Acme",
      "line_items": [
        {"id": "a1", "line_no": 1, "description": "Gate valve", "quantity": "2", "unit_price": 50, "match_type": true,
         "options": [{"option_id": 9, "description": "Gate valve 1in", "item_code": "GV-1", "unit": "pcs"}]},
        {"line_no": 2, "description": "pipe", "quantity": 4, "match_type": false, "reasoning": "two sizes",
         "recommended_option": 7,
         "options": [{"option_id": "p15", "description": "Pipe 15mm", "unit_price_meter": 3.5},
                     {"option_id": "p20", "description": "Pipe 20mm", "lp": 4}]}
      ]
    },
    {
      "brand": "Bolt",
      "line_items": [
        {"line_no": 3, "description": "mystery part", "quantity": 1, "match_type": null, "reason": "No match for 'mystery part'"},
        {"line_no": 4, "quantity": -3, "unit_price": 10, "match_type": true},
        {"line_no": 5, "quantity": "lots"},
        {"line_no": 1, "description": "duplicate", "match_type": true}
      ]
    }
  ]
}`

func decodeDetail(t *testing.T) QuotationDetail {
	t.Helper()
	var detail QuotationDetail
	require.NoError(t, json.Unmarshal([]byte(detailJSON), &detail))
	return detail
}

func TestFromDetail(t *testing.T) {
	q, errs := FromDetail(decodeDetail(t))

	assert.Equal(t, "812", q.ID)
	assert.Equal(t, QuotationStatusProcessed, q.Status)
	assert.Equal(t, "RFQ-77", q.ReferenceNumber)
	assert.Equal(t, "Build Co", q.Customer.Company)
	assert.Equal(t, 18.0, q.TaxRate)
	assert.Zero(t, q.DiscountRate)

	require.Len(t, q.Items, 6)
	require.Len(t, errs, 3)

	matched := q.Items[0]
	assert.Equal(t, "a1", matched.ID)
	assert.Equal(t, 2.0, matched.Quantity)
	assert.Equal(t, 100.0, matched.Amount)
	assert.Equal(t, "GV-1", matched.ItemCode)
	assert.Equal(t, "pcs", matched.Unit)
	assert.Equal(t, "Acme", matched.Brand)
	assert.Equal(t, "Gate valve", matched.OriginalDescription)
	assert.Equal(t, "9", string(matched.Options[0].OptionID))

	ambiguous := q.Items[1]
	assert.Equal(t, MatchTypeAmbiguous, ambiguous.MatchType)
	assert.Nil(t, ambiguous.RecommendedOption)
	assert.Equal(t, "two sizes", ambiguous.Reason)
	assert.Empty(t, ambiguous.Brand)
	assert.Len(t, ambiguous.Options, 2)

	noMatch := q.Items[2]
	assert.Equal(t, MatchStateNoMatch, Classify(noMatch))
	assert.Equal(t, "No match for 'mystery part'", noMatch.Reason)
}

func TestFromDetailDegradesBadLines(t *testing.T) {
	q, errs := FromDetail(decodeDetail(t))

	for _, lineNo := range []int{4, 5} {
		idx := IndexByLineNo(q.Items, lineNo)
		require.GreaterOrEqual(t, idx, 0, "line %d", lineNo)
		item := q.Items[idx]
		assert.Equal(t, MatchTypeAmbiguous, item.MatchType)
		assert.Equal(t, degradedReason, item.Reason)
		assert.Zero(t, item.Quantity)
		assert.Zero(t, item.UnitPrice)
		assert.Equal(t, RowActionOpenManual, RouteRowClick(item, false))
	}

	var itemErr *ItemError
	require.ErrorAs(t, errs[0], &itemErr)
	assert.Equal(t, "Bolt", itemErr.Brand)
	assert.Equal(t, 4, itemErr.LineNo)
	require.ErrorAs(t, errs[2], &itemErr)
	assert.ErrorIs(t, itemErr, errDuplicateLine)
	assert.Equal(t, 1, itemErr.LineNo)

	duplicate := q.Items[5]
	assert.Equal(t, 1, duplicate.LineNo)
	assert.Equal(t, "duplicate", duplicate.Description)
	assert.Equal(t, "1", duplicate.Key())
}

func TestFromDetailKeepsRowsWithCollidingKeys(t *testing.T) {
	var detail QuotationDetail
	require.NoError(t, json.Unmarshal([]byte(`{
	  "id": "q-5",
	  "brand_results": [{"brand": "Acme", "line_items": [
	    "garbage",
	    42,
	    {"id": "x", "description": "ok", "quantity": 1, "unit_price": 2, "match_type": true}
	  ]}]
	}`), &detail))

	q, errs := FromDetail(detail)

	require.Len(t, q.Items, 3)
	keys := make(map[string]bool)
	for _, item := range q.Items {
		assert.Zero(t, item.LineNo)
		assert.False(t, keys[item.Key()], "key %q repeated", item.Key())
		keys[item.Key()] = true
	}
	ok := q.Items[IndexByKey(q.Items, "x")]
	assert.Equal(t, "ok", ok.Description)
	assert.Equal(t, 2.0, ok.Amount)
	assert.Equal(t, degradedReason, q.Items[0].Reason)
	assert.Equal(t, degradedReason, q.Items[1].Reason)

	require.Len(t, errs, 4)
	var decodeErrs, duplicates int
	for _, err := range errs {
		if errors.Is(err, errDuplicateLine) {
			duplicates++
		} else {
			decodeErrs++
		}
	}
	assert.Equal(t, 2, decodeErrs)
	assert.Equal(t, 2, duplicates)
}

func TestFromDetailTaxRate(t *testing.T) {
	rate := FlexFloat(12)
	q, _ := FromDetail(QuotationDetail{ID: "1", OverallTotals: &OverallTotals{TaxRate: &rate, Subtotal: 100, TaxAmount: 50}})
	assert.Equal(t, 12.0, q.TaxRate)

	q, _ = FromDetail(QuotationDetail{ID: "1", OverallTotals: &OverallTotals{TaxAmount: 50}})
	assert.Zero(t, q.TaxRate)

	q, _ = FromDetail(QuotationDetail{ID: "1", OverallTotals: &OverallTotals{Subtotal: 0.3, TaxAmount: 0.054}})
	assert.Equal(t, 18.0, q.TaxRate)

	q, _ = FromDetail(QuotationDetail{ID: "1"})
	assert.Zero(t, q.TaxRate)
	assert.Equal(t, QuotationStatusDraft, q.Status)
	assert.Empty(t, q.Items)
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, QuotationStatusApproved, normalizeStatus(" APPROVED "))
	assert.Equal(t, QuotationStatusSent, normalizeStatus("sent"))
	assert.Equal(t, QuotationStatusDraft, normalizeStatus("archived"))
}

func TestMatchTypeJSON(t *testing.T) {
	for raw, want := range map[string]MatchType{"true": MatchTypeMatched, "false": MatchTypeAmbiguous, "null": MatchTypeNone} {
		var got MatchType
		require.NoError(t, json.Unmarshal([]byte(raw), &got))
		assert.Equal(t, want, got)
		out, err := json.Marshal(got)
		require.NoError(t, err)
		assert.Equal(t, raw, string(out))
	}
	var m MatchType
	assert.Error(t, json.Unmarshal([]byte(`"yes"`), &m))
}
