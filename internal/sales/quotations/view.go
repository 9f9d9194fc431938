package quotations

import "time"

// RowView is a line as the editing grid renders it.
type RowView struct {
	LineItem
	State            MatchState  `json:"state"`
	RowAction        RowAction   `json:"row_action"`
	CanUndo          bool        `json:"can_undo"`
	UndoKind         FrameKind   `json:"undo_kind,omitempty"`
	PendingSelection bool        `json:"pending_selection"`
	ManualSeed       *ManualSeed `json:"manual_seed,omitempty"`
}

// SessionView is the read model returned after every interaction.
type SessionView struct {
	QuotationID       string          `json:"quotation_id"`
	Status            QuotationStatus `json:"status"`
	ReadOnly          bool            `json:"read_only"`
	ReferenceNumber   string          `json:"reference_number,omitempty"`
	Customer          CustomerInfo    `json:"customer_info"`
	Project           ProjectInfo     `json:"project_info"`
	SenderEmail       string          `json:"sender_email,omitempty"`
	TaxRate           float64         `json:"globalTaxRate"`
	DiscountRate      float64         `json:"globalDiscountRate"`
	Rows              []RowView       `json:"rows"`
	Totals            Totals          `json:"totals"`
	PendingSelections int             `json:"pending_selections"`
	CanUndoDelete     bool            `json:"can_undo_delete"`
	CanSave           bool            `json:"can_save"`
	CanPreview        bool            `json:"can_preview"`
	CanFinalize       bool            `json:"can_finalize"`
	Blocker           string          `json:"blocker,omitempty"`
	Version           int64           `json:"version"`
	SavedAt           *time.Time      `json:"saved_at,omitempty"`
}

// View renders the session for display, filtered by search.
func (s *Session) View(search string) SessionView {
	readOnly := s.Quotation.ReadOnly()
	rows := FilterBySearch(ReorderForDisplay(s.Quotation.Items), search)
	out := SessionView{
		QuotationID:       s.Quotation.ID,
		Status:            s.Quotation.Status,
		ReadOnly:          readOnly,
		ReferenceNumber:   s.Quotation.ReferenceNumber,
		Customer:          s.Quotation.Customer,
		Project:           s.Quotation.Project,
		SenderEmail:       s.Quotation.SenderEmail,
		TaxRate:           s.Quotation.TaxRate,
		DiscountRate:      s.Quotation.DiscountRate,
		Rows:              make([]RowView, 0, len(rows)),
		Totals:            s.Totals(),
		PendingSelections: len(s.Selections),
		CanUndoDelete:     !readOnly && len(s.Deleted) > 0,
		CanSave:           !readOnly,
		Version:           s.Version,
		SavedAt:           s.SavedAt,
	}
	for _, item := range rows {
		row := RowView{
			LineItem:  item,
			State:     Classify(item),
			RowAction: RouteRowClick(item, readOnly),
		}
		if !readOnly {
			key := item.Key()
			row.CanUndo = s.History.CanUndo(key)
			row.UndoKind = s.History.UndoKind(key)
		}
		_, row.PendingSelection = s.Selections[SelectionKey(item.LineNo)]
		if row.RowAction == RowActionOpenManual {
			seed := SeedManualEntry(item)
			row.ManualSeed = &seed
		}
		out.Rows = append(out.Rows, row)
	}
	if err := s.FinalizeBlocker(); err != nil {
		out.Blocker = err.Error()
	} else {
		out.CanFinalize = true
	}
	if err := s.PreviewBlocker(); err != nil {
		if out.Blocker == "" {
			out.Blocker = err.Error()
		}
	} else {
		out.CanPreview = true
	}
	return out
}
