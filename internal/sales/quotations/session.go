package quotations

import (
	"time"

	"github.com/google/uuid"
)

// Session is the editing state of one quotation: the working copy of the
// quotation plus everything needed to undo and finalize user changes.
type Session struct {
	Quotation  Quotation    `json:"quotation"`
	Selections Selections   `json:"selections"`
	History    History      `json:"history"`
	Deleted    DeletedStack `json:"deleted"`
	Version    int64        `json:"version"`
	LoadedAt   time.Time    `json:"loaded_at"`
	SavedAt    *time.Time   `json:"saved_at,omitempty"`
}

// NewSession starts editing q.
func NewSession(q Quotation) *Session {
	q = q.Clone()
	for i := range q.Items {
		q.Items[i] = withPricing(q.Items[i])
	}
	return &Session{
		Quotation:  q,
		Selections: Selections{},
		History:    History{},
		LoadedAt:   time.Now().UTC(),
	}
}

func (s *Session) clone() *Session {
	out := *s
	out.Quotation = s.Quotation.Clone()
	out.Selections = s.Selections.Clone()
	out.History = s.History.Clone()
	out.Deleted = s.Deleted.Clone()
	if s.SavedAt != nil {
		t := *s.SavedAt
		out.SavedAt = &t
	}
	return &out
}

// Totals recomputes every pricing figure from the current rows and rates.
func (s *Session) Totals() Totals {
	return CalculateTotals(s.Quotation.Items, s.Quotation.TaxRate, s.Quotation.DiscountRate)
}

// Action is a single user interaction against a session.
type Action interface {
	apply(s *Session) error
}

// Apply runs a against the session. A failing action leaves the session as
// it was.
func (s *Session) Apply(a Action) error {
	if s.Quotation.ReadOnly() {
		return ErrReadOnly
	}
	next := s.clone()
	if err := a.apply(next); err != nil {
		return err
	}
	next.Version = s.Version + 1
	*s = *next
	return nil
}

// FinalizeBlocker returns the reason finalize may not run, if any.
func (s *Session) FinalizeBlocker() error {
	if s.Quotation.ReadOnly() {
		return ErrReadOnly
	}
	for _, item := range s.Quotation.Items {
		if Classify(item) == MatchStateNoMatch {
			return ErrUnmatchedItems
		}
	}
	return nil
}

// PreviewBlocker additionally refuses rows still awaiting a selection.
func (s *Session) PreviewBlocker() error {
	if err := s.FinalizeBlocker(); err != nil {
		return err
	}
	for _, item := range s.Quotation.Items {
		if Classify(item) == MatchStateSelectionRequired {
			return ErrSelectionRequired
		}
	}
	return nil
}

// completeFinalize drops the pending selections and the undo history of the
// rows they resolved.
func (s *Session) completeFinalize() {
	for lineKey := range s.Selections {
		for _, item := range s.Quotation.Items {
			if SelectionKey(item.LineNo) == lineKey {
				s.History.Drop(item.Key())
			}
		}
	}
	s.Selections = Selections{}
	s.Version++
}

func (s *Session) markSaved(at time.Time) {
	at = at.UTC()
	s.SavedAt = &at
}

// locate finds the row for lineNo in the list, falling back to the deleted
// stack. index is -1 when the row was taken off the stack.
func (s *Session) locate(lineNo int) (item LineItem, index int, found bool) {
	if idx := IndexByLineNo(s.Quotation.Items, lineNo); idx >= 0 {
		return s.Quotation.Items[idx].Clone(), idx, true
	}
	for i := len(s.Deleted) - 1; i >= 0; i-- {
		if s.Deleted[i].LineNo == lineNo {
			item = s.Deleted[i].Clone()
			s.Deleted = append(s.Deleted[:i:i], s.Deleted[i+1:]...)
			return item, -1, true
		}
	}
	return LineItem{}, -1, false
}

func (s *Session) place(index int, item LineItem) {
	if index < 0 || index >= len(s.Quotation.Items) {
		s.Quotation.Items = append(s.Quotation.Items, item)
		return
	}
	s.Quotation.Items[index] = item
}

func (s *Session) displacedSelection(lineNo int) *Selection {
	if sel, ok := s.Selections[SelectionKey(lineNo)]; ok {
		return sel.clone()
	}
	return nil
}

// AddItem appends a user-entered row.
type AddItem struct {
	Input ItemInput
}

func (a AddItem) apply(s *Session) error {
	if err := validateStruct(a.Input); err != nil {
		return err
	}
	item := a.Input.toItem()
	item.ID = uuid.NewString()
	item.LineNo = nextLineNo(s.Quotation.Items, s.Deleted)
	item.MatchType = MatchTypeMatched
	item.SelectionSource = SelectionSourceManual
	s.Quotation.Items = UpsertAtIndex(s.Quotation.Items, -1, item)
	s.History.PushIntroduction(item.Key(), nil, nil)
	return nil
}

// EditItem overwrites the form fields of an existing row.
type EditItem struct {
	Key   string
	Input ItemInput
}

func (a EditItem) apply(s *Session) error {
	if err := validateStruct(a.Input); err != nil {
		return err
	}
	idx := IndexByKey(s.Quotation.Items, a.Key)
	if idx < 0 {
		return ErrItemNotFound
	}
	s.History.PushEdit(a.Key, s.Quotation.Items[idx])
	s.Quotation.Items = UpsertAtIndex(s.Quotation.Items, idx, a.Input.toItem())
	return nil
}

// SetItemDiscount changes the discount rate of one row.
type SetItemDiscount struct {
	Key  string
	Rate float64
}

func (a SetItemDiscount) apply(s *Session) error {
	if err := validateRate("discount_rate", a.Rate); err != nil {
		return err
	}
	idx := IndexByKey(s.Quotation.Items, a.Key)
	if idx < 0 {
		return ErrItemNotFound
	}
	item := s.Quotation.Items[idx]
	s.History.PushEdit(a.Key, item)
	item.DiscountRate = a.Rate
	s.Quotation.Items[idx] = withPricing(item)
	return nil
}

// DeleteItem removes a row onto the deleted stack.
type DeleteItem struct {
	Key string
}

func (a DeleteItem) apply(s *Session) error {
	items, removed := RemoveByKey(s.Quotation.Items, a.Key)
	if removed == nil {
		return ErrItemNotFound
	}
	s.Quotation.Items = items
	s.Deleted.Push(*removed)
	return nil
}

// UndoDelete puts the most recently deleted row back at the end of the list.
type UndoDelete struct{}

func (UndoDelete) apply(s *Session) error {
	item, ok := s.Deleted.Pop()
	if !ok {
		return ErrNothingToUndo
	}
	s.Quotation.Items = append(s.Quotation.Items, item)
	return nil
}

// UndoItem pops the top history frame of a row. Edits unwind before the
// row's introduction does.
type UndoItem struct {
	Key string
}

func (a UndoItem) apply(s *Session) error {
	idx := IndexByKey(s.Quotation.Items, a.Key)
	if idx < 0 {
		return ErrItemNotFound
	}
	frame, ok := s.History.Pop(a.Key)
	if !ok {
		return ErrNothingToUndo
	}
	lineKey := SelectionKey(s.Quotation.Items[idx].LineNo)

	switch frame.Kind {
	case FrameEdit:
		s.Quotation.Items[idx] = frame.Snapshot.Clone()
		if s.History.Introduced(a.Key) {
			delete(s.Selections, lineKey)
		}
	case FrameIntroduction:
		if frame.Snapshot == nil {
			s.Quotation.Items, _ = RemoveByKey(s.Quotation.Items, a.Key)
			s.History.Drop(a.Key)
		} else {
			s.Quotation.Items[idx] = frame.Snapshot.Clone()
		}
		if frame.Selection != nil {
			s.Selections[lineKey] = *frame.Selection.clone()
		} else {
			delete(s.Selections, lineKey)
		}
	}
	return nil
}

// ResolveSelection confirms one candidate option for an ambiguous line.
type ResolveSelection struct {
	LineNo      int
	OptionIndex int
	Quantity    *float64
}

func (a ResolveSelection) apply(s *Session) error {
	if a.Quantity != nil && *a.Quantity < 0 {
		return &ValidationError{Fields: map[string]string{"quantity": "gte"}}
	}
	target, idx, ok := s.locate(a.LineNo)
	if !ok {
		return ErrItemNotFound
	}
	if len(target.Options) == 0 ||
		(target.MatchType != MatchTypeAmbiguous && target.SelectionSource != SelectionSourceSelected) {
		return ErrNotAmbiguous
	}
	resolved, sel, err := ResolveOption(target, a.OptionIndex, a.Quantity)
	if err != nil {
		return err
	}
	s.History.PushIntroduction(target.Key(), &target, s.displacedSelection(a.LineNo))
	s.place(idx, resolved)
	s.Selections[SelectionKey(a.LineNo)] = sel
	return nil
}

// ApplyManualEntry resolves a line with hand-entered details. A line number
// that no longer exists becomes a new row rather than being dropped.
type ApplyManualEntry struct {
	LineNo int
	Input  ItemInput
}

func (a ApplyManualEntry) apply(s *Session) error {
	if err := validateStruct(a.Input); err != nil {
		return err
	}
	target, idx, ok := s.locate(a.LineNo)
	var original *LineItem
	if ok {
		original = &target
	} else {
		target = LineItem{ID: uuid.NewString(), LineNo: a.LineNo}
	}
	resolved, sel := ApplyManual(target, a.Input)
	s.History.PushIntroduction(target.Key(), original, s.displacedSelection(a.LineNo))
	s.place(idx, resolved)
	s.Selections[SelectionKey(a.LineNo)] = sel
	return nil
}

// PickSKU resolves a line with an entry from the price list search.
type PickSKU struct {
	LineNo   int
	SKU      SKU
	Quantity *float64
}

func (a PickSKU) apply(s *Session) error {
	qty := 0.0
	if idx := IndexByLineNo(s.Quotation.Items, a.LineNo); idx >= 0 {
		qty = s.Quotation.Items[idx].Quantity
	} else if d, ok := s.Deleted.FindLineNo(a.LineNo); ok {
		qty = d.Quantity
	}
	if a.Quantity != nil {
		qty = *a.Quantity
	}
	return ApplyManualEntry{
		LineNo: a.LineNo,
		Input: ItemInput{
			Description: a.SKU.Description,
			Category:    a.SKU.Category,
			Brand:       a.SKU.Brand,
			Size:        a.SKU.Size,
			HSNCode:     a.SKU.HSNCode,
			ItemCode:    a.SKU.ItemCode,
			Unit:        a.SKU.Unit,
			Quantity:    qty,
			UnitPrice:   a.SKU.UnitPrice,
		},
	}.apply(s)
}

// SetTaxRate changes the global tax percentage.
type SetTaxRate struct {
	Rate float64
}

func (a SetTaxRate) apply(s *Session) error {
	if err := validateRate("tax_rate", a.Rate); err != nil {
		return err
	}
	s.Quotation.TaxRate = a.Rate
	return nil
}

// SetDiscountRate changes the global discount percentage. The field is
// locked while any row has its own discount.
type SetDiscountRate struct {
	Rate float64
}

func (a SetDiscountRate) apply(s *Session) error {
	if err := validateRate("discount_rate", a.Rate); err != nil {
		return err
	}
	if HasIndividualDiscounts(s.Quotation.Items) {
		return ErrGlobalDiscountDisabled
	}
	s.Quotation.DiscountRate = a.Rate
	return nil
}

// SetRates changes the tax and discount percentages together. Nil rates are
// left as they are, and nothing changes unless both can be applied.
type SetRates struct {
	TaxRate      *float64
	DiscountRate *float64
}

func (a SetRates) apply(s *Session) error {
	if a.TaxRate != nil {
		if err := (SetTaxRate{Rate: *a.TaxRate}).apply(s); err != nil {
			return err
		}
	}
	if a.DiscountRate != nil {
		return SetDiscountRate{Rate: *a.DiscountRate}.apply(s)
	}
	return nil
}

// SetCustomer replaces the header fields sent along with the next save.
type SetCustomer struct {
	ReferenceNumber string
	Customer        CustomerInfo
	Project         ProjectInfo
	SenderEmail     string
}

func (a SetCustomer) apply(s *Session) error {
	if err := validateStruct(CustomerRequest{
		ReferenceNumber: a.ReferenceNumber,
		Customer:        a.Customer,
		Project:         a.Project,
		SenderEmail:     a.SenderEmail,
	}); err != nil {
		return err
	}
	s.Quotation.ReferenceNumber = a.ReferenceNumber
	s.Quotation.Customer = a.Customer
	s.Quotation.Project = a.Project
	s.Quotation.SenderEmail = a.SenderEmail
	return nil
}
