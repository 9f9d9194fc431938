package quotations

// ItemInput is the subset of line fields collected by the item form. It is
// used for added rows, edits and manual resolutions alike.
type ItemInput struct {
	Description  string  `json:"description" validate:"required,max=500"`
	Category     string  `json:"category" validate:"max=120"`
	Brand        string  `json:"brand" validate:"max=120"`
	Size         string  `json:"size" validate:"max=120"`
	HSNCode      string  `json:"hsn_code" validate:"max=20"`
	ItemCode     string  `json:"item_code" validate:"max=64"`
	Unit         string  `json:"unit" validate:"max=20"`
	Quantity     float64 `json:"quantity" validate:"gte=0"`
	UnitPrice    float64 `json:"unit_price" validate:"gte=0"`
	DiscountRate float64 `json:"discount_rate" validate:"gte=0,lte=100"`
}

func (in ItemInput) toItem() LineItem {
	return LineItem{
		Description:  in.Description,
		Category:     in.Category,
		Brand:        in.Brand,
		Size:         in.Size,
		HSNCode:      in.HSNCode,
		ItemCode:     in.ItemCode,
		Unit:         in.Unit,
		Quantity:     in.Quantity,
		UnitPrice:    in.UnitPrice,
		DiscountRate: in.DiscountRate,
	}
}

type ResolveSelectionRequest struct {
	OptionIndex *int     `json:"option_index" validate:"required,gte=0"`
	Quantity    *float64 `json:"quantity,omitempty" validate:"omitempty,gte=0"`
}

type RatesRequest struct {
	TaxRate      *float64 `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	DiscountRate *float64 `json:"discount_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
}

type ItemDiscountRequest struct {
	DiscountRate float64 `json:"discount_rate" validate:"gte=0,lte=100"`
}

type CustomerRequest struct {
	ReferenceNumber string       `json:"reference_number" validate:"max=64"`
	Customer        CustomerInfo `json:"customer_info"`
	Project         ProjectInfo  `json:"project_info"`
	SenderEmail     string       `json:"sender_email" validate:"omitempty,email"`
}

type SKUSearchRequest struct {
	Query string `json:"q" validate:"required,min=2,max=100"`
	Limit int    `json:"limit" validate:"gte=0,lte=100"`
}
