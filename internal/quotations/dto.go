package quotations

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/tierquote/internal/shared"
)

const dateLayout = "2006-01-02"

type ItemRequest struct {
	ProductID       int64            `json:"product_id" validate:"required,gt=0"`
	Quantity        int              `json:"quantity" validate:"gte=1"`
	UnitPrice       *decimal.Decimal `json:"unit_price,omitempty"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	Notes           *string          `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type CreateQuotationRequest struct {
	ClientID   int64         `json:"client_id" validate:"required,gt=0"`
	ValidUntil string        `json:"valid_until,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes      *string       `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Currency   string        `json:"currency,omitempty" validate:"omitempty,len=3"`
	Items      []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

type ListFilter struct {
	Status   *Status
	ClientID *int64
	// Scope fields are set by the service from the actor.
	ScopeClientID   *int64
	ScopeSalesRepID *int64
	AsOf            time.Time
	Page            shared.PageRequest
}

type ItemResponse struct {
	Position        int             `json:"position"`
	ProductID       int64           `json:"product_id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	LineTotal       decimal.Decimal `json:"line_total"`
	Notes           *string         `json:"notes,omitempty"`
}

type QuotationResponse struct {
	ID              int64           `json:"id"`
	QuotationNumber string          `json:"quotation_number"`
	ClientID        int64           `json:"client_id"`
	Status          Status          `json:"status"`
	Currency        string          `json:"currency"`
	ValidUntil      string          `json:"valid_until"`
	Notes           *string         `json:"notes,omitempty"`
	Items           []ItemResponse  `json:"items,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CreatedBy       int64           `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
}

type ListResponse struct {
	Items      []QuotationResponse `json:"items"`
	Pagination shared.Pagination   `json:"pagination"`
}

// NewQuotationResponse renders q; q.Status must already be the effective status.
func NewQuotationResponse(q Quotation) QuotationResponse {
	resp := QuotationResponse{
		ID:              q.ID,
		QuotationNumber: q.Number,
		ClientID:        q.ClientID,
		Status:          q.Status,
		Currency:        q.Currency,
		ValidUntil:      q.ValidUntil.Format(dateLayout),
		Notes:           q.Notes,
		TotalAmount:     q.TotalAmount,
		CreatedBy:       q.CreatedBy,
		CreatedAt:       q.CreatedAt,
	}
	for _, it := range q.Items {
		resp.Items = append(resp.Items, ItemResponse{
			Position:        it.Position,
			ProductID:       it.ProductID,
			SKU:             it.SKU,
			Name:            it.Name,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			DiscountPercent: it.DiscountPercent,
			LineTotal:       it.LineTotal,
			Notes:           it.Notes,
		})
	}
	return resp
}
