package clients

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/tierquote/internal/shared"
)

type CreateClientRequest struct {
	CompanyName      string           `json:"company_name" validate:"required,max=200"`
	ContactPerson    string           `json:"contact_person,omitempty" validate:"omitempty,max=200"`
	Email            string           `json:"email,omitempty" validate:"omitempty,email"`
	Phone            string           `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address          string           `json:"address,omitempty"`
	TaxID            string           `json:"tax_id,omitempty" validate:"omitempty,max=50"`
	PaymentTermsDays *int             `json:"payment_terms_days,omitempty" validate:"omitempty,gte=0"`
	CreditLimit      *decimal.Decimal `json:"credit_limit,omitempty"`
	Tier             *string          `json:"tier,omitempty"`
	SalesRepID       *int64           `json:"sales_rep_id,omitempty"`
	IsActive         *bool            `json:"is_active,omitempty"`
}

// UpdateClientRequest patches a client; nil fields are left untouched.
type UpdateClientRequest struct {
	CompanyName      *string          `json:"company_name,omitempty"`
	ContactPerson    *string          `json:"contact_person,omitempty"`
	Email            *string          `json:"email,omitempty"`
	Phone            *string          `json:"phone,omitempty"`
	Address          *string          `json:"address,omitempty"`
	TaxID            *string          `json:"tax_id,omitempty"`
	PaymentTermsDays *int             `json:"payment_terms_days,omitempty"`
	CreditLimit      *decimal.Decimal `json:"credit_limit,omitempty"`
	Tier             *string          `json:"tier,omitempty"`
	SalesRepID       *int64           `json:"sales_rep_id,omitempty"`
	IsActive         *bool            `json:"is_active,omitempty"`
}

type ListFilter struct {
	Search string
	// SalesRepID and ClientID narrow the listing to what the actor may see.
	SalesRepID *int64
	ClientID   *int64
	Page       shared.PageRequest
}

// ClientResponse omits sales rep fields for viewers who cannot assign reps.
type ClientResponse struct {
	ID               int64           `json:"id"`
	CompanyName      string          `json:"company_name"`
	ContactPerson    string          `json:"contact_person,omitempty"`
	Email            string          `json:"email,omitempty"`
	Phone            string          `json:"phone,omitempty"`
	Address          string          `json:"address,omitempty"`
	TaxID            string          `json:"tax_id,omitempty"`
	PaymentTermsDays int             `json:"payment_terms_days"`
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	Tier             string          `json:"tier"`
	IsActive         bool            `json:"is_active"`
	SalesRepID       *int64          `json:"sales_rep_id,omitempty"`
	SalesRepName     string          `json:"sales_rep_name,omitempty"`
}

type ListResponse struct {
	Items      []ClientResponse  `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}
