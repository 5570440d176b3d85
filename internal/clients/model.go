// Package clients owns client accounts: their pricing tier, commercial terms
// and sales rep ownership.
package clients

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/identity"
)

const (
	DefaultPaymentTermsDays = 30
	DefaultTier             = catalog.TierA
)

// Client is a buying company.
type Client struct {
	ID               int64           `json:"id"`
	CompanyName      string          `json:"company_name"`
	ContactPerson    string          `json:"contact_person,omitempty"`
	Email            string          `json:"email,omitempty"`
	Phone            string          `json:"phone,omitempty"`
	Address          string          `json:"address,omitempty"`
	TaxID            string          `json:"tax_id,omitempty"`
	PaymentTermsDays int             `json:"payment_terms_days"`
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	Tier             catalog.Tier    `json:"tier"`
	SalesRepID       *int64          `json:"sales_rep_id,omitempty"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// OwnedBy reports whether userID is the assigned sales rep.
func (c Client) OwnedBy(userID int64) bool {
	return c.SalesRepID != nil && *c.SalesRepID == userID
}

// CanAccess reports whether actor may read c.
func CanAccess(actor identity.Actor, c Client) bool {
	caps := actor.Can()
	switch {
	case caps.SeeAllClients:
		return true
	case caps.Client:
		return actor.OwnsClient(c.ID)
	case caps.OwnedClientsOnly:
		return c.OwnedBy(actor.ID)
	}
	return false
}
