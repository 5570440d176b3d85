package clients

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/tierquote/internal/catalog"
	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

// ApplyUpdate returns c patched with req as allowed for a role holding caps.
// Commercial terms and the sales rep may only change when caps permit it; a
// field supplied with its current value is not a change.
func ApplyUpdate(c Client, req UpdateClientRequest, caps identity.Capabilities) (Client, error) {
	out := c

	if req.Tier != nil {
		tier, err := catalog.ParseTier(*req.Tier)
		if err != nil {
			return c, err
		}
		if tier != c.Tier && !caps.EditCommercialTerms {
			return c, shared.Forbidden("changing tier requires admin")
		}
		out.Tier = tier
	}
	if req.PaymentTermsDays != nil {
		if *req.PaymentTermsDays < 0 {
			return c, shared.Validation("payment_terms_days", "must not be negative")
		}
		if *req.PaymentTermsDays != c.PaymentTermsDays && !caps.EditCommercialTerms {
			return c, shared.Forbidden("changing payment terms requires admin")
		}
		out.PaymentTermsDays = *req.PaymentTermsDays
	}
	if req.CreditLimit != nil {
		if req.CreditLimit.IsNegative() {
			return c, shared.Validation("credit_limit", "must not be negative")
		}
		limit := req.CreditLimit.Round(2)
		if !limit.Equal(c.CreditLimit) && !caps.EditCommercialTerms {
			return c, shared.Forbidden("changing credit limit requires admin")
		}
		out.CreditLimit = limit
	}
	if req.SalesRepID != nil {
		if !sameRep(c.SalesRepID, req.SalesRepID) && !caps.AssignSalesRep {
			return c, shared.Forbidden("assigning a sales rep requires admin")
		}
		if *req.SalesRepID == 0 {
			out.SalesRepID = nil
		} else {
			rep := *req.SalesRepID
			out.SalesRepID = &rep
		}
	}

	if req.CompanyName != nil {
		out.CompanyName = strings.TrimSpace(*req.CompanyName)
	}
	if req.ContactPerson != nil {
		out.ContactPerson = strings.TrimSpace(*req.ContactPerson)
	}
	if req.Email != nil {
		out.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		out.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		out.Address = *req.Address
	}
	if req.TaxID != nil {
		out.TaxID = strings.TrimSpace(*req.TaxID)
	}
	if req.IsActive != nil {
		out.IsActive = *req.IsActive
	}

	if err := Validate(out); err != nil {
		return c, err
	}
	return out, nil
}

// Validate checks the invariants every stored client satisfies.
func Validate(c Client) error {
	if strings.TrimSpace(c.CompanyName) == "" {
		return shared.Validation("company_name", "is required")
	}
	if c.Email != "" && !validEmail(c.Email) {
		return shared.Validation("email", "must be a valid email address")
	}
	if c.PaymentTermsDays < 0 {
		return shared.Validation("payment_terms_days", "must not be negative")
	}
	if c.CreditLimit.LessThan(decimal.Zero) {
		return shared.Validation("credit_limit", "must not be negative")
	}
	if !c.Tier.Valid() {
		return shared.Validation("tier", "unknown tier %q", c.Tier)
	}
	return nil
}

var emailValidator = shared.NewValidator()

func validEmail(raw string) bool {
	return shared.IsEmail(emailValidator, raw)
}

func sameRep(current, requested *int64) bool {
	if requested == nil || *requested == 0 {
		return current == nil
	}
	return current != nil && *current == *requested
}
