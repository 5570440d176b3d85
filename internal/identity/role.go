// Package identity models acting users, their roles and the capability set
// every other package consults instead of branching on role names.
package identity

import (
	"strings"

	"github.com/odyssey-erp/tierquote/internal/shared"
)

// Role determines a capability set, not identity.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleSales      Role = "sales"
	RoleClient     Role = "client"
)

// Capabilities is the full set of predicates attached to a role.
type Capabilities struct {
	ManageCatalog       bool
	ManageClients       bool
	SeeAllTierPrices    bool
	EditCommercialTerms bool
	AssignSalesRep      bool
	ConfirmQuotations   bool
	SeeAllClients       bool
	// OwnedClientsOnly scopes client and quotation reads to the clients
	// whose sales rep is the acting user.
	OwnedClientsOnly    bool
	Client              bool
}

var capabilityTable = map[Role]Capabilities{
	RoleSuperAdmin: {
		ManageCatalog:       true,
		ManageClients:       true,
		SeeAllTierPrices:    true,
		EditCommercialTerms: true,
		AssignSalesRep:      true,
		ConfirmQuotations:   true,
		SeeAllClients:       true,
	},
	RoleAdmin: {
		ManageCatalog:       true,
		ManageClients:       true,
		SeeAllTierPrices:    true,
		EditCommercialTerms: true,
		AssignSalesRep:      true,
		ConfirmQuotations:   true,
		SeeAllClients:       true,
	},
	RoleSales: {
		ManageCatalog:     true,
		ManageClients:     true,
		SeeAllTierPrices:  true,
		ConfirmQuotations: true,
		OwnedClientsOnly:  true,
	},
	RoleClient: {
		Client: true,
	},
}

// ParseRole validates a role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := capabilityTable[role]; !ok {
		return "", shared.Validation("role", "unknown role %q", raw)
	}
	return role, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := capabilityTable[r]
	return ok
}

// Capabilities returns the capability set; unknown roles get none.
func (r Role) Capabilities() Capabilities {
	return capabilityTable[r]
}

// Privileged reports whether the role acts on behalf of the business.
func (r Role) Privileged() bool {
	return r.Valid() && !r.Capabilities().Client
}

func CanManageCatalog(r Role) bool    { return r.Capabilities().ManageCatalog }
func CanManageClients(r Role) bool    { return r.Capabilities().ManageClients }
func CanSeeAllTierPrices(r Role) bool { return r.Capabilities().SeeAllTierPrices }
func IsClientRole(r Role) bool        { return r.Capabilities().Client }
