package contract

import "github.com/midnight-markets/backend/internal/models"

// Role is what a caller is with respect to the entities an operation targets.
// Authorization resolves roles explicitly instead of scattering string
// comparisons per operation.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleSheriff Role = "sheriff"
	RoleSeller  Role = "seller"
	RoleBuyer   Role = "buyer"
)

// ResolveRoles returns every role the caller holds against the given targets.
// Nil targets are skipped.
func ResolveRoles(caller string, p *models.Platform, m *models.Market, o *models.Offer) []Role {
	var roles []Role
	if p != nil && p.OwnerID == caller {
		roles = append(roles, RoleOwner)
	}
	if m != nil && m.SheriffID == caller {
		roles = append(roles, RoleSheriff)
	}
	if o != nil {
		if o.SellerID == caller {
			roles = append(roles, RoleSeller)
		}
		if o.BuyerID != nil && *o.BuyerID == caller {
			roles = append(roles, RoleBuyer)
		}
	}
	return roles
}

func hasRole(roles []Role, want Role) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

func requireOwner(p *models.Platform, caller string) error {
	if !hasRole(ResolveRoles(caller, p, nil, nil), RoleOwner) {
		return unauthorizedf("caller %q is not the platform owner", caller)
	}
	return nil
}

func requireSheriff(m *models.Market, caller string) error {
	if !hasRole(ResolveRoles(caller, nil, m, nil), RoleSheriff) {
		return unauthorizedf("caller %q is not the sheriff of market %d", caller, m.ID)
	}
	return nil
}

func requireSeller(o *models.Offer, caller string) error {
	if !hasRole(ResolveRoles(caller, nil, nil, o), RoleSeller) {
		return unauthorizedf("caller %q is not the seller of offer %d", caller, o.ID)
	}
	return nil
}

func requireBuyer(o *models.Offer, caller string) error {
	if !hasRole(ResolveRoles(caller, nil, nil, o), RoleBuyer) {
		return unauthorizedf("caller %q is not the buyer of offer %d", caller, o.ID)
	}
	return nil
}

// requireDeclared rejects operations whose declared actor parameter does not
// match the authenticated caller. Denial is explicit, never a silent no-op.
func requireDeclared(declared, caller, what string) error {
	if declared != caller {
		return unauthorizedf("declared %s %q does not match caller %q", what, declared, caller)
	}
	return nil
}
