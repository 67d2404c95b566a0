// Package authz holds the single authoritative authorization rule set. Every
// enforcement point, server-side or display-only, consumes Decide; the rules
// are never restated anywhere else.
package authz

// Allow is the positive decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny is a negative decision with a stable reason code.
func Deny(reason string) Decision { return Decision{Reason: reason} }

// Decide evaluates the fixed rule table for a caller, action and resource.
// Rules are evaluated in order; the first match wins.
func Decide(caller Caller, action Action, res Resource) Decision {
	// Rule 1: inactive accounts can do nothing.
	if !caller.IsActive {
		return Deny(ReasonAccountInactive)
	}

	// Rule 2: user account management is never delegable.
	if res.Type == ResourceUserAccount {
		if caller.Role == RoleSuperAdmin {
			return Allow()
		}
		return Deny(ReasonNotSuperAdmin)
	}

	// Rule 3: super_admin is unrestricted elsewhere.
	if caller.Role == RoleSuperAdmin {
		return Allow()
	}

	// Rule 4: estate_user has implicit full item authority and read access,
	// nothing else.
	if caller.Role == RoleEstateUser {
		if res.Type == ResourceItem {
			return Allow()
		}
		if action == ActionRead {
			switch res.Type {
			case ResourceEstate, ResourceBuilding, ResourceCategory:
				return Allow()
			}
		}
		return Deny(ReasonRoleForbidden)
	}

	// Rule 5: co_admin requires the matching capability flag, plus an estate
	// grant whenever the resource is estate-scoped.
	if caller.Role == RoleCoAdmin {
		need, ok := requiredCapability(action, res.Type)
		if !ok {
			return Deny(ReasonRoleForbidden)
		}
		if need != nil && !need(caller.Capabilities) {
			return Deny(ReasonCapabilityMissing)
		}
		if res.EstateID != "" && !caller.Granted(res.EstateID) {
			return Deny(ReasonEstateNotGranted)
		}
		return Allow()
	}

	// Rule 6: fail closed.
	return Deny(ReasonNoMatchingRule)
}

type capabilityCheck func(CapabilitySet) bool

// requiredCapability maps (action, resource type) to the co_admin flag that
// governs it. A nil check with ok=true means the pair needs no flag (reads on
// inventory resources are gated by the estate grant alone). ok=false means the
// pair is not available to co_admins at all.
func requiredCapability(action Action, rt ResourceType) (capabilityCheck, bool) {
	switch rt {
	case ResourceItem:
		switch action {
		case ActionCreate:
			return func(c CapabilitySet) bool { return c.CanCreateItems }, true
		case ActionUpdate:
			return func(c CapabilitySet) bool { return c.CanEditItems }, true
		case ActionDelete:
			return func(c CapabilitySet) bool { return c.CanDeleteItems }, true
		case ActionRead:
			return nil, true
		}
	case ResourceEstate:
		switch action {
		case ActionCreate, ActionUpdate, ActionDelete:
			return func(c CapabilitySet) bool { return c.CanManageEstates }, true
		case ActionRead:
			return nil, true
		}
	case ResourceBuilding:
		switch action {
		case ActionCreate, ActionUpdate, ActionDelete:
			return func(c CapabilitySet) bool { return c.CanManageBuildings }, true
		case ActionRead:
			return nil, true
		}
	case ResourceCategory:
		switch action {
		case ActionCreate, ActionUpdate, ActionDelete:
			return func(c CapabilitySet) bool { return c.CanManageCategories }, true
		case ActionRead:
			return nil, true
		}
	case ResourceReport:
		switch action {
		case ActionCreate, ActionRead:
			return func(c CapabilitySet) bool { return c.CanGenerateReports }, true
		}
	case ResourceAuditLog:
		if action == ActionRead {
			return func(c CapabilitySet) bool { return c.CanViewAuditLogs }, true
		}
	}
	return nil, false
}
