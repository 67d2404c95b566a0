package authz

// Role is the single role held by every user account.
type Role string

// Roles known to the platform.
const (
	RoleSuperAdmin Role = "super_admin"
	RoleCoAdmin    Role = "co_admin"
	RoleEstateUser Role = "estate_user"
)

// Valid reports whether the role is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleCoAdmin, RoleEstateUser:
		return true
	}
	return false
}

// Action is a governable operation on a resource.
type Action string

// Actions evaluated by the decision engine.
const (
	ActionCreate     Action = "create"
	ActionRead       Action = "read"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionAssign     Action = "assign"
	ActionDeactivate Action = "deactivate"
)

// ResourceType identifies what kind of thing an action targets.
type ResourceType string

// Resource types known to the decision engine.
const (
	ResourceEstate      ResourceType = "estate"
	ResourceBuilding    ResourceType = "building"
	ResourceItem        ResourceType = "item"
	ResourceCategory    ResourceType = "category"
	ResourceReport      ResourceType = "report"
	ResourceAuditLog    ResourceType = "audit_log"
	ResourceUserAccount ResourceType = "user_account"
)

// Resource is the target of a decision, optionally scoped to an estate.
type Resource struct {
	Type     ResourceType
	EstateID string
}

// CapabilitySet holds the eight per-user flags owned by a co_admin. The zero
// value denies everything, which is also the treatment for an absent row.
type CapabilitySet struct {
	CanCreateItems      bool `json:"can_create_items"`
	CanEditItems        bool `json:"can_edit_items"`
	CanDeleteItems      bool `json:"can_delete_items"`
	CanManageEstates    bool `json:"can_manage_estates"`
	CanManageBuildings  bool `json:"can_manage_buildings"`
	CanManageCategories bool `json:"can_manage_categories"`
	CanGenerateReports  bool `json:"can_generate_reports"`
	CanViewAuditLogs    bool `json:"can_view_audit_logs"`
}

// Caller is the fully resolved actor a decision is made for.
type Caller struct {
	ID           string
	Role         Role
	IsActive     bool
	Capabilities CapabilitySet
	Grants       map[string]struct{}
}

// Granted reports whether the caller holds an access grant for the estate.
func (c Caller) Granted(estateID string) bool {
	_, ok := c.Grants[estateID]
	return ok
}

// Decision is the outcome of the engine; Reason is set only on deny.
type Decision struct {
	Allowed bool
	Reason  string
}

// Deny reason codes, stable for clients and audit records.
const (
	ReasonAccountInactive   = "account_inactive"
	ReasonNotSuperAdmin     = "not_super_admin"
	ReasonRoleForbidden     = "role_forbidden"
	ReasonCapabilityMissing = "capability_missing"
	ReasonEstateNotGranted  = "estate_not_granted"
	ReasonNoMatchingRule    = "no_matching_rule"
)
