package authz

import "testing"

func activeCaller(role Role) Caller {
	return Caller{ID: "caller-1", Role: role, IsActive: true, Grants: map[string]struct{}{}}
}

func TestDecideUserAccountRequiresSuperAdmin(t *testing.T) {
	res := Resource{Type: ResourceUserAccount}
	for _, action := range []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionAssign, ActionDeactivate} {
		co := activeCaller(RoleCoAdmin)
		// Full capability set must make no difference for user accounts.
		co.Capabilities = CapabilitySet{
			CanCreateItems: true, CanEditItems: true, CanDeleteItems: true,
			CanManageEstates: true, CanManageBuildings: true, CanManageCategories: true,
			CanGenerateReports: true, CanViewAuditLogs: true,
		}
		if d := Decide(co, action, res); d.Allowed || d.Reason != ReasonNotSuperAdmin {
			t.Fatalf("co_admin %s on user_account: got %+v", action, d)
		}
		if d := Decide(activeCaller(RoleEstateUser), action, res); d.Allowed || d.Reason != ReasonNotSuperAdmin {
			t.Fatalf("estate_user %s on user_account: got %+v", action, d)
		}
		if d := Decide(activeCaller(RoleSuperAdmin), action, res); !d.Allowed {
			t.Fatalf("super_admin %s on user_account denied: %s", action, d.Reason)
		}
	}
}

func TestDecideInactiveDeniesEverything(t *testing.T) {
	resources := []Resource{
		{Type: ResourceEstate, EstateID: "e1"},
		{Type: ResourceItem},
		{Type: ResourceUserAccount},
		{Type: ResourceReport},
	}
	for _, role := range []Role{RoleSuperAdmin, RoleCoAdmin, RoleEstateUser} {
		caller := activeCaller(role)
		caller.IsActive = false
		for _, res := range resources {
			for _, action := range []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionDeactivate} {
				d := Decide(caller, action, res)
				if d.Allowed || d.Reason != ReasonAccountInactive {
					t.Fatalf("inactive %s %s on %s: got %+v", role, action, res.Type, d)
				}
			}
		}
	}
}

func TestDecideSuperAdminAllowsAll(t *testing.T) {
	caller := activeCaller(RoleSuperAdmin)
	for _, res := range []Resource{
		{Type: ResourceEstate, EstateID: "e9"},
		{Type: ResourceBuilding, EstateID: "e9"},
		{Type: ResourceItem},
		{Type: ResourceCategory},
		{Type: ResourceReport},
		{Type: ResourceAuditLog},
	} {
		if d := Decide(caller, ActionDelete, res); !d.Allowed {
			t.Fatalf("super_admin delete %s denied: %s", res.Type, d.Reason)
		}
	}
}

func TestDecideCoAdminBuildingScenarios(t *testing.T) {
	building := Resource{Type: ResourceBuilding, EstateID: "estate-e"}

	noCap := activeCaller(RoleCoAdmin)
	noCap.Grants["estate-e"] = struct{}{}
	if d := Decide(noCap, ActionCreate, building); d.Allowed || d.Reason != ReasonCapabilityMissing {
		t.Fatalf("granted but no capability: got %+v", d)
	}

	noGrant := activeCaller(RoleCoAdmin)
	noGrant.Capabilities.CanManageBuildings = true
	if d := Decide(noGrant, ActionCreate, building); d.Allowed || d.Reason != ReasonEstateNotGranted {
		t.Fatalf("capability but no grant: got %+v", d)
	}

	both := activeCaller(RoleCoAdmin)
	both.Capabilities.CanManageBuildings = true
	both.Grants["estate-e"] = struct{}{}
	if d := Decide(both, ActionCreate, building); !d.Allowed {
		t.Fatalf("capability and grant denied: %s", d.Reason)
	}
}

func TestDecideCoAdminCapabilityTable(t *testing.T) {
	cases := []struct {
		name   string
		action Action
		res    Resource
		caps   CapabilitySet
		allow  bool
		reason string
	}{
		{"create item with flag", ActionCreate, Resource{Type: ResourceItem}, CapabilitySet{CanCreateItems: true}, true, ""},
		{"edit item without flag", ActionUpdate, Resource{Type: ResourceItem}, CapabilitySet{CanCreateItems: true}, false, ReasonCapabilityMissing},
		{"delete item with flag", ActionDelete, Resource{Type: ResourceItem}, CapabilitySet{CanDeleteItems: true}, true, ""},
		{"manage estate without flag", ActionUpdate, Resource{Type: ResourceEstate}, CapabilitySet{}, false, ReasonCapabilityMissing},
		{"manage category with flag", ActionDelete, Resource{Type: ResourceCategory}, CapabilitySet{CanManageCategories: true}, true, ""},
		{"generate report with flag", ActionCreate, Resource{Type: ResourceReport}, CapabilitySet{CanGenerateReports: true}, true, ""},
		{"view audit logs without flag", ActionRead, Resource{Type: ResourceAuditLog}, CapabilitySet{}, false, ReasonCapabilityMissing},
		{"read item no flag needed", ActionRead, Resource{Type: ResourceItem}, CapabilitySet{}, true, ""},
		{"deactivate report not a co_admin action", ActionDeactivate, Resource{Type: ResourceReport}, CapabilitySet{CanGenerateReports: true}, false, ReasonRoleForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			caller := activeCaller(RoleCoAdmin)
			caller.Capabilities = tc.caps
			d := Decide(caller, tc.action, tc.res)
			if d.Allowed != tc.allow {
				t.Fatalf("allowed = %v, want %v (reason %q)", d.Allowed, tc.allow, d.Reason)
			}
			if !tc.allow && d.Reason != tc.reason {
				t.Fatalf("reason = %q, want %q", d.Reason, tc.reason)
			}
		})
	}
}

func TestDecideCoAdminGrantScoping(t *testing.T) {
	caller := activeCaller(RoleCoAdmin)
	caller.Capabilities.CanEditItems = true
	caller.Grants["estate-a"] = struct{}{}

	if d := Decide(caller, ActionUpdate, Resource{Type: ResourceItem, EstateID: "estate-a"}); !d.Allowed {
		t.Fatalf("granted estate denied: %s", d.Reason)
	}
	if d := Decide(caller, ActionUpdate, Resource{Type: ResourceItem, EstateID: "estate-b"}); d.Allowed || d.Reason != ReasonEstateNotGranted {
		t.Fatalf("ungranted estate: got %+v", d)
	}
	// Unscoped resources need only the capability.
	if d := Decide(caller, ActionUpdate, Resource{Type: ResourceItem}); !d.Allowed {
		t.Fatalf("unscoped item edit denied: %s", d.Reason)
	}
}

func TestDecideEstateUserItemAuthority(t *testing.T) {
	caller := activeCaller(RoleEstateUser)
	for _, action := range []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete} {
		// Grant table content is irrelevant for estate_user item actions.
		d := Decide(caller, action, Resource{Type: ResourceItem, EstateID: "never-granted"})
		if !d.Allowed {
			t.Fatalf("estate_user %s item denied: %s", action, d.Reason)
		}
	}
	for _, res := range []Resource{
		{Type: ResourceEstate},
		{Type: ResourceBuilding, EstateID: "e1"},
		{Type: ResourceCategory},
	} {
		d := Decide(caller, ActionCreate, res)
		if d.Allowed || d.Reason != ReasonRoleForbidden {
			t.Fatalf("estate_user create %s: got %+v", res.Type, d)
		}
	}
}

func TestDecideUnknownRoleFailsClosed(t *testing.T) {
	caller := Caller{ID: "x", Role: Role("owner"), IsActive: true}
	d := Decide(caller, ActionRead, Resource{Type: ResourceItem})
	if d.Allowed || d.Reason != ReasonNoMatchingRule {
		t.Fatalf("unknown role: got %+v", d)
	}
}
