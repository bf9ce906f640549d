package auth

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role    Role
		allowed []Permission
		denied  []Permission
	}{
		{
			role:    RoleViewer,
			allowed: []Permission{PermPrinterRead, PermFilamentRead, PermHistoryRead},
			denied:  []Permission{PermPrinterOperate, PermPrinterManage, PermFilamentManage},
		},
		{
			role:    RoleOperator,
			allowed: []Permission{PermPrinterRead, PermPrinterOperate, PermFilamentManage, PermHistoryRead},
			denied:  []Permission{PermPrinterManage},
		},
		{
			role: RoleAdmin,
			allowed: []Permission{
				PermPrinterRead, PermPrinterOperate, PermPrinterManage,
				PermFilamentRead, PermFilamentManage, PermHistoryRead,
			},
		},
		{
			role:   Role("owner"),
			denied: []Permission{PermPrinterRead},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			for _, p := range tt.allowed {
				if !HasPermission(tt.role, p) {
					t.Errorf("%s should have %s", tt.role, p)
				}
			}
			for _, p := range tt.denied {
				if HasPermission(tt.role, p) {
					t.Errorf("%s should NOT have %s", tt.role, p)
				}
			}
		})
	}
}

func TestPermissionsForRole(t *testing.T) {
	perms := PermissionsForRole(RoleViewer)
	if len(perms) != 3 {
		t.Fatalf("len(PermissionsForRole(viewer)) = %d, want 3", len(perms))
	}

	// Returned slice is a copy.
	perms[0] = PermPrinterManage
	if HasPermission(RoleViewer, PermPrinterManage) {
		t.Error("mutating the result changed the role mapping")
	}

	if PermissionsForRole(Role("owner")) != nil {
		t.Error("unknown role should have no permissions")
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range ValidRoles {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = false", r)
		}
	}
	if IsValidRole("panel") {
		t.Error("IsValidRole(panel) = true")
	}
}
