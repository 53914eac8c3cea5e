package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "user read", role: RoleUser, action: ActionRead, allow: true},
		{name: "user write", role: RoleUser, action: ActionWrite, allow: true},
		{name: "user admin", role: RoleUser, action: ActionAdmin, allow: false},
		{name: "employee delete", role: RoleEmployee, action: ActionDelete, allow: true},
		{name: "employee admin", role: RoleEmployee, action: ActionAdmin, allow: false},
		{name: "admin admin", role: RoleAdmin, action: ActionAdmin, allow: true},
		{name: "unknown role", role: Role("guest"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("admin") != RoleAdmin {
		t.Fatal("expected admin to be kept")
	}
	if Normalize("editor") != RoleUser {
		t.Fatal("expected unknown roles to fall back to user")
	}
}
