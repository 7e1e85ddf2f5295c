package policy

import "testing"

func TestAllowed(t *testing.T) {
	tests := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleOperator, ActionViewStock, true},
		{RoleOperator, ActionPostDelivery, true},
		{RoleOperator, ActionIssueStock, true},
		{RoleOperator, ActionTransferStock, true},
		{RoleOperator, ActionViewNCRs, true},
		{RoleOperator, ActionResolveNCR, false},
		{RoleOperator, ActionManagePeriods, false},

		{RoleSupervisor, ActionResolveNCR, true},
		{RoleSupervisor, ActionManagePeriods, false},

		{RoleAdmin, ActionResolveNCR, true},
		{RoleAdmin, ActionManagePeriods, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			if got := Allowed(tt.role, tt.action); got != tt.want {
				t.Errorf("Allowed(%s, %s) = %v, want %v", tt.role, tt.action, got, tt.want)
			}
		})
	}
}

func TestAllowed_UnknownRole(t *testing.T) {
	actions := []Action{
		ActionViewStock, ActionPostDelivery, ActionIssueStock,
		ActionTransferStock, ActionViewNCRs, ActionResolveNCR, ActionManagePeriods,
	}
	for _, a := range actions {
		if Allowed("", a) {
			t.Errorf("empty role must not be allowed %s", a)
		}
		if Allowed("superuser", a) {
			t.Errorf("unknown role must not be allowed %s", a)
		}
	}
}

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in     string
		want   Role
		wantOK bool
	}{
		{"operator", RoleOperator, true},
		{"supervisor", RoleSupervisor, true},
		{"admin", RoleAdmin, true},
		{"", "", false},
		{"Admin", "", false},
		{"root", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeRole(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NormalizeRole(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

// Every role can do everything a less privileged role can; the capability
// table is strictly widening.
func TestCapabilitiesWiden(t *testing.T) {
	order := []Role{RoleOperator, RoleSupervisor, RoleAdmin}
	for i := 1; i < len(order); i++ {
		lower, higher := order[i-1], order[i]
		for action, ok := range capabilities[lower] {
			if ok && !capabilities[higher][action] {
				t.Errorf("%s allows %s but %s does not", lower, action, higher)
			}
		}
	}
}
