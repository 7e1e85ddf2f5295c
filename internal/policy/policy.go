// Package policy is the single authorization point of the API: a declarative
// capability table keyed by (role, action), consulted uniformly at the HTTP
// boundary instead of per-handler role checks.
package policy

// Role is the caller's role as asserted by the fronting gateway.
type Role string

const (
	RoleOperator   Role = "operator"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleOperator, RoleSupervisor, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// Action names a guarded API operation.
type Action string

const (
	ActionViewStock     Action = "view_stock"
	ActionPostDelivery  Action = "post_delivery"
	ActionIssueStock    Action = "issue_stock"
	ActionTransferStock Action = "transfer_stock"
	ActionViewNCRs      Action = "view_ncrs"
	ActionResolveNCR    Action = "resolve_ncr"
	ActionManagePeriods Action = "manage_periods"
)

// capabilities is the full authorization surface. An action missing from a
// role's set is denied; there is no fallback chain to reason about.
var capabilities = map[Role]map[Action]bool{
	RoleOperator: {
		ActionViewStock:     true,
		ActionPostDelivery:  true,
		ActionIssueStock:    true,
		ActionTransferStock: true,
		ActionViewNCRs:      true,
	},
	RoleSupervisor: {
		ActionViewStock:     true,
		ActionPostDelivery:  true,
		ActionIssueStock:    true,
		ActionTransferStock: true,
		ActionViewNCRs:      true,
		ActionResolveNCR:    true,
	},
	RoleAdmin: {
		ActionViewStock:     true,
		ActionPostDelivery:  true,
		ActionIssueStock:    true,
		ActionTransferStock: true,
		ActionViewNCRs:      true,
		ActionResolveNCR:    true,
		ActionManagePeriods: true,
	},
}

// Allowed reports whether role may perform action. Unknown roles have no
// capabilities.
func Allowed(role Role, action Action) bool {
	return capabilities[role][action]
}
