package auth

import "finbot/internal/domain"

var requiredPermissions = map[domain.Action]domain.Permission{
	domain.ActionAddExpense:        domain.PermissionAdd,
	domain.ActionAddIncome:         domain.PermissionAdd,
	domain.ActionCreateInstallment: domain.PermissionAdd,
	domain.ActionShowExpenses:      domain.PermissionView,
	domain.ActionListInstallments:  domain.PermissionView,
	domain.ActionEditTransaction:   domain.PermissionEdit,
	domain.ActionSetCreditMode:     domain.PermissionEdit,
	domain.ActionDeleteTransaction: domain.PermissionDelete,
	domain.ActionDeleteInstallment: domain.PermissionDelete,
	domain.ActionSetBudget:         domain.PermissionManageBudgets,
	domain.ActionShowReport:        domain.PermissionViewReports,
}

// RequiredPermission returns the permission an action needs, if any.
func RequiredPermission(action domain.Action) (domain.Permission, bool) {
	p, ok := requiredPermissions[action]
	return p, ok
}

// HasPermission reports whether perms allow action. Actions absent from the
// table require nothing; a nil permission set allows nothing else.
func HasPermission(perms *domain.Permissions, action domain.Action) bool {
	required, ok := RequiredPermission(action)
	if !ok {
		return true
	}
	if perms == nil {
		return false
	}
	return perms.Allows(required)
}

// NeedsSession reports whether an action can only run for an identified
// user. Help and login are open to everyone.
func NeedsSession(action domain.Action) bool {
	switch action {
	case domain.ActionHelp, domain.ActionLogin, domain.ActionUnknown, domain.ActionCancel:
		return false
	default:
		return true
	}
}
