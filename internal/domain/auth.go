package domain

// Permission is a capability an authorized number may hold.
type Permission string

const (
	PermissionView          Permission = "view"
	PermissionAdd           Permission = "add"
	PermissionEdit          Permission = "edit"
	PermissionDelete        Permission = "delete"
	PermissionManageBudgets Permission = "manage_budgets"
	PermissionViewReports   Permission = "view_reports"
)

// Permissions is the granular permission set of an authorized number.
type Permissions struct {
	CanView          bool `json:"can_view"`
	CanAdd           bool `json:"can_add"`
	CanEdit          bool `json:"can_edit"`
	CanDelete        bool `json:"can_delete"`
	CanManageBudgets bool `json:"can_manage_budgets"`
	CanViewReports   bool `json:"can_view_reports"`
}

// FullPermissions is granted to legacy sessions.
func FullPermissions() Permissions {
	return Permissions{
		CanView:          true,
		CanAdd:           true,
		CanEdit:          true,
		CanDelete:        true,
		CanManageBudgets: true,
		CanViewReports:   true,
	}
}

// Allows maps a permission to its flag.
func (p Permissions) Allows(perm Permission) bool {
	switch perm {
	case PermissionView:
		return p.CanView
	case PermissionAdd:
		return p.CanAdd
	case PermissionEdit:
		return p.CanEdit
	case PermissionDelete:
		return p.CanDelete
	case PermissionManageBudgets:
		return p.CanManageBudgets
	case PermissionViewReports:
		return p.CanViewReports
	default:
		return false
	}
}

// AuthorizedNumber is a granular per-number authorization row.
type AuthorizedNumber struct {
	Phone       string
	UserID      string
	Locale      string
	Permissions *Permissions
}

// LegacySession is a pre-granular login row; it grants full permissions.
type LegacySession struct {
	Phone  string
	UserID string
	Locale string
}

// AuthorizationRecord is the resolved identity of a conversant.
type AuthorizationRecord struct {
	Conversant  string
	UserID      string
	Locale      string
	Permissions *Permissions
	Legacy      bool
}
