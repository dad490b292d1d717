package enums

import "fmt"

// AccountRole represents the login-level role attached to an account.
type AccountRole string

const (
	AccountRoleOwner    AccountRole = "owner"
	AccountRoleManager  AccountRole = "manager"
	AccountRoleStaff    AccountRole = "staff"
	AccountRolePromoter AccountRole = "promoter"
	AccountRoleCustomer AccountRole = "customer"
)

var validAccountRoles = []AccountRole{
	AccountRoleOwner,
	AccountRoleManager,
	AccountRoleStaff,
	AccountRolePromoter,
	AccountRoleCustomer,
}

// String implements fmt.Stringer.
func (r AccountRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known AccountRole.
func (r AccountRole) IsValid() bool {
	for _, candidate := range validAccountRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanManageEvents reports whether the role may administer events and lists.
func (r AccountRole) CanManageEvents() bool {
	return r == AccountRoleOwner || r == AccountRoleManager
}

// ParseAccountRole converts raw input into an AccountRole.
func ParseAccountRole(value string) (AccountRole, error) {
	for _, candidate := range validAccountRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account role %q", value)
}
