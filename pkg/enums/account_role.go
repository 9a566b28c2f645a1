package enums

import "fmt"

// AccountRole distinguishes marketplace users from dispute jurors. The two
// roles are mutually exclusive for a given account.
type AccountRole string

const (
	AccountRoleUser  AccountRole = "user"
	AccountRoleJuror AccountRole = "juror"
)

var validAccountRoles = []AccountRole{
	AccountRoleUser,
	AccountRoleJuror,
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

// ParseAccountRole converts raw input into an AccountRole.
func ParseAccountRole(value string) (AccountRole, error) {
	for _, candidate := range validAccountRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account role %q", value)
}
