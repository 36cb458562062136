package user

import (
	"errors"
	"time"
)

var (
	// ErrRoleNotGranted is returned when a role switch targets a role
	// the account was never granted.
	ErrRoleNotGranted = errors.New("role not granted to this account")
)

// Role is the closed set of operating modes an account can hold.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller
}

// ParseRoles converts raw role names into Roles, rejecting unknown names.
// An empty input defaults to a buyer-only account.
func ParseRoles(raw []string) ([]Role, error) {
	if len(raw) == 0 {
		return []Role{RoleBuyer}, nil
	}

	out := make([]Role, 0, len(raw))

	for _, s := range raw {
		r := Role(s)

		if !r.Valid() {
			return nil, errors.New("unknown role: " + s)
		}

		// de-duplicate
		seen := false
		for _, existing := range out {
			if existing == r {
				seen = true
				break
			}
		}

		if !seen {
			out = append(out, r)
		}
	}

	return out, nil
}

type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	Fullname         string    `json:"fullname"`
	PasswordHash     string    `json:"-"` // never expose hash in JSON
	Roles            []Role    `json:"role"`
	ActiveRole       Role      `json:"activeRole"`
	RefreshTokenHash *string   `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (u User) HasRole(r Role) bool {
	for _, granted := range u.Roles {
		if granted == r {
			return true
		}
	}

	return false
}

// ToggleActiveRole returns the role the account should switch into.
// There is no "set role to X" operation: a seller-active account always
// targets buyer and a buyer-active account always targets seller. The
// switch fails if the target was never granted.
func ToggleActiveRole(u User) (Role, error) {
	target := RoleSeller

	if u.ActiveRole == RoleSeller {
		target = RoleBuyer
	}

	if !u.HasRole(target) {
		return "", ErrRoleNotGranted
	}

	return target, nil
}

// Sanitized is the public view of an account: password hash and refresh
// token slot stripped.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	u.RefreshTokenHash = nil
	return u
}
