// ABOUTME: Principal identity and permission checks for admin users
// ABOUTME: Mirrors the host framework's has_perm semantics for staff and superusers

package auth

import "sort"

// Principal is an authenticated admin user together with their granted permission codes.
type Principal struct {
	ID          string
	Username    string
	IsStaff     bool
	IsSuperuser bool
	IsActive    bool
	Permissions map[string]struct{} // "app_label.codename"
}

// NewPrincipal builds a Principal with the given permission codes.
func NewPrincipal(id, username string, staff, superuser, active bool, perms ...string) *Principal {
	p := &Principal{
		ID:          id,
		Username:    username,
		IsStaff:     staff,
		IsSuperuser: superuser,
		IsActive:    active,
		Permissions: make(map[string]struct{}, len(perms)),
	}
	for _, perm := range perms {
		p.Permissions[perm] = struct{}{}
	}
	return p
}

// HasPerm reports whether the principal holds the permission code.
// Inactive principals hold nothing; active superusers hold everything.
func (p *Principal) HasPerm(code string) bool {
	if p == nil || !p.IsActive {
		return false
	}
	if p.IsSuperuser {
		return true
	}
	_, ok := p.Permissions[code]
	return ok
}

// CanAccessAdmin reports whether the principal may use the admin UI.
func (p *Principal) CanAccessAdmin() bool {
	return p != nil && p.IsActive && p.IsStaff
}

// PermissionList returns the granted codes sorted.
func (p *Principal) PermissionList() []string {
	perms := make([]string, 0, len(p.Permissions))
	for code := range p.Permissions {
		perms = append(perms, code)
	}
	sort.Strings(perms)
	return perms
}
