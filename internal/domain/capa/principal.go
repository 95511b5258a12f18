package capa

import "strings"

// Role is an authorization role supplied by the identity provider.
type Role string

const (
	RoleContributor     Role = "contributor"
	RoleCapaOwner       Role = "capa_owner"
	RoleQualityEngineer Role = "quality_engineer"
	RoleQualityManager  Role = "quality_manager"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Roles  []Role
}

func NewPrincipal(userID string, roles ...string) Principal {
	p := Principal{UserID: strings.TrimSpace(userID)}
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		p.Roles = append(p.Roles, Role(r))
	}
	return p
}

func (p Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (p Principal) HasAnyRole(roles []Role) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

func (p Principal) RoleNames() []string {
	out := make([]string, 0, len(p.Roles))
	for _, r := range p.Roles {
		out = append(out, string(r))
	}
	return out
}
