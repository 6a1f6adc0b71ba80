package model

import "github.com/google/uuid"

type ScopeType string

const (
	ScopeAll ScopeType = "ALL"
	ScopeOwn ScopeType = "OWN"
)

// Scope limits which fiscal records a principal may list.
type Scope struct {
	Type   ScopeType
	UserID *uuid.UUID
}

func ScopeFor(p Principal) Scope {
	if p.CanManagePricing() {
		return Scope{Type: ScopeAll}
	}
	id := p.UserID
	return Scope{Type: ScopeOwn, UserID: &id}
}

func (s Scope) AllowsUser(userID uuid.UUID) bool {
	if s.Type == ScopeAll {
		return true
	}
	return s.UserID != nil && *s.UserID == userID
}
