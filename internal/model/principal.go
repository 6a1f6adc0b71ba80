package model

import "github.com/google/uuid"

type UserRole string

const (
	UserRoleCitizen UserRole = "CITIZEN"
	UserRoleFiscal  UserRole = "FISCAL"
	UserRoleManager UserRole = "MANAGER"
	UserRoleAdmin   UserRole = "ADMIN"
)

type Principal struct {
	UserID uuid.UUID
	Role   UserRole
}

func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin
}

func (p Principal) IsManager() bool {
	return p.Role == UserRoleManager
}

func (p Principal) IsFiscal() bool {
	return p.Role == UserRoleFiscal
}

// CanManagePricing covers zone and price-config administration.
func (p Principal) CanManagePricing() bool {
	return p.IsAdmin() || p.IsManager()
}

// CanPatrol covers field verification and infringement registration.
func (p Principal) CanPatrol() bool {
	return p.IsFiscal() || p.IsAdmin() || p.IsManager()
}
