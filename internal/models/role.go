package models

// Role is the caller's role within a guild, asserted by the upstream identity layer.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReviewer Role = "reviewer"
	RoleMember   Role = "member"
)
