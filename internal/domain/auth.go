package domain

import "time"

// Caller is the identity making a request.
type Caller struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the caller has unrestricted access.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Token represents issued authentication token metadata.
type Token struct {
	ID        string
	SubjectID string
	Role      Role
	ExpiresAt time.Time
	IssuedAt  time.Time
}
