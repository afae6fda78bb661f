// Package access decides which student records a caller may read or mutate.
package access

import (
	"github.com/spec-kit/enrollment-service/internal/domain"
	apperrors "github.com/spec-kit/enrollment-service/pkg/util/errorutil"
)

// Operation is the kind of access requested on a record.
type Operation string

const (
	OpRead  Operation = "read"
	OpWrite Operation = "write"
)

// policy decides access for one role.
type policy func(caller domain.Caller, record *domain.Student, op Operation) bool

var policies = map[domain.Role]policy{
	domain.RoleAdmin:   allowAll,
	domain.RoleStudent: ownerOnly,
}

func allowAll(domain.Caller, *domain.Student, Operation) bool {
	return true
}

func ownerOnly(caller domain.Caller, record *domain.Student, _ Operation) bool {
	return record.OwnedBy(caller.ID)
}

// Allowed reports whether caller may perform op on record.
func Allowed(caller domain.Caller, record *domain.Student, op Operation) bool {
	if record == nil {
		return false
	}
	p, ok := policies[caller.Role]
	if !ok {
		return false
	}
	return p(caller, record, op)
}

// Authorize returns a Forbidden error when caller may not perform op on record.
func Authorize(caller domain.Caller, record *domain.Student, op Operation) error {
	if Allowed(caller, record, op) {
		return nil
	}
	return apperrors.NewForbidden("forbidden")
}
