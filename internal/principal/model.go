// internal/principal/model.go
//
// Principal rows and status dimensions.
//
// Context
// -------
// Two kinds of principal exist.  A *user* is an owner principal: it may
// own organizations and is scoped to none.  An *account* is a delegated
// principal scoped to exactly one organization, carrying a membership
// role and, when that role is employee, an employment sub-record.
//
// Both kinds share the verification dimension (a principal-wide trust
// state); only employment gates privileged tenant writes, and only the
// Working status authorizes them.

package principal

import (
	"time"

	"github.com/subvind/API-sub000/internal/token"
)

// Verification is the principal-wide trust state.  New principals start
// Pending.
type Verification string

const (
	Pending  Verification = "pending"
	Verified Verification = "verified"
	Banned   Verification = "banned"
)

// Role is an account's membership relation to its organization.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleEmployee Role = "employee"
	RoleSupplier Role = "supplier"
	RoleClient   Role = "client"
)

// EmploymentStatus is the tenant-scoped working-relationship state.
type EmploymentStatus string

const (
	EmploymentVoid      EmploymentStatus = "void"
	EmploymentHiring    EmploymentStatus = "hiring"
	EmploymentRejected  EmploymentStatus = "rejected"
	EmploymentWorking   EmploymentStatus = "working"
	EmploymentSuspended EmploymentStatus = "suspended"
	EmploymentFired     EmploymentStatus = "fired"
	EmploymentQuit      EmploymentStatus = "quit"
	EmploymentBanned    EmploymentStatus = "banned"
)

// ValidVerification reports whether v is one of the declared states.
func ValidVerification(v Verification) bool {
	switch v {
	case Pending, Verified, Banned:
		return true
	}
	return false
}

// ValidEmploymentStatus reports whether s is one of the declared
// states.  Transition handlers reject anything else before touching the
// database.
func ValidEmploymentStatus(s EmploymentStatus) bool {
	switch s {
	case EmploymentVoid, EmploymentHiring, EmploymentRejected,
		EmploymentWorking, EmploymentSuspended, EmploymentFired,
		EmploymentQuit, EmploymentBanned:
		return true
	}
	return false
}

// User mirrors one row in the `user` table.
type User struct {
	ID                    string       `db:"id"`
	Email                 string       `db:"email"`
	Username              string       `db:"username"`
	Verification          Verification `db:"verification"`
	DefaultOrganizationID *string      `db:"default_organization_id"`
	CreatedAt             time.Time    `db:"created_at"`
	UpdatedAt             time.Time    `db:"updated_at"`
}

// Account mirrors one row in the `account` table.  Usernames and emails
// are unique per organization, not globally.
type Account struct {
	ID             string       `db:"id"`
	OrganizationID string       `db:"organization_id"`
	Username       string       `db:"username"`
	Email          string       `db:"email"`
	Verification   Verification `db:"verification"`
	Role           Role         `db:"role"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

// Employment mirrors the `employment` sub-record keyed by account.
type Employment struct {
	AccountID string           `db:"account_id"`
	Status    EmploymentStatus `db:"status"`
	Title     string           `db:"title"`
	UpdatedAt time.Time        `db:"updated_at"`
}

// Principal is the flattened result the authorization engine consumes.
// Employment is nil for users, guests, and accounts with no employment
// row.
type Principal struct {
	ID             string
	Type           token.PrincipalType
	Verification   Verification
	OrganizationID string // empty for users
	Employment     *Employment
}
