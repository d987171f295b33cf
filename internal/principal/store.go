// internal/principal/store.go
//
// SQL lookups for principals.
//
// The Store interface is all the authorization engine needs; the SQL
// implementation lives on the shared global pool.  A lookup miss is
// ErrNotFound, which gate callers fold into a deny rather than surfacing
// as a distinct client error.

package principal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/subvind/API-sub000/internal/token"
)

// ErrNotFound is returned for any principal lookup miss.
var ErrNotFound = errors.New("principal not found")

// Store resolves a principal id + type to its status record.
type Store interface {
	Find(ctx context.Context, id string, typ token.PrincipalType) (*Principal, error)
}

// SQLStore implements Store against the shared MySQL pool.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps db.  The pool is owned by the caller.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Find resolves id per the token's principal-type claim.  Guests have no
// backing row and always miss.
func (s *SQLStore) Find(ctx context.Context, id string, typ token.PrincipalType) (*Principal, error) {
	switch typ {
	case token.User:
		return s.findUser(ctx, id)
	case token.Account:
		return s.findAccount(ctx, id)
	default:
		return nil, ErrNotFound
	}
}

func (s *SQLStore) findUser(ctx context.Context, id string) (*Principal, error) {
	const q = `
        SELECT id, verification
        FROM   user
        WHERE  id = ?
        LIMIT  1`

	var row struct {
		ID           string       `db:"id"`
		Verification Verification `db:"verification"`
	}
	if err := s.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}

	return &Principal{
		ID:           row.ID,
		Type:         token.User,
		Verification: row.Verification,
	}, nil
}

func (s *SQLStore) findAccount(ctx context.Context, id string) (*Principal, error) {
	const q = `
        SELECT a.id, a.organization_id, a.verification,
               e.account_id AS emp_account_id, e.status AS emp_status
        FROM   account a
        LEFT JOIN employment e ON e.account_id = a.id
        WHERE  a.id = ?
        LIMIT  1`

	var row struct {
		ID             string            `db:"id"`
		OrganizationID string            `db:"organization_id"`
		Verification   Verification      `db:"verification"`
		EmpAccountID   *string           `db:"emp_account_id"`
		EmpStatus      *EmploymentStatus `db:"emp_status"`
	}
	if err := s.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find account %s: %w", id, err)
	}

	p := &Principal{
		ID:             row.ID,
		Type:           token.Account,
		Verification:   row.Verification,
		OrganizationID: row.OrganizationID,
	}
	if row.EmpAccountID != nil && row.EmpStatus != nil {
		p.Employment = &Employment{AccountID: *row.EmpAccountID, Status: *row.EmpStatus}
	}
	return p, nil
}

//
// lookups used by the token mint endpoint
//

// UserByEmail returns the user row for a globally unique email.
func (s *SQLStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	const q = `
        SELECT id, email, username, verification, default_organization_id,
               created_at, updated_at
        FROM   user
        WHERE  email = ?
        LIMIT  1`
	var u User
	if err := s.db.GetContext(ctx, &u, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("user by email: %w", err)
	}
	return &u, nil
}

// AccountByEmail returns the account row unique per (email, organization).
func (s *SQLStore) AccountByEmail(ctx context.Context, orgID, email string) (*Account, error) {
	const q = `
        SELECT id, organization_id, username, email, verification, role,
               created_at, updated_at
        FROM   account
        WHERE  organization_id = ? AND email = ?
        LIMIT  1`
	var a Account
	if err := s.db.GetContext(ctx, &a, q, orgID, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("account by email: %w", err)
	}
	return &a, nil
}

//
// status transitions
//

// SetVerification moves a principal's trust state.  typ selects the
// table; unknown types are a programming error surfaced as ErrNotFound.
func (s *SQLStore) SetVerification(ctx context.Context, id string, typ token.PrincipalType, v Verification) error {
	var table string
	switch typ {
	case token.User:
		table = "user"
	case token.Account:
		table = "account"
	default:
		return ErrNotFound
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET verification = ?, updated_at = NOW() WHERE id = ?`, v, id)
	if err != nil {
		return fmt.Errorf("set verification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEmployment upserts the employment sub-record for an account.  The
// next gate evaluation observes the new status; previously issued tokens
// stay valid until expiry.
func (s *SQLStore) SetEmployment(ctx context.Context, accountID string, status EmploymentStatus) error {
	const q = `
        INSERT INTO employment (account_id, status, updated_at)
        VALUES (?, ?, NOW())
        ON DUPLICATE KEY UPDATE status = VALUES(status), updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, q, accountID, status); err != nil {
		return fmt.Errorf("set employment: %w", err)
	}
	return nil
}
