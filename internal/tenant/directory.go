// internal/tenant/directory.go
//
// Organization lookups.
//
// Context
// -------
// Three direct lookups (id, unique name, hostname) plus the roster
// aggregate used only by the authorization engine.  Hostname resolution
// implements the free-subdomain convention: a hostname with exactly four
// dot-separated labels is `<unique_name>.<app>.<parent>.<tld>`, so the
// first label is treated as the organization's unique name and the
// per-kind hostname column is never consulted.  Any other label count
// resolves by exact match on that column.  Neither path falls back to
// the other.
//
// Failure: every lookup miss is ErrNotFound.  Gate callers fold it into
// a deny; nothing here distinguishes "no such organization" from "not a
// member" on the wire.

package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/subvind/API-sub000/internal/principal"
)

// ErrNotFound is returned when no organization matches a lookup.
var ErrNotFound = errors.New("organization not found")

// freeSubdomainLabels is the label count that marks a shared-parent
// subdomain (e.g. `acme.platform.example.com`).
const freeSubdomainLabels = 4

// Directory is the lookup surface consumed by the authorization engine
// and the HTTP edge.
type Directory interface {
	ByID(ctx context.Context, id string) (*Organization, error)
	ByUniqueName(ctx context.Context, name string) (*Organization, error)
	ByHostname(ctx context.Context, kind HostnameKind, hostname string) (*Organization, error)
	RosterWithEmployment(ctx context.Context, orgID string) (*Roster, error)
	OwnerPrincipalID(ctx context.Context, orgID string) (string, error)
}

const orgColumns = `id, unique_name,
       website_hostname, admin_hostname, home_hostname,
       store_hostname, media_hostname, workspace_hostname,
       owner_user_id, created_at, updated_at`

// SQLDirectory implements Directory against the shared MySQL pool.
type SQLDirectory struct {
	db *sqlx.DB
}

// NewSQLDirectory wraps db.  The pool is owned by the caller.
func NewSQLDirectory(db *sqlx.DB) *SQLDirectory {
	return &SQLDirectory{db: db}
}

// ByID fetches a single organization row.
func (d *SQLDirectory) ByID(ctx context.Context, id string) (*Organization, error) {
	q := `SELECT ` + orgColumns + ` FROM organization WHERE id = ? LIMIT 1`
	return d.getOrg(ctx, q, id)
}

// ByUniqueName fetches the organization owning a globally unique name.
func (d *SQLDirectory) ByUniqueName(ctx context.Context, name string) (*Organization, error) {
	q := `SELECT ` + orgColumns + ` FROM organization WHERE unique_name = ? LIMIT 1`
	return d.getOrg(ctx, q, name)
}

// ByHostname resolves a hostname for one of the six surfaces.  Exactly
// four labels means the free-subdomain convention applies; the first
// label is the unique name.  Otherwise the per-kind column is matched
// exactly.
func (d *SQLDirectory) ByHostname(ctx context.Context, kind HostnameKind, hostname string) (*Organization, error) {
	col, ok := hostnameColumns[kind]
	if !ok {
		return nil, ErrNotFound
	}

	labels := strings.Split(hostname, ".")
	if len(labels) == freeSubdomainLabels {
		return d.ByUniqueName(ctx, labels[0])
	}

	q := `SELECT ` + orgColumns + ` FROM organization WHERE ` + col + ` = ? LIMIT 1`
	return d.getOrg(ctx, q, hostname)
}

// OwnerPrincipalID returns the owning user id for an organization.
func (d *SQLDirectory) OwnerPrincipalID(ctx context.Context, orgID string) (string, error) {
	const q = `SELECT owner_user_id FROM organization WHERE id = ? LIMIT 1`
	var owner string
	if err := d.db.GetContext(ctx, &owner, q, orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("owner of %s: %w", orgID, err)
	}
	return owner, nil
}

// RosterWithEmployment loads the organization plus its delegated
// principals with nested employment records.  Two queries; the member
// join is LEFT so accounts without an employment row still appear.
func (d *SQLDirectory) RosterWithEmployment(ctx context.Context, orgID string) (*Roster, error) {
	org, err := d.ByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	const q = `
        SELECT a.id, a.organization_id, a.username, a.email,
               a.verification, a.role,
               e.status AS emp_status, e.title AS emp_title
        FROM   account a
        LEFT JOIN employment e ON e.account_id = a.id
        WHERE  a.organization_id = ?`

	rows, err := d.db.QueryxContext(ctx, q, orgID)
	if err != nil {
		return nil, fmt.Errorf("roster of %s: %w", orgID, err)
	}
	defer rows.Close()

	roster := &Roster{Organization: *org}
	for rows.Next() {
		var row struct {
			ID             string                      `db:"id"`
			OrganizationID string                      `db:"organization_id"`
			Username       string                      `db:"username"`
			Email          string                      `db:"email"`
			Verification   principal.Verification      `db:"verification"`
			Role           principal.Role              `db:"role"`
			EmpStatus      *principal.EmploymentStatus `db:"emp_status"`
			EmpTitle       *string                     `db:"emp_title"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("roster scan: %w", err)
		}

		m := Member{Account: principal.Account{
			ID:             row.ID,
			OrganizationID: row.OrganizationID,
			Username:       row.Username,
			Email:          row.Email,
			Verification:   row.Verification,
			Role:           row.Role,
		}}
		if row.EmpStatus != nil {
			m.Employment = &principal.Employment{
				AccountID: row.ID,
				Status:    *row.EmpStatus,
			}
			if row.EmpTitle != nil {
				m.Employment.Title = *row.EmpTitle
			}
		}
		roster.Members = append(roster.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roster rows: %w", err)
	}
	return roster, nil
}

// Create inserts a new organization row.  Uniqueness of the name and of
// any non-NULL hostname is enforced by the schema; duplicate-key errors
// surface to the caller unchanged.
func (d *SQLDirectory) Create(ctx context.Context, org *Organization) error {
	const q = `
        INSERT INTO organization
            (id, unique_name,
             website_hostname, admin_hostname, home_hostname,
             store_hostname, media_hostname, workspace_hostname,
             owner_user_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`
	_, err := d.db.ExecContext(ctx, q,
		org.ID, org.UniqueName,
		org.WebsiteHostname, org.AdminHostname, org.HomeHostname,
		org.StoreHostname, org.MediaHostname, org.WorkspaceHostname,
		org.OwnerUserID)
	if err != nil {
		return fmt.Errorf("create organization %s: %w", org.UniqueName, err)
	}
	return nil
}

// SetHostname points one of the six hostname columns at a new value, or
// clears it when hostname is nil.
func (d *SQLDirectory) SetHostname(ctx context.Context, orgID string, kind HostnameKind, hostname *string) error {
	col, ok := hostnameColumns[kind]
	if !ok {
		return fmt.Errorf("set hostname: unknown kind %q", kind)
	}
	q := `UPDATE organization SET ` + col + ` = ?, updated_at = NOW() WHERE id = ?`
	res, err := d.db.ExecContext(ctx, q, hostname, orgID)
	if err != nil {
		return fmt.Errorf("set %s hostname of %s: %w", kind, orgID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an organization row.  Dependent rows cascade at the
// schema level.
func (d *SQLDirectory) Delete(ctx context.Context, orgID string) error {
	const q = `DELETE FROM organization WHERE id = ?`
	res, err := d.db.ExecContext(ctx, q, orgID)
	if err != nil {
		return fmt.Errorf("delete organization %s: %w", orgID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *SQLDirectory) getOrg(ctx context.Context, q string, arg any) (*Organization, error) {
	var org Organization
	if err := d.db.GetContext(ctx, &org, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("organization lookup: %w", err)
	}
	return &org, nil
}
