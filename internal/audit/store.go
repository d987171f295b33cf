// internal/audit/store.go
//
// Create-once, read-many, bulk-delete-by-age access to audit rows.

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store runs on the shared MySQL pool.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps db.  The pool is owned by the caller.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Insert persists one record.  Records are immutable after insertion.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	const q = `
        INSERT INTO audit_event
               (id, category, url, verb, headers, body, crud, charge,
                organization_id, payload, event_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())`

	_, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.Category, rec.URL, rec.Verb, rec.Headers, rec.Body,
		rec.CRUD, rec.Charge, rec.OrganizationID, rec.Payload, rec.EventAt)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ByOrganization lists records for one tenant, newest first.
func (s *Store) ByOrganization(ctx context.Context, orgID string, limit int) ([]Record, error) {
	const q = `
        SELECT id, category, url, verb, headers, body, crud, charge,
               organization_id, payload, event_at, created_at
        FROM   audit_event
        WHERE  organization_id = ?
        ORDER  BY event_at DESC
        LIMIT  ?`

	var recs []Record
	if err := s.db.SelectContext(ctx, &recs, q, orgID, limit); err != nil {
		return nil, fmt.Errorf("audit events of %s: %w", orgID, err)
	}
	return recs, nil
}

// DeleteOlderThan bulk-removes every record whose own event timestamp
// predates the cutoff.  Insertion time is irrelevant.  The deleted count
// is informational only.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_event WHERE event_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
