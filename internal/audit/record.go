// internal/audit/record.go
//
// Relational projection of one consumed event.

package audit

import "time"

// Record mirrors one row in the `audit_event` table.  Headers, body,
// and payload arrive pre-serialized as text; the consumer owns that
// flattening.  EventAt is the envelope's own timestamp, and retention is
// measured from it, so delayed consumption never extends a record's
// life.
type Record struct {
	ID             string    `db:"id"`
	Category       string    `db:"category"`
	URL            string    `db:"url"`
	Verb           string    `db:"verb"`
	Headers        string    `db:"headers"`
	Body           string    `db:"body"`
	CRUD           string    `db:"crud"`
	Charge         string    `db:"charge"`
	OrganizationID *string   `db:"organization_id"`
	Payload        string    `db:"payload"`
	EventAt        time.Time `db:"event_at"`
	CreatedAt      time.Time `db:"created_at"`
}
