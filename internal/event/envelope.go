// internal/event/envelope.go
//
// The audit/analytics envelope built at each operation's completion
// point.
//
// Context
// -------
// One envelope describes one API call: what was done (CRUD kind), where
// (URL, verb), on whose dime (charge classification), and with what
// result (payload).  It is built once, immutable, published best-effort,
// and never retried.  Tenant-scoped events carry the organization id;
// platform-scoped events carry none.

package event

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/subvind/API-sub000/internal/requestinfo"
)

// CRUD classifies the operation kind.
type CRUD string

const (
	Create CRUD = "create"
	Read   CRUD = "read"
	Update CRUD = "update"
	Delete CRUD = "delete"
)

// Charge classifies who an event is attributable to.
type Charge string

const (
	ChargeTenant   Charge = "tenant"
	ChargePlatform Charge = "platform"
)

// Envelope is the immutable record published per call site.
type Envelope struct {
	ID             string              `json:"id"`
	Category       string              `json:"category"`
	URL            string              `json:"url"`
	Verb           string              `json:"verb"`
	Headers        map[string][]string `json:"headers"`
	Body           string              `json:"body"`
	CRUD           CRUD                `json:"crud"`
	Charge         Charge              `json:"charge"`
	OrganizationID *string             `json:"organizationId,omitempty"`
	Payload        json.RawMessage     `json:"payload,omitempty"`
	UA             string              `json:"ua,omitempty"`
	CountryISO     string              `json:"countryIso,omitempty"`
	At             time.Time           `json:"at"`
}

// New builds an envelope from the inbound request and the operation's
// outcome.  orgID nil means the event is platform-scoped.  payload may
// be anything JSON-encodable; an unencodable payload is recorded empty
// rather than failing the call site.
func New(category string, r *http.Request, body string, crud CRUD, orgID *string, payload any, info requestinfo.Info) Envelope {
	env := Envelope{
		ID:             uuid.NewString(),
		Category:       category,
		URL:            r.URL.String(),
		Verb:           r.Method,
		Headers:        copyHeaders(r.Header),
		Body:           body,
		CRUD:           crud,
		OrganizationID: orgID,
		Charge:         ChargePlatform,
		UA:             info.UA,
		CountryISO:     info.CountryISO,
		At:             time.Now().UTC(),
	}
	if orgID != nil && *orgID != "" {
		env.Charge = ChargeTenant
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			env.Payload = raw
		}
	}
	return env
}

// copyHeaders clones the header map.  The credential never lands in the
// audit trail.
func copyHeaders(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, vs := range h {
		if k == "Authorization" || k == "Cookie" {
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// Topic keys one resource operation, e.g. Topic("accounts", "create").
func Topic(resource, operation string) string {
	return resource + "/" + operation
}

// FamilyPattern is the wildcard that feeds one consumer queue with a
// whole resource family, e.g. every accounts.* operation.
func FamilyPattern(resource string) string {
	return resource + "/#"
}
