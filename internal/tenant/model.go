// internal/tenant/model.go
//
// Organization rows and hostname kinds.
//
// Context
// -------
// Every resource in the system belongs to exactly one Organization.  An
// organization has a globally unique name and up to six optional, also
// globally unique, hostnames—one per application surface.  Ownership
// points at exactly one user; delegated principals hang off the roster.
//
// Notes
// -----
//   - Hostname columns are nullable; uniqueness is enforced by the
//     schema only for non-NULL values.
//   - Oxford commas, two spaces after periods.

package tenant

import (
	"time"

	"github.com/subvind/API-sub000/internal/principal"
)

// HostnameKind selects which of the six hostname columns a lookup
// targets.
type HostnameKind string

const (
	HostnameWebsite   HostnameKind = "website"
	HostnameAdmin     HostnameKind = "admin"
	HostnameHome      HostnameKind = "home"
	HostnameStore     HostnameKind = "store"
	HostnameMedia     HostnameKind = "media"
	HostnameWorkspace HostnameKind = "workspace"
)

// hostnameColumns whitelists the column per kind; lookups never splice
// caller input into SQL identifiers.
var hostnameColumns = map[HostnameKind]string{
	HostnameWebsite:   "website_hostname",
	HostnameAdmin:     "admin_hostname",
	HostnameHome:      "home_hostname",
	HostnameStore:     "store_hostname",
	HostnameMedia:     "media_hostname",
	HostnameWorkspace: "workspace_hostname",
}

// Organization mirrors one row in the `organization` table.
type Organization struct {
	ID                string    `db:"id"`
	UniqueName        string    `db:"unique_name"`
	WebsiteHostname   *string   `db:"website_hostname"`
	AdminHostname     *string   `db:"admin_hostname"`
	HomeHostname      *string   `db:"home_hostname"`
	StoreHostname     *string   `db:"store_hostname"`
	MediaHostname     *string   `db:"media_hostname"`
	WorkspaceHostname *string   `db:"workspace_hostname"`
	OwnerUserID       string    `db:"owner_user_id"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// Member pairs an account with its optional employment sub-record.
type Member struct {
	Account    principal.Account
	Employment *principal.Employment
}

// Roster is the expensive aggregate the authorization engine loads: the
// organization plus every delegated principal with employment attached.
// Nothing on an ordinary read path should touch it.
type Roster struct {
	Organization Organization
	Members      []Member
}

// FindMember returns the roster entry for an account id, or nil.
func (r *Roster) FindMember(accountID string) *Member {
	for i := range r.Members {
		if r.Members[i].Account.ID == accountID {
			return &r.Members[i]
		}
	}
	return nil
}
