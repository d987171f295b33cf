// cmd/api/handlers.go
//
// HTTP surface.
//
// Context
// -------
// Every route is declared with its gate requirement up front, the way
// the decision engine expects: a verification-status set, an optional
// employment-status set, and the resolver that derives the target
// organization from the request shape.  Handlers behind a gate trust
// the identity the middleware stored in the request context.
//
// Each mutating handler finishes by building one audit envelope and
// handing it to the publisher.  Publication is fire-and-forget; the
// response the client sees is already written by then.

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/subvind/API-sub000/internal/audit"
	"github.com/subvind/API-sub000/internal/event"
	"github.com/subvind/API-sub000/internal/guard"
	"github.com/subvind/API-sub000/internal/principal"
	"github.com/subvind/API-sub000/internal/requestinfo"
	"github.com/subvind/API-sub000/internal/tenant"
	"github.com/subvind/API-sub000/internal/token"
)

// api bundles the wired collaborators behind the route table.
type api struct {
	engine     *guard.Engine
	tokens     *token.Service
	principals *principal.SQLStore
	orgs       *tenant.SQLDirectory
	cache      *tenant.Cache
	audits     *audit.Store
	pub        *event.Publisher
	info       *requestinfo.Extractor
}

// Gate requirements, one per operation class.
var (
	verifiedOnly = guard.Requirement{
		Verification: []principal.Verification{principal.Verified},
	}
	verifiedEmployee = guard.Requirement{
		Verification: []principal.Verification{principal.Verified},
		Employment:   []principal.EmploymentStatus{principal.EmploymentWorking},
	}
	ownerOnly = guard.Requirement{
		Verification: []principal.Verification{principal.Verified},
		OwnerOnly:    true,
	}
)

// routes builds the chi router.  Requirement and tenant resolver sit
// next to each route so the authorization shape of the API is readable
// in one place.
func (a *api) routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/token", a.mintToken)

	r.Route("/organizations", func(r chi.Router) {
		r.Get("/resolve", a.resolveOrganization)
		r.Get("/{id}", a.readOrganization)

		r.With(guard.Require(a.engine, verifiedOnly, nil)).
			Post("/", a.createOrganization)
		r.With(guard.Require(a.engine, verifiedEmployee, guard.TenantFromPath("id"))).
			Put("/{id}/hostnames", a.setHostname)
		r.With(guard.Require(a.engine, verifiedEmployee, guard.TenantFromPath("id"))).
			Get("/{id}/audit", a.listAudit)
		r.With(guard.Require(a.engine, ownerOnly, guard.TenantFromPath("id"))).
			Delete("/{id}", a.deleteOrganization)
	})

	// Account mutations gate on the organization that owns the target
	// account, resolved from the account row itself.  A request body can
	// never steer the gate at a different tenant's roster.
	r.Route("/accounts", func(r chi.Router) {
		r.With(guard.Require(a.engine, verifiedEmployee, a.tenantFromAccount("id"))).
			Put("/{id}/employment", a.setEmployment)
		r.With(guard.Require(a.engine, verifiedEmployee, a.tenantFromAccount("id"))).
			Put("/{id}/verification", a.setAccountVerification)
	})
	// User verification is self-service only; see the handler.
	r.With(guard.Require(a.engine, verifiedOnly, nil)).
		Put("/users/{id}/verification", a.setUserVerification)

	return r
}

/*────────────────────────────── auth ──────────────────────────────────────*/

// mintToken exchanges a known principal for a signed credential.  There
// is no password step here; upstream identity providers are expected to
// front this endpoint.
func (a *api) mintToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email          string `json:"email"`
		Type           string `json:"type"`
		OrganizationID string `json:"organizationId"`
	}
	body, ok := decode(w, r, &in)
	if !ok {
		return
	}

	var (
		subject string
		typ     token.PrincipalType
		orgID   *string
	)
	switch token.PrincipalType(in.Type) {
	case token.User:
		u, err := a.principals.UserByEmail(r.Context(), in.Email)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		subject, typ = u.ID, token.User
	case token.Account:
		acct, err := a.principals.AccountByEmail(r.Context(), in.OrganizationID, in.Email)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		subject, typ = acct.ID, token.Account
		orgID = &acct.OrganizationID
	case token.Guest:
		typ = token.Guest
	default:
		http.Error(w, "unknown principal type", http.StatusBadRequest)
		return
	}

	tok, err := a.tokens.Issue(subject, typ)
	if err != nil {
		zap.S().Errorw("token issue failed", "type", typ, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"token": tok})
	a.emit(r, "tokens", "create", event.Create, orgID,
		map[string]string{"subject": subject, "type": string(typ)}, body)
}

/*─────────────────────────── organizations ────────────────────────────────*/

func (a *api) createOrganization(w http.ResponseWriter, r *http.Request) {
	id, _ := guard.IdentityFrom(r.Context())
	if id == nil || id.Type != token.User {
		// Only owner-type principals may found an organization.
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	var in struct {
		UniqueName      string  `json:"uniqueName"`
		WebsiteHostname *string `json:"websiteHostname"`
	}
	body, ok := decode(w, r, &in)
	if !ok {
		return
	}
	if in.UniqueName == "" {
		http.Error(w, "uniqueName is required", http.StatusBadRequest)
		return
	}

	org := &tenant.Organization{
		ID:              uuid.NewString(),
		UniqueName:      in.UniqueName,
		WebsiteHostname: in.WebsiteHostname,
		OwnerUserID:     id.PrincipalID,
	}
	if err := a.orgs.Create(r.Context(), org); err != nil {
		zap.S().Errorw("organization create failed", "unique_name", in.UniqueName, "err", err)
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		a.emit(r, "organizations", "create", event.Create, nil, nil, body)
		return
	}

	writeJSON(w, http.StatusCreated, orgView(org))
	a.emit(r, "organizations", "create", event.Create, &org.ID, orgView(org), body)
}

func (a *api) readOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "id")
	org, err := a.orgs.ByID(r.Context(), orgID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, tenant.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	writeJSON(w, http.StatusOK, orgView(org))
	a.emit(r, "organizations", "read", event.Read, &org.ID, nil, "")
}

// resolveOrganization maps a hostname onto its organization through the
// read cache, the same path the multi-tenant edge uses.
func (a *api) resolveOrganization(w http.ResponseWriter, r *http.Request) {
	kind := tenant.HostnameKind(r.URL.Query().Get("kind"))
	hostname := r.URL.Query().Get("hostname")
	if hostname == "" {
		http.Error(w, "hostname is required", http.StatusBadRequest)
		return
	}

	org, err := a.cache.ByHostname(r.Context(), kind, hostname)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, orgView(org))
	a.emit(r, "organizations", "read", event.Read, &org.ID, nil, "")
}

func (a *api) setHostname(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "id")

	var in struct {
		Kind     string  `json:"kind"`
		Hostname *string `json:"hostname"`
	}
	body, ok := decode(w, r, &in)
	if !ok {
		return
	}

	err := a.orgs.SetHostname(r.Context(), orgID, tenant.HostnameKind(in.Kind), in.Hostname)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, tenant.ErrNotFound) {
			status = http.StatusNotFound
		}
		zap.S().Errorw("hostname update failed", "organization", orgID, "err", err)
		http.Error(w, http.StatusText(status), status)
		a.emit(r, "organizations", "update", event.Update, &orgID, nil, body)
		return
	}

	// Drop the stale cache entry so the next edge lookup re-reads.
	if in.Hostname != nil {
		a.cache.Invalidate(tenant.HostnameKind(in.Kind), *in.Hostname)
	}

	w.WriteHeader(http.StatusNoContent)
	a.emit(r, "organizations", "update", event.Update, &orgID, in, body)
}

func (a *api) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "id")

	if err := a.orgs.Delete(r.Context(), orgID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, tenant.ErrNotFound) {
			status = http.StatusNotFound
		}
		zap.S().Errorw("organization delete failed", "organization", orgID, "err", err)
		http.Error(w, http.StatusText(status), status)
		a.emit(r, "organizations", "delete", event.Delete, &orgID, nil, "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
	a.emit(r, "organizations", "delete", event.Delete, &orgID, nil, "")
}

// listAudit pages the relational audit trail for one organization.
func (a *api) listAudit(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "id")

	recs, err := a.audits.ByOrganization(r.Context(), orgID, 100)
	if err != nil {
		zap.S().Errorw("audit list failed", "organization", orgID, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": recs})
	a.emit(r, "organizations", "read", event.Read, &orgID, nil, "")
}

/*───────────────────────────── principals ─────────────────────────────────*/

func (a *api) setEmployment(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	var in struct {
		Status string `json:"status"`
	}
	body, ok := decode(w, r, &in)
	if !ok {
		return
	}

	status := principal.EmploymentStatus(in.Status)
	if !principal.ValidEmploymentStatus(status) {
		http.Error(w, "unknown employment status", http.StatusBadRequest)
		return
	}

	acct, err := a.principals.Find(r.Context(), accountID, token.Account)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, principal.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	if err := a.principals.SetEmployment(r.Context(), accountID, status); err != nil {
		zap.S().Errorw("employment update failed", "account", accountID, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		a.emit(r, "accounts", "update", event.Update, &acct.OrganizationID, nil, body)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	a.emit(r, "accounts", "update", event.Update, &acct.OrganizationID,
		map[string]string{"accountId": accountID, "status": in.Status}, body)
}

// setAccountVerification flips a delegated principal's trust state.
// The route's gate already required employment in (or ownership of) the
// account's own organization.
func (a *api) setAccountVerification(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	var in struct {
		Status string `json:"status"`
	}
	body, ok := decode(w, r, &in)
	if !ok {
		return
	}

	v := principal.Verification(in.Status)
	if !principal.ValidVerification(v) {
		http.Error(w, "unknown verification status", http.StatusBadRequest)
		return
	}

	acct, err := a.principals.Find(r.Context(), accountID, token.Account)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, principal.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	if err := a.principals.SetVerification(r.Context(), accountID, token.Account, v); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, principal.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	a.emit(r, "accounts", "update", event.Update, &acct.OrganizationID,
		map[string]string{"accountId": accountID, "status": in.Status}, body)
}

// setUserVerification is self-service: a user may move only their own
// trust state (the email-confirmation callback lands here).  Platform-
// wide bans are an operator action, not an API one.
func (a *api) setUserVerification(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	id, _ := guard.IdentityFrom(r.Context())
	if id == nil || id.Type != token.User || id.PrincipalID != userID {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	var in struct {
		Status string `json:"status"`
	}
	body, ok := decode(w, r, &in)
	if !ok {
		return
	}

	v := principal.Verification(in.Status)
	if !principal.ValidVerification(v) {
		http.Error(w, "unknown verification status", http.StatusBadRequest)
		return
	}

	if err := a.principals.SetVerification(r.Context(), userID, token.User, v); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, principal.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	a.emit(r, "users", "update", event.Update, nil,
		map[string]string{"userId": userID, "status": in.Status}, body)
}

/*────────────────────────────── helpers ───────────────────────────────────*/

// tenantFromAccount resolves the gate's organization from the target
// account's own row.  Nothing in the request body can point the gate at
// a roster the resource does not belong to.
func (a *api) tenantFromAccount(param string) guard.TenantResolver {
	return func(r *http.Request) (string, bool) {
		id := chi.URLParam(r, param)
		if id == "" {
			return "", false
		}
		p, err := a.principals.Find(r.Context(), id, token.Account)
		if err != nil {
			return "", false
		}
		return p.OrganizationID, true
	}
}

// emit builds the envelope for one completed call site and publishes it.
// Publication never blocks or fails the response.
func (a *api) emit(r *http.Request, resource, operation string, crud event.CRUD, orgID *string, payload any, body string) {
	env := event.New(resource, r, body, crud, orgID, payload, a.info.FromRequest(r))
	a.pub.Publish(resource, operation, env)
}

// decode reads the full body (kept for the audit envelope) and
// unmarshals it into dst.  On failure it writes the 400 itself.
func decode(w http.ResponseWriter, r *http.Request, dst any) (string, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return "", false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		http.Error(w, "malformed JSON body", http.StatusBadRequest)
		return "", false
	}
	return string(raw), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// orgView is the wire shape for an organization.
func orgView(o *tenant.Organization) map[string]any {
	return map[string]any{
		"id":                o.ID,
		"uniqueName":        o.UniqueName,
		"websiteHostname":   o.WebsiteHostname,
		"adminHostname":     o.AdminHostname,
		"homeHostname":      o.HomeHostname,
		"storeHostname":     o.StoreHostname,
		"mediaHostname":     o.MediaHostname,
		"workspaceHostname": o.WorkspaceHostname,
		"ownerUserId":       o.OwnerUserID,
	}
}
