// internal/guard/guard_test.go
//
// Gate semantics against fake stores.
//
// Run: go test ./internal/guard -v

package guard

import (
	"context"
	"testing"
	"time"

	"github.com/subvind/API-sub000/internal/principal"
	"github.com/subvind/API-sub000/internal/tenant"
	"github.com/subvind/API-sub000/internal/token"
)

//
// fakes
//

type fakePrincipals struct {
	records map[string]*principal.Principal
	calls   int
}

func (f *fakePrincipals) Find(_ context.Context, id string, typ token.PrincipalType) (*principal.Principal, error) {
	f.calls++
	p, ok := f.records[id]
	if !ok || p.Type != typ {
		return nil, principal.ErrNotFound
	}
	return p, nil
}

type fakeTenants struct {
	roster      *tenant.Roster
	rosterCalls int
}

func (f *fakeTenants) ByID(context.Context, string) (*tenant.Organization, error) {
	if f.roster == nil {
		return nil, tenant.ErrNotFound
	}
	return &f.roster.Organization, nil
}

func (f *fakeTenants) ByUniqueName(context.Context, string) (*tenant.Organization, error) {
	return f.ByID(context.Background(), "")
}

func (f *fakeTenants) ByHostname(context.Context, tenant.HostnameKind, string) (*tenant.Organization, error) {
	return f.ByID(context.Background(), "")
}

func (f *fakeTenants) RosterWithEmployment(_ context.Context, orgID string) (*tenant.Roster, error) {
	f.rosterCalls++
	if f.roster == nil || f.roster.Organization.ID != orgID {
		return nil, tenant.ErrNotFound
	}
	return f.roster, nil
}

func (f *fakeTenants) OwnerPrincipalID(_ context.Context, orgID string) (string, error) {
	if f.roster == nil || f.roster.Organization.ID != orgID {
		return "", tenant.ErrNotFound
	}
	return f.roster.Organization.OwnerUserID, nil
}

//
// fixture
//

const testSecret = "gate-test-secret"

func working(status principal.EmploymentStatus) *principal.Employment {
	return &principal.Employment{AccountID: "acct-1", Status: status}
}

func newFixture(empStatus principal.EmploymentStatus) (*Engine, *fakePrincipals, *fakeTenants, *token.Service) {
	tokens := token.NewService(testSecret, time.Hour)

	principals := &fakePrincipals{records: map[string]*principal.Principal{
		"user-owner": {ID: "user-owner", Type: token.User, Verification: principal.Verified},
		"user-other": {ID: "user-other", Type: token.User, Verification: principal.Verified},
		"user-pending": {
			ID: "user-pending", Type: token.User, Verification: principal.Pending,
		},
		"acct-1": {
			ID: "acct-1", Type: token.Account, Verification: principal.Verified,
			OrganizationID: "org-1", Employment: working(empStatus),
		},
	}}

	tenants := &fakeTenants{roster: &tenant.Roster{
		Organization: tenant.Organization{ID: "org-1", UniqueName: "acme", OwnerUserID: "user-owner"},
		Members: []tenant.Member{
			{
				Account:    principal.Account{ID: "acct-1", OrganizationID: "org-1", Role: principal.RoleEmployee},
				Employment: working(empStatus),
			},
		},
	}}

	return New(tokens, principals, tenants), principals, tenants, tokens
}

func bearerFor(t *testing.T, tokens *token.Service, id string, typ token.PrincipalType) string {
	t.Helper()
	tok, err := tokens.Issue(id, typ)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

func tenantOrg1() (string, bool) { return "org-1", true }

var (
	requireVerified = Requirement{Verification: []principal.Verification{principal.Verified}}
	requireWorking  = Requirement{
		Verification: []principal.Verification{principal.Verified},
		Employment:   []principal.EmploymentStatus{principal.EmploymentWorking},
	}
)

//
// verification gate
//

func TestNoRequirementAllowsAnonymous(t *testing.T) {
	e, principals, tenants, _ := newFixture(principal.EmploymentWorking)

	dec := e.Decide(context.Background(), "", false, Requirement{}, nil)
	if dec.Result != Allow {
		t.Fatalf("expected Allow, got %v", dec.Result)
	}
	if principals.calls != 0 || tenants.rosterCalls != 0 {
		t.Fatal("no store may be consulted when nothing is required")
	}
}

func TestMissingCredentialDenies(t *testing.T) {
	e, _, _, _ := newFixture(principal.EmploymentWorking)

	dec := e.Decide(context.Background(), "", false, requireVerified, nil)
	if dec.Result != DenyUnauthenticated {
		t.Fatalf("expected DenyUnauthenticated, got %v", dec.Result)
	}
}

func TestInvalidCredentialDenies(t *testing.T) {
	e, _, _, _ := newFixture(principal.EmploymentWorking)

	dec := e.Decide(context.Background(), "garbage", true, requireVerified, nil)
	if dec.Result != DenyUnauthenticated {
		t.Fatalf("expected DenyUnauthenticated, got %v", dec.Result)
	}
}

func TestUnknownPrincipalDenies(t *testing.T) {
	e, _, _, tokens := newFixture(principal.EmploymentWorking)

	tok := bearerFor(t, tokens, "user-ghost", token.User)
	dec := e.Decide(context.Background(), tok, true, requireVerified, nil)
	if dec.Result != DenyForbidden {
		t.Fatalf("expected DenyForbidden, got %v", dec.Result)
	}
}

func TestVerificationStatusGate(t *testing.T) {
	e, _, _, tokens := newFixture(principal.EmploymentWorking)

	pending := bearerFor(t, tokens, "user-pending", token.User)
	if dec := e.Decide(context.Background(), pending, true, requireVerified, nil); dec.Result != DenyForbidden {
		t.Fatalf("pending principal: expected DenyForbidden, got %v", dec.Result)
	}

	verified := bearerFor(t, tokens, "user-owner", token.User)
	dec := e.Decide(context.Background(), verified, true, requireVerified, nil)
	if dec.Result != Allow {
		t.Fatalf("verified principal: expected Allow, got %v", dec.Result)
	}
	if dec.Principal == nil || dec.Principal.ID != "user-owner" {
		t.Fatalf("decision should carry the resolved principal: %+v", dec.Principal)
	}
}

//
// tenant-employment gate
//

func TestSuspendedEmployeeDeniedThenWorkingAllowed(t *testing.T) {
	e, _, tenants, tokens := newFixture(principal.EmploymentSuspended)
	tok := bearerFor(t, tokens, "acct-1", token.Account)

	dec := e.Decide(context.Background(), tok, true, requireWorking, tenantOrg1)
	if dec.Result != DenyForbidden {
		t.Fatalf("suspended: expected DenyForbidden, got %v", dec.Result)
	}

	// Status transition; the same token passes on the next check.
	tenants.roster.Members[0].Employment.Status = principal.EmploymentWorking
	dec = e.Decide(context.Background(), tok, true, requireWorking, tenantOrg1)
	if dec.Result != Allow {
		t.Fatalf("working: expected Allow, got %v", dec.Result)
	}
}

func TestOwnershipBypassesEmploymentStatus(t *testing.T) {
	e, _, _, tokens := newFixture(principal.EmploymentSuspended)

	owner := bearerFor(t, tokens, "user-owner", token.User)
	if dec := e.Decide(context.Background(), owner, true, requireWorking, tenantOrg1); dec.Result != Allow {
		t.Fatalf("owner: expected Allow, got %v", dec.Result)
	}

	other := bearerFor(t, tokens, "user-other", token.User)
	if dec := e.Decide(context.Background(), other, true, requireWorking, tenantOrg1); dec.Result != DenyForbidden {
		t.Fatalf("non-owner user: expected DenyForbidden, got %v", dec.Result)
	}
}

func TestGuestDeniedByEmploymentGate(t *testing.T) {
	e, _, _, tokens := newFixture(principal.EmploymentWorking)

	// Guests can hold a valid token but never pass a tenant gate.
	tok := bearerFor(t, tokens, "anon", token.Guest)
	dec := e.Decide(context.Background(), tok, true,
		Requirement{Employment: []principal.EmploymentStatus{principal.EmploymentWorking}},
		tenantOrg1)
	if dec.Result != DenyForbidden {
		t.Fatalf("expected DenyForbidden, got %v", dec.Result)
	}
}

func TestUnresolvableTenantDenies(t *testing.T) {
	e, _, _, tokens := newFixture(principal.EmploymentWorking)
	tok := bearerFor(t, tokens, "acct-1", token.Account)

	dec := e.Decide(context.Background(), tok, true, requireWorking,
		func() (string, bool) { return "org-404", true })
	if dec.Result != DenyForbidden {
		t.Fatalf("expected DenyForbidden, got %v", dec.Result)
	}

	dec = e.Decide(context.Background(), tok, true, requireWorking,
		func() (string, bool) { return "", false })
	if dec.Result != DenyForbidden {
		t.Fatalf("unresolved tenant id: expected DenyForbidden, got %v", dec.Result)
	}
}

func TestNonMemberAccountDenied(t *testing.T) {
	e, principals, _, tokens := newFixture(principal.EmploymentWorking)
	principals.records["acct-stray"] = &principal.Principal{
		ID: "acct-stray", Type: token.Account,
		Verification: principal.Verified, OrganizationID: "org-2",
	}

	tok := bearerFor(t, tokens, "acct-stray", token.Account)
	dec := e.Decide(context.Background(), tok, true, requireWorking, tenantOrg1)
	if dec.Result != DenyForbidden {
		t.Fatalf("expected DenyForbidden, got %v", dec.Result)
	}
}

func TestOwnerOnlyAdmitsOwnerAlone(t *testing.T) {
	e, _, _, tokens := newFixture(principal.EmploymentWorking)
	ownerOnly := Requirement{OwnerOnly: true}

	owner := bearerFor(t, tokens, "user-owner", token.User)
	if dec := e.Decide(context.Background(), owner, true, ownerOnly, tenantOrg1); dec.Result != Allow {
		t.Fatalf("owner: expected Allow, got %v", dec.Result)
	}

	// A working employee is not the owner; with no employment set
	// declared there is no status that can admit them.
	acct := bearerFor(t, tokens, "acct-1", token.Account)
	if dec := e.Decide(context.Background(), acct, true, ownerOnly, tenantOrg1); dec.Result != DenyForbidden {
		t.Fatalf("working employee: expected DenyForbidden, got %v", dec.Result)
	}
}

func TestVerificationFailureShortCircuitsRosterLoad(t *testing.T) {
	e, _, tenants, _ := newFixture(principal.EmploymentWorking)

	dec := e.Decide(context.Background(), "garbage", true, requireWorking, tenantOrg1)
	if dec.Result != DenyUnauthenticated {
		t.Fatalf("expected DenyUnauthenticated, got %v", dec.Result)
	}
	if tenants.rosterCalls != 0 {
		t.Fatalf("roster must not load after a verification failure, got %d calls", tenants.rosterCalls)
	}
}
