// cmd/api/handlers_test.go
//
// Route-level tests for the account and user mutation surface, wired
// through the real router, gate engine, and sqlmock-backed stores.

package main

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/subvind/API-sub000/internal/audit"
	"github.com/subvind/API-sub000/internal/bus"
	"github.com/subvind/API-sub000/internal/event"
	"github.com/subvind/API-sub000/internal/guard"
	"github.com/subvind/API-sub000/internal/principal"
	"github.com/subvind/API-sub000/internal/requestinfo"
	"github.com/subvind/API-sub000/internal/tenant"
	"github.com/subvind/API-sub000/internal/token"
)

// nopBus satisfies bus.Bus; envelope publication is not under test here.
type nopBus struct{}

func (nopBus) Publish(string, []byte) error        { return nil }
func (nopBus) Subscribe(string, bus.Handler) error { return nil }
func (nopBus) Close()                              {}

var (
	findAccountQ = regexp.QuoteMeta(`e.account_id AS emp_account_id`)
	findUserQ    = regexp.QuoteMeta(`SELECT id, verification FROM user`)
	orgByIDQ     = regexp.QuoteMeta(`FROM organization WHERE id = ?`)
	rosterQ      = regexp.QuoteMeta(`e.title AS emp_title`)
)

func newTestAPI(t *testing.T) (*api, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { raw.Close() })
	db := sqlx.NewDb(raw, "sqlmock")

	dir := tenant.NewSQLDirectory(db)
	cache := tenant.NewCache(dir, time.Minute, 8)
	t.Cleanup(cache.Stop)

	principals := principal.NewSQLStore(db)
	tokens := token.NewService("test-secret", time.Hour)
	info, _ := requestinfo.New("")

	return &api{
		engine:     guard.New(tokens, principals, dir),
		tokens:     tokens,
		principals: principals,
		orgs:       dir,
		cache:      cache,
		audits:     audit.NewStore(db),
		pub:        event.NewPublisher(nopBus{}),
		info:       info,
	}, mock
}

func issue(t *testing.T, a *api, id string, typ token.PrincipalType) string {
	t.Helper()
	tok, err := a.tokens.Issue(id, typ)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func do(a *api, method, path, tok, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if tok != "" {
		r.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, r)
	return rec
}

func accountRow(id, orgID, verification, empStatus string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "organization_id", "verification", "emp_account_id", "emp_status",
	})
	if empStatus == "" {
		return rows.AddRow(id, orgID, verification, nil, nil)
	}
	return rows.AddRow(id, orgID, verification, id, empStatus)
}

func orgRow(id, name, ownerID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "unique_name",
		"website_hostname", "admin_hostname", "home_hostname",
		"store_hostname", "media_hostname", "workspace_hostname",
		"owner_user_id", "created_at", "updated_at",
	}).AddRow(id, name, nil, nil, nil, nil, nil, nil, ownerID, time.Now(), time.Now())
}

func rosterRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "organization_id", "username", "email",
		"verification", "role", "emp_status", "emp_title",
	})
}

// A working employee of one organization must not be able to mutate an
// account that belongs to another: the gate's tenant comes from the
// target account's own row, and the caller is absent from that roster.
// The organization id in the body is inert.
func TestEmploymentMutationGateBoundToTargetAccountsOrg(t *testing.T) {
	a, mock := newTestAPI(t)

	mock.ExpectQuery(findAccountQ).WithArgs("acct-a").
		WillReturnRows(accountRow("acct-a", "org-a", "verified", "working"))
	mock.ExpectQuery(findAccountQ).WithArgs("acct-b").
		WillReturnRows(accountRow("acct-b", "org-b", "verified", "working"))
	mock.ExpectQuery(orgByIDQ).WithArgs("org-b").
		WillReturnRows(orgRow("org-b", "beta", "user-b"))
	mock.ExpectQuery(rosterQ).WithArgs("org-b").
		WillReturnRows(rosterRows().
			AddRow("acct-b", "org-b", "victim", "v@beta.example", "verified", "employee", "working", ""))

	tok := issue(t, a, "acct-a", token.Account)
	rec := do(a, "PUT", "/accounts/acct-b/employment", tok,
		`{"organizationId":"org-a","status":"fired"}`)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("cross-tenant employment write: status %d, want 403", rec.Code)
	}
	// No INSERT was expected; any write would fail the mock.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestEmploymentMutationWithinOwnOrg(t *testing.T) {
	a, mock := newTestAPI(t)

	mock.ExpectQuery(findAccountQ).WithArgs("acct-a").
		WillReturnRows(accountRow("acct-a", "org-a", "verified", "working"))
	mock.ExpectQuery(findAccountQ).WithArgs("acct-c").
		WillReturnRows(accountRow("acct-c", "org-a", "verified", ""))
	mock.ExpectQuery(orgByIDQ).WithArgs("org-a").
		WillReturnRows(orgRow("org-a", "acme", "user-a"))
	mock.ExpectQuery(rosterQ).WithArgs("org-a").
		WillReturnRows(rosterRows().
			AddRow("acct-a", "org-a", "staff", "s@acme.example", "verified", "employee", "working", "").
			AddRow("acct-c", "org-a", "hire", "h@acme.example", "verified", "employee", nil, nil))
	mock.ExpectQuery(findAccountQ).WithArgs("acct-c").
		WillReturnRows(accountRow("acct-c", "org-a", "verified", ""))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO employment`)).
		WithArgs("acct-c", "working").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tok := issue(t, a, "acct-a", token.Account)
	rec := do(a, "PUT", "/accounts/acct-c/employment", tok, `{"status":"working"}`)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("same-org employment write: status %d, want 204", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

// Verification flips on accounts carry the same tenant binding as
// employment writes.
func TestAccountVerificationGateBoundToTargetOrg(t *testing.T) {
	a, mock := newTestAPI(t)

	mock.ExpectQuery(findAccountQ).WithArgs("acct-a").
		WillReturnRows(accountRow("acct-a", "org-a", "verified", "working"))
	mock.ExpectQuery(findAccountQ).WithArgs("acct-b").
		WillReturnRows(accountRow("acct-b", "org-b", "verified", "working"))
	mock.ExpectQuery(orgByIDQ).WithArgs("org-b").
		WillReturnRows(orgRow("org-b", "beta", "user-b"))
	mock.ExpectQuery(rosterQ).WithArgs("org-b").
		WillReturnRows(rosterRows().
			AddRow("acct-b", "org-b", "victim", "v@beta.example", "verified", "employee", "working", ""))

	tok := issue(t, a, "acct-a", token.Account)
	rec := do(a, "PUT", "/accounts/acct-b/verification", tok, `{"status":"banned"}`)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("cross-tenant verification flip: status %d, want 403", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestUserVerificationIsSelfServiceOnly(t *testing.T) {
	a, mock := newTestAPI(t)
	userRows := func(id string) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "verification"}).AddRow(id, "verified")
	}

	// Another user's record is off limits no matter the caller's state.
	mock.ExpectQuery(findUserQ).WithArgs("user-1").WillReturnRows(userRows("user-1"))

	tok := issue(t, a, "user-1", token.User)
	rec := do(a, "PUT", "/users/user-2/verification", tok, `{"status":"banned"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign user flip: status %d, want 403", rec.Code)
	}

	// The user's own record is fair game.
	mock.ExpectQuery(findUserQ).WithArgs("user-1").WillReturnRows(userRows("user-1"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE user SET verification = ?`)).
		WithArgs("verified", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec = do(a, "PUT", "/users/user-1/verification", tok, `{"status":"verified"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("self verification: status %d, want 204", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}
