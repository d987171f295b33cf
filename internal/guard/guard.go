// internal/guard/guard.go
//
// Authorization decision engine.
//
// Context
// -------
// Two gates layer on top of each other.  The *verification gate* checks
// the principal-wide trust state against an operation's declared
// verification-status set.  The *tenant-employment gate* then checks
// tenant membership: owners pass on ownership alone, delegated
// principals pass only when their employment status is in the declared
// set, and every other principal type is denied.
//
// The gates are expressed as an ordered list of {requirement, evaluator}
// pairs evaluated in sequence with short-circuiting.  A verification
// failure therefore prevents the employment evaluator, and its expensive
// roster load, from ever running.
//
// Every outcome collapses to allow/deny.  Lookup misses (organization or
// principal) deny rather than error; the internal reason is logged, the
// wire response never distinguishes.

package guard

import (
	"context"

	"go.uber.org/zap"

	"github.com/subvind/API-sub000/internal/metrics"
	"github.com/subvind/API-sub000/internal/principal"
	"github.com/subvind/API-sub000/internal/tenant"
	"github.com/subvind/API-sub000/internal/token"
)

// Result is the collapsed gate outcome.
type Result int

const (
	// Allow lets the operation proceed.
	Allow Result = iota
	// DenyUnauthenticated is a missing, malformed, or expired
	// credential.  Surfaces as 401.
	DenyUnauthenticated
	// DenyForbidden is a valid credential whose principal lacks the
	// required status or membership, and every resolution miss.
	// Surfaces as 403.
	DenyForbidden
)

// Requirement annotates one operation with its declared status sets.  An
// empty set disables that gate for the operation.  OwnerOnly engages the
// tenant-employment gate even with an empty employment set, which admits
// the organization's owner and nobody else.
type Requirement struct {
	Verification []principal.Verification
	Employment   []principal.EmploymentStatus
	OwnerOnly    bool
}

// Decision carries the outcome plus whatever the rules resolved on the
// way, so handlers can reuse the identity without re-verifying.
type Decision struct {
	Result    Result
	Identity  *token.Identity
	Principal *principal.Principal
}

// Engine evaluates requirements against the three stores.
type Engine struct {
	tokens     *token.Service
	principals principal.Store
	tenants    tenant.Directory
}

// New wires the engine.  All three dependencies are owned by the caller.
func New(tokens *token.Service, principals principal.Store, tenants tenant.Directory) *Engine {
	return &Engine{tokens: tokens, principals: principals, tenants: tenants}
}

// state is threaded through the rule chain so later evaluators reuse
// what earlier ones resolved.
type state struct {
	bearer    string
	hasBearer bool
	identity  *token.Identity
	principal *principal.Principal
}

// rule pairs a requirement name with its evaluator.
type rule struct {
	name string
	eval func(ctx context.Context, st *state) Result
}

// Decide runs the gate chain for one operation.  bearer is the raw
// credential ("" and false when the Authorization header is absent);
// resolveTenant derives the target organization id from the request
// shape and may be nil when the operation declares no employment
// requirement.
func (e *Engine) Decide(ctx context.Context, bearer string, hasBearer bool, req Requirement, resolveTenant func() (string, bool)) Decision {
	st := &state{bearer: bearer, hasBearer: hasBearer}

	chain := []rule{
		{name: "verification", eval: e.verificationRule(req)},
		{name: "employment", eval: e.employmentRule(req, resolveTenant)},
	}

	for _, r := range chain {
		res := r.eval(ctx, st)
		metrics.AuthDecisionTotal.WithLabelValues(r.name, resultLabel(res)).Inc()
		if res != Allow {
			return Decision{Result: res, Identity: st.identity, Principal: st.principal}
		}
	}
	return Decision{Result: Allow, Identity: st.identity, Principal: st.principal}
}

// verificationRule implements the verification gate.
func (e *Engine) verificationRule(req Requirement) func(context.Context, *state) Result {
	return func(ctx context.Context, st *state) Result {
		if len(req.Verification) == 0 {
			return Allow
		}

		if res := e.authenticate(st); res != Allow {
			return res
		}

		prin, err := e.principals.Find(ctx, st.identity.PrincipalID, st.identity.Type)
		if err != nil {
			zap.L().Debug("verification gate: principal miss",
				zap.String("principal", st.identity.PrincipalID),
				zap.Error(err))
			return DenyForbidden
		}
		st.principal = prin

		for _, want := range req.Verification {
			if prin.Verification == want {
				return Allow
			}
		}
		return DenyForbidden
	}
}

// employmentRule implements the tenant-employment gate.  It runs only
// after the verification gate allowed, per the chain ordering.
func (e *Engine) employmentRule(req Requirement, resolveTenant func() (string, bool)) func(context.Context, *state) Result {
	return func(ctx context.Context, st *state) Result {
		if len(req.Employment) == 0 && !req.OwnerOnly {
			return Allow
		}

		// Operations may declare an employment requirement without a
		// verification one; the credential is still mandatory here.
		if st.identity == nil {
			if res := e.authenticate(st); res != Allow {
				return res
			}
		}

		if resolveTenant == nil {
			return DenyForbidden
		}
		orgID, ok := resolveTenant()
		if !ok || orgID == "" {
			return DenyForbidden
		}

		roster, err := e.tenants.RosterWithEmployment(ctx, orgID)
		if err != nil {
			// Unresolvable organizations deny; they never escape the
			// gate as a fault.
			zap.L().Debug("employment gate: roster load failed",
				zap.String("organization", orgID),
				zap.Error(err))
			return DenyForbidden
		}

		switch st.identity.Type {
		case token.User:
			// Ownership is absolute and bypasses the status check.
			if roster.Organization.OwnerUserID == st.identity.PrincipalID {
				return Allow
			}
			return DenyForbidden

		case token.Account:
			m := roster.FindMember(st.identity.PrincipalID)
			if m == nil || m.Employment == nil {
				return DenyForbidden
			}
			for _, want := range req.Employment {
				if m.Employment.Status == want {
					return Allow
				}
			}
			return DenyForbidden

		default:
			// Guests and unrecognized principal types never pass.
			return DenyForbidden
		}
	}
}

// authenticate verifies the bearer credential and stores the identity.
func (e *Engine) authenticate(st *state) Result {
	if !st.hasBearer || st.bearer == "" {
		return DenyUnauthenticated
	}
	id, err := e.tokens.Verify(st.bearer)
	if err != nil {
		return DenyUnauthenticated
	}
	st.identity = &id
	return Allow
}

func resultLabel(r Result) string {
	switch r {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "deny_unauthenticated"
	default:
		return "deny_forbidden"
	}
}
