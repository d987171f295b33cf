// internal/guard/middleware.go
//
// Chi middleware that enforces gate requirements.

package guard

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/subvind/API-sub000/internal/token"
)

// TenantResolver derives the target organization id from the request
// shape.  Creation calls read it from the submitted body; identify-by-id
// calls treat the path id itself as the organization id.
type TenantResolver func(r *http.Request) (string, bool)

// TenantFromPath treats a chi URL parameter as the organization id.
func TenantFromPath(param string) TenantResolver {
	return func(r *http.Request) (string, bool) {
		id := chi.URLParam(r, param)
		return id, id != ""
	}
}

// TenantFromBody extracts the embedded organization reference from a
// JSON request body.  The body is restored so the downstream handler can
// decode it again.
func TenantFromBody(field string) TenantResolver {
	return func(r *http.Request) (string, bool) {
		if r.Body == nil {
			return "", false
		}
		raw, err := io.ReadAll(r.Body)
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(raw))
		if err != nil {
			return "", false
		}

		var doc map[string]json.RawMessage
		if err := json.Unmarshal(raw, &doc); err != nil {
			return "", false
		}
		var id string
		if err := json.Unmarshal(doc[field], &id); err != nil || id == "" {
			return "", false
		}
		return id, true
	}
}

// Require wraps a handler with the gate chain for one operation.  The
// resolver may be nil when req declares no employment requirement.
func Require(e *Engine, req Requirement, resolve TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer, has := token.Bearer(r)

			var resolveTenant func() (string, bool)
			if resolve != nil {
				resolveTenant = func() (string, bool) { return resolve(r) }
			}

			dec := e.Decide(r.Context(), bearer, has, req, resolveTenant)
			switch dec.Result {
			case Allow:
				ctx := r.Context()
				if dec.Identity != nil {
					ctx = WithIdentity(ctx, dec.Identity)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
			case DenyUnauthenticated:
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			default:
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			}
		})
	}
}
