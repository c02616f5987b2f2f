package authz

import (
	"errors"
	"net/http"
)

// ErrAccessDenied is returned by Authorize when the context does not satisfy
// the operation's required level. It must reach the caller verbatim.
var ErrAccessDenied = errors.New("access denied")

// RequestContextFunc builds the AccessContext for an incoming request, after
// authentication and any resource fetch the route needs. Returning an error
// denies the request.
type RequestContextFunc func(r *http.Request) (*AccessContext, error)

// RequireOperation wraps a handler with the operation check: build context,
// authorize, reject with 403 before the handler runs. Context construction
// failures also deny; there is no fall-through allow.
func RequireOperation(e *Engine, resourceType string, op Operation, buildCtx RequestContextFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actx, err := buildCtx(r)
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			if err := e.Authorize(r.Context(), actx, resourceType, op); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireResourceAccess wraps a handler with the visibility gate: fetch the
// resource, check the viewer, 404 when the resource is missing and 403 when
// the gate vetoes.
func RequireResourceAccess(g *VisibilityGate, store ResourceStore, resourceID func(r *http.Request) string, viewer func(r *http.Request) (Viewer, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := store.Get(r.Context(), resourceID(r))
			if err != nil || res == nil {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			v, err := viewer(r)
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			ok, err := g.CheckResourceAccess(r.Context(), v, res)
			if err != nil || !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
