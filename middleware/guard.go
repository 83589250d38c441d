package middleware

import (
	"errors"
	"net"
	"net/http"
	"strings"

	goShield "github.com/MrEthical07/goShield"
)

// Bind resolves the request's Subject and binds it into a new Scope for the
// rest of the chain. A request without a bearer token gets an anonymous
// Subject; a token naming an unknown, stopped, or expired session is
// rejected with 401. Valid sessions are touched.
func Bind(sm *goShield.SecurityManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sm == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			host := clientHost(r)
			ctx := goShield.WithClientHost(r.Context(), host)
			ctx, scope := goShield.NewScope(ctx)
			defer scope.Clear()

			subject := sm.NewSubject(host)
			if id, ok := bearerToken(r.Header.Get("Authorization")); ok {
				resumed, err := sm.ResumeSubject(ctx, id)
				if err != nil {
					writeError(w, err)
					return
				}
				h, err := resumed.Session(ctx, false)
				if err == nil && h != nil {
					err = h.Touch(ctx)
				}
				if err != nil {
					writeError(w, err)
					return
				}
				subject = resumed
			}

			scope.Bind(subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission passes only requests whose bound Subject holds every
// permission.
func RequirePermission(perms ...string) func(http.Handler) http.Handler {
	return require(func(r *http.Request, s *goShield.Subject) error {
		return s.CheckPermissions(r.Context(), perms...)
	})
}

// RequireRole passes only requests whose bound Subject holds every role.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return require(func(r *http.Request, s *goShield.Subject) error {
		return s.CheckRoles(r.Context(), roles...)
	})
}

func require(check func(*http.Request, *goShield.Subject) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := goShield.SubjectFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if err := check(r, subject); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, goShield.ErrUnauthenticated),
		errors.Is(err, goShield.ErrInvalidSession),
		errors.Is(err, goShield.ErrInvalidSubject):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, goShield.ErrUnauthorized):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
