package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/careloop/careloop/internal/api/write"
	"github.com/careloop/careloop/internal/apierrors"
	"github.com/careloop/careloop/internal/log"
	careloopcontext "github.com/careloop/careloop/utils/context"
)

const authorizationHeader = "Authorization"

// preTenantPaths are reachable with an authenticated principal but no
// selected organization: login resolution, the organization choice step and
// the switch endpoint itself.
var preTenantPaths = map[string]bool{
	"/v1/session/login":  true,
	"/v1/session/switch": true,
	"/v1/organizations":  true,
	"/healthz":           true,
	"/metrics":           true,
}

// TokenParser validates a raw session token and returns the principal and
// claimed organization it names. Claims are signed but possibly stale; the
// session resolver re-validates them against the directory downstream.
type TokenParser interface {
	ParseClaims(raw string) (principalID, orgID uuid.UUID, err error)
}

// SessionMiddleware extracts the bearer token, verifies its signature and
// stores the principal and claimed organization on the request context.
// Requests without a usable token only pass through to pre-tenant paths.
func SessionMiddleware(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := bearerToken(r)
			if !ok {
				if preTenantPaths[r.URL.Path] {
					next.ServeHTTP(w, r)
					return
				}

				write.ErrorResponse(ctx, w, apierrors.UnauthorizedErrorMessage())

				return
			}

			principalID, orgID, err := parser.ParseClaims(raw)
			if err != nil {
				log.Warn(ctx, "rejected session token")
				write.ErrorResponse(ctx, w, apierrors.UnauthorizedErrorMessage())

				return
			}

			ctx = careloopcontext.New(ctx,
				careloopcontext.WithPrincipal(principalID),
				careloopcontext.WithClaimedOrg(orgID),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get(authorizationHeader)

	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}

	return token, true
}
