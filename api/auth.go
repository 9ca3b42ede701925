package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/warp/leave-ledger/leave"
)

// Claims carried by access tokens.
const (
	claimSubject = "sub"
	claimRole    = "role"
	claimCompany = "company"
)

type actorKey struct{}

// NewTokenAuth builds the HS256 verifier shared by the router and IssueToken.
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil, jwt.WithAcceptableSkew(30*time.Second))
}

// IssueToken signs an access token for actor. Used by leavectl and tests;
// login itself lives outside this service.
func IssueToken(ja *jwtauth.JWTAuth, actor leave.Actor, ttl time.Duration) (string, error) {
	claims := map[string]interface{}{
		claimSubject: actor.ID,
		claimRole:    string(actor.Role),
		claimCompany: actor.CompanyID,
	}
	if ttl > 0 {
		jwtauth.SetExpiryIn(claims, ttl)
	}
	_, token, err := ja.Encode(claims)
	return token, err
}

// RequireActor turns verified claims into a leave.Actor. Requests without a
// valid token, or whose token lacks a subject or company, get 401.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err)
			return
		}

		sub, _ := claims[claimSubject].(string)
		company, _ := claims[claimCompany].(string)
		if sub == "" || company == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		role := leave.RoleEmployee
		if rc, _ := claims[claimRole].(string); rc == string(leave.RoleAdmin) {
			role = leave.RoleAdmin
		}

		ctx := context.WithValue(r.Context(), actorKey{}, leave.Actor{ID: sub, Role: role, CompanyID: company})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFrom returns the actor RequireActor stored on ctx.
func ActorFrom(ctx context.Context) (leave.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(leave.Actor)
	return a, ok
}
