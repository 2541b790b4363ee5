package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/mellovesfromage/warehouse-system/core"
)

// ActorHeader carries the id of the user making the request.
const ActorHeader = "X-Actor-ID"

type actorKey struct{}

// Resolver turns a user id into an actor.
type Resolver interface {
	Resolve(id string) (core.Actor, error)
}

// RequireActor rejects requests without a known ActorHeader with 401 and
// stores the resolved actor in the request context.
func RequireActor(dir Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(ActorHeader))
			if id == "" {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing " + ActorHeader + " header", Code: "unauthenticated"})
				return
			}
			actor, err := dir.Resolve(id)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unknown actor " + id, Code: "unauthenticated"})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
		})
	}
}

// actorFrom returns the actor stored by RequireActor.
func actorFrom(ctx context.Context) core.Actor {
	a, _ := ctx.Value(actorKey{}).(core.Actor)
	return a
}
