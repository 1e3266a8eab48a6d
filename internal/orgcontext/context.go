package orgcontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/nanolite/internal/auth/domain"
)

// ActorContextKey is the request context key for the authenticated actor.
type ActorContextKey struct{}

// WithActor stores the authenticated actor in the context.
func WithActor(ctx context.Context, actor authdomain.Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, actor)
}

// ActorFromContext returns the actor, if set.
func ActorFromContext(ctx context.Context) (authdomain.Actor, bool) {
	if ctx == nil {
		return authdomain.Actor{}, false
	}
	actor, ok := ctx.Value(ActorContextKey{}).(authdomain.Actor)
	if !ok || actor.UserID == 0 {
		return authdomain.Actor{}, false
	}
	return actor, true
}

// CompanyIDFromContext returns the company of the actor, if set.
func CompanyIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.CompanyID == 0 {
		return 0, false
	}
	return actor.CompanyID, true
}
