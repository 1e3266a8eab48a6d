package orgcontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"

	authdomain "github.com/smallbiznis/nanolite/internal/auth/domain"
)

func TestActorRoundTrip(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), authdomain.Actor{UserID: 7, CompanyID: 3})
	actor, ok := ActorFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(7), actor.UserID)

	company, ok := CompanyIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(3), company)

	_, ok = CompanyIDFromContext(WithActor(context.Background(), authdomain.Actor{UserID: 1}))
	assert.False(t, ok)
}
