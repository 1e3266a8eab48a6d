package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAccessConfigIsValid(t *testing.T) {
	cfg := DefaultAccessConfig()
	require.NoError(t, validateAccessConfig(cfg))

	var sales *RolePolicy
	for i := range cfg.Roles {
		if cfg.Roles[i].Role == "sales" {
			sales = &cfg.Roles[i]
		}
	}
	require.NotNil(t, sales)
	assert.True(t, sales.OwnRecordsOnly)
	assert.False(t, sales.StatusChangeAllowed)
	assert.Contains(t, sales.StrippedFields, "department_id")
	assert.ElementsMatch(t, []string{"department_id", "employee_id"}, sales.ForcedFields)
}

func TestValidateAccessConfigRejectsDuplicates(t *testing.T) {
	err := validateAccessConfig(AccessConfig{Roles: []RolePolicy{{Role: "admin"}, {Role: "admin"}}})
	assert.Error(t, err)

	err = validateAccessConfig(AccessConfig{})
	assert.Error(t, err)
}

func TestStaticHolderReturnsStoredConfig(t *testing.T) {
	holder := NewStaticAccessConfigHolder(AccessConfig{Roles: []RolePolicy{{Role: "x"}}})
	assert.Equal(t, "x", holder.Get().Roles[0].Role)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "yes")
	t.Setenv("STORAGE_PUBLIC_URL", "https://cdn.example.com/storage/")
	t.Setenv("SCHEDULER_INTERVAL_SECONDS", "60")

	cfg := Load()
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "https://cdn.example.com/storage", cfg.Storage.PublicURL)
	assert.Equal(t, int64(60), int64(cfg.Scheduler.Interval.Seconds()))
}

func TestAccessConfigHolderNotifiesListeners(t *testing.T) {
	holder := NewStaticAccessConfigHolder(DefaultAccessConfig())

	var got AccessConfig
	holder.OnChange(func(cfg AccessConfig) { got = cfg })

	updated := AccessConfig{Roles: []RolePolicy{{Role: "admin", StatusChangeAllowed: true}}}
	holder.set(updated)

	assert.Equal(t, updated, got)
	assert.Equal(t, updated, holder.Get())
}
