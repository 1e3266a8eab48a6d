package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RolePolicy describes how one role may touch claim records.
type RolePolicy struct {
	Role                string   `mapstructure:"role"`
	ForcedFields        []string `mapstructure:"forcedFields"`
	StrippedFields      []string `mapstructure:"strippedFields"`
	StatusChangeAllowed bool     `mapstructure:"statusChangeAllowed"`
	OwnRecordsOnly      bool     `mapstructure:"ownRecordsOnly"`
}

type AccessConfig struct {
	Roles []RolePolicy `mapstructure:"roles"`
}

var restrictedStrippedFields = []string{
	"department_id",
	"employee_id",
	"customer_category_id",
	"customer_id",
	"customer_program_id",
	"phone",
	"address",
	"products",
	"purchase_date",
	"claim_date",
	"reason",
	"note",
	"images",
	"payment_method",
	"payment_due_until",
	"payment_status",
	"discounts",
	"discounts_enabled",
	"program_enabled",
	"program_points",
	"reward_enabled",
	"reward_points",
	"total_after_tax",
}

// RestrictedPolicy is the policy of sales roles, also applied to roles the
// table does not name.
func RestrictedPolicy(role string) RolePolicy {
	return RolePolicy{
		Role:           role,
		ForcedFields:   []string{"department_id", "employee_id"},
		StrippedFields: append([]string(nil), restrictedStrippedFields...),
		OwnRecordsOnly: true,
	}
}

func DefaultAccessConfig() AccessConfig {
	return AccessConfig{
		Roles: []RolePolicy{
			{Role: "super_admin", StatusChangeAllowed: true},
			{Role: "admin", StatusChangeAllowed: true},
			RestrictedPolicy("head_sales"),
			RestrictedPolicy("head_digital"),
			RestrictedPolicy("sales"),
		},
	}
}

type AccessConfigHolder struct {
	current atomic.Value // holds AccessConfig

	mu        sync.Mutex
	listeners []func(AccessConfig)
}

// NewStaticAccessConfigHolder wraps a fixed policy table.
func NewStaticAccessConfigHolder(cfg AccessConfig) *AccessConfigHolder {
	holder := &AccessConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewAccessConfigHolder() (*AccessConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("access")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/nanolite/config") // Volume-mounted config
	v.AddConfigPath("/etc/nanolite")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("NANOLITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fromFile := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fromFile = false
	}

	cfg := DefaultAccessConfig()
	if fromFile {
		var loaded AccessConfig
		if err := v.UnmarshalKey("access", &loaded); err != nil {
			return nil, err
		}
		if err := validateAccessConfig(loaded); err != nil {
			return nil, err
		}
		cfg = loaded
	}

	holder := NewStaticAccessConfigHolder(cfg)
	if !fromFile {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated AccessConfig
		if err := v.UnmarshalKey("access", &updated); err != nil {
			log.Printf("[access-config] reload failed: %v", err)
			return
		}
		if err := validateAccessConfig(updated); err != nil {
			log.Printf("[access-config] invalid config ignored: %v", err)
			return
		}
		holder.set(updated)
		log.Printf("[access-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *AccessConfigHolder) Get() AccessConfig {
	return h.current.Load().(AccessConfig)
}

// OnChange registers fn to run after every successful reload.
func (h *AccessConfigHolder) OnChange(fn func(AccessConfig)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

func (h *AccessConfigHolder) set(cfg AccessConfig) {
	h.current.Store(cfg)
	h.mu.Lock()
	listeners := make([]func(AccessConfig), len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
}

func validateAccessConfig(cfg AccessConfig) error {
	if len(cfg.Roles) == 0 {
		return errors.New("access.roles cannot be empty")
	}
	seen := make(map[string]struct{}, len(cfg.Roles))
	for _, role := range cfg.Roles {
		name := strings.TrimSpace(role.Role)
		if name == "" {
			return errors.New("access.roles[].role cannot be empty")
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("access.roles: duplicate role %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
