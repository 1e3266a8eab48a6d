// Package accessscope applies the role policy table to claim payloads and
// record queries.
package accessscope

import (
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/nanolite/internal/auth/domain"
	"github.com/smallbiznis/nanolite/internal/config"
	"gorm.io/gorm"
)

// Fields is a decoded request body keyed by JSON field name. Presence of a key
// is what the policy table acts on.
type Fields map[string]json.RawMessage

// fieldAliases expand policy names that stand for a group of payload keys.
var fieldAliases = map[string][]string{
	"discounts": {
		"discount_1", "discount_2", "discount_3", "discount_4",
		"discount_note_1", "discount_note_2", "discount_note_3", "discount_note_4",
	},
}

// OwnerFilter restricts record queries to one salesperson's records.
type OwnerFilter struct {
	DepartmentID snowflake.ID
	EmployeeID   snowflake.ID
}

type Scope struct {
	holder *config.AccessConfigHolder
}

func New(holder *config.AccessConfigHolder) *Scope {
	return &Scope{holder: holder}
}

// Policy returns the policy for role. Unknown roles get the restricted policy.
func (s *Scope) Policy(role string) config.RolePolicy {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, p := range s.holder.Get().Roles {
		if strings.EqualFold(strings.TrimSpace(p.Role), role) {
			return p
		}
	}
	return config.RestrictedPolicy(role)
}

// KnownRole reports whether the table names role.
func (s *Scope) KnownRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, p := range s.holder.Get().Roles {
		if strings.EqualFold(strings.TrimSpace(p.Role), role) {
			return true
		}
	}
	return false
}

func (s *Scope) StatusChangeAllowed(role string) bool {
	return s.Policy(role).StatusChangeAllowed
}

func (s *Scope) OwnRecordsOnly(role string) bool {
	return s.Policy(role).OwnRecordsOnly
}

// ApplyForced overwrites the role's forced fields with the actor's own
// values on create. A forced field the actor has no value for is removed so
// requiredness rules report it.
func (s *Scope) ApplyForced(actor authdomain.Actor, fields Fields) {
	for _, name := range s.Policy(actor.Role).ForcedFields {
		value := actorValue(actor, name)
		if value == nil {
			delete(fields, name)
			continue
		}
		fields[name] = value
	}
}

// Strip removes the role's stripped fields on update and returns the keys
// that were present.
func (s *Scope) Strip(role string, fields Fields) []string {
	var removed []string
	for _, name := range s.Policy(role).StrippedFields {
		for _, key := range expand(name) {
			if _, ok := fields[key]; ok {
				delete(fields, key)
				removed = append(removed, key)
			}
		}
	}
	return removed
}

// RecordFilter returns the ownership filter for actor, or nil when the actor
// may see every record. A restricted actor without an employee link gets a
// filter that matches nothing.
func (s *Scope) RecordFilter(actor authdomain.Actor) *OwnerFilter {
	if !s.OwnRecordsOnly(actor.Role) {
		return nil
	}
	filter := &OwnerFilter{}
	if actor.DepartmentID != nil {
		filter.DepartmentID = *actor.DepartmentID
	}
	if actor.EmployeeID != nil {
		filter.EmployeeID = *actor.EmployeeID
	}
	return filter
}

// Allows reports whether a record owned by departmentID/employeeID is visible
// under the filter.
func (f *OwnerFilter) Allows(departmentID, employeeID snowflake.ID) bool {
	if f == nil {
		return true
	}
	if f.DepartmentID == 0 || f.EmployeeID == 0 {
		return false
	}
	return f.DepartmentID == departmentID && f.EmployeeID == employeeID
}

// Apply narrows a record query to the filter's owner. A nil filter leaves
// the query unchanged.
func (f *OwnerFilter) Apply(db *gorm.DB) *gorm.DB {
	if f == nil {
		return db
	}
	if f.DepartmentID == 0 || f.EmployeeID == 0 {
		return db.Where("1 = 0")
	}
	return db.Where("department_id = ? AND employee_id = ?", f.DepartmentID, f.EmployeeID)
}

func expand(name string) []string {
	name = strings.TrimSpace(name)
	if keys, ok := fieldAliases[name]; ok {
		return keys
	}
	return []string{name}
}

func actorValue(actor authdomain.Actor, field string) json.RawMessage {
	var id *snowflake.ID
	switch field {
	case "department_id":
		id = actor.DepartmentID
	case "employee_id":
		id = actor.EmployeeID
	default:
		return nil
	}
	if id == nil || *id == 0 {
		return nil
	}
	raw, err := json.Marshal(id.String())
	if err != nil {
		return nil
	}
	return raw
}
