// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Roles known to the access policy table. Any other value is treated as restricted.
const (
	RoleSuperAdmin  = "super_admin"
	RoleAdmin       = "admin"
	RoleHeadSales   = "head_sales"
	RoleHeadDigital = "head_digital"
	RoleSales       = "sales"
)

// User represents a back-office account. Sales staff are linked to the
// employee and department they sell for.
type User struct {
	ID                  snowflake.ID      `gorm:"primaryKey"`
	Name                string            `gorm:"type:text;not null"`
	Email               string            `gorm:"column:email;uniqueIndex"`
	PasswordHash        *string           `gorm:"type:text"`
	Role                string            `gorm:"column:role;type:text;not null"`
	CompanyID           snowflake.ID      `gorm:"column:company_id;not null"`
	DepartmentID        *snowflake.ID     `gorm:"column:department_id"`
	EmployeeID          *snowflake.ID     `gorm:"column:employee_id"`
	IsDefault           bool              `gorm:"column:is_default"`
	LastPasswordChanged *time.Time        `gorm:"column:last_password_changed"`
	Metadata            datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt           time.Time         `gorm:"not null"`
	UpdatedAt           time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Session represents a persisted login session.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	UserAgent        string       `gorm:"column:user_agent;type:text"`
	IPAddress        string       `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

// Actor is the authenticated principal a request acts as.
type Actor struct {
	UserID       snowflake.ID
	Name         string
	Email        string
	Role         string
	CompanyID    snowflake.ID
	DepartmentID *snowflake.ID
	EmployeeID   *snowflake.ID
}

// ActorFromUser projects the fields request handling needs.
func ActorFromUser(u *User) Actor {
	if u == nil {
		return Actor{}
	}
	return Actor{
		UserID:       u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		CompanyID:    u.CompanyID,
		DepartmentID: u.DepartmentID,
		EmployeeID:   u.EmployeeID,
	}
}
