package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Session, *User, error)
	// ChangePassword stores a new hash and revokes every other session of
	// the user. keepSession may be zero.
	ChangePassword(ctx context.Context, userID, keepSession snowflake.ID, newPassword string) error
	GetUser(ctx context.Context, id snowflake.ID) (*User, error)
}

type CreateUserRequest struct {
	Name         string
	Email        string
	Password     string
	Role         string
	CompanyID    snowflake.ID
	DepartmentID *snowflake.ID
	EmployeeID   *snowflake.ID
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	User      *User
	RawToken  string
	ExpiresAt time.Time
	SessionID snowflake.ID
}
