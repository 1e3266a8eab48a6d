package authorization

import (
	"context"
	"errors"
)

var (
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidActor   = errors.New("invalid_actor")
	ErrInvalidCompany = errors.New("invalid_company")
	ErrInvalidObject  = errors.New("invalid_object")
	ErrInvalidAction  = errors.New("invalid_action")
)

type Service interface {
	// Authorize checks whether actor ("user:<id>" or "system") may perform
	// action on object inside companyID.
	Authorize(ctx context.Context, actor string, companyID string, object string, action string) error
}
