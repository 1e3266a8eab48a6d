package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/pkg/db/pagination"
)

// Actions recorded by the claim services.
const (
	ActionGaransiCreate       = "garansi.create"
	ActionGaransiUpdate       = "garansi.update"
	ActionGaransiStatusChange = "garansi.status_change"
	ActionOrderCreate         = "order.create"
	ActionOrderUpdate         = "order.update"
	ActionOrderStatusChange   = "order.status_change"
	ActionUserLogin           = "user.login"
	ActionAccessDenied        = "authorization.denied"
)

// Entry describes one audit record to write. An empty ActorType falls back
// to the actor carried on the context, then to "system".
type Entry struct {
	CompanyID  snowflake.ID
	ActorType  string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	CompanyID  snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidCompany   = errors.New("invalid_company")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidAction    = errors.New("invalid_action")
)
