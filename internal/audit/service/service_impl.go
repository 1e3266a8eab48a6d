package service

import (
	"cmp"
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/nanolite/internal/audit/domain"
	"github.com/smallbiznis/nanolite/internal/audit/masking"
	auditcontext "github.com/smallbiznis/nanolite/internal/auditcontext"
	"github.com/smallbiznis/nanolite/internal/clock"
	"github.com/smallbiznis/nanolite/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, in auditdomain.Entry) error {
	action := strings.TrimSpace(in.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	actorType, actorID := resolveActor(ctx, strings.TrimSpace(in.ActorType), strings.TrimSpace(in.ActorID))
	row := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  actorType,
		ActorID:    optional(actorID),
		Action:     action,
		TargetType: cmp.Or(strings.TrimSpace(in.TargetType), "unknown"),
		TargetID:   optional(strings.TrimSpace(in.TargetID)),
		Metadata:   datatypes.JSONMap(metadataFor(ctx, in.Metadata)),
		IPAddress:  optional(auditcontext.IPAddressFromContext(ctx)),
		UserAgent:  optional(auditcontext.UserAgentFromContext(ctx)),
		CreatedAt:  s.clock.Now().UTC(),
	}
	if in.CompanyID != 0 {
		company := in.CompanyID
		row.CompanyID = &company
	}

	if err := s.repo.Insert(ctx, s.db, &row); err != nil {
		s.log.Warn("audit insert failed",
			zap.String("action", action),
			zap.String("target", row.TargetType),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// List returns one page of a company's audit trail, newest first.
func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	var empty auditdomain.ListAuditLogResponse
	switch {
	case req.CompanyID == 0:
		return empty, auditdomain.ErrInvalidCompany
	case req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt):
		return empty, auditdomain.ErrInvalidTimeRange
	}

	cursor, err := parseCursor(req.PageToken)
	if err != nil {
		return empty, err
	}

	size := pagination.ClampSize(req.PageSize, 50, 250)
	rows, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		CompanyID:  req.CompanyID,
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		ActorType:  req.ActorType,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Cursor:     cursor,
		Limit:      size,
	})
	if err != nil {
		return empty, err
	}

	rows, page := pagination.Trim(rows, size, func(row *auditdomain.AuditLog) pagination.Cursor {
		return pagination.Cursor{ID: row.ID.String(), CreatedAt: row.CreatedAt.UTC()}
	})
	out := auditdomain.ListAuditLogResponse{PageInfo: page, AuditLogs: make([]auditdomain.AuditLog, 0, len(rows))}
	for _, row := range rows {
		if row != nil {
			out.AuditLogs = append(out.AuditLogs, *row)
		}
	}
	return out, nil
}

func parseCursor(token string) (*auditdomain.AuditCursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	c, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, auditdomain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(c.ID)
	if err != nil || id == 0 {
		return nil, auditdomain.ErrInvalidPageToken
	}
	return &auditdomain.AuditCursor{ID: id, CreatedAt: c.CreatedAt}, nil
}

// resolveActor prefers the caller-supplied actor, then the one attached to
// the request context.
func resolveActor(ctx context.Context, actorType, actorID string) (string, string) {
	if actorType != "" {
		return actorType, actorID
	}
	if ctxType, ctxID := auditcontext.ActorFromContext(ctx); ctxType != "" {
		return ctxType, cmp.Or(actorID, ctxID)
	}
	return string(auditdomain.ActorTypeSystem), actorID
}

// metadataFor masks personal fields and stamps the request id.
func metadataFor(ctx context.Context, in map[string]any) map[string]any {
	out := masking.MaskMetadata(in)
	if out == nil {
		out = map[string]any{}
	}
	if id := auditcontext.RequestIDFromContext(ctx); id != "" {
		out["request_id"] = id
	}
	return out
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
