// Package pipeline holds the stages garansi and order writes share: actor
// resolution, record authorization, access scoping and audit of status
// changes.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/accessscope"
	auditdomain "github.com/smallbiznis/nanolite/internal/audit/domain"
	authdomain "github.com/smallbiznis/nanolite/internal/auth/domain"
	"github.com/smallbiznis/nanolite/internal/authorization"
	"github.com/smallbiznis/nanolite/internal/claim"
	"github.com/smallbiznis/nanolite/internal/claim/validation"
	"github.com/smallbiznis/nanolite/internal/clock"
	"github.com/smallbiznis/nanolite/internal/imageingest"
	"github.com/smallbiznis/nanolite/internal/observability/metrics"
	"github.com/smallbiznis/nanolite/internal/orgcontext"
	"github.com/smallbiznis/nanolite/internal/reference"
	refdomain "github.com/smallbiznis/nanolite/internal/reference/domain"
	"github.com/smallbiznis/nanolite/internal/workflow"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Authz     authorization.Service
	Scope     *accessscope.Scope
	Validator *validation.Validator
	Ingester  *imageingest.Ingester
	Clock     clock.Clock
	Log       *zap.Logger
	Audit     auditdomain.Service `optional:"true"`
	Metrics   *metrics.Metrics    `optional:"true"`
}

type Stages struct {
	Scope     *accessscope.Scope
	Validator *validation.Validator
	Ingester  *imageingest.Ingester
	Clock     clock.Clock
	Metrics   *metrics.Metrics

	authz authorization.Service
	audit auditdomain.Service
	log   *zap.Logger
}

func New(p Params) *Stages {
	return &Stages{
		Scope:     p.Scope,
		Validator: p.Validator,
		Ingester:  p.Ingester,
		Clock:     p.Clock,
		Metrics:   p.Metrics,
		authz:     p.Authz,
		audit:     p.Audit,
		log:       p.Log.Named("claim.pipeline"),
	}
}

// Actor returns the authenticated actor of the request.
func (s *Stages) Actor(ctx context.Context) (authdomain.Actor, error) {
	actor, ok := orgcontext.ActorFromContext(ctx)
	if !ok || actor.CompanyID == 0 {
		return authdomain.Actor{}, authorization.ErrInvalidActor
	}
	return actor, nil
}

// Authorize checks a record action for actor.
func (s *Stages) Authorize(ctx context.Context, actor authdomain.Actor, object, action string) error {
	return s.authz.Authorize(ctx, Subject(actor), actor.CompanyID.String(), object, action)
}

// AuthorizeSystem checks a record action for background jobs.
func (s *Stages) AuthorizeSystem(ctx context.Context, companyID snowflake.ID, object, action string) error {
	return s.authz.Authorize(ctx, "system", companyID.String(), object, action)
}

// Subject is the casbin subject of actor.
func Subject(actor authdomain.Actor) string {
	return "user:" + actor.UserID.String()
}

// Clone copies a request body so scoping never mutates the caller's map.
func Clone(fields accessscope.Fields) accessscope.Fields {
	out := make(accessscope.Fields, len(fields))
	for k, v := range fields {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// PresentOf returns the names of required that appear in fields. On update
// a required field may be omitted but not blanked.
func PresentOf(required []string, fields accessscope.Fields) []string {
	var out []string
	for _, name := range required {
		if _, ok := fields[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// AxisChange is one status value that moved during a save.
type AxisChange struct {
	Axis workflow.Axis
	From string
	To   string
}

// Changes lists the axes whose value differs between before and after.
func Changes(before, after workflow.State) []AxisChange {
	var out []AxisChange
	for _, axis := range workflow.Axes() {
		from, to := before.Status(axis), after.Status(axis)
		if from != to {
			out = append(out, AxisChange{Axis: axis, From: from, To: to})
		}
	}
	return out
}

// Audit writes one audit entry for a record. Failures are logged by the
// audit service and do not fail the write.
func (s *Stages) Audit(ctx context.Context, actor authdomain.Actor, action, targetType string, id snowflake.ID, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	entry := auditdomain.Entry{
		CompanyID:  actor.CompanyID,
		ActorType:  string(auditdomain.ActorTypeUser),
		ActorID:    actor.UserID.String(),
		Action:     action,
		TargetType: targetType,
		TargetID:   id.String(),
		Metadata:   metadata,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.Debug("audit entry skipped", zap.String("action", action), zap.Error(err))
	}
}

// AuditStatusChanges writes one entry per moved axis.
func (s *Stages) AuditStatusChanges(ctx context.Context, actor authdomain.Actor, action, targetType string, id snowflake.ID, changes []AxisChange) {
	for _, c := range changes {
		s.Audit(ctx, actor, action, targetType, id, map[string]any{
			"axis": string(c.Axis),
			"from": c.From,
			"to":   c.To,
		})
	}
}

// UnknownReference reports a reference id that does not exist.
func UnknownReference(field string, id snowflake.ID) validation.FieldError {
	return validation.FieldError{
		Field:   field,
		Code:    validation.CodeUnknownReference,
		Message: fmt.Sprintf("%s %s does not exist", field, id),
	}
}

// CheckRef reports id when it is set and missing from table.
func CheckRef(l *reference.Lookup, table refdomain.Table, field string, id *snowflake.ID) []validation.FieldError {
	if id == nil || *id == 0 || l.Has(table, *id) {
		return nil
	}
	return []validation.FieldError{UnknownReference(field, *id)}
}

// CheckLineItems reports line items pointing at missing catalog rows.
func CheckLineItems(items []claim.LineItem, l *reference.Lookup) []validation.FieldError {
	var out []validation.FieldError
	for i, item := range items {
		prefix := fmt.Sprintf("products.%d.", i)
		out = append(out, CheckRef(l, refdomain.TableBrands, prefix+"brand_id", &item.BrandID)...)
		out = append(out, CheckRef(l, refdomain.TableCategories, prefix+"category_id", &item.CategoryID)...)
		out = append(out, CheckRef(l, refdomain.TableProducts, prefix+"product_id", &item.ProductID)...)
	}
	return out
}
