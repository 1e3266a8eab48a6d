// Package validation checks claim payloads against struct rules, the
// workflow graph and the status-change permission.
package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	authdomain "github.com/smallbiznis/nanolite/internal/auth/domain"
	"github.com/smallbiznis/nanolite/internal/authorization"
	"github.com/smallbiznis/nanolite/internal/clock"
	"github.com/smallbiznis/nanolite/internal/workflow"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// StatusChange is the workflow part of a create or update payload. Nil means
// the key was absent or null.
type StatusChange struct {
	SubmissionStatus  *string `json:"submission_status" validate:"omitempty,oneof=pending approved rejected"`
	ProductStatus     *string `json:"product_status" validate:"omitempty,oneof=pending ready_stock sold_out rejected"`
	FulfillmentStatus *string `json:"fulfillment_status" validate:"omitempty,oneof=pending confirmed processing on_hold delivered completed cancelled rejected"`

	RejectionComment *string    `json:"rejection_comment" validate:"omitempty,min=5"`
	SoldOutComment   *string    `json:"sold_out_comment" validate:"omitempty,min=5"`
	OnHoldComment    *string    `json:"on_hold_comment" validate:"omitempty,min=5"`
	OnHoldUntil      *time.Time `json:"on_hold_until"`
	CancelledComment *string    `json:"cancelled_comment" validate:"omitempty,min=5"`

	// A caller supplied delivery confirmation wins over the save stamp.
	DeliveredAt *time.Time    `json:"delivered_at"`
	DeliveredBy *snowflake.ID `json:"delivered_by"`
}

// Status returns the requested value for axis.
func (c StatusChange) Status(axis workflow.Axis) *string {
	switch axis {
	case workflow.AxisSubmission:
		return c.SubmissionStatus
	case workflow.AxisProduct:
		return c.ProductStatus
	case workflow.AxisFulfillment:
		return c.FulfillmentStatus
	}
	return nil
}

// Any reports whether at least one status field is present.
func (c StatusChange) Any() bool {
	for _, axis := range workflow.Axes() {
		if c.Status(axis) != nil {
			return true
		}
	}
	return false
}

// ApplyTo copies the requested statuses and comments onto s.
func (c StatusChange) ApplyTo(s *workflow.State) {
	for _, axis := range workflow.Axes() {
		if v := c.Status(axis); v != nil {
			s.SetStatus(axis, *v)
		}
	}
	if c.RejectionComment != nil {
		s.RejectionComment = c.RejectionComment
	}
	if c.SoldOutComment != nil {
		s.SoldOutComment = c.SoldOutComment
	}
	if c.OnHoldComment != nil {
		s.OnHoldComment = c.OnHoldComment
	}
	if c.OnHoldUntil != nil {
		t := c.OnHoldUntil.UTC()
		s.OnHoldUntil = &t
	}
	if c.CancelledComment != nil {
		s.CancelledComment = c.CancelledComment
	}
	if c.DeliveredAt != nil {
		t := c.DeliveredAt.UTC()
		s.DeliveredAt = &t
	}
	if c.DeliveredBy != nil && *c.DeliveredBy != 0 {
		id := *c.DeliveredBy
		s.DeliveredBy = &id
	}
}

// Request is one create or update to validate.
type Request struct {
	// Object is the authorization object of the record kind.
	Object    string
	CompanyID snowflake.ID
	Actor     authdomain.Actor

	// Payload is the typed body checked with struct tags.
	Payload any
	// Present holds the body keys left after access scoping.
	Present map[string]json.RawMessage
	// Required names keys that must be present and non-blank.
	Required []string
	Changes  StatusChange

	// Current is the stored state on update and nil on create.
	Current *workflow.State

	// Cross runs record specific rules that span fields.
	Cross func(now time.Time) []FieldError
}

type Params struct {
	fx.In

	Authz authorization.Service
	Clock clock.Clock
	Log   *zap.Logger
}

type Validator struct {
	authz   authorization.Service
	clock   clock.Clock
	log     *zap.Logger
	structs *validator.Validate
}

func New(p Params) *Validator {
	return &Validator{
		authz:   p.Authz,
		clock:   p.Clock,
		log:     p.Log.Named("claim.validation"),
		structs: newStructValidator(),
	}
}

// Validate returns nil, *AuthorizationError or *Errors.
func (v *Validator) Validate(ctx context.Context, req Request) error {
	if req.Changes.Any() {
		if err := v.checkStatusGate(ctx, req); err != nil {
			return err
		}
	}

	now := v.clock.Now()
	var out []FieldError

	for _, name := range req.Required {
		if blank(req.Present[name]) {
			out = append(out, FieldError{Field: name, Code: CodeRequired, Message: name + " is required"})
		}
	}

	out = append(out, v.structErrors(req.Payload)...)
	out = append(out, v.structErrors(req.Changes)...)
	out = append(out, commentRules(req.Changes)...)

	if until := req.Changes.OnHoldUntil; until != nil && !until.After(now) {
		out = append(out, FieldError{Field: "on_hold_until", Code: CodeNotInFuture, Message: "on_hold_until must be in the future"})
	}

	out = append(out, transitionRules(req.Changes, req.Current)...)

	if to := req.Changes.FulfillmentStatus; to != nil && *to == workflow.FulfillmentCompleted && req.Current != nil {
		if !req.Current.DeliveryConfirmed() {
			out = append(out, FieldError{
				Field:   string(workflow.AxisFulfillment),
				Code:    CodeDeliveryNotConfirmed,
				Message: "cannot complete without delivery confirmation and proof",
			})
		}
	}

	if req.Cross != nil {
		out = append(out, req.Cross(now)...)
	}

	if len(out) > 0 {
		return &Errors{Fields: dedupe(out)}
	}
	return nil
}

func (v *Validator) checkStatusGate(ctx context.Context, req Request) error {
	err := v.authz.Authorize(ctx, "user:"+req.Actor.UserID.String(), req.CompanyID.String(), req.Object, authorization.ActionStatus)
	if err == nil {
		return nil
	}
	if !errors.Is(err, authorization.ErrForbidden) {
		return fmt.Errorf("authorize status change: %w", err)
	}
	var fields []FieldError
	for _, axis := range workflow.Axes() {
		if req.Changes.Status(axis) != nil {
			fields = append(fields, forbidden(string(axis)))
		}
	}
	v.log.Debug("status change denied",
		zap.String("role", req.Actor.Role),
		zap.String("object", req.Object),
	)
	return &AuthorizationError{Fields: fields}
}

func (v *Validator) structErrors(payload any) []FieldError {
	if payload == nil {
		return nil
	}
	err := v.structs.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "request", Code: CodeInvalid, Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, translate(fe))
	}
	return out
}

// commentRules requires the comment matching each terminal status in the same
// request. A comment left on the record by an earlier save does not count.
func commentRules(c StatusChange) []FieldError {
	checks := []struct {
		status *string
		want   string
		field  string
		given  *string
	}{
		{c.SubmissionStatus, workflow.StatusRejected, "rejection_comment", c.RejectionComment},
		{c.FulfillmentStatus, workflow.FulfillmentOnHold, "on_hold_comment", c.OnHoldComment},
		{c.FulfillmentStatus, workflow.FulfillmentCancelled, "cancelled_comment", c.CancelledComment},
		{c.ProductStatus, workflow.ProductSoldOut, "sold_out_comment", c.SoldOutComment},
	}
	var out []FieldError
	for _, chk := range checks {
		if chk.status == nil || *chk.status != chk.want || filled(chk.given) {
			continue
		}
		out = append(out, FieldError{
			Field:   chk.field,
			Code:    CodeRequired,
			Message: fmt.Sprintf("%s is required when status is %s", chk.field, chk.want),
		})
	}
	return out
}

// transitionRules checks every present status against the workflow graph.
// Product and fulfillment are not checked when the submission ends up
// rejected since the cascade overrides them.
func transitionRules(c StatusChange, current *workflow.State) []FieldError {
	from := workflow.NewState()
	if current != nil {
		from = *current
	}
	effectiveSubmission := from.Status(workflow.AxisSubmission)
	if c.SubmissionStatus != nil {
		effectiveSubmission = *c.SubmissionStatus
	}

	var out []FieldError
	for _, axis := range workflow.Axes() {
		to := c.Status(axis)
		if to == nil || !workflow.Valid(axis, *to) {
			continue
		}
		if axis != workflow.AxisSubmission && effectiveSubmission == workflow.StatusRejected {
			continue
		}
		prev := from.Status(axis)
		if workflow.CanTransition(axis, prev, *to) {
			continue
		}
		out = append(out, FieldError{
			Field:   string(axis),
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("cannot change %s from %s to %s", axis, prev, *to),
		})
	}
	return out
}

func filled(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func blank(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", `""`, "[]", "{}":
		return true
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s) == ""
		}
	}
	return false
}

func dedupe(in []FieldError) []FieldError {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, fe := range in {
		key := fe.Field + "|" + fe.Code
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, fe)
	}
	return out
}
