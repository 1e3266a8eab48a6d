package workflow

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// State is the workflow part of a claim record, embedded in both garansi and
// order rows.
type State struct {
	SubmissionStatus  string `gorm:"column:submission_status" json:"submission_status"`
	ProductStatus     string `gorm:"column:product_status" json:"product_status"`
	FulfillmentStatus string `gorm:"column:fulfillment_status" json:"fulfillment_status"`

	RejectionComment *string       `gorm:"column:rejection_comment" json:"rejection_comment"`
	RejectedBy       *snowflake.ID `gorm:"column:rejected_by" json:"rejected_by"`
	SoldOutComment   *string       `gorm:"column:sold_out_comment" json:"sold_out_comment"`
	SoldOutBy        *snowflake.ID `gorm:"column:sold_out_by" json:"sold_out_by"`
	OnHoldComment    *string       `gorm:"column:on_hold_comment" json:"on_hold_comment"`
	OnHoldUntil      *time.Time    `gorm:"column:on_hold_until" json:"on_hold_until"`
	OnHoldBy         *snowflake.ID `gorm:"column:on_hold_by" json:"on_hold_by"`
	CancelledComment *string       `gorm:"column:cancelled_comment" json:"cancelled_comment"`
	CancelledBy      *snowflake.ID `gorm:"column:cancelled_by" json:"cancelled_by"`

	DeliveryImages datatypes.JSONSlice[string] `gorm:"column:delivery_images" json:"delivery_images"`
	DeliveredAt    *time.Time                  `gorm:"column:delivered_at" json:"delivered_at"`
	DeliveredBy    *snowflake.ID               `gorm:"column:delivered_by" json:"delivered_by"`
}

// NewState returns a state with every axis pending.
func NewState() State {
	return State{
		SubmissionStatus:  StatusPending,
		ProductStatus:     StatusPending,
		FulfillmentStatus: StatusPending,
	}
}

// Status returns the value of axis.
func (s State) Status(axis Axis) string {
	var v string
	switch axis {
	case AxisSubmission:
		v = s.SubmissionStatus
	case AxisProduct:
		v = s.ProductStatus
	case AxisFulfillment:
		v = s.FulfillmentStatus
	}
	if v == "" {
		return StatusPending
	}
	return v
}

// SetStatus assigns value to axis.
func (s *State) SetStatus(axis Axis, value string) {
	switch axis {
	case AxisSubmission:
		s.SubmissionStatus = value
	case AxisProduct:
		s.ProductStatus = value
	case AxisFulfillment:
		s.FulfillmentStatus = value
	}
}

// DeliveryConfirmed reports whether the record carries proof of delivery,
// the precondition of completed.
func (s State) DeliveryConfirmed() bool {
	return s.DeliveredAt != nil && len(s.DeliveryImages) > 0
}

// Apply runs the save rules on s. actor is the employee performing the save
// and may be nil for system saves. It never fails.
func Apply(s *State, actor *snowflake.ID, now time.Time) {
	for _, axis := range Axes() {
		s.SetStatus(axis, s.Status(axis))
	}

	if s.SubmissionStatus == StatusRejected {
		s.ProductStatus = StatusRejected
		s.FulfillmentStatus = StatusRejected
		s.RejectedBy = stamp(s.RejectedBy, actor)
	}
	if s.ProductStatus == ProductSoldOut {
		s.SoldOutBy = stamp(s.SoldOutBy, actor)
	}
	if s.FulfillmentStatus == FulfillmentOnHold {
		s.OnHoldBy = stamp(s.OnHoldBy, actor)
	}
	if s.FulfillmentStatus == FulfillmentCancelled {
		s.CancelledBy = stamp(s.CancelledBy, actor)
	}

	if s.FulfillmentStatus == FulfillmentDelivered || len(s.DeliveryImages) > 0 {
		if s.DeliveredAt == nil {
			t := now.UTC()
			s.DeliveredAt = &t
		}
		s.DeliveredBy = stamp(s.DeliveredBy, actor)
	}
}

func stamp(current, actor *snowflake.ID) *snowflake.ID {
	if current != nil && *current != 0 {
		return current
	}
	if actor == nil || *actor == 0 {
		return current
	}
	id := *actor
	return &id
}
