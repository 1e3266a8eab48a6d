// Package workflow holds the three status axes of a claim record, their
// transition graph and the rules applied on every save.
package workflow

// Axis names a status column.
type Axis string

const (
	AxisSubmission  Axis = "submission_status"
	AxisProduct     Axis = "product_status"
	AxisFulfillment Axis = "fulfillment_status"
)

const (
	StatusPending  = "pending"
	StatusRejected = "rejected"

	SubmissionApproved = "approved"

	ProductReadyStock = "ready_stock"
	ProductSoldOut    = "sold_out"

	FulfillmentConfirmed  = "confirmed"
	FulfillmentProcessing = "processing"
	FulfillmentOnHold     = "on_hold"
	FulfillmentDelivered  = "delivered"
	FulfillmentCompleted  = "completed"
	FulfillmentCancelled  = "cancelled"
)

var values = map[Axis][]string{
	AxisSubmission: {StatusPending, SubmissionApproved, StatusRejected},
	AxisProduct:    {StatusPending, ProductReadyStock, ProductSoldOut, StatusRejected},
	AxisFulfillment: {
		StatusPending, FulfillmentConfirmed, FulfillmentProcessing, FulfillmentOnHold,
		FulfillmentDelivered, FulfillmentCompleted, FulfillmentCancelled, StatusRejected,
	},
}

var edges = map[Axis]map[string][]string{
	AxisSubmission: {
		StatusPending: {SubmissionApproved, StatusRejected},
	},
	AxisProduct: {
		StatusPending: {ProductReadyStock, ProductSoldOut, StatusRejected},
	},
	AxisFulfillment: {
		StatusPending:         {FulfillmentConfirmed, FulfillmentCancelled, StatusRejected},
		FulfillmentConfirmed:  {FulfillmentProcessing, FulfillmentCancelled, StatusRejected},
		FulfillmentProcessing: {FulfillmentOnHold, FulfillmentDelivered, FulfillmentCancelled, StatusRejected},
		FulfillmentOnHold:     {FulfillmentProcessing, FulfillmentCompleted, FulfillmentCancelled, StatusRejected},
		FulfillmentDelivered:  {FulfillmentCompleted, FulfillmentCancelled, StatusRejected},
	},
}

// Axes lists the status columns in payload order.
func Axes() []Axis {
	return []Axis{AxisSubmission, AxisProduct, AxisFulfillment}
}

// Values returns the legal values of axis.
func Values(axis Axis) []string {
	return append([]string(nil), values[axis]...)
}

// Valid reports whether value belongs to axis.
func Valid(axis Axis, value string) bool {
	for _, v := range values[axis] {
		if v == value {
			return true
		}
	}
	return false
}

// CanTransition reports whether from -> to is an edge of axis. Assigning the
// current value again is always legal. An empty from is read as pending.
func CanTransition(axis Axis, from, to string) bool {
	if from == "" {
		from = StatusPending
	}
	if !Valid(axis, to) {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range edges[axis][from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether value has no outgoing edges on axis.
func Terminal(axis Axis, value string) bool {
	if value == "" {
		value = StatusPending
	}
	return len(edges[axis][value]) == 0
}
