package domain

import "context"

// Overview holds the pending counts shown on the back-office home page.
type Overview struct {
	PendingOrders    int64 `json:"pending_orders"`
	PendingGaransi   int64 `json:"pending_garansi"`
	PendingCustomers int64 `json:"pending_customers"`
}

type Service interface {
	Overview(ctx context.Context) (Overview, error)
}
