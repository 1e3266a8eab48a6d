package service

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/accessscope"
	"github.com/smallbiznis/nanolite/internal/claim/claimtest"
	"github.com/smallbiznis/nanolite/internal/claim/validation"
	"github.com/smallbiznis/nanolite/internal/order/domain"
	"github.com/smallbiznis/nanolite/internal/order/repository"
	refdomain "github.com/smallbiznis/nanolite/internal/reference/domain"
	"github.com/smallbiznis/nanolite/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTestService(t *testing.T) (*claimtest.Harness, domain.Service) {
	t.Helper()
	h := claimtest.New(t, &domain.Order{})
	svc := New(Params{
		DB:        h.DB,
		Log:       h.Log,
		GenID:     h.GenID,
		Repo:      repository.Provide(),
		RefRepo:   h.RefRepo,
		Stages:    h.Stages,
		Artifacts: h.Artifacts,
		Store:     h.Store,
	})
	return h, svc
}

func body(t *testing.T, values map[string]any) accessscope.Fields {
	t.Helper()
	fields := accessscope.Fields{}
	for k, v := range values {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		fields[k] = raw
	}
	return fields
}

func validBody(t *testing.T, extra map[string]any) accessscope.Fields {
	values := map[string]any{
		"department_id":        claimtest.DepartmentID.String(),
		"employee_id":          claimtest.EmployeeID.String(),
		"customer_id":          claimtest.CustomerID.String(),
		"customer_category_id": claimtest.CustomerCategoryID.String(),
		"phone":                "08123456789",
		"address": []map[string]any{{
			"detail":   "Jl. Merdeka 1",
			"province": "31",
			"city":     "3171",
			"district": "317101",
			"village":  "3171011001",
		}},
		"products": []map[string]any{{
			"brand_id":    claimtest.BrandID.String(),
			"category_id": claimtest.CategoryID.String(),
			"product_id":  claimtest.ProductID.String(),
			"color":       0,
			"quantity":    4,
		}},
		"payment_method": "cash",
	}
	for k, v := range extra {
		values[k] = v
	}
	return body(t, values)
}

func TestCreatePricesAndDiscounts(t *testing.T) {
	h, svc := newTestService(t)
	ctx := h.Ctx(claimtest.Admin)

	o, err := svc.Create(ctx, validBody(t, map[string]any{
		"discounts_enabled": true,
		"discount_1":        10,
		"discount_2":        50,
		"discount_note_1":   "Promo toko",
	}))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(o.Code, "ORD-"), o.Code)
	require.Len(t, o.Products, 1)
	require.NotNil(t, o.Products[0].Price)
	assert.Equal(t, claimtest.ProductPrice, *o.Products[0].Price)
	assert.Equal(t, "Putih", string(o.Products[0].Color))
	// 4 x 25000 = 100000, less 10% then 50%.
	assert.Equal(t, int64(45000), o.TotalPrice)
	assert.Equal(t, domain.PaymentUnpaid, o.PaymentStatus)
	require.NotNil(t, o.PDFPath)
	require.NotNil(t, o.ExcelPath)

	resources, err := svc.Present(ctx, []domain.Order{*o})
	require.NoError(t, err)
	r := resources[0]
	assert.Equal(t, "10% + 50%", r.DiscountSummary)
	assert.Equal(t, int64(100000), r.Subtotal)
	assert.Equal(t, "Belum Bayar", r.PaymentStatusLabel)
	assert.Equal(t, "Jl. Merdeka 1, Gambir, Gambir, Jakarta Pusat, DKI Jakarta, 10110", r.Address)
	require.NotNil(t, r.Products[0].Subtotal)
	assert.Equal(t, int64(100000), *r.Products[0].Subtotal)
}

func TestCreateKeepsExplicitPrice(t *testing.T) {
	h, svc := newTestService(t)

	o, err := svc.Create(h.Ctx(claimtest.Admin), validBody(t, map[string]any{
		"products": []map[string]any{{
			"brand_id":    claimtest.BrandID.String(),
			"category_id": claimtest.CategoryID.String(),
			"product_id":  claimtest.ProductID.String(),
			"quantity":    2,
			"price":       20000,
		}},
		"total_after_tax": 44400,
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(40000), o.TotalPrice)
	assert.Equal(t, int64(44400), o.TotalAfterTax)
}

func TestCreateOrderValidation(t *testing.T) {
	cases := []struct {
		name  string
		body  map[string]any
		field string
		code  string
	}{
		{
			name:  "tempo without due date",
			body:  map[string]any{"payment_method": "tempo"},
			field: "payment_due_until",
			code:  validation.CodeRequired,
		},
		{
			name:  "unknown payment method",
			body:  map[string]any{"payment_method": "barter"},
			field: "payment_method",
			code:  validation.CodeInvalid,
		},
		{
			name:  "program without points",
			body:  map[string]any{"program_enabled": true},
			field: "program_points",
			code:  validation.CodeRequired,
		},
		{
			name:  "unknown program",
			body:  map[string]any{"customer_program_id": "404"},
			field: "customer_program_id",
			code:  validation.CodeUnknownReference,
		},
		{
			name: "unknown product",
			body: map[string]any{"products": []map[string]any{{
				"brand_id":    claimtest.BrandID.String(),
				"category_id": claimtest.CategoryID.String(),
				"product_id":  "777",
				"quantity":    1,
			}}},
			field: "products.0.product_id",
			code:  validation.CodeUnknownReference,
		},
		{
			name:  "discount out of range",
			body:  map[string]any{"discount_1": 120},
			field: "discount_1",
			code:  validation.CodeInvalid,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, svc := newTestService(t)
			_, err := svc.Create(h.Ctx(claimtest.Admin), validBody(t, tc.body))
			var verrs *validation.Errors
			require.ErrorAs(t, err, &verrs)
			assert.True(t, verrs.Has(tc.field, tc.code), verrs.Error())
		})
	}
}

func TestTempoWithDueDate(t *testing.T) {
	h, svc := newTestService(t)

	o, err := svc.Create(h.Ctx(claimtest.Admin), validBody(t, map[string]any{
		"payment_method":    "tempo",
		"payment_due_until": "2025-06-30",
	}))
	require.NoError(t, err)
	require.NotNil(t, o.PaymentDueUntil)
	assert.Equal(t, "2025-06-30", o.PaymentDueUntil.Format("2006-01-02"))

	updated, err := svc.Update(h.Ctx(claimtest.Admin), o.ID, body(t, map[string]any{"payment_method": "cash"}))
	require.NoError(t, err)
	assert.Nil(t, updated.PaymentDueUntil)
}

func TestSalesCannotChangePayment(t *testing.T) {
	h, svc := newTestService(t)
	ctx := h.Ctx(claimtest.Sales)

	o, err := svc.Create(ctx, validBody(t, nil))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, o.ID, body(t, map[string]any{
		"payment_status": "paid",
		"discount_1":     90,
	}))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentUnpaid, updated.PaymentStatus)
	assert.Zero(t, updated.Discount1)
	assert.Equal(t, int64(100000), updated.TotalPrice)

	_, err = svc.Update(ctx, o.ID, body(t, map[string]any{"fulfillment_status": "confirmed"}))
	var authErr *validation.AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestUpdateRejectedCascades(t *testing.T) {
	h, svc := newTestService(t)
	ctx := h.Ctx(claimtest.Admin)
	o, err := svc.Create(ctx, validBody(t, nil))
	require.NoError(t, err)

	_, err = svc.Update(ctx, o.ID, body(t, map[string]any{"fulfillment_status": "confirmed"}))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, o.ID, body(t, map[string]any{
		"submission_status": "rejected",
		"rejection_comment": "Customer batal pesan",
	}))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRejected, updated.ProductStatus)
	assert.Equal(t, workflow.StatusRejected, updated.FulfillmentStatus)
}

func TestExportFiltersOrders(t *testing.T) {
	h, svc := newTestService(t)
	ctx := h.Ctx(claimtest.Admin)

	other := refdomain.Product{
		ID: 71, CompanyID: claimtest.CompanyID, BrandID: claimtest.BrandID, CategoryID: claimtest.CategoryID,
		Name: "LED 20W", Colors: []string{"Putih"}, Price: 40000,
	}
	require.NoError(t, h.DB.Create(&other).Error)

	_, err := svc.Create(ctx, validBody(t, map[string]any{
		"discounts_enabled": true,
		"discount_1":        5,
	}))
	require.NoError(t, err)
	h.Clock.Advance(1)
	second, err := svc.Create(ctx, validBody(t, map[string]any{
		"products": []map[string]any{{
			"brand_id":    claimtest.BrandID.String(),
			"category_id": claimtest.CategoryID.String(),
			"product_id":  snowflake.ID(71).String(),
			"quantity":    1,
		}},
	}))
	require.NoError(t, err)

	product := snowflake.ID(71)
	data, err := svc.Export(ctx, domain.ListFilter{ProductID: &product})
	require.NoError(t, err)
	rows := sheetRows(t, data)
	assert.Equal(t, 1, countCodes(rows, second.Code))
	assert.Equal(t, 1, countPrefix(rows, "ORD-"))

	yes := true
	data, err = svc.Export(ctx, domain.ListFilter{HasDiscount: &yes})
	require.NoError(t, err)
	rows = sheetRows(t, data)
	assert.Equal(t, 0, countCodes(rows, second.Code))
	assert.Equal(t, 1, countPrefix(rows, "ORD-"))

	data, err = svc.Export(h.Ctx(claimtest.OtherSales), domain.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, countPrefix(sheetRows(t, data), "ORD-"))
}

func TestBackfillOrders(t *testing.T) {
	h, svc := newTestService(t)
	ctx := h.Ctx(claimtest.Admin)

	h.Renderer.Fail = true
	o, err := svc.Create(ctx, validBody(t, nil))
	require.NoError(t, err)
	assert.Nil(t, o.ExcelPath)

	h.Renderer.Fail = false
	fixed, err := svc.Backfill(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	key, err := svc.Artifact(ctx, o.ID, "excel")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(key, ".xlsx"))
}

func sheetRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	return rows
}

func countCodes(rows [][]string, code string) int {
	n := 0
	for _, row := range rows {
		for _, cell := range row {
			if cell == code {
				n++
			}
		}
	}
	return n
}

func countPrefix(rows [][]string, prefix string) int {
	n := 0
	for _, row := range rows {
		for _, cell := range row {
			if strings.HasPrefix(cell, prefix) {
				n++
			}
		}
	}
	return n
}
