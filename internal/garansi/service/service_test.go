package service

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/nanolite/internal/accessscope"
	auditdomain "github.com/smallbiznis/nanolite/internal/audit/domain"
	"github.com/smallbiznis/nanolite/internal/claim/claimtest"
	"github.com/smallbiznis/nanolite/internal/claim/validation"
	"github.com/smallbiznis/nanolite/internal/garansi/domain"
	"github.com/smallbiznis/nanolite/internal/garansi/repository"
	refdomain "github.com/smallbiznis/nanolite/internal/reference/domain"
	"github.com/smallbiznis/nanolite/internal/workflow"
	"github.com/smallbiznis/nanolite/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newTestService(t *testing.T) (*claimtest.Harness, domain.Service) {
	t.Helper()
	h := claimtest.New(t, &domain.Garansi{})
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
		"address":              "Jl. Merdeka 1",
		"products": []map[string]any{{
			"brand_id":    claimtest.BrandID.String(),
			"category_id": claimtest.CategoryID.String(),
			"product_id":  claimtest.ProductID.String(),
			"color":       1,
			"quantity":    2,
		}},
		"purchase_date": "2025-04-01",
		"claim_date":    "2025-04-20",
		"reason":        "Lampu mati setelah dua minggu",
	}
	for k, v := range extra {
		values[k] = v
	}
	return body(t, values)
}

func TestCreateStoresRecordAndArtifacts(t *testing.T) {
	h, svc := newTestService(t)
	ctx := h.Ctx(claimtest.Admin)

	g, err := svc.Create(ctx, validBody(t, nil))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(g.Code, "GAR-20250501"), g.Code)
	assert.Equal(t, workflow.StatusPending, g.SubmissionStatus)
	assert.Equal(t, workflow.StatusPending, g.FulfillmentStatus)
	require.Len(t, g.Products, 1)
	assert.Equal(t, "Kuning", string(g.Products[0].Color))
	require.NotNil(t, g.PDFPath)
	require.NotNil(t, g.ExcelPath)
	assert.True(t, h.Store.Exists(*g.PDFPath))
	assert.True(t, h.Store.Exists(*g.ExcelPath))

	assert.Equal(t, []string{auditdomain.ActionGaransiCreate}, h.AuditActions(t))

	resources, err := svc.Present(ctx, []domain.Garansi{*g})
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "Toko Terang", resources[0].CustomerName)
	assert.Equal(t, "01/04/2025", resources[0].PurchaseDate)
	assert.Equal(t, "LED 10W", resources[0].Products[0].ProductName)
}

func TestCreateForcesOwnerForSales(t *testing.T) {
	h, svc := newTestService(t)

	g, err := svc.Create(h.Ctx(claimtest.Sales), validBody(t, map[string]any{
		"employee_id": claimtest.OtherEmployeeID.String(),
	}))
	require.NoError(t, err)
	assert.Equal(t, claimtest.EmployeeID, g.EmployeeID)
	assert.Equal(t, claimtest.DepartmentID, g.DepartmentID)
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name  string
		body  map[string]any
		field string
		code  string
	}{
		{
			name:  "missing reason",
			body:  map[string]any{"reason": "  "},
			field: "reason",
			code:  validation.CodeRequired,
		},
		{
			name:  "claim before purchase",
			body:  map[string]any{"claim_date": "2025-03-01"},
			field: "claim_date",
			code:  validation.CodeDateOrder,
		},
		{
			name:  "unknown customer",
			body:  map[string]any{"customer_id": "999"},
			field: "customer_id",
			code:  validation.CodeUnknownReference,
		},
		{
			name:  "rejected without comment",
			body:  map[string]any{"submission_status": "rejected"},
			field: "rejection_comment",
			code:  validation.CodeRequired,
		},
		{
			name:  "malformed date",
			body:  map[string]any{"purchase_date": "01/04/2025"},
			field: "purchase_date",
			code:  validation.CodeInvalidDate,
		},
		{
			name:  "skipping a fulfillment step",
			body:  map[string]any{"fulfillment_status": "delivered"},
			field: "fulfillment_status",
			code:  validation.CodeInvalidTransition,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, svc := newTestService(t)
			_, err := svc.Create(h.Ctx(claimtest.Admin), validBody(t, tc.body))
			var verrs *validation.Errors
			require.ErrorAs(t, err, &verrs)
			assert.True(t, verrs.Has(tc.field, tc.code), verrs.Error())

			var count int64
			require.NoError(t, h.DB.Model(&domain.Garansi{}).Count(&count).Error)
			assert.Zero(t, count)
		})
	}
}

func TestCreateRejectedCascades(t *testing.T) {
	h, svc := newTestService(t)

	g, err := svc.Create(h.Ctx(claimtest.Admin), validBody(t, map[string]any{
		"submission_status": "rejected",
		"rejection_comment": "Garansi sudah habis",
	}))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRejected, g.ProductStatus)
	assert.Equal(t, workflow.StatusRejected, g.FulfillmentStatus)
	// Admin has no employee link, so nobody is stamped.
	assert.Nil(t, g.RejectedBy)

	assert.Equal(t, []string{
		auditdomain.ActionGaransiCreate,
		auditdomain.ActionGaransiStatusChange,
		auditdomain.ActionGaransiStatusChange,
		auditdomain.ActionGaransiStatusChange,
	}, h.AuditActions(t))
}

func TestSalesCannotChangeStatus(t *testing.T) {
	h, svc := newTestService(t)

	_, err := svc.Create(h.Ctx(claimtest.Sales), validBody(t, map[string]any{
		"submission_status": "approved",
	}))
	var authErr *validation.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	require.Len(t, authErr.Fields, 1)
	assert.Equal(t, "submission_status", authErr.Fields[0].Field)
}

func TestCompletedRequiresDelivery(t *testing.T) {
	steps := func(t *testing.T, svc domain.Service, ctx context.Context, g *domain.Garansi, bodies ...map[string]any) error {
		t.Helper()
		for _, b := range bodies {
			if _, err := svc.Update(ctx, g.ID, body(t, b)); err != nil {
				return err
			}
		}
		return nil
	}

	t.Run("without delivery proof", func(t *testing.T) {
		h, svc := newTestService(t)
		ctx := h.Ctx(claimtest.Admin)
		g, err := svc.Create(ctx, validBody(t, nil))
		require.NoError(t, err)

		require.NoError(t, steps(t, svc, ctx, g,
			map[string]any{"fulfillment_status": "confirmed"},
			map[string]any{"fulfillment_status": "processing"},
			map[string]any{
				"fulfillment_status": "on_hold",
				"on_hold_comment":    "Menunggu stok",
				"on_hold_until":      "2025-06-01T10:00",
			},
		))

		err = steps(t, svc, ctx, g, map[string]any{"fulfillment_status": "completed"})
		var verrs *validation.Errors
		require.ErrorAs(t, err, &verrs)
		assert.True(t, verrs.Has("fulfillment_status", validation.CodeDeliveryNotConfirmed), verrs.Error())
	})

	t.Run("after delivery", func(t *testing.T) {
		h, svc := newTestService(t)
		ctx := h.Ctx(claimtest.Admin)
		g, err := svc.Create(ctx, validBody(t, nil))
		require.NoError(t, err)

		require.NoError(t, steps(t, svc, ctx, g,
			map[string]any{"fulfillment_status": "confirmed"},
			map[string]any{"fulfillment_status": "processing"},
			map[string]any{"fulfillment_status": "delivered", "delivery_images": []string{claimtest.PNG}},
			map[string]any{"fulfillment_status": "completed"},
		))

		stored, err := svc.Get(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.FulfillmentCompleted, stored.FulfillmentStatus)
		require.NotNil(t, stored.DeliveredAt)
		assert.Len(t, stored.DeliveryImages, 1)
	})
}

func TestUpdateKeepsCallerDeliveryTime(t *testing.T) {
	h, svc := newTestService(t)
	ctx := h.Ctx(claimtest.Admin)
	g, err := svc.Create(ctx, validBody(t, nil))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, g.ID, body(t, map[string]any{
		"delivery_images": []string{claimtest.PNG},
		"delivered_at":    "2025-04-25T09:00:00Z",
	}))
	require.NoError(t, err)
	require.NotNil(t, updated.DeliveredAt)
	assert.True(t, updated.DeliveredAt.Equal(time.Date(2025, 4, 25, 9, 0, 0, 0, time.UTC)), updated.DeliveredAt.String())
	assert.False(t, updated.DeliveredAt.Equal(claimtest.Now))

	stored, err := svc.Get(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DeliveredAt)
	assert.True(t, stored.DeliveredAt.Equal(time.Date(2025, 4, 25, 9, 0, 0, 0, time.UTC)))
}

func TestUpdateKeepsResolvedNumericColorNames(t *testing.T) {
	h, svc := newTestService(t)
	ctx := h.Ctx(claimtest.Admin)
	require.NoError(t, h.DB.Model(&refdomain.Product{ID: claimtest.ProductID}).
		Update("colors", datatypes.JSONSlice[string]{"2", "X", "Y"}).Error)

	g, err := svc.Create(ctx, validBody(t, map[string]any{
		"products": []map[string]any{{
			"brand_id":    claimtest.BrandID.String(),
			"category_id": claimtest.CategoryID.String(),
			"product_id":  claimtest.ProductID.String(),
			"color":       0,
			"quantity":    1,
		}},
	}))
	require.NoError(t, err)
	assert.Equal(t, "2", string(g.Products[0].Color))

	updated, err := svc.Update(ctx, g.ID, body(t, map[string]any{"reason": "Masih mati"}))
	require.NoError(t, err)
	assert.Equal(t, "2", string(updated.Products[0].Color))

	stored, err := svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", string(stored.Products[0].Color))
}

func TestUpdateStripsRestrictedFields(t *testing.T) {
	h, svc := newTestService(t)
	ctx := h.Ctx(claimtest.Sales)
	g, err := svc.Create(ctx, validBody(t, nil))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, g.ID, body(t, map[string]any{
		"department_id":   "99",
		"reason":          "changed",
		"delivery_images": []string{claimtest.PNG},
	}))
	require.NoError(t, err)
	assert.Equal(t, claimtest.DepartmentID, updated.DepartmentID)
	assert.Equal(t, "Lampu mati setelah dua minggu", updated.Reason)
	require.Len(t, updated.DeliveryImages, 1)
	require.NotNil(t, updated.DeliveredBy)
	assert.Equal(t, claimtest.EmployeeID, *updated.DeliveredBy)
}

func TestUpdateKeepsExistingImages(t *testing.T) {
	h, svc := newTestService(t)
	ctx := h.Ctx(claimtest.Admin)

	g, err := svc.Create(ctx, validBody(t, map[string]any{
		"images": []string{claimtest.PNG, "data:image/png;base64,@@@"},
	}))
	require.NoError(t, err)
	require.Len(t, g.Images, 1)
	assert.True(t, strings.HasPrefix(g.Images[0], "garansi-photos/"))
	assert.True(t, h.Store.Exists(g.Images[0]))

	updated, err := svc.Update(ctx, g.ID, body(t, map[string]any{
		"images": []string{claimtest.PNG},
	}))
	require.NoError(t, err)
	require.Len(t, updated.Images, 2)
	assert.Equal(t, g.Images[0], updated.Images[0])
}

func TestUpdateRejectsBlankRequiredField(t *testing.T) {
	h, svc := newTestService(t)
	ctx := h.Ctx(claimtest.Admin)
	g, err := svc.Create(ctx, validBody(t, nil))
	require.NoError(t, err)

	_, err = svc.Update(ctx, g.ID, body(t, map[string]any{"phone": ""}))
	var verrs *validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.True(t, verrs.Has("phone", validation.CodeRequired))

	_, err = svc.Update(ctx, g.ID, body(t, map[string]any{"note": "Sudah dicek"}))
	require.NoError(t, err)
}

func TestListScopesToOwner(t *testing.T) {
	h, svc := newTestService(t)

	mine, err := svc.Create(h.Ctx(claimtest.Sales), validBody(t, nil))
	require.NoError(t, err)
	theirs, err := svc.Create(h.Ctx(claimtest.OtherSales), validBody(t, map[string]any{"reason": "Kabel putus"}))
	require.NoError(t, err)

	all, err := svc.List(h.Ctx(claimtest.Admin), domain.ListRequest{Page: pagination.Page{}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Meta.Total)

	own, err := svc.List(h.Ctx(claimtest.Sales), domain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, own.Items, 1)
	assert.Equal(t, mine.ID, own.Items[0].ID)

	filtered, err := svc.List(h.Ctx(claimtest.Admin), domain.ListRequest{
		Filter: domain.ListFilter{Reason: "kabel"},
		Sort:   "code",
	})
	require.NoError(t, err)
	require.Len(t, filtered.Items, 1)
	assert.Equal(t, theirs.ID, filtered.Items[0].ID)

	_, err = svc.Get(h.Ctx(claimtest.Sales), theirs.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.List(h.Ctx(claimtest.Admin), domain.ListRequest{Sort: "password"})
	var verrs *validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.True(t, verrs.Has("sort", validation.CodeInvalid))
}

func TestArtifactRegeneratesMissingFile(t *testing.T) {
	h, svc := newTestService(t)
	ctx := h.Ctx(claimtest.Admin)
	g, err := svc.Create(ctx, validBody(t, nil))
	require.NoError(t, err)
	require.NotNil(t, g.PDFPath)

	path, err := h.Store.LocalPath(*g.PDFPath)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	key, err := svc.Artifact(ctx, g.ID, "pdf")
	require.NoError(t, err)
	assert.True(t, h.Store.Exists(key))

	_, err = svc.Artifact(ctx, g.ID, "docx")
	assert.ErrorIs(t, err, domain.ErrUnknownArtifactKind)
}

func TestBackfillRendersMissingArtifacts(t *testing.T) {
	h, svc := newTestService(t)
	ctx := h.Ctx(claimtest.Admin)

	h.Renderer.Fail = true
	g, err := svc.Create(ctx, validBody(t, nil))
	require.NoError(t, err)
	assert.Nil(t, g.PDFPath)

	_, err = svc.Artifact(ctx, g.ID, "excel")
	assert.ErrorIs(t, err, domain.ErrArtifactUnavailable)

	h.Renderer.Fail = false
	fixed, err := svc.Backfill(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	stored, err := svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.PDFPath)
	assert.NotNil(t, stored.ExcelPath)

	fixed, err = svc.Backfill(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}
