package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/nanolite/internal/order/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func orderFilter(f *filterParams) (orderdomain.ListFilter, error) {
	filter := orderdomain.ListFilter{
		Code:  f.text("code"),
		Phone: f.text("phone"),

		DepartmentID:       f.id("department_id"),
		EmployeeID:         f.id("employee_id"),
		CustomerID:         f.id("customer_id"),
		CustomerCategoryID: f.id("customer_category_id"),
		CustomerProgramID:  f.id("customer_program_id"),

		PaymentMethod:     f.text("payment_method"),
		PaymentStatus:     f.text("payment_status"),
		SubmissionStatus:  f.text("submission_status"),
		ProductStatus:     f.text("product_status"),
		FulfillmentStatus: f.text("fulfillment_status"),

		HasDiscount:      f.boolean("has_discount"),
		HasProgramPoints: f.boolean("has_program_points"),
		HasRewardPoints:  f.boolean("has_reward_points"),

		BrandID:    f.id("brand_id"),
		CategoryID: f.id("category_id"),
		ProductID:  f.id("product_id"),
	}
	return filter, f.err()
}

func (s *Server) ListOrders(c *gin.Context) {
	filter, err := orderFilter(newFilterParams(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	page, err := bindPage(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	resp, err := s.orderSvc.List(ctx, orderdomain.ListRequest{
		Filter: filter,
		Sort:   c.Query("sort"),
		Page:   page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, err := s.orderSvc.Present(ctx, resp.Items)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "meta": resp.Meta})
}

func (s *Server) GetOrder(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	record, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respondOrder(c, http.StatusOK, record)
}

func (s *Server) CreateOrder(c *gin.Context) {
	fields, err := bindFields(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	record, err := s.orderSvc.Create(c.Request.Context(), fields)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respondOrder(c, http.StatusCreated, record)
}

func (s *Server) UpdateOrder(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	fields, err := bindFields(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	record, err := s.orderSvc.Update(c.Request.Context(), id, fields)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respondOrder(c, http.StatusOK, record)
}

func (s *Server) respondOrder(c *gin.Context, status int, record *orderdomain.Order) {
	items, err := s.orderSvc.Present(c.Request.Context(), []orderdomain.Order{*record})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(status, gin.H{"data": items[0]})
}

func (s *Server) DownloadOrderArtifact(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c, "id")
		if err != nil {
			AbortWithError(c, err)
			return
		}
		key, err := s.orderSvc.Artifact(c.Request.Context(), id, kind)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		s.sendBlob(c, key)
	}
}

// ExportOrders streams every order matching the filter as one spreadsheet.
func (s *Server) ExportOrders(c *gin.Context) {
	filter, err := orderFilter(newExportFilterParams(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	data, err := s.orderSvc.Export(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	name := fmt.Sprintf("Orders-%s.xlsx", s.stages.Clock.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, data)
}
