package server

import (
	"net/http"
	"path"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/nanolite/internal/accessscope"
	"github.com/smallbiznis/nanolite/internal/claim/validation"
	garansidomain "github.com/smallbiznis/nanolite/internal/garansi/domain"
	refdomain "github.com/smallbiznis/nanolite/internal/reference/domain"
)

type customerOption struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Address    any    `json:"address"`
	CategoryID string `json:"category_id"`
}

type categoryOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func bindFields(c *gin.Context) (accessscope.Fields, error) {
	var fields accessscope.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		return nil, invalidRequestError()
	}
	if fields == nil {
		fields = accessscope.Fields{}
	}
	return fields, nil
}

func garansiFilter(c *gin.Context) (garansidomain.ListFilter, error) {
	f := newFilterParams(c)
	filter := garansidomain.ListFilter{
		Code:   f.text("code"),
		Phone:  f.text("phone"),
		Reason: f.text("reason"),

		DepartmentID:       f.id("department_id"),
		EmployeeID:         f.id("employee_id"),
		CustomerID:         f.id("customer_id"),
		CustomerCategoryID: f.id("customer_category_id"),

		SubmissionStatus:  f.text("submission_status"),
		ProductStatus:     f.text("product_status"),
		FulfillmentStatus: f.text("fulfillment_status"),

		PurchaseDateFrom: f.date("purchase_date_from", false),
		PurchaseDateTo:   f.date("purchase_date_to", true),
		ClaimDateFrom:    f.date("claim_date_from", false),
		ClaimDateTo:      f.date("claim_date_to", true),
	}
	return filter, f.err()
}

func (s *Server) ListGaransi(c *gin.Context) {
	filter, err := garansiFilter(c)
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
	resp, err := s.garansiSvc.List(ctx, garansidomain.ListRequest{
		Filter: filter,
		Sort:   c.Query("sort"),
		Page:   page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, err := s.garansiSvc.Present(ctx, resp.Items)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "meta": resp.Meta})
}

func (s *Server) GetGaransi(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	record, err := s.garansiSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respondGaransi(c, http.StatusOK, record)
}

func (s *Server) CreateGaransi(c *gin.Context) {
	fields, err := bindFields(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	record, err := s.garansiSvc.Create(c.Request.Context(), fields)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respondGaransi(c, http.StatusCreated, record)
}

func (s *Server) UpdateGaransi(c *gin.Context) {
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
	record, err := s.garansiSvc.Update(c.Request.Context(), id, fields)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.respondGaransi(c, http.StatusOK, record)
}

func (s *Server) respondGaransi(c *gin.Context, status int, record *garansidomain.Garansi) {
	items, err := s.garansiSvc.Present(c.Request.Context(), []garansidomain.Garansi{*record})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(status, gin.H{"data": items[0]})
}

func (s *Server) DownloadGaransiArtifact(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c, "id")
		if err != nil {
			AbortWithError(c, err)
			return
		}
		key, err := s.garansiSvc.Artifact(c.Request.Context(), id, kind)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		s.sendBlob(c, key)
	}
}

// sendBlob streams a stored artifact as a download.
func (s *Server) sendBlob(c *gin.Context, key string) {
	local, err := s.store.LocalPath(key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.FileAttachment(local, path.Base(key))
}

// ListCustomerCategories lists the categories used by an employee's
// customers.
func (s *Server) ListCustomerCategories(c *gin.Context) {
	actor, ok := s.actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	employeeID, ferr := requiredQueryID(c, "employee_id")
	if ferr != nil {
		AbortWithError(c, &validation.Errors{Fields: []validation.FieldError{*ferr}})
		return
	}
	if s.stages.Scope.OwnRecordsOnly(actor.Role) {
		employeeID = derefID(actor.EmployeeID)
	}

	rows, err := s.refrepo.CustomerCategoriesUsed(c.Request.Context(), actor.CompanyID, employeeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	out := make([]categoryOption, 0, len(rows))
	for _, row := range rows {
		out = append(out, categoryOption{ID: row.ID.String(), Name: row.Name})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// ListCustomers lists active customers of an employee in one category.
func (s *Server) ListCustomers(c *gin.Context) {
	actor, ok := s.actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var fieldErrs []validation.FieldError
	ids := map[string]snowflake.ID{}
	for _, name := range []string{"department_id", "employee_id", "category_id"} {
		id, ferr := requiredQueryID(c, name)
		if ferr != nil {
			fieldErrs = append(fieldErrs, *ferr)
			continue
		}
		ids[name] = id
	}
	if len(fieldErrs) > 0 {
		AbortWithError(c, &validation.Errors{Fields: fieldErrs})
		return
	}

	filter := refdomain.CustomerFilter{
		CompanyID:          actor.CompanyID,
		DepartmentID:       ids["department_id"],
		EmployeeID:         ids["employee_id"],
		CustomerCategoryID: ids["category_id"],
	}
	if s.stages.Scope.OwnRecordsOnly(actor.Role) {
		filter.DepartmentID = derefID(actor.DepartmentID)
		filter.EmployeeID = derefID(actor.EmployeeID)
	}

	rows, err := s.refrepo.CustomersByFilter(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	out := make([]customerOption, 0, len(rows))
	for _, row := range rows {
		opt := customerOption{
			ID:         row.ID.String(),
			Name:       row.Name,
			CategoryID: row.CustomerCategoryID.String(),
		}
		if row.Phone != nil {
			opt.Phone = strings.TrimSpace(*row.Phone)
		}
		if len(row.Address) > 0 {
			opt.Address = row.Address
		}
		out = append(out, opt)
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func derefID(id *snowflake.ID) snowflake.ID {
	if id == nil {
		return 0
	}
	return *id
}
