package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/nanolite/internal/claim/validation"
	"github.com/smallbiznis/nanolite/pkg/db/pagination"
)

// filterParams reads the filter[...] query map and collects parse problems
// keyed by the same filter names.
type filterParams struct {
	c      *gin.Context
	values map[string]string
	plain  bool
	errs   []validation.FieldError
}

func newFilterParams(c *gin.Context) *filterParams {
	return &filterParams{c: c, values: c.QueryMap("filter")}
}

// newExportFilterParams also accepts bare keys such as ?customer_id=.
func newExportFilterParams(c *gin.Context) *filterParams {
	f := newFilterParams(c)
	f.plain = true
	return f
}

func (f *filterParams) text(name string) string {
	if v, ok := f.values[name]; ok {
		return strings.TrimSpace(v)
	}
	if f.plain {
		return strings.TrimSpace(f.c.Query(name))
	}
	return ""
}

func (f *filterParams) id(name string) *snowflake.ID {
	raw := f.text(name)
	if raw == "" {
		return nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		f.fail(name, validation.CodeInvalid, fmt.Sprintf("filter[%s] must be an id", name))
		return nil
	}
	return &id
}

func (f *filterParams) boolean(name string) *bool {
	raw := f.text(name)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		f.fail(name, validation.CodeInvalid, fmt.Sprintf("filter[%s] must be true or false", name))
		return nil
	}
	return &value
}

// date parses yyyy-mm-dd. When endOfDay is set the returned time is the last
// instant of that day so range filters include it.
func (f *filterParams) date(name string, endOfDay bool) *time.Time {
	raw := f.text(name)
	if raw == "" {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		f.fail(name, validation.CodeInvalidDate, fmt.Sprintf("filter[%s] must be a date (YYYY-MM-DD)", name))
		return nil
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t
}

func (f *filterParams) fail(name, code, message string) {
	f.errs = append(f.errs, validation.FieldError{
		Field:   "filter." + name,
		Code:    code,
		Message: message,
	})
}

func (f *filterParams) err() error {
	if len(f.errs) == 0 {
		return nil
	}
	return &validation.Errors{Fields: f.errs}
}

func bindPage(c *gin.Context) (pagination.Page, error) {
	var page pagination.Page
	if err := c.ShouldBindQuery(&page); err != nil {
		return pagination.Page{}, newValidationError("page", validation.CodeInvalid, "page and per_page must be numbers")
	}
	return page, nil
}

func parseID(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || id == 0 {
		return 0, ErrNotFound
	}
	return id, nil
}

// requiredQueryID reads a mandatory id query parameter.
func requiredQueryID(c *gin.Context, name string) (snowflake.ID, *validation.FieldError) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, &validation.FieldError{Field: name, Code: validation.CodeRequired, Message: name + " is required"}
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, &validation.FieldError{Field: name, Code: validation.CodeInvalid, Message: name + " must be an id"}
	}
	return id, nil
}

func optionalQueryID(c *gin.Context, name string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, newValidationError(name, validation.CodeInvalid, name+" must be an id")
	}
	return id, nil
}

func parseOptionalTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
