package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/nanolite/internal/claim/validation"
)

var regionKinds = map[string]bool{
	"province": true,
	"city":     true,
	"district": true,
	"village":  true,
}

// ListRegions lists one level of the region tree, optionally below a parent.
func (s *Server) ListRegions(c *gin.Context) {
	kind := strings.ToLower(strings.TrimSpace(c.DefaultQuery("kind", "province")))
	if !regionKinds[kind] {
		AbortWithError(c, newValidationError("kind", validation.CodeInvalid, "kind must be province, city, district or village"))
		return
	}
	parent := strings.TrimSpace(c.Query("parent_code"))
	if kind != "province" && parent == "" {
		AbortWithError(c, newValidationError("parent_code", validation.CodeRequired, "parent_code is required"))
		return
	}

	regions, err := s.refrepo.ListRegions(c.Request.Context(), kind, parent)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": regions})
}

func (s *Server) ListBrands(c *gin.Context) {
	actor, ok := s.actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	brands, err := s.refrepo.ListBrands(c.Request.Context(), actor.CompanyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": brands})
}

func (s *Server) ListCategories(c *gin.Context) {
	actor, ok := s.actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	brandID, err := optionalQueryID(c, "brand_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	categories, err := s.refrepo.ListCategories(c.Request.Context(), actor.CompanyID, brandID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": categories})
}

func (s *Server) ListProducts(c *gin.Context) {
	actor, ok := s.actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	categoryID, err := optionalQueryID(c, "category_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	products, err := s.refrepo.ListProducts(c.Request.Context(), actor.CompanyID, categoryID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products})
}

func (s *Server) ListCustomerPrograms(c *gin.Context) {
	actor, ok := s.actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	programs, err := s.refrepo.ListCustomerPrograms(c.Request.Context(), actor.CompanyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": programs})
}
