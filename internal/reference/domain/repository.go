package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var ErrUnknownTable = errors.New("unknown_reference_table")

// Table names a reference table whose rows carry a display name.
type Table string

const (
	TableCompanies          Table = "companies"
	TableDepartments        Table = "departments"
	TableEmployees          Table = "employees"
	TableCustomers          Table = "customers"
	TableCustomerCategories Table = "customer_categories"
	TableCustomerPrograms   Table = "customer_programs"
	TableBrands             Table = "brands"
	TableCategories         Table = "categories"
	TableProducts           Table = "products"
)

// Valid reports whether t is a known reference table.
func (t Table) Valid() bool {
	switch t {
	case TableCompanies, TableDepartments, TableEmployees, TableCustomers,
		TableCustomerCategories, TableCustomerPrograms, TableBrands,
		TableCategories, TableProducts:
		return true
	}
	return false
}

type CustomerFilter struct {
	CompanyID          snowflake.ID
	DepartmentID       snowflake.ID
	EmployeeID         snowflake.ID
	CustomerCategoryID snowflake.ID
}

type Repository interface {
	// Names returns id -> name for the rows of t that exist in companyID.
	Names(ctx context.Context, t Table, companyID snowflake.ID, ids []snowflake.ID) (map[snowflake.ID]string, error)
	Products(ctx context.Context, companyID snowflake.ID, ids []snowflake.ID) ([]Product, error)
	RegionNames(ctx context.Context, codes []string) ([]Region, error)
	PostalCodes(ctx context.Context, villageCodes []string) (map[string]string, error)
	ListRegions(ctx context.Context, kind string, parentCode string) ([]Region, error)

	CustomerCategoriesUsed(ctx context.Context, companyID, employeeID snowflake.ID) ([]CustomerCategory, error)
	CustomersByFilter(ctx context.Context, filter CustomerFilter) ([]Customer, error)
	ListCustomerPrograms(ctx context.Context, companyID snowflake.ID) ([]CustomerProgram, error)
	ListBrands(ctx context.Context, companyID snowflake.ID) ([]Brand, error)
	ListCategories(ctx context.Context, companyID, brandID snowflake.ID) ([]Category, error)
	ListProducts(ctx context.Context, companyID, categoryID snowflake.ID) ([]Product, error)
}
