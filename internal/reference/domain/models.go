package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Region is one administrative area. Kind is province, city, district or
// village; ParentCode links a level to the one above.
type Region struct {
	Code       string  `json:"code" gorm:"primaryKey;column:code"`
	Kind       string  `json:"kind" gorm:"column:kind;not null"`
	Name       string  `json:"name" gorm:"column:name;not null"`
	ParentCode *string `json:"parent_code,omitempty" gorm:"column:parent_code"`
}

func (Region) TableName() string { return "regions" }

type PostalCode struct {
	VillageCode string `json:"village_code" gorm:"primaryKey;column:village_code"`
	PostalCode  string `json:"postal_code" gorm:"column:postal_code;not null"`
}

func (PostalCode) TableName() string { return "postal_codes" }

type Company struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
}

func (Company) TableName() string { return "companies" }

type Department struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	CompanyID snowflake.ID `json:"company_id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
}

func (Department) TableName() string { return "departments" }

type Employee struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	CompanyID    snowflake.ID `json:"company_id"`
	DepartmentID snowflake.ID `json:"department_id"`
	Name         string       `json:"name"`
	Email        *string      `json:"email,omitempty"`
	Phone        *string      `json:"phone,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (Employee) TableName() string { return "employees" }

type CustomerCategory struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	CompanyID snowflake.ID `json:"company_id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
}

func (CustomerCategory) TableName() string { return "customer_categories" }

type CustomerProgram struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	CompanyID snowflake.ID `json:"company_id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
}

func (CustomerProgram) TableName() string { return "customer_programs" }

const (
	CustomerStatusActive  = "active"
	CustomerStatusPending = "pending"
)

type Customer struct {
	ID                 snowflake.ID   `json:"id" gorm:"primaryKey"`
	CompanyID          snowflake.ID   `json:"company_id"`
	DepartmentID       snowflake.ID   `json:"department_id"`
	EmployeeID         snowflake.ID   `json:"employee_id"`
	CustomerCategoryID snowflake.ID   `json:"customer_category_id"`
	Name               string         `json:"name"`
	Phone              *string        `json:"phone,omitempty"`
	Address            datatypes.JSON `json:"address,omitempty"`
	Status             string         `json:"status"`
	CreatedAt          time.Time      `json:"created_at"`
}

func (Customer) TableName() string { return "customers" }

type Brand struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	CompanyID snowflake.ID `json:"company_id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
}

func (Brand) TableName() string { return "brands" }

type Category struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	CompanyID snowflake.ID `json:"company_id"`
	BrandID   snowflake.ID `json:"brand_id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
}

func (Category) TableName() string { return "categories" }

type Product struct {
	ID         snowflake.ID                `json:"id" gorm:"primaryKey"`
	CompanyID  snowflake.ID                `json:"company_id"`
	BrandID    snowflake.ID                `json:"brand_id"`
	CategoryID snowflake.ID                `json:"category_id"`
	Name       string                      `json:"name"`
	Colors     datatypes.JSONSlice[string] `json:"colors"`
	Price      int64                       `json:"price"`
	CreatedAt  time.Time                   `json:"created_at"`
}

func (Product) TableName() string { return "products" }
