package service

import (
	"github.com/smallbiznis/nanolite/internal/claim/view"
	"github.com/smallbiznis/nanolite/internal/export"
	"github.com/smallbiznis/nanolite/internal/garansi/domain"
	"github.com/smallbiznis/nanolite/internal/reference"
	refdomain "github.com/smallbiznis/nanolite/internal/reference/domain"
)

func (s *Service) resource(g *domain.Garansi, l *reference.Lookup) domain.Resource {
	addr := g.Address.Data()
	return domain.Resource{
		ID:                   g.ID.String(),
		Code:                 g.Code,
		CompanyID:            g.CompanyID.String(),
		DepartmentID:         g.DepartmentID.String(),
		DepartmentName:       l.Name(refdomain.TableDepartments, g.DepartmentID),
		EmployeeID:           g.EmployeeID.String(),
		EmployeeName:         l.Name(refdomain.TableEmployees, g.EmployeeID),
		CustomerID:           g.CustomerID.String(),
		CustomerName:         l.Name(refdomain.TableCustomers, g.CustomerID),
		CustomerCategoryID:   g.CustomerCategoryID.String(),
		CustomerCategoryName: l.Name(refdomain.TableCustomerCategories, g.CustomerCategoryID),
		Phone:                g.Phone,
		Address:              addr.Render(l),
		AddressParts:         addr.Parts,
		Products:             view.Lines(g.Products, l, false),
		PurchaseDate:         view.Date(&g.PurchaseDate),
		ClaimDate:            view.Date(&g.ClaimDate),
		Reason:               g.Reason,
		Note:                 g.Note,
		Images:               view.URLs(s.store, g.Images),
		Status:               view.NewStatus(g.State, s.store),
		PDFURL:               view.OptionalURL(s.store, g.PDFPath),
		ExcelURL:             view.OptionalURL(s.store, g.ExcelPath),
		CreatedAt:            view.DateTime(&g.CreatedAt),
		UpdatedAt:            view.DateTime(&g.UpdatedAt),
	}
}

func exportView(g *domain.Garansi, l *reference.Lookup) export.GaransiView {
	purchase, claimed := g.PurchaseDate, g.ClaimDate
	return export.GaransiView{
		Code:             g.Code,
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
		Company:          l.Name(refdomain.TableCompanies, g.CompanyID),
		Department:       l.Name(refdomain.TableDepartments, g.DepartmentID),
		Employee:         l.Name(refdomain.TableEmployees, g.EmployeeID),
		Customer:         l.Name(refdomain.TableCustomers, g.CustomerID),
		CustomerCategory: l.Name(refdomain.TableCustomerCategories, g.CustomerCategoryID),
		Phone:            g.Phone,
		Address:          g.Address.Data().Render(l),
		PurchaseDate:     &purchase,
		ClaimDate:        &claimed,
		Reason:           g.Reason,
		Note:             view.Deref(g.Note),
		Lines:            view.ExportLines(g.Products, l),
		Status:           view.ExportStatus(g.State),
		Pictures:         g.DeliveryImages,
	}
}
