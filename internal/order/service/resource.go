package service

import (
	"github.com/smallbiznis/nanolite/internal/claim/view"
	"github.com/smallbiznis/nanolite/internal/export"
	"github.com/smallbiznis/nanolite/internal/order/domain"
	"github.com/smallbiznis/nanolite/internal/reference"
	refdomain "github.com/smallbiznis/nanolite/internal/reference/domain"
)

func (s *Service) resource(o *domain.Order, l *reference.Lookup) domain.Resource {
	addr := o.Address.Data()
	v := exportView(o, l)
	return domain.Resource{
		ID:                   o.ID.String(),
		Code:                 o.Code,
		CompanyID:            o.CompanyID.String(),
		DepartmentID:         o.DepartmentID.String(),
		DepartmentName:       l.Name(refdomain.TableDepartments, o.DepartmentID),
		EmployeeID:           o.EmployeeID.String(),
		EmployeeName:         l.Name(refdomain.TableEmployees, o.EmployeeID),
		CustomerID:           o.CustomerID.String(),
		CustomerName:         l.Name(refdomain.TableCustomers, o.CustomerID),
		CustomerCategoryID:   o.CustomerCategoryID.String(),
		CustomerCategoryName: l.Name(refdomain.TableCustomerCategories, o.CustomerCategoryID),
		CustomerProgramID:    view.OptionalID(o.CustomerProgramID),
		CustomerProgramName:  l.OptionalName(refdomain.TableCustomerPrograms, o.CustomerProgramID),
		Phone:                o.Phone,
		Address:              addr.Render(l),
		AddressParts:         addr.Parts,
		Products:             view.Lines(o.Products, l, true),

		DiscountsEnabled: o.DiscountsEnabled,
		Discounts:        o.Discounts(),
		DiscountNotes:    o.DiscountNotes(),
		DiscountSummary:  v.DiscountSummary(),
		ProgramEnabled:   o.ProgramEnabled,
		ProgramPoints:    o.ProgramPoints,
		RewardEnabled:    o.RewardEnabled,
		RewardPoints:     o.RewardPoints,

		PaymentMethod:      o.PaymentMethod,
		PaymentMethodLabel: export.PaymentMethodLabel(o.PaymentMethod),
		PaymentDueUntil:    view.Date(o.PaymentDueUntil),
		PaymentStatus:      o.PaymentStatus,
		PaymentStatusLabel: export.PaymentLabel(o.PaymentStatus),

		Subtotal:      v.Subtotal(),
		TotalPrice:    o.TotalPrice,
		TotalAfterTax: o.TotalAfterTax,

		Images:    view.URLs(s.store, o.Images),
		Status:    view.NewStatus(o.State, s.store),
		PDFURL:    view.OptionalURL(s.store, o.PDFPath),
		ExcelURL:  view.OptionalURL(s.store, o.ExcelPath),
		CreatedAt: view.DateTime(&o.CreatedAt),
		UpdatedAt: view.DateTime(&o.UpdatedAt),
	}
}

func exportView(o *domain.Order, l *reference.Lookup) export.OrderView {
	return export.OrderView{
		Code:             o.Code,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		Company:          l.Name(refdomain.TableCompanies, o.CompanyID),
		Department:       l.Name(refdomain.TableDepartments, o.DepartmentID),
		Employee:         l.Name(refdomain.TableEmployees, o.EmployeeID),
		Customer:         l.Name(refdomain.TableCustomers, o.CustomerID),
		CustomerCategory: l.Name(refdomain.TableCustomerCategories, o.CustomerCategoryID),
		Program:          l.OptionalName(refdomain.TableCustomerPrograms, o.CustomerProgramID),
		Phone:            o.Phone,
		Address:          o.Address.Data().Render(l),
		Lines:            view.ExportLines(o.Products, l),
		ProgramPoints:    o.ProgramPoints,
		RewardPoints:     o.RewardPoints,
		DiscountsEnabled: o.DiscountsEnabled,
		Discounts:        o.Discounts(),
		DiscountNotes:    o.DiscountNotes(),
		TotalAfterTax:    o.TotalAfterTax,
		PaymentMethod:    o.PaymentMethod,
		PaymentDueUntil:  o.PaymentDueUntil,
		PaymentStatus:    o.PaymentStatus,
		Status:           view.ExportStatus(o.State),
		Pictures:         o.DeliveryImages,
	}
}
