package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/accessscope"
	"github.com/smallbiznis/nanolite/internal/artifact"
	auditdomain "github.com/smallbiznis/nanolite/internal/audit/domain"
	authdomain "github.com/smallbiznis/nanolite/internal/auth/domain"
	"github.com/smallbiznis/nanolite/internal/authorization"
	"github.com/smallbiznis/nanolite/internal/blobstore"
	"github.com/smallbiznis/nanolite/internal/claim"
	"github.com/smallbiznis/nanolite/internal/claim/pipeline"
	"github.com/smallbiznis/nanolite/internal/claim/validation"
	"github.com/smallbiznis/nanolite/internal/export"
	"github.com/smallbiznis/nanolite/internal/imageingest"
	"github.com/smallbiznis/nanolite/internal/order/domain"
	"github.com/smallbiznis/nanolite/internal/reference"
	refdomain "github.com/smallbiznis/nanolite/internal/reference/domain"
	"github.com/smallbiznis/nanolite/internal/workflow"
	dbpkg "github.com/smallbiznis/nanolite/pkg/db"
	"github.com/smallbiznis/nanolite/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	entity       = "order"
	codeAttempts = 5
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	RefRepo   refdomain.Repository
	Stages    *pipeline.Stages
	Artifacts *artifact.Writer
	Store     blobstore.Store
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	refRepo   refdomain.Repository
	stages    *pipeline.Stages
	artifacts *artifact.Writer
	store     blobstore.Store
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("order.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		refRepo:   p.RefRepo,
		stages:    p.Stages,
		artifacts: p.Artifacts,
		store:     p.Store,
	}
}

func (s *Service) Create(ctx context.Context, fields accessscope.Fields) (*domain.Order, error) {
	actor, err := s.stages.Actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.stages.Authorize(ctx, actor, authorization.ObjectOrder, authorization.ActionCreate); err != nil {
		return nil, err
	}

	fields = pipeline.Clone(fields)
	s.stages.Scope.ApplyForced(actor, fields)

	var payload domain.Payload
	if err := validation.Decode(fields, &payload); err != nil {
		return nil, err
	}

	now := s.stages.Clock.Now()
	record := &domain.Order{
		CompanyID:     actor.CompanyID,
		PaymentStatus: domain.PaymentUnpaid,
		State:         workflow.NewState(),
	}
	merge(record, payload)

	lookup, err := s.load(ctx, record)
	if err != nil {
		return nil, err
	}
	price(record, lookup, payload.Products != nil)

	if err := s.stages.Validator.Validate(ctx, validation.Request{
		Object:    authorization.ObjectOrder,
		CompanyID: actor.CompanyID,
		Actor:     actor,
		Payload:   payload,
		Present:   fields,
		Required:  domain.RequiredFields,
		Changes:   payload.StatusChange,
		Cross:     crossRules(payload, record, lookup),
	}); err != nil {
		return nil, err
	}

	record.Images = s.stages.Ingester.Ingest(ctx, payload.Images, nil, imageingest.FolderOrderPhotos)
	record.DeliveryImages = s.stages.Ingester.Ingest(ctx, payload.DeliveryImages, nil, imageingest.FolderOrderDeliveryPhotos)

	payload.StatusChange.ApplyTo(&record.State)
	workflow.Apply(&record.State, actor.EmployeeID, now)
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := s.insert(ctx, record, now); err != nil {
		return nil, err
	}

	s.stages.Audit(ctx, actor, auditdomain.ActionOrderCreate, entity, record.ID, map[string]any{
		"code":               record.Code,
		"total_price":        record.TotalPrice,
		"submission_status":  record.SubmissionStatus,
		"product_status":     record.ProductStatus,
		"fulfillment_status": record.FulfillmentStatus,
	})
	s.stages.AuditStatusChanges(ctx, actor, auditdomain.ActionOrderStatusChange, entity, record.ID,
		pipeline.Changes(workflow.NewState(), record.State))
	s.stages.Metrics.RecordWrite(ctx, entity, "create")

	s.refresh(ctx, record, lookup)
	return record, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, fields accessscope.Fields) (*domain.Order, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.stages.Actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.stages.Authorize(ctx, actor, authorization.ObjectOrder, authorization.ActionUpdate); err != nil {
		return nil, err
	}
	current, err := s.find(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	fields = pipeline.Clone(fields)
	if removed := s.stages.Scope.Strip(actor.Role, fields); len(removed) > 0 {
		s.log.Debug("stripped restricted fields",
			zap.String("role", actor.Role),
			zap.Strings("fields", removed),
		)
	}

	var payload domain.Payload
	if err := validation.Decode(fields, &payload); err != nil {
		return nil, err
	}

	now := s.stages.Clock.Now()
	record := *current
	merge(&record, payload)

	lookup, err := s.load(ctx, &record)
	if err != nil {
		return nil, err
	}
	price(&record, lookup, payload.Products != nil)

	if err := s.stages.Validator.Validate(ctx, validation.Request{
		Object:    authorization.ObjectOrder,
		CompanyID: actor.CompanyID,
		Actor:     actor,
		Payload:   payload,
		Present:   fields,
		Required:  pipeline.PresentOf(domain.RequiredFields, fields),
		Changes:   payload.StatusChange,
		Current:   &current.State,
		Cross:     crossRules(payload, &record, lookup),
	}); err != nil {
		return nil, err
	}

	record.Images = s.stages.Ingester.Ingest(ctx, payload.Images, current.Images, imageingest.FolderOrderPhotos)
	record.DeliveryImages = s.stages.Ingester.Ingest(ctx, payload.DeliveryImages, current.DeliveryImages, imageingest.FolderOrderDeliveryPhotos)

	payload.StatusChange.ApplyTo(&record.State)
	workflow.Apply(&record.State, actor.EmployeeID, now)
	record.UpdatedAt = now

	if err := s.repo.Update(ctx, s.db, &record); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	s.stages.Audit(ctx, actor, auditdomain.ActionOrderUpdate, entity, record.ID, map[string]any{
		"code":   record.Code,
		"fields": fieldNames(fields),
	})
	s.stages.AuditStatusChanges(ctx, actor, auditdomain.ActionOrderStatusChange, entity, record.ID,
		pipeline.Changes(current.State, record.State))
	s.stages.Metrics.RecordWrite(ctx, entity, "update")

	s.refresh(ctx, &record, lookup)
	return &record, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.stages.Actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.stages.Authorize(ctx, actor, authorization.ObjectOrder, authorization.ActionView); err != nil {
		return nil, err
	}
	return s.find(ctx, actor, id)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	actor, err := s.stages.Actor(ctx)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if err := s.stages.Authorize(ctx, actor, authorization.ObjectOrder, authorization.ActionView); err != nil {
		return domain.ListResponse{}, err
	}

	order, err := domain.ParseSort(req.Sort)
	if err != nil {
		return domain.ListResponse{}, &validation.Errors{Fields: []validation.FieldError{{
			Field:   "sort",
			Code:    validation.CodeInvalid,
			Message: fmt.Sprintf("cannot sort by %q", req.Sort),
		}}}
	}

	filter := req.Filter
	filter.Owner = s.stages.Scope.RecordFilter(actor)
	page := req.Page.Normalize()

	items, total, err := s.repo.List(ctx, s.db, actor.CompanyID, filter, order, page)
	if err != nil {
		return domain.ListResponse{}, fmt.Errorf("list orders: %w", err)
	}
	return domain.ListResponse{
		Items: items,
		Meta:  pagination.NewPageMeta(page, total),
	}, nil
}

func (s *Service) Present(ctx context.Context, records []domain.Order) ([]domain.Resource, error) {
	lookups, err := s.lookups(ctx, records)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Resource, 0, len(records))
	for i := range records {
		out = append(out, s.resource(&records[i], lookups[records[i].CompanyID]))
	}
	return out, nil
}

func (s *Service) Export(ctx context.Context, filter domain.ListFilter) ([]byte, error) {
	actor, err := s.stages.Actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.stages.Authorize(ctx, actor, authorization.ObjectOrder, authorization.ActionExport); err != nil {
		return nil, err
	}

	filter.Owner = s.stages.Scope.RecordFilter(actor)
	records, err := s.repo.ListForExport(ctx, s.db, actor.CompanyID, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders for export: %w", err)
	}
	lookups, err := s.lookups(ctx, records)
	if err != nil {
		return nil, err
	}

	views := make([]export.OrderView, 0, len(records))
	for i := range records {
		views = append(views, exportView(&records[i], lookups[records[i].CompanyID]))
	}
	data, err := s.artifacts.OrderList(ctx, views)
	if err != nil {
		return nil, fmt.Errorf("render order export: %w", err)
	}
	s.log.Info("order export rendered",
		zap.Int("orders", len(records)),
		zap.Int("bytes", len(data)),
	)
	return data, nil
}

func (s *Service) Artifact(ctx context.Context, id snowflake.ID, kind string) (string, error) {
	if kind != artifact.KindPDF && kind != artifact.KindExcel {
		return "", domain.ErrUnknownArtifactKind
	}
	actor, err := s.stages.Actor(ctx)
	if err != nil {
		return "", err
	}
	if err := s.stages.Authorize(ctx, actor, authorization.ObjectOrder, authorization.ActionExport); err != nil {
		return "", err
	}
	record, err := s.find(ctx, actor, id)
	if err != nil {
		return "", err
	}

	if key := pick(artifact.Paths{PDF: record.PDFPath, Excel: record.ExcelPath}, kind); key != "" && s.store.Exists(key) {
		return key, nil
	}

	lookup, err := s.load(ctx, record)
	if err != nil {
		return "", err
	}
	key := pick(s.refresh(ctx, record, lookup), kind)
	if key == "" {
		return "", domain.ErrArtifactUnavailable
	}
	return key, nil
}

func (s *Service) Backfill(ctx context.Context, limit int) (int, error) {
	items, err := s.repo.MissingArtifacts(ctx, s.db, limit)
	if err != nil {
		return 0, fmt.Errorf("find orders without artifacts: %w", err)
	}
	fixed := 0
	for i := range items {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}
		record := &items[i]
		if err := s.stages.AuthorizeSystem(ctx, record.CompanyID, authorization.ObjectOrder, authorization.ActionExport); err != nil {
			s.log.Warn("backfill not authorized", zap.String("code", record.Code), zap.Error(err))
			continue
		}
		lookup, err := s.load(ctx, record)
		if err != nil {
			s.log.Warn("backfill lookup failed", zap.String("code", record.Code), zap.Error(err))
			continue
		}
		if s.refresh(ctx, record, lookup).Complete() {
			fixed++
		}
	}
	return fixed, nil
}

func (s *Service) find(ctx context.Context, actor authdomain.Actor, id snowflake.ID) (*domain.Order, error) {
	record, err := s.repo.FindByID(ctx, s.db, actor.CompanyID, id, s.stages.Scope.RecordFilter(actor))
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if record == nil {
		return nil, domain.ErrNotFound
	}
	return record, nil
}

func (s *Service) insert(ctx context.Context, record *domain.Order, now time.Time) error {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := claim.NewCode(domain.CodePrefix, now)
		if err != nil {
			return err
		}
		record.ID = s.genID.Generate()
		record.Code = code

		err = s.repo.Insert(ctx, s.db, record)
		if err == nil {
			return nil
		}
		if !dbpkg.IsDuplicateKeyErr(err) {
			return fmt.Errorf("insert order: %w", err)
		}
		s.log.Warn("order code collision", zap.String("code", code), zap.Int("attempt", attempt+1))
	}
	return domain.ErrCodeConflict
}

func (s *Service) load(ctx context.Context, record *domain.Order) (*reference.Lookup, error) {
	var keys reference.Keys
	addKeys(&keys, record)
	return reference.Load(ctx, s.refRepo, record.CompanyID, keys)
}

// lookups resolves references for records, one lookup per company.
func (s *Service) lookups(ctx context.Context, records []domain.Order) (map[snowflake.ID]*reference.Lookup, error) {
	byCompany := make(map[snowflake.ID]*reference.Keys)
	for i := range records {
		keys, ok := byCompany[records[i].CompanyID]
		if !ok {
			keys = &reference.Keys{}
			byCompany[records[i].CompanyID] = keys
		}
		addKeys(keys, &records[i])
	}
	out := make(map[snowflake.ID]*reference.Lookup, len(byCompany))
	for companyID, keys := range byCompany {
		l, err := reference.Load(ctx, s.refRepo, companyID, *keys)
		if err != nil {
			return nil, err
		}
		out[companyID] = l
	}
	return out, nil
}

// refresh renders both artifacts and writes the resulting paths back.
func (s *Service) refresh(ctx context.Context, record *domain.Order, lookup *reference.Lookup) artifact.Paths {
	paths := s.artifacts.Order(ctx, exportView(record, lookup))
	record.PDFPath = paths.PDF
	record.ExcelPath = paths.Excel
	if err := s.repo.UpdateArtifacts(ctx, s.db, record.ID, paths.PDF, paths.Excel); err != nil {
		s.log.Error("failed to store artifact paths", zap.String("code", record.Code), zap.Error(err))
	}
	return paths
}

func addKeys(keys *reference.Keys, o *domain.Order) {
	keys.Add(refdomain.TableCompanies, o.CompanyID)
	keys.Add(refdomain.TableDepartments, o.DepartmentID)
	keys.Add(refdomain.TableEmployees, o.EmployeeID)
	keys.Add(refdomain.TableCustomers, o.CustomerID)
	keys.Add(refdomain.TableCustomerCategories, o.CustomerCategoryID)
	keys.AddOptional(refdomain.TableCustomerPrograms, o.CustomerProgramID)
	keys.AddItems(o.Products)
	keys.AddAddress(o.Address.Data())
}

// price fills missing unit prices from the catalog and recomputes the
// discounted total. Colors are resolved only for products sent in this
// request; stored products already carry names.
func price(o *domain.Order, l *reference.Lookup, sent bool) {
	items := o.Products
	if sent {
		items = claim.ResolveColors(items, l.Colors)
	}
	items = claim.DefaultPrices(items, l.Price)
	o.Products = items

	var subtotal int64
	for _, item := range o.Products {
		subtotal += item.Subtotal()
	}
	discounts := o.Discounts()
	o.TotalPrice = export.ApplyDiscounts(subtotal, discounts[:], o.DiscountsEnabled)
}

// merge copies the present payload fields onto o.
func merge(o *domain.Order, p domain.Payload) {
	if p.DepartmentID != nil {
		o.DepartmentID = *p.DepartmentID
	}
	if p.EmployeeID != nil {
		o.EmployeeID = *p.EmployeeID
	}
	if p.CustomerID != nil {
		o.CustomerID = *p.CustomerID
	}
	if p.CustomerCategoryID != nil {
		o.CustomerCategoryID = *p.CustomerCategoryID
	}
	if p.CustomerProgramID != nil {
		o.CustomerProgramID = p.CustomerProgramID
		if *p.CustomerProgramID == 0 {
			o.CustomerProgramID = nil
		}
	}
	if p.Phone != nil {
		o.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Address != nil {
		o.Address = datatypes.NewJSONType(*p.Address)
	}
	if p.Products != nil {
		o.Products = p.Products
	}

	if p.DiscountsEnabled != nil {
		o.DiscountsEnabled = *p.DiscountsEnabled
	}
	for _, d := range []struct {
		src *float64
		dst *float64
	}{
		{p.Discount1, &o.Discount1},
		{p.Discount2, &o.Discount2},
		{p.Discount3, &o.Discount3},
		{p.Discount4, &o.Discount4},
	} {
		if d.src != nil {
			*d.dst = export.ClampPercent(*d.src)
		}
	}
	for _, n := range []struct {
		src *string
		dst *string
	}{
		{p.DiscountNote1, &o.DiscountNote1},
		{p.DiscountNote2, &o.DiscountNote2},
		{p.DiscountNote3, &o.DiscountNote3},
		{p.DiscountNote4, &o.DiscountNote4},
	} {
		if n.src != nil {
			*n.dst = strings.TrimSpace(*n.src)
		}
	}

	if p.ProgramEnabled != nil {
		o.ProgramEnabled = *p.ProgramEnabled
	}
	if p.ProgramPoints != nil {
		o.ProgramPoints = p.ProgramPoints
	}
	if p.RewardEnabled != nil {
		o.RewardEnabled = *p.RewardEnabled
	}
	if p.RewardPoints != nil {
		o.RewardPoints = p.RewardPoints
	}

	if p.PaymentMethod != nil {
		o.PaymentMethod = strings.TrimSpace(*p.PaymentMethod)
		if o.PaymentMethod == domain.PaymentCash {
			o.PaymentDueUntil = nil
		}
	}
	if p.PaymentDueUntil != nil {
		if t, ok := validation.ParseDate(*p.PaymentDueUntil); ok {
			o.PaymentDueUntil = &t
		}
	}
	if p.PaymentStatus != nil {
		o.PaymentStatus = strings.TrimSpace(*p.PaymentStatus)
	}
	if p.TotalAfterTax != nil {
		o.TotalAfterTax = *p.TotalAfterTax
	}
}

func crossRules(p domain.Payload, o *domain.Order, l *reference.Lookup) func(time.Time) []validation.FieldError {
	return func(time.Time) []validation.FieldError {
		var out []validation.FieldError

		paymentTouched := p.PaymentMethod != nil || p.PaymentDueUntil != nil
		if paymentTouched && o.PaymentMethod == domain.PaymentTempo && o.PaymentDueUntil == nil && p.PaymentDueUntil == nil {
			out = append(out, validation.FieldError{
				Field:   "payment_due_until",
				Code:    validation.CodeRequired,
				Message: "payment_due_until is required when payment_method is tempo",
			})
		}
		if (p.ProgramEnabled != nil || p.ProgramPoints != nil) && o.ProgramEnabled && o.ProgramPoints == nil {
			out = append(out, validation.FieldError{
				Field:   "program_points",
				Code:    validation.CodeRequired,
				Message: "program_points is required when program_enabled is set",
			})
		}
		if (p.RewardEnabled != nil || p.RewardPoints != nil) && o.RewardEnabled && o.RewardPoints == nil {
			out = append(out, validation.FieldError{
				Field:   "reward_points",
				Code:    validation.CodeRequired,
				Message: "reward_points is required when reward_enabled is set",
			})
		}

		out = append(out, pipeline.CheckRef(l, refdomain.TableDepartments, "department_id", p.DepartmentID)...)
		out = append(out, pipeline.CheckRef(l, refdomain.TableEmployees, "employee_id", p.EmployeeID)...)
		out = append(out, pipeline.CheckRef(l, refdomain.TableCustomers, "customer_id", p.CustomerID)...)
		out = append(out, pipeline.CheckRef(l, refdomain.TableCustomerCategories, "customer_category_id", p.CustomerCategoryID)...)
		out = append(out, pipeline.CheckRef(l, refdomain.TableCustomerPrograms, "customer_program_id", p.CustomerProgramID)...)
		if p.Products != nil {
			out = append(out, pipeline.CheckLineItems(p.Products, l)...)
		}
		return out
	}
}

func pick(p artifact.Paths, kind string) string {
	var key *string
	switch kind {
	case artifact.KindPDF:
		key = p.PDF
	case artifact.KindExcel:
		key = p.Excel
	}
	if key == nil {
		return ""
	}
	return *key
}

func fieldNames(fields accessscope.Fields) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
