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
	"github.com/smallbiznis/nanolite/internal/garansi/domain"
	"github.com/smallbiznis/nanolite/internal/imageingest"
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
	entity       = "garansi"
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
		log:       p.Log.Named("garansi.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		refRepo:   p.RefRepo,
		stages:    p.Stages,
		artifacts: p.Artifacts,
		store:     p.Store,
	}
}

func (s *Service) Create(ctx context.Context, fields accessscope.Fields) (*domain.Garansi, error) {
	actor, err := s.stages.Actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.stages.Authorize(ctx, actor, authorization.ObjectGaransi, authorization.ActionCreate); err != nil {
		return nil, err
	}

	fields = pipeline.Clone(fields)
	s.stages.Scope.ApplyForced(actor, fields)

	var payload domain.Payload
	if err := validation.Decode(fields, &payload); err != nil {
		return nil, err
	}

	now := s.stages.Clock.Now()
	record := &domain.Garansi{
		CompanyID: actor.CompanyID,
		State:     workflow.NewState(),
	}
	merge(record, payload)

	lookup, err := s.load(ctx, record)
	if err != nil {
		return nil, err
	}
	if payload.Products != nil {
		record.Products = claim.ResolveColors(record.Products, lookup.Colors)
	}

	if err := s.stages.Validator.Validate(ctx, validation.Request{
		Object:    authorization.ObjectGaransi,
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

	record.Images = s.stages.Ingester.Ingest(ctx, payload.Images, nil, imageingest.FolderGaransiPhotos)
	record.DeliveryImages = s.stages.Ingester.Ingest(ctx, payload.DeliveryImages, nil, imageingest.FolderGaransiDeliveryPhotos)

	payload.StatusChange.ApplyTo(&record.State)
	workflow.Apply(&record.State, actor.EmployeeID, now)
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := s.insert(ctx, record, now); err != nil {
		return nil, err
	}

	s.stages.Audit(ctx, actor, auditdomain.ActionGaransiCreate, entity, record.ID, map[string]any{
		"code":               record.Code,
		"submission_status":  record.SubmissionStatus,
		"product_status":     record.ProductStatus,
		"fulfillment_status": record.FulfillmentStatus,
	})
	s.stages.AuditStatusChanges(ctx, actor, auditdomain.ActionGaransiStatusChange, entity, record.ID,
		pipeline.Changes(workflow.NewState(), record.State))
	s.stages.Metrics.RecordWrite(ctx, entity, "create")

	s.refresh(ctx, record, lookup)
	return record, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, fields accessscope.Fields) (*domain.Garansi, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.stages.Actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.stages.Authorize(ctx, actor, authorization.ObjectGaransi, authorization.ActionUpdate); err != nil {
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
	if payload.Products != nil {
		record.Products = claim.ResolveColors(record.Products, lookup.Colors)
	}

	if err := s.stages.Validator.Validate(ctx, validation.Request{
		Object:    authorization.ObjectGaransi,
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

	record.Images = s.stages.Ingester.Ingest(ctx, payload.Images, current.Images, imageingest.FolderGaransiPhotos)
	record.DeliveryImages = s.stages.Ingester.Ingest(ctx, payload.DeliveryImages, current.DeliveryImages, imageingest.FolderGaransiDeliveryPhotos)

	payload.StatusChange.ApplyTo(&record.State)
	workflow.Apply(&record.State, actor.EmployeeID, now)
	record.UpdatedAt = now

	if err := s.repo.Update(ctx, s.db, &record); err != nil {
		return nil, fmt.Errorf("update garansi: %w", err)
	}

	s.stages.Audit(ctx, actor, auditdomain.ActionGaransiUpdate, entity, record.ID, map[string]any{
		"code":   record.Code,
		"fields": fieldNames(fields),
	})
	s.stages.AuditStatusChanges(ctx, actor, auditdomain.ActionGaransiStatusChange, entity, record.ID,
		pipeline.Changes(current.State, record.State))
	s.stages.Metrics.RecordWrite(ctx, entity, "update")

	s.refresh(ctx, &record, lookup)
	return &record, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Garansi, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	actor, err := s.stages.Actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.stages.Authorize(ctx, actor, authorization.ObjectGaransi, authorization.ActionView); err != nil {
		return nil, err
	}
	return s.find(ctx, actor, id)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	actor, err := s.stages.Actor(ctx)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if err := s.stages.Authorize(ctx, actor, authorization.ObjectGaransi, authorization.ActionView); err != nil {
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
		return domain.ListResponse{}, fmt.Errorf("list garansi: %w", err)
	}
	return domain.ListResponse{
		Items: items,
		Meta:  pagination.NewPageMeta(page, total),
	}, nil
}

func (s *Service) Present(ctx context.Context, records []domain.Garansi) ([]domain.Resource, error) {
	out := make([]domain.Resource, 0, len(records))
	lookups := make(map[snowflake.ID]*reference.Lookup)
	byCompany := make(map[snowflake.ID]*reference.Keys)
	for i := range records {
		keys, ok := byCompany[records[i].CompanyID]
		if !ok {
			keys = &reference.Keys{}
			byCompany[records[i].CompanyID] = keys
		}
		addKeys(keys, &records[i])
	}
	for companyID, keys := range byCompany {
		l, err := reference.Load(ctx, s.refRepo, companyID, *keys)
		if err != nil {
			return nil, err
		}
		lookups[companyID] = l
	}
	for i := range records {
		out = append(out, s.resource(&records[i], lookups[records[i].CompanyID]))
	}
	return out, nil
}

func (s *Service) Artifact(ctx context.Context, id snowflake.ID, kind string) (string, error) {
	if kind != artifact.KindPDF && kind != artifact.KindExcel {
		return "", domain.ErrUnknownArtifactKind
	}
	actor, err := s.stages.Actor(ctx)
	if err != nil {
		return "", err
	}
	if err := s.stages.Authorize(ctx, actor, authorization.ObjectGaransi, authorization.ActionExport); err != nil {
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
		return 0, fmt.Errorf("find garansi without artifacts: %w", err)
	}
	fixed := 0
	for i := range items {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}
		record := &items[i]
		if err := s.stages.AuthorizeSystem(ctx, record.CompanyID, authorization.ObjectGaransi, authorization.ActionExport); err != nil {
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

func (s *Service) find(ctx context.Context, actor authdomain.Actor, id snowflake.ID) (*domain.Garansi, error) {
	record, err := s.repo.FindByID(ctx, s.db, actor.CompanyID, id, s.stages.Scope.RecordFilter(actor))
	if err != nil {
		return nil, fmt.Errorf("find garansi: %w", err)
	}
	if record == nil {
		return nil, domain.ErrNotFound
	}
	return record, nil
}

func (s *Service) insert(ctx context.Context, record *domain.Garansi, now time.Time) error {
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
			return fmt.Errorf("insert garansi: %w", err)
		}
		s.log.Warn("garansi code collision", zap.String("code", code), zap.Int("attempt", attempt+1))
	}
	return domain.ErrCodeConflict
}

func (s *Service) load(ctx context.Context, record *domain.Garansi) (*reference.Lookup, error) {
	var keys reference.Keys
	addKeys(&keys, record)
	return reference.Load(ctx, s.refRepo, record.CompanyID, keys)
}

// refresh renders both artifacts and writes the resulting paths back. A
// failed render leaves its path null for the backfill job.
func (s *Service) refresh(ctx context.Context, record *domain.Garansi, lookup *reference.Lookup) artifact.Paths {
	paths := s.artifacts.Garansi(ctx, exportView(record, lookup))
	record.PDFPath = paths.PDF
	record.ExcelPath = paths.Excel
	if err := s.repo.UpdateArtifacts(ctx, s.db, record.ID, paths.PDF, paths.Excel); err != nil {
		s.log.Error("failed to store artifact paths", zap.String("code", record.Code), zap.Error(err))
	}
	return paths
}

func addKeys(keys *reference.Keys, g *domain.Garansi) {
	keys.Add(refdomain.TableCompanies, g.CompanyID)
	keys.Add(refdomain.TableDepartments, g.DepartmentID)
	keys.Add(refdomain.TableEmployees, g.EmployeeID)
	keys.Add(refdomain.TableCustomers, g.CustomerID)
	keys.Add(refdomain.TableCustomerCategories, g.CustomerCategoryID)
	keys.AddItems(g.Products)
	keys.AddAddress(g.Address.Data())
}

// merge copies the present payload fields onto g. Malformed dates are left
// for the validator to report.
func merge(g *domain.Garansi, p domain.Payload) {
	if p.DepartmentID != nil {
		g.DepartmentID = *p.DepartmentID
	}
	if p.EmployeeID != nil {
		g.EmployeeID = *p.EmployeeID
	}
	if p.CustomerID != nil {
		g.CustomerID = *p.CustomerID
	}
	if p.CustomerCategoryID != nil {
		g.CustomerCategoryID = *p.CustomerCategoryID
	}
	if p.Phone != nil {
		g.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Address != nil {
		g.Address = datatypes.NewJSONType(*p.Address)
	}
	if p.Products != nil {
		g.Products = p.Products
	}
	if p.PurchaseDate != nil {
		if t, ok := validation.ParseDate(*p.PurchaseDate); ok {
			g.PurchaseDate = t
		}
	}
	if p.ClaimDate != nil {
		if t, ok := validation.ParseDate(*p.ClaimDate); ok {
			g.ClaimDate = t
		}
	}
	if p.Reason != nil {
		g.Reason = strings.TrimSpace(*p.Reason)
	}
	if p.Note != nil {
		note := strings.TrimSpace(*p.Note)
		g.Note = &note
		if note == "" {
			g.Note = nil
		}
	}
}

func crossRules(p domain.Payload, g *domain.Garansi, l *reference.Lookup) func(time.Time) []validation.FieldError {
	return func(time.Time) []validation.FieldError {
		var out []validation.FieldError
		datesTouched := p.PurchaseDate != nil || p.ClaimDate != nil
		if datesTouched && !g.PurchaseDate.IsZero() && !g.ClaimDate.IsZero() && g.ClaimDate.Before(g.PurchaseDate) {
			out = append(out, validation.FieldError{
				Field:   "claim_date",
				Code:    validation.CodeDateOrder,
				Message: "claim_date must be on or after purchase_date",
			})
		}
		out = append(out, pipeline.CheckRef(l, refdomain.TableDepartments, "department_id", p.DepartmentID)...)
		out = append(out, pipeline.CheckRef(l, refdomain.TableEmployees, "employee_id", p.EmployeeID)...)
		out = append(out, pipeline.CheckRef(l, refdomain.TableCustomers, "customer_id", p.CustomerID)...)
		out = append(out, pipeline.CheckRef(l, refdomain.TableCustomerCategories, "customer_category_id", p.CustomerCategoryID)...)
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
