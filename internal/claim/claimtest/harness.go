// Package claimtest wires the claim write pipeline against an in-memory
// database and a temporary blob store for service tests.
package claimtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/accessscope"
	"github.com/smallbiznis/nanolite/internal/artifact"
	auditdomain "github.com/smallbiznis/nanolite/internal/audit/domain"
	auditrepository "github.com/smallbiznis/nanolite/internal/audit/repository"
	auditservice "github.com/smallbiznis/nanolite/internal/audit/service"
	authdomain "github.com/smallbiznis/nanolite/internal/auth/domain"
	"github.com/smallbiznis/nanolite/internal/authorization"
	"github.com/smallbiznis/nanolite/internal/blobstore"
	"github.com/smallbiznis/nanolite/internal/claim/pipeline"
	"github.com/smallbiznis/nanolite/internal/claim/validation"
	"github.com/smallbiznis/nanolite/internal/clock"
	"github.com/smallbiznis/nanolite/internal/config"
	"github.com/smallbiznis/nanolite/internal/export"
	"github.com/smallbiznis/nanolite/internal/imageingest"
	"github.com/smallbiznis/nanolite/internal/orgcontext"
	"github.com/smallbiznis/nanolite/internal/reference"
	refdomain "github.com/smallbiznis/nanolite/internal/reference/domain"
	"github.com/smallbiznis/nanolite/internal/render"
	"github.com/smallbiznis/nanolite/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Seeded reference ids.
const (
	CompanyID          snowflake.ID = 1
	DepartmentID       snowflake.ID = 10
	EmployeeID         snowflake.ID = 20
	OtherEmployeeID    snowflake.ID = 21
	CustomerCategoryID snowflake.ID = 30
	CustomerID         snowflake.ID = 40
	BrandID            snowflake.ID = 50
	CategoryID         snowflake.ID = 60
	ProductID          snowflake.ID = 70
	ProgramID          snowflake.ID = 80

	ProductPrice int64 = 25000
)

// Seeded users.
var (
	Admin = authdomain.User{ID: 100, Name: "Admin", Email: "admin@example.com", Role: authdomain.RoleAdmin, CompanyID: CompanyID}
	Sales = authdomain.User{ID: 200, Name: "Sales", Email: "sales@example.com", Role: authdomain.RoleSales, CompanyID: CompanyID,
		DepartmentID: ptr(DepartmentID), EmployeeID: ptr(EmployeeID)}
	OtherSales = authdomain.User{ID: 201, Name: "Other", Email: "other@example.com", Role: authdomain.RoleSales, CompanyID: CompanyID,
		DepartmentID: ptr(DepartmentID), EmployeeID: ptr(OtherEmployeeID)}
)

// Now is the fixed time of the harness clock.
var Now = time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

// PNG is a 1x1 png encoded as a data URL.
const PNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

var errRenderDisabled = errors.New("render disabled")

// SwitchRenderer fails every render while Fail is set.
type SwitchRenderer struct {
	render.Renderer
	Fail bool
}

func (r *SwitchRenderer) RenderPDF(ctx context.Context, templateID string, view any) ([]byte, error) {
	if r.Fail {
		return nil, errRenderDisabled
	}
	return r.Renderer.RenderPDF(ctx, templateID, view)
}

func (r *SwitchRenderer) RenderSpreadsheet(ctx context.Context, table export.Table) ([]byte, error) {
	if r.Fail {
		return nil, errRenderDisabled
	}
	return r.Renderer.RenderSpreadsheet(ctx, table)
}

type Harness struct {
	DB        *gorm.DB
	Store     *blobstore.LocalStore
	Clock     *clock.FakeClock
	GenID     *snowflake.Node
	Stages    *pipeline.Stages
	Renderer  *SwitchRenderer
	Artifacts *artifact.Writer
	RefRepo   refdomain.Repository
	Audit     auditdomain.Service
	Log       *zap.Logger
}

// New migrates models next to the shared tables and seeds reference data.
func New(t *testing.T, models ...any) *Harness {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)

	tables := []any{
		&authdomain.User{}, &auditdomain.AuditLog{},
		&refdomain.Region{}, &refdomain.PostalCode{}, &refdomain.Company{}, &refdomain.Department{},
		&refdomain.Employee{}, &refdomain.CustomerCategory{}, &refdomain.CustomerProgram{},
		&refdomain.Customer{}, &refdomain.Brand{}, &refdomain.Category{}, &refdomain.Product{},
	}
	require.NoError(t, conn.AutoMigrate(append(tables, models...)...))
	seed(t, conn)

	log := zap.NewNop()
	cfg := config.Config{
		Storage: config.StorageConfig{Root: t.TempDir(), PublicURL: "/storage"},
		Render:  config.RenderConfig{Timeout: 10 * time.Second},
	}
	store, err := blobstore.NewLocalStore(cfg, log)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(Now)

	holder := config.NewStaticAccessConfigHolder(config.DefaultAccessConfig())
	enforcer, err := authorization.NewEnforcer(conn, holder)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{DB: conn, Log: log, Enforcer: enforcer, Access: holder})

	auditSvc := auditservice.NewService(auditservice.Params{
		DB: conn, Log: log, GenID: node, Clock: fake, Repo: auditrepository.Provide(),
	})

	stages := pipeline.New(pipeline.Params{
		Authz:     authz,
		Scope:     accessscope.New(holder),
		Validator: validation.New(validation.Params{Authz: authz, Clock: fake, Log: log}),
		Ingester:  imageingest.New(imageingest.Params{Store: store, Clock: fake, Log: log}),
		Clock:     fake,
		Log:       log,
		Audit:     auditSvc,
	})

	docs := render.New(render.Params{Store: store, Log: log})
	switchable := &SwitchRenderer{Renderer: docs}
	writer := artifact.NewWriter(artifact.Params{
		Renderer: switchable,
		Tables:   docs.Assembler(),
		Store:    store,
		Cfg:      cfg,
		Log:      log,
	})

	return &Harness{
		DB:        conn,
		Store:     store,
		Clock:     fake,
		GenID:     node,
		Stages:    stages,
		Renderer:  switchable,
		Artifacts: writer,
		RefRepo:   reference.NewRepository(conn),
		Audit:     auditSvc,
		Log:       log,
	}
}

// Ctx returns a request context acting as user.
func (h *Harness) Ctx(user authdomain.User) context.Context {
	return orgcontext.WithActor(context.Background(), authdomain.ActorFromUser(&user))
}

// AuditActions lists the recorded audit actions in insertion order.
func (h *Harness) AuditActions(t *testing.T) []string {
	t.Helper()
	var actions []string
	require.NoError(t, h.DB.Model(&auditdomain.AuditLog{}).Order("id ASC").Pluck("action", &actions).Error)
	return actions
}

func seed(t *testing.T, conn *gorm.DB) {
	t.Helper()
	for _, u := range []authdomain.User{Admin, Sales, OtherSales} {
		u.CreatedAt, u.UpdatedAt = Now, Now
		require.NoError(t, conn.Create(&u).Error)
	}
	require.NoError(t, conn.Create(&refdomain.Company{ID: CompanyID, Name: "Nanolite"}).Error)
	require.NoError(t, conn.Create(&refdomain.Department{ID: DepartmentID, CompanyID: CompanyID, Name: "Sales Jakarta"}).Error)
	require.NoError(t, conn.Create(&[]refdomain.Employee{
		{ID: EmployeeID, CompanyID: CompanyID, DepartmentID: DepartmentID, Name: "Budi"},
		{ID: OtherEmployeeID, CompanyID: CompanyID, DepartmentID: DepartmentID, Name: "Sari"},
	}).Error)
	require.NoError(t, conn.Create(&refdomain.CustomerCategory{ID: CustomerCategoryID, CompanyID: CompanyID, Name: "Toko"}).Error)
	require.NoError(t, conn.Create(&refdomain.CustomerProgram{ID: ProgramID, CompanyID: CompanyID, Name: "Loyalty"}).Error)
	require.NoError(t, conn.Create(&refdomain.Customer{
		ID: CustomerID, CompanyID: CompanyID, DepartmentID: DepartmentID, EmployeeID: EmployeeID,
		CustomerCategoryID: CustomerCategoryID, Name: "Toko Terang", Status: refdomain.CustomerStatusActive,
	}).Error)
	require.NoError(t, conn.Create(&refdomain.Brand{ID: BrandID, CompanyID: CompanyID, Name: "Nano"}).Error)
	require.NoError(t, conn.Create(&refdomain.Category{ID: CategoryID, CompanyID: CompanyID, BrandID: BrandID, Name: "Lampu"}).Error)
	require.NoError(t, conn.Create(&refdomain.Product{
		ID: ProductID, CompanyID: CompanyID, BrandID: BrandID, CategoryID: CategoryID,
		Name: "LED 10W", Colors: []string{"Putih", "Kuning"}, Price: ProductPrice,
	}).Error)
	require.NoError(t, conn.Create(&[]refdomain.Region{
		{Code: "31", Kind: "province", Name: "DKI Jakarta"},
		{Code: "3171", Kind: "city", Name: "Jakarta Pusat"},
		{Code: "317101", Kind: "district", Name: "Gambir"},
		{Code: "3171011001", Kind: "village", Name: "Gambir"},
	}).Error)
	require.NoError(t, conn.Create(&refdomain.PostalCode{VillageCode: "3171011001", PostalCode: "10110"}).Error)
}

func ptr(id snowflake.ID) *snowflake.ID { return &id }
