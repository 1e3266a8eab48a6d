package seed

import (
	"testing"

	authdomain "github.com/smallbiznis/nanolite/internal/auth/domain"
	"github.com/smallbiznis/nanolite/internal/auth/password"
	"github.com/smallbiznis/nanolite/internal/config"
	refdomain "github.com/smallbiznis/nanolite/internal/reference/domain"
	"github.com/smallbiznis/nanolite/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&authdomain.User{},
		&refdomain.Region{}, &refdomain.PostalCode{}, &refdomain.Company{}, &refdomain.Department{},
		&refdomain.Employee{}, &refdomain.CustomerCategory{}, &refdomain.CustomerProgram{},
		&refdomain.Customer{}, &refdomain.Brand{}, &refdomain.Category{}, &refdomain.Product{},
	))
	return conn
}

func count(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Count(&n).Error)
	return n
}

func TestBootstrapIsIdempotent(t *testing.T) {
	conn := newDB(t)
	cfg := config.Config{
		DefaultCompanyID: 7,
		Bootstrap: config.BootstrapConfig{
			SeedReferenceData: true,
			AdminEmail:        "Admin@Nanolite.test",
			AdminPassword:     "super-secret",
		},
	}

	require.NoError(t, Bootstrap(t.Context(), conn, cfg, zap.NewNop()))
	products := count(t, conn, &refdomain.Product{})
	customers := count(t, conn, &refdomain.Customer{})
	assert.Equal(t, int64(4), products)
	assert.Equal(t, int64(4), customers)

	require.NoError(t, Bootstrap(t.Context(), conn, cfg, zap.NewNop()))
	assert.Equal(t, products, count(t, conn, &refdomain.Product{}))
	assert.Equal(t, customers, count(t, conn, &refdomain.Customer{}))
	assert.Equal(t, int64(1), count(t, conn, &authdomain.User{}))

	var admin authdomain.User
	require.NoError(t, conn.Where("email = ?", "admin@nanolite.test").First(&admin).Error)
	assert.Equal(t, authdomain.RoleSuperAdmin, admin.Role)
	assert.Equal(t, "7", admin.CompanyID.String())
	require.NotNil(t, admin.PasswordHash)
	assert.True(t, password.Verify("super-secret", *admin.PasswordHash))

	var pending int64
	require.NoError(t, conn.Model(&refdomain.Customer{}).Where("status = ?", refdomain.CustomerStatusPending).Count(&pending).Error)
	assert.Equal(t, int64(1), pending)
}

func TestBootstrapDisabled(t *testing.T) {
	conn := newDB(t)

	require.NoError(t, Bootstrap(t.Context(), conn, config.Config{}, zap.NewNop()))
	assert.Zero(t, count(t, conn, &refdomain.Company{}))
}

func TestBootstrapAdminNeedsPassword(t *testing.T) {
	conn := newDB(t)
	cfg := config.Config{Bootstrap: config.BootstrapConfig{AdminEmail: "admin@nanolite.test"}}

	err := Bootstrap(t.Context(), conn, cfg, zap.NewNop())
	require.Error(t, err)
	assert.Zero(t, count(t, conn, &authdomain.User{}))
}
