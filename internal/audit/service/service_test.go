package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/nanolite/internal/audit/domain"
	"github.com/smallbiznis/nanolite/internal/audit/repository"
	auditcontext "github.com/smallbiznis/nanolite/internal/auditcontext"
	"github.com/smallbiznis/nanolite/internal/clock"
	"github.com/smallbiznis/nanolite/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, clk clock.Clock) *Service {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	}).(*Service)
}

func TestAuditLogResolvesActorFromContext(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, clk)
	company := snowflake.ID(10)

	ctx := auditcontext.WithActor(context.Background(), "user", "42")
	ctx = auditcontext.WithRequestID(ctx, "req-1")
	err := svc.Record(ctx, auditdomain.Entry{
		CompanyID:  company,
		Action:     auditdomain.ActionGaransiCreate,
		TargetType: "garansi",
		TargetID:   "GAR-20240501ABCD",
		Metadata:   map[string]any{"phone": "081234567890"},
	})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{CompanyID: company})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "42", *entry.ActorID)
	assert.Equal(t, "****7890", entry.Metadata["phone"])
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	require.NotNil(t, entry.CompanyID)
	assert.Equal(t, company, *entry.CompanyID)
	require.NotNil(t, entry.TargetID)
	assert.Equal(t, "GAR-20240501ABCD", *entry.TargetID)
	assert.False(t, resp.HasMore)
}

func TestAuditLogRejectsEmptyAction(t *testing.T) {
	svc := newTestService(t, clock.SystemClock{})
	err := svc.Record(context.Background(), auditdomain.Entry{Action: "  ", TargetType: "garansi"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestRecordDefaultsToSystemActor(t *testing.T) {
	svc := newTestService(t, clock.SystemClock{})
	company := snowflake.ID(11)

	require.NoError(t, svc.Record(context.Background(), auditdomain.Entry{CompanyID: company, Action: auditdomain.ActionOrderUpdate}))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{CompanyID: company})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, string(auditdomain.ActorTypeSystem), resp.AuditLogs[0].ActorType)
	assert.Nil(t, resp.AuditLogs[0].ActorID)
	assert.Equal(t, "unknown", resp.AuditLogs[0].TargetType)
}

func TestListPaginatesWithCursor(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, clk)
	company := snowflake.ID(10)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(context.Background(), auditdomain.Entry{
			CompanyID:  company,
			ActorType:  "system",
			Action:     auditdomain.ActionOrderUpdate,
			TargetType: "order",
		}))
		clk.Advance(time.Minute)
	}

	first, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{CompanyID: company, Pagination: paginationOf("", 2)})
	require.NoError(t, err)
	assert.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	second, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{CompanyID: company, Pagination: paginationOf(first.NextPageToken, 2)})
	require.NoError(t, err)
	assert.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)
}

func TestListValidatesInput(t *testing.T) {
	svc := newTestService(t, clock.SystemClock{})

	_, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidCompany)

	_, err = svc.List(context.Background(), auditdomain.ListAuditLogRequest{CompanyID: 1, Pagination: paginationOf("not-a-token", 10)})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)

	start := time.Now()
	end := start.Add(-time.Hour)
	_, err = svc.List(context.Background(), auditdomain.ListAuditLogRequest{CompanyID: 1, StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
