package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/nanolite/internal/accessscope"
	"github.com/smallbiznis/nanolite/internal/authorization"
	"github.com/smallbiznis/nanolite/internal/cache"
	"github.com/smallbiznis/nanolite/internal/claim/pipeline"
	"github.com/smallbiznis/nanolite/internal/dashboard/domain"
	refdomain "github.com/smallbiznis/nanolite/internal/reference/domain"
	"github.com/smallbiznis/nanolite/internal/workflow"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const overviewTTL = 60 * time.Second

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Stages *pipeline.Stages
	Cache  *cache.Cache `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	stages *pipeline.Stages
	cache  *cache.Cache
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("dashboard.service"),
		stages: p.Stages,
		cache:  p.Cache,
	}
}

func (s *Service) Overview(ctx context.Context) (domain.Overview, error) {
	actor, err := s.stages.Actor(ctx)
	if err != nil {
		return domain.Overview{}, err
	}
	if err := s.stages.Authorize(ctx, actor, authorization.ObjectDashboard, authorization.ActionView); err != nil {
		return domain.Overview{}, err
	}

	owner := s.stages.Scope.RecordFilter(actor)
	key := fmt.Sprintf("dashboard:overview:%s:%s", actor.CompanyID, ownerKey(owner))
	return cache.Remember(ctx, s.cache, key, overviewTTL, func(ctx context.Context) (domain.Overview, error) {
		return s.count(ctx, actor.CompanyID.Int64(), owner)
	})
}

func (s *Service) count(ctx context.Context, companyID int64, owner *accessscope.OwnerFilter) (domain.Overview, error) {
	var out domain.Overview
	counts := []struct {
		table  string
		column string
		value  string
		dst    *int64
	}{
		{"orders", "fulfillment_status", workflow.StatusPending, &out.PendingOrders},
		{"garansis", "fulfillment_status", workflow.StatusPending, &out.PendingGaransi},
		{"customers", "status", refdomain.CustomerStatusPending, &out.PendingCustomers},
	}
	for _, c := range counts {
		stmt := s.db.WithContext(ctx).
			Table(c.table).
			Where("company_id = ?", companyID).
			Where(c.column+" = ?", c.value)
		if err := owner.Apply(stmt).Count(c.dst).Error; err != nil {
			return domain.Overview{}, fmt.Errorf("count pending %s: %w", c.table, err)
		}
	}
	return out, nil
}

func ownerKey(owner *accessscope.OwnerFilter) string {
	if owner == nil {
		return "all"
	}
	return fmt.Sprintf("%d:%d", owner.DepartmentID, owner.EmployeeID)
}
