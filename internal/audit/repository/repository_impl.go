package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/nanolite/internal/audit/domain"
	"github.com/smallbiznis/nanolite/pkg/db/option"
	"gorm.io/gorm"
)

// repo takes the handle per call so entries can join the caller's
// transaction (status changes write the record and its audit row together).
type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	stmt := db.WithContext(ctx).Model(&domain.AuditLog{})
	for _, opt := range listOptions(filter) {
		stmt = opt.Apply(stmt)
	}

	var logs []*domain.AuditLog
	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// listOptions returns newest-first keyset options. One extra row is fetched
// so the service can tell whether another page exists.
func listOptions(filter domain.ListFilter) []option.QueryOption {
	opts := []option.QueryOption{option.WithWhere("company_id = ?", filter.CompanyID)}

	equals := map[string]string{
		"action":      filter.Action,
		"target_type": filter.TargetType,
		"target_id":   filter.TargetID,
		"actor_type":  filter.ActorType,
	}
	for _, column := range []string{"action", "target_type", "target_id", "actor_type"} {
		if v := strings.TrimSpace(equals[column]); v != "" {
			opts = append(opts, option.WithWhere(column+" = ?", v))
		}
	}

	if filter.StartAt != nil {
		opts = append(opts, option.WithWhere("created_at >= ?", filter.StartAt.UTC()))
	}
	if filter.EndAt != nil {
		opts = append(opts, option.WithWhere("created_at <= ?", filter.EndAt.UTC()))
	}
	if c := filter.Cursor; c != nil {
		opts = append(opts, option.WithWhere("(created_at < ?) OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID))
	}

	opts = append(opts, option.WithOrder("created_at", true), option.WithOrder("id", true))
	if filter.Limit > 0 {
		opts = append(opts, option.WithLimit(filter.Limit+1))
	}
	return opts
}
