package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/nanolite/internal/audit/domain"
	authdomain "github.com/smallbiznis/nanolite/internal/auth/domain"
	"github.com/smallbiznis/nanolite/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectGaransi   = "garansi"
	ObjectOrder     = "order"
	ObjectDashboard = "dashboard"
	ObjectAuditLog  = "audit_log"
)

const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionStatus = "status"
	ActionExport = "export"
)

const (
	roleSystem     = "role:system"
	roleRestricted = "role:restricted"
)

var recordObjects = []string{ObjectGaransi, ObjectOrder}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	Access   *config.AccessConfigHolder
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	access   *config.AccessConfigHolder
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB, access *config.AccessConfigHolder) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer, access.Get()); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		access:   p.Access,
		auditSvc: p.AuditSvc,
	}
}

// watchAccessConfig reseeds the policy rows whenever access.yml is reloaded.
func watchAccessConfig(enforcer *casbin.SyncedEnforcer, access *config.AccessConfigHolder, log *zap.Logger) {
	access.OnChange(func(cfg config.AccessConfig) {
		if err := seedPolicies(enforcer, cfg); err != nil {
			log.Warn("failed to reseed authorization policies", zap.Error(err))
		}
	})
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, companyID string, object string, action string) error {
	actor, companyID = strings.TrimSpace(actor), strings.TrimSpace(companyID)
	object, action = strings.TrimSpace(object), strings.TrimSpace(action)
	switch {
	case actor == "":
		return ErrInvalidActor
	case companyID == "":
		return ErrInvalidCompany
	case object == "":
		return ErrInvalidObject
	case action == "":
		return ErrInvalidAction
	}

	sub, err := s.subjectFor(ctx, actor, companyID)
	if err != nil {
		s.auditDenied(ctx, sub, companyID, object, action)
		return err
	}

	dom := "company:" + companyID
	if err := s.bindRole(sub.key, sub.role, dom); err != nil {
		return err
	}
	allowed, err := s.enforcer.Enforce(sub.key, dom, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, sub, companyID, object, action)
		return ErrForbidden
	}
	return nil
}

// subject is a resolved caller: the casbin subject key, the casbin role it
// is bound to and how it shows up in the audit trail.
type subject struct {
	key       string
	role      string
	actorType string
	actorID   string
}

func (s *ServiceImpl) subjectFor(ctx context.Context, actor, companyID string) (subject, error) {
	if actor == "system" {
		return subject{key: actor, role: roleSystem, actorType: "system"}, nil
	}
	raw, ok := strings.CutPrefix(actor, "user:")
	if !ok {
		return subject{}, ErrInvalidActor
	}
	userID, err := snowflake.ParseString(raw)
	if err != nil || userID == 0 {
		return subject{}, ErrInvalidActor
	}

	sub := subject{key: actor, actorType: "user", actorID: userID.String()}
	company, err := snowflake.ParseString(companyID)
	if err != nil || company == 0 {
		return sub, ErrInvalidCompany
	}
	role, err := s.roleInCompany(ctx, company, userID)
	if err != nil {
		return sub, err
	}
	sub.role = s.casbinRole(role)
	return sub, nil
}

// casbinRole folds roles missing from the access table into the restricted
// role.
func (s *ServiceImpl) casbinRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, p := range s.access.Get().Roles {
		if strings.EqualFold(strings.TrimSpace(p.Role), role) {
			return "role:" + role
		}
	}
	return roleRestricted
}

// roleInCompany returns ErrForbidden when the user does not belong to the
// company.
func (s *ServiceImpl) roleInCompany(ctx context.Context, companyID, userID snowflake.ID) (string, error) {
	var roles []string
	err := s.db.WithContext(ctx).
		Model(&authdomain.User{}).
		Where("company_id = ? AND id = ?", companyID, userID).
		Limit(1).
		Pluck("role", &roles).Error
	if err != nil {
		return "", err
	}
	if len(roles) == 0 || strings.TrimSpace(roles[0]) == "" {
		return "", ErrForbidden
	}
	return roles[0], nil
}

// bindRole keeps exactly one grouping row per subject and domain so a role
// change in the users table takes effect on the next request.
func (s *ServiceImpl) bindRole(key, role, dom string) error {
	rows, err := s.enforcer.GetFilteredGroupingPolicy(0, key, "", dom)
	if err != nil {
		return err
	}
	bound := false
	for _, row := range rows {
		if len(row) >= 2 && row[1] == role {
			bound = true
			continue
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(row); err != nil {
			s.log.Warn("stale role binding not removed", zap.String("subject", key), zap.Error(err))
		}
	}
	if bound {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(key, role, dom)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, sub subject, companyID, object, action string) {
	if s.auditSvc == nil {
		return
	}
	company, err := snowflake.ParseString(companyID)
	if err != nil || company == 0 {
		return
	}
	err = s.auditSvc.Record(ctx, auditdomain.Entry{
		CompanyID:  company,
		ActorType:  sub.actorType,
		ActorID:    sub.actorID,
		Action:     auditdomain.ActionAccessDenied,
		TargetType: "authorization",
		TargetID:   object,
		Metadata:   map[string]any{"object": object, "action": action},
	})
	if err != nil {
		s.log.Debug("denial not audited", zap.Error(err))
	}
}

// policyRows derives the casbin policy rows from the access table.
func policyRows(cfg config.AccessConfig) [][]string {
	grant := func(role string, statusChange bool) [][]string {
		rows := [][]string{{role, ObjectDashboard, ActionView}}
		for _, obj := range recordObjects {
			rows = append(rows,
				[]string{role, obj, ActionView},
				[]string{role, obj, ActionCreate},
				[]string{role, obj, ActionUpdate},
				[]string{role, obj, ActionExport},
			)
			if statusChange {
				rows = append(rows, []string{role, obj, ActionStatus})
			}
		}
		if statusChange {
			rows = append(rows, []string{role, ObjectAuditLog, ActionView})
		}
		return rows
	}

	var rows [][]string
	for _, p := range cfg.Roles {
		role := strings.ToLower(strings.TrimSpace(p.Role))
		if role == "" {
			continue
		}
		rows = append(rows, grant("role:"+role, p.StatusChangeAllowed)...)
	}
	rows = append(rows, grant(roleRestricted, false)...)

	// The artifact backfill job re-renders and exports on its own.
	for _, obj := range recordObjects {
		rows = append(rows, []string{roleSystem, obj, ActionView}, []string{roleSystem, obj, ActionExport})
	}
	return rows
}

func seedPolicies(enforcer *casbin.SyncedEnforcer, cfg config.AccessConfig) error {
	want := policyRows(cfg)
	wanted := make(map[string]struct{}, len(want))
	for _, row := range want {
		wanted[strings.Join(row, "|")] = struct{}{}
	}

	existing, err := enforcer.GetPolicy()
	if err != nil {
		return err
	}
	for _, row := range existing {
		if _, ok := wanted[strings.Join(row, "|")]; ok {
			continue
		}
		if _, err := enforcer.RemovePolicy(row); err != nil {
			return err
		}
	}

	for _, policy := range want {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
