package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/auth/domain"
	"github.com/smallbiznis/nanolite/pkg/db/option"
	"github.com/smallbiznis/nanolite/pkg/repository"
	"gorm.io/gorm"
)

// repo backs both users and sessions through the generic store. The bulk
// session revoke is the only query that needs the raw handle.
type repo struct {
	db       *gorm.DB
	users    repository.Repository[domain.User]
	sessions repository.Repository[domain.Session]
}

func New(db *gorm.DB) (domain.Repository, domain.SessionRepository) {
	r := &repo{
		db:       db,
		users:    repository.ProvideStore[domain.User](db),
		sessions: repository.ProvideStore[domain.Session](db),
	}
	return r, r
}

func (r *repo) Count(ctx context.Context) (int64, error) {
	return r.users.Count(ctx, nil)
}

func (r *repo) Create(ctx context.Context, user *domain.User) error {
	return r.users.Create(ctx, user)
}

func (r *repo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := r.users.FindOne(ctx, nil, option.WithWhere("email = ?", strings.ToLower(strings.TrimSpace(email))))
	return found(user, err, domain.ErrUserNotFound)
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	user, err := r.users.FindOne(ctx, nil, option.WithWhere("id = ?", id))
	return found(user, err, domain.ErrUserNotFound)
}

func (r *repo) UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	return updated(r.users.Update(ctx, id, fields))(domain.ErrUserNotFound)
}

func (r *repo) CreateSession(ctx context.Context, session *domain.Session) error {
	return r.sessions.Create(ctx, session)
}

func (r *repo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	session, err := r.sessions.FindOne(ctx, nil, option.WithWhere("session_token_hash = ?", tokenHash))
	return found(session, err, domain.ErrSessionNotFound)
}

func (r *repo) UpdateLastSeen(ctx context.Context, sessionID snowflake.ID, lastSeen time.Time) error {
	return updated(r.sessions.Update(ctx, sessionID, map[string]any{"last_seen_at": lastSeen}))(domain.ErrSessionNotFound)
}

func (r *repo) RevokeSession(ctx context.Context, sessionID snowflake.ID, revokedAt time.Time) error {
	return updated(r.sessions.Update(ctx, sessionID, map[string]any{"revoked_at": revokedAt}))(domain.ErrSessionNotFound)
}

// RevokeUserSessions ends every live session of a user except keep.
func (r *repo) RevokeUserSessions(ctx context.Context, userID, keep snowflake.ID, revokedAt time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("user_id = ? AND id <> ? AND revoked_at IS NULL", userID, keep).
		Update("revoked_at", revokedAt)
	return tx.RowsAffected, tx.Error
}

// updated turns a store update result into missing when no row matched.
func updated(n int64, err error) func(missing error) error {
	return func(missing error) error {
		if err != nil {
			return err
		}
		if n == 0 {
			return missing
		}
		return nil
	}
}

func found[T any](row *T, err error, missing error) (*T, error) {
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, missing
	}
	return row, nil
}
