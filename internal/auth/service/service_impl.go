package service

import (
	"cmp"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/auth/domain"
	"github.com/smallbiznis/nanolite/internal/auth/password"
	"github.com/smallbiznis/nanolite/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionTokenBytes = 32
	sessionTTL        = 7 * 24 * time.Hour

	minPasswordLength = 8
)

var knownRoles = map[string]struct{}{
	domain.RoleSuperAdmin:  {},
	domain.RoleAdmin:       {},
	domain.RoleHeadSales:   {},
	domain.RoleHeadDigital: {},
	domain.RoleSales:       {},
}

type Params struct {
	fx.In

	Log         *zap.Logger
	Repo        domain.Repository
	SessionRepo domain.SessionRepository
	GenID       *snowflake.Node
	Clock       clock.Clock
}

type Service struct {
	log         *zap.Logger
	repo        domain.Repository
	sessionRepo domain.SessionRepository
	genID       *snowflake.Node
	clock       clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("auth.service"),
		repo:        p.Repo,
		sessionRepo: p.SessionRepo,
		genID:       p.GenID,
		clock:       p.Clock,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, domain.ErrInvalidCredentials
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if _, ok := knownRoles[role]; !ok {
		return nil, domain.ErrInvalidRole
	}

	switch _, err := s.repo.FindByEmail(ctx, email); {
	case err == nil:
		return nil, domain.ErrUserExists
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now().UTC()
	user := &domain.User{
		ID:                  s.genID.Generate(),
		Name:                cmp.Or(strings.TrimSpace(req.Name), defaultDisplayName(email)),
		Email:               email,
		PasswordHash:        &hashed,
		Role:                role,
		CompanyID:           req.CompanyID,
		DepartmentID:        req.DepartmentID,
		EmployeeID:          req.EmployeeID,
		LastPasswordChanged: &now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and opens a session. Unknown emails and wrong
// passwords both surface as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil || strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return nil, domain.ErrInvalidCredentials
	case err != nil:
		return nil, err
	case user.PasswordHash == nil || !password.Verify(req.Password, *user.PasswordHash):
		s.log.Debug("password mismatch", zap.String("user_id", user.ID.String()))
		return nil, domain.ErrInvalidCredentials
	}
	if password.NeedsRehash(*user.PasswordHash) {
		s.upgradeHash(ctx, user, req.Password)
	}

	raw, session, err := s.openSession(ctx, user.ID, req.UserAgent, req.IPAddress)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResult{
		User:      user,
		RawToken:  raw,
		ExpiresAt: session.ExpiresAt,
		SessionID: session.ID,
	}, nil
}

func (s *Service) openSession(ctx context.Context, userID snowflake.ID, userAgent, ip string) (string, *domain.Session, error) {
	raw, err := newSessionToken()
	if err != nil {
		return "", nil, fmt.Errorf("session token: %w", err)
	}
	now := s.clock.Now().UTC()
	session := &domain.Session{
		ID:               s.genID.Generate(),
		UserID:           userID,
		SessionTokenHash: hashToken(raw),
		UserAgent:        strings.TrimSpace(userAgent),
		IPAddress:        strings.TrimSpace(ip),
		ExpiresAt:        now.Add(sessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return "", nil, err
	}
	return raw, session, nil
}

// lookupSession resolves a raw bearer or cookie token to its stored session.
func (s *Service) lookupSession(ctx context.Context, rawToken string) (*domain.Session, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}
	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.ErrInvalidSession
	}
	return session, err
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	session, err := s.lookupSession(ctx, rawToken)
	if err != nil {
		return err
	}
	return s.sessionRepo.RevokeSession(ctx, session.ID, s.clock.Now().UTC())
}

// Authenticate validates a session token and touches its last-seen time.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Session, *domain.User, error) {
	session, err := s.lookupSession(ctx, rawToken)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now().UTC()
	switch {
	case session.RevokedAt != nil:
		return nil, nil, domain.ErrSessionRevoked
	case now.After(session.ExpiresAt):
		return nil, nil, domain.ErrSessionExpired
	}

	user, err := s.repo.FindByID(ctx, session.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil, domain.ErrInvalidSession
	}
	if err != nil {
		return nil, nil, err
	}
	if err := s.sessionRepo.UpdateLastSeen(ctx, session.ID, now); err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID, keepSession snowflake.ID, newPassword string) error {
	if len(strings.TrimSpace(newPassword)) < minPasswordLength {
		return domain.ErrInvalidCredentials
	}

	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		return err
	}

	hashed, err := password.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now().UTC()
	if err := s.repo.UpdateFields(ctx, userID, map[string]any{
		"password_hash":         hashed,
		"last_password_changed": &now,
		"is_default":            false,
		"updated_at":            now,
	}); err != nil {
		return err
	}

	revoked, err := s.sessionRepo.RevokeUserSessions(ctx, userID, keepSession, now)
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	if revoked > 0 {
		s.log.Info("sessions revoked after password change",
			zap.String("user_id", userID.String()),
			zap.Int64("count", revoked),
		)
	}
	return nil
}

// upgradeHash rewrites a legacy hash after a successful login. Failure only
// logs; the user stays signed in.
func (s *Service) upgradeHash(ctx context.Context, user *domain.User, plain string) {
	hashed, err := password.Hash(plain)
	if err == nil {
		err = s.repo.UpdateFields(ctx, user.ID, map[string]any{
			"password_hash": hashed,
			"updated_at":    s.clock.Now().UTC(),
		})
	}
	if err != nil {
		s.log.Warn("password rehash failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}
	user.PasswordHash = &hashed
}

func (s *Service) GetUser(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

// defaultDisplayName is the local part of the address.
func defaultDisplayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return cmp.Or(strings.TrimSpace(local), email)
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
