package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/academico/academico/internal/shared"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// dummyHash is compared against when the username is unknown so both login
// failures cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("academico-unknown-user"), bcrypt.DefaultCost)
	return hash
})

// LastAccessNotifier is told about successful logins.
type LastAccessNotifier interface {
	NotifyLogin(ctx context.Context, userID int64, at time.Time) error
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	tokens   *TokenService
	perms    PermissionSource
	audit    shared.AuditWriter
	notifier LastAccessNotifier
	logger   *slog.Logger
	now      func() time.Time
	compare  func(hash, password []byte) error
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenService, perms PermissionSource, audit shared.AuditWriter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, perms: perms, audit: audit, logger: logger, now: time.Now, compare: bcrypt.CompareHashAndPassword}
}

// SetLastAccessNotifier registers the notifier used after login.
func (s *Service) SetLastAccessNotifier(n LastAccessNotifier) {
	s.notifier = n
}

// Login validates username/password credentials and mints a session token.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			_ = s.compare(dummyHash(), []byte(password))
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.compare([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.Active() {
		return nil, shared.ErrUserInactive
	}
	if user.RoleID == nil || user.RoleCode == nil {
		return nil, shared.ErrRoleNotAssigned
	}

	perms, err := s.perms.Get(ctx, *user.RoleID)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.tokens.IssueSession(user, *user.RoleCode)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyLogin(ctx, user.ID, s.now()); err != nil {
			s.logger.Warn("notify login", slog.Int64("user_id", user.ID), slog.Any("error", err))
		}
	} else if err := s.repo.TouchLastAccess(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("touch last access", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
	return &LoginResult{
		Token:       token,
		ExpiresAt:   expiresAt,
		User:        user.Principal(),
		RoleCode:    *user.RoleCode,
		Permissions: perms,
	}, nil
}

// ChangePassword replaces the caller's password after verifying the current one.
// The update and its audit record share a transaction.
func (s *Service) ChangePassword(ctx context.Context, auth *shared.AuthContext, oldPassword, newPassword string, meta shared.RequestMeta) error {
	if auth == nil {
		return shared.ErrUnauthenticated
	}
	user, err := s.repo.FindByID(ctx, auth.User.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrUnauthenticated
		}
		return err
	}
	if err := s.compare([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return shared.ErrInvalidCredentials
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.UpdatePassword(ctx, user.ID, hash); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, tx.DB(), shared.AuditEntry{
			ActorID:  auth.ActorID(),
			Action:   shared.AuditActionChangePassword,
			Entity:   shared.AuditEntityUser,
			EntityID: shared.EntityID(user.ID),
			Request:  meta,
		})
		return err
	})
}

// HashPassword hashes a plain password with bcrypt's default cost. Passwords
// longer than MaxPasswordBytes are rejected as invalid input.
func HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", fmt.Errorf("%w: password exceeds %d bytes", shared.ErrValidation, MaxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}
