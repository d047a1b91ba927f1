package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/academico/academico/internal/auth"
	"github.com/academico/academico/internal/shared"
)

// Service handles user account management. Each mutation is audited in the
// same transaction.
type Service struct {
	repo   Repository
	audit  shared.AuditWriter
	perms  auth.PermissionSource
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, audit shared.AuditWriter, perms auth.PermissionSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, perms: perms, logger: logger}
}

// List returns a page of users.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]User, error) {
	return s.repo.List(ctx, filters)
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create registers an active account.
func (s *Service) Create(ctx context.Context, actor *shared.AuthContext, in CreateUserInput, meta shared.RequestMeta) (User, error) {
	username := strings.TrimSpace(in.Username)
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	var user User
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := checkUsername(ctx, tx, username, 0); err != nil {
			return err
		}
		if err := checkPersona(ctx, tx, in.PersonaID); err != nil {
			return err
		}
		if in.RoleID != nil {
			if err := checkRole(ctx, tx, *in.RoleID); err != nil {
				return err
			}
		}
		id, err := tx.Create(ctx, NewUser{
			PersonaID:    in.PersonaID,
			Username:     username,
			PasswordHash: hash,
			RoleID:       in.RoleID,
			Status:       shared.UserStatusActive,
		})
		if err != nil {
			return err
		}
		if err := s.record(ctx, tx, actor, shared.AuditActionCreate, id, meta); err != nil {
			return err
		}
		user, err = tx.Get(ctx, id)
		return err
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user created", slog.Int64("user_id", user.ID), slog.String("username", user.Username))
	return user, nil
}

// Update patches persona, username and status. A status change is recorded as
// its own audit action.
func (s *Service) Update(ctx context.Context, actor *shared.AuthContext, id int64, in UpdateUserInput, meta shared.RequestMeta) (User, error) {
	var user User
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		personaID, username, status := current.PersonaID, current.Username, current.Status
		if in.PersonaID != nil && *in.PersonaID != personaID {
			if err := checkPersona(ctx, tx, *in.PersonaID); err != nil {
				return err
			}
			personaID = *in.PersonaID
		}
		if in.Username != nil {
			if candidate := strings.TrimSpace(*in.Username); candidate != username {
				if err := checkUsername(ctx, tx, candidate, id); err != nil {
					return err
				}
				username = candidate
			}
		}
		if in.Status != nil {
			status = *in.Status
		}

		fieldsChanged := personaID != current.PersonaID || username != current.Username
		statusChanged := status != current.Status
		if !fieldsChanged && !statusChanged {
			user = current
			return nil
		}
		if err := tx.Update(ctx, id, personaID, username, status); err != nil {
			return err
		}
		if fieldsChanged {
			if err := s.record(ctx, tx, actor, shared.AuditActionUpdate, id, meta); err != nil {
				return err
			}
		}
		if statusChanged {
			if err := s.record(ctx, tx, actor, shared.AuditActionChangeStatus, id, meta); err != nil {
				return err
			}
		}
		user, err = tx.Get(ctx, id)
		return err
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ChangeRole assigns a role to the user.
func (s *Service) ChangeRole(ctx context.Context, actor *shared.AuthContext, id int64, in ChangeRoleInput, meta shared.RequestMeta) (User, error) {
	var user User
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.Get(ctx, id); err != nil {
			return err
		}
		if err := checkRole(ctx, tx, in.RoleID); err != nil {
			return err
		}
		if err := tx.SetRole(ctx, id, in.RoleID); err != nil {
			return err
		}
		if err := s.record(ctx, tx, actor, shared.AuditActionChangeRole, id, meta); err != nil {
			return err
		}
		var err error
		user, err = tx.Get(ctx, id)
		return err
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user role changed", slog.Int64("user_id", id), slog.Int64("rol_id", in.RoleID))
	return user, nil
}

// SetPassword replaces the password of another user and returns the account
// with its effective permissions.
func (s *Service) SetPassword(ctx context.Context, actor *shared.AuthContext, id int64, in SetPasswordInput, meta shared.RequestMeta) (Session, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}
	var user User
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.SetPassword(ctx, id, hash); err != nil {
			return err
		}
		if err := s.record(ctx, tx, actor, shared.AuditActionChangePassword, id, meta); err != nil {
			return err
		}
		var err error
		user, err = tx.Get(ctx, id)
		return err
	})
	if err != nil {
		return Session{}, err
	}
	session := Session{User: user, RoleCode: user.RoleCode, Permissions: []string{}}
	if user.RoleID != nil {
		perms, err := s.perms.Get(ctx, *user.RoleID)
		if err != nil {
			return Session{}, err
		}
		session.Permissions = perms.Sorted()
	}
	return session, nil
}

func (s *Service) record(ctx context.Context, tx Repository, actor *shared.AuthContext, action string, id int64, meta shared.RequestMeta) error {
	_, err := s.audit.Record(ctx, tx.DB(), shared.AuditEntry{
		ActorID:  actor.ActorID(),
		Action:   action,
		Entity:   shared.AuditEntityUser,
		EntityID: shared.EntityID(id),
		Request:  meta,
	})
	return err
}

func checkUsername(ctx context.Context, tx Repository, username string, exceptID int64) error {
	taken, err := tx.UsernameTaken(ctx, username, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: username already exists", shared.ErrConflict)
	}
	return nil
}

func checkPersona(ctx context.Context, tx Repository, personaID int64) error {
	ok, err := tx.PersonaExists(ctx, personaID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("persona %d: %w", personaID, shared.ErrNotFound)
	}
	return nil
}

func checkRole(ctx context.Context, tx Repository, roleID int64) error {
	ok, err := tx.RoleExists(ctx, roleID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("role %d: %w", roleID, shared.ErrNotFound)
	}
	return nil
}
