package roles

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/academico/academico/internal/shared"
)

// Invalidator drops cached permissions of a role.
type Invalidator interface {
	Invalidate(ctx context.Context, roleID int64)
}

// Service handles role business logic. Every mutation is written together with
// its audit record in one transaction; cached permissions of the role are
// invalidated after commit.
type Service struct {
	repo   Repository
	audit  shared.AuditWriter
	cache  Invalidator
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, audit shared.AuditWriter, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger}
}

// List returns a page of roles.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Role, error) {
	return s.repo.List(ctx, filters)
}

// Get returns a role by id.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a role with its views.
func (s *Service) Create(ctx context.Context, actor *shared.AuthContext, in CreateRoleInput, meta shared.RequestMeta) (Role, error) {
	name, code, err := normalizeNames(in.Name, in.Code)
	if err != nil {
		return Role{}, err
	}
	var role Role
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		id, err := tx.Create(ctx, name, code)
		if err != nil {
			return err
		}
		if len(in.ViewIDs) > 0 {
			if err := tx.ReplaceViews(ctx, id, uniqueIDs(in.ViewIDs)); err != nil {
				return err
			}
		}
		if err := s.record(ctx, tx, actor, shared.AuditActionCreate, id, meta); err != nil {
			return err
		}
		role, err = tx.Get(ctx, id)
		return err
	})
	if err != nil {
		return Role{}, err
	}
	s.cache.Invalidate(ctx, role.ID)
	s.logger.Info("role created", slog.Int64("role_id", role.ID), slog.String("codigo", role.Code))
	return role, nil
}

// Update changes name, code and optionally the views of a role.
func (s *Service) Update(ctx context.Context, actor *shared.AuthContext, id int64, in UpdateRoleInput, meta shared.RequestMeta) (Role, error) {
	var role Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		name, code := current.Name, current.Code
		if in.Name != nil {
			name = *in.Name
		}
		if in.Code != nil {
			code = *in.Code
		}
		if name, code, err = normalizeNames(name, code); err != nil {
			return err
		}
		if name != current.Name || code != current.Code {
			if err := tx.Update(ctx, id, name, code); err != nil {
				return err
			}
		}
		if in.ViewIDs != nil {
			if err := tx.ReplaceViews(ctx, id, uniqueIDs(*in.ViewIDs)); err != nil {
				return err
			}
		}
		if err := s.record(ctx, tx, actor, shared.AuditActionUpdate, id, meta); err != nil {
			return err
		}
		role, err = tx.Get(ctx, id)
		return err
	})
	if err != nil {
		return Role{}, err
	}
	s.cache.Invalidate(ctx, id)
	s.logger.Info("role updated", slog.Int64("role_id", id))
	return role, nil
}

// Delete removes a role.
func (s *Service) Delete(ctx context.Context, actor *shared.AuthContext, id int64, meta shared.RequestMeta) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, tx, actor, shared.AuditActionDelete, id, meta)
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)
	s.logger.Info("role deleted", slog.Int64("role_id", id))
	return nil
}

func (s *Service) record(ctx context.Context, tx Repository, actor *shared.AuthContext, action string, id int64, meta shared.RequestMeta) error {
	_, err := s.audit.Record(ctx, tx.DB(), shared.AuditEntry{
		ActorID:  actor.ActorID(),
		Action:   action,
		Entity:   shared.AuditEntityRole,
		EntityID: shared.EntityID(id),
		Request:  meta,
	})
	return err
}

func normalizeNames(name, code string) (string, string, error) {
	name = strings.TrimSpace(name)
	code = shared.NormalizeCode(code)
	if name == "" || code == "" {
		return "", "", fmt.Errorf("%w: nombre and codigo are required", shared.ErrValidation)
	}
	return name, code, nil
}

func uniqueIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
