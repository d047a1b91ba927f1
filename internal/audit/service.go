package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/academico/academico/internal/shared"
)

// MaxExportRows caps a single CSV export.
const MaxExportRows = 10000

// Repository reads the audit log.
type Repository interface {
	Count(ctx context.Context, filters Filters) (int, error)
	List(ctx context.Context, filters Filters, limit, offset int) ([]Entry, error)
}

// Service serves audit log queries.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns one page of the audit log ordered by creation time, newest
// first.
func (s *Service) List(ctx context.Context, filters Filters) (Page, error) {
	if s.repo == nil {
		return Page{}, fmt.Errorf("audit: repository not configured")
	}
	filters, err := normalize(filters)
	if err != nil {
		return Page{}, err
	}
	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return Page{}, err
	}
	items := []Entry{}
	if filters.Offset() < total {
		items, err = s.repo.List(ctx, filters, filters.Size, filters.Offset())
		if err != nil {
			return Page{}, err
		}
	}
	return Page{Total: total, Page: filters.Page, Size: filters.Size, Items: items}, nil
}

// Export returns every entry matching filters, up to MaxExportRows. Paging
// fields are ignored.
func (s *Service) Export(ctx context.Context, filters Filters) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	filters.Page, filters.Size = 1, DefaultPageSize
	filters, err := normalize(filters)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filters, MaxExportRows, 0)
}

func normalize(f Filters) (Filters, error) {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Size == 0 {
		f.Size = DefaultPageSize
	}
	if f.Page < 1 {
		return f, fmt.Errorf("%w: page must be >= 1", shared.ErrValidation)
	}
	if f.Size < 1 || f.Size > MaxPageSize {
		return f, fmt.Errorf("%w: size must be between 1 and %d", shared.ErrValidation, MaxPageSize)
	}
	if f.ActorID != nil && *f.ActorID < 1 {
		return f, fmt.Errorf("%w: actor_id must be >= 1", shared.ErrValidation)
	}
	f.Action = strings.TrimSpace(f.Action)
	f.Entity = strings.TrimSpace(f.Entity)
	if len(f.Action) > maxFilterLength || len(f.Entity) > maxFilterLength {
		return f, fmt.Errorf("%w: filters are limited to %d characters", shared.ErrValidation, maxFilterLength)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, fmt.Errorf("%w: from is after to", shared.ErrValidation)
	}
	return f, nil
}
