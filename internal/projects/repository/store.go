package repository

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cipherstudio/ide-backend/internal/projects/domain"
)

// Store persists projects. Misses are reported as domain.ErrNotFound and bad
// input as domain.ErrValidation; everything else is a storage fault.
type Store interface {
	List(ctx context.Context) ([]domain.Summary, error)
	Get(ctx context.Context, id string) (*domain.Project, error)
	Create(ctx context.Context, in domain.CreateInput) (*domain.Project, error)
	Update(ctx context.Context, id string, in domain.UpdateInput) (*domain.Project, error)
	ReplaceFiles(ctx context.Context, id string, files map[string]string) (*domain.Project, error)
	Delete(ctx context.Context, id string) error

	// Backend names the implementation, e.g. "memory".
	Backend() string
	Ping(ctx context.Context) error
}

// maxCreateAttempts bounds id regeneration on a unique violation.
const maxCreateAttempts = 5

// Option configures the clock and id source of a store.
type Option func(*base)

func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(b *base) { b.newID = newID }
}

type base struct {
	now   func() time.Time
	newID func() string
}

func newBase(opts []Option) base {
	b := base{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func validateCreate(in domain.CreateInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return domain.NewValidationError("Project name is required")
	}
	return nil
}

func validateUpdate(in domain.UpdateInput) error {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return domain.NewValidationError("Project name cannot be empty")
	}
	return nil
}

func validateFiles(files map[string]string) error {
	if files == nil {
		return domain.NewValidationError("Files data is required")
	}
	return nil
}

func sortSummaries(out []domain.Summary) {
	// most recently updated first, id breaks ties
	slices.SortFunc(out, func(a, b domain.Summary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
