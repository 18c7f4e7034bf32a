package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/cipherstudio/ide-backend/internal/preview"
	"github.com/cipherstudio/ide-backend/internal/projects/domain"
	"github.com/cipherstudio/ide-backend/internal/projects/repository"
)

// ProjectService validates requests and delegates them to the project store.
// Not-found and validation errors pass through untouched; any other store
// error is logged here and returned for the caller to report generically.
type ProjectService struct {
	store  repository.Store
	logger *zap.Logger
}

// NewProjectService creates a new project service
func NewProjectService(store repository.Store, logger *zap.Logger) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{
		store:  store,
		logger: logger.Named("projects"),
	}
}

// Backend reports which storage implementation is serving requests.
func (s *ProjectService) Backend() string {
	return s.store.Backend()
}

// Ping checks the store is reachable.
func (s *ProjectService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// List returns all project summaries
func (s *ProjectService) List(ctx context.Context) ([]domain.Summary, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, s.fault("list", "", err)
	}
	return items, nil
}

// Get returns one project with its files
func (s *ProjectService) Get(ctx context.Context, id string) (*domain.Project, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fault("get", id, err)
	}
	return p, nil
}

// Create creates a new project. The name is stored exactly as supplied; only
// a blank one is rejected.
func (s *ProjectService) Create(ctx context.Context, in domain.CreateInput) (*domain.Project, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, domain.NewValidationError("Project name is required")
	}

	p, err := s.store.Create(ctx, in)
	if err != nil {
		return nil, s.fault("create", "", err)
	}
	s.logger.Debug("project created", zap.String("project_id", p.ID), zap.Int("files", len(p.Files)))
	return p, nil
}

// Update applies a partial update. A blank name counts as absent.
func (s *ProjectService) Update(ctx context.Context, id string, in domain.UpdateInput) (*domain.Project, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		in.Name = nil
	}

	p, err := s.store.Update(ctx, id, in)
	if err != nil {
		return nil, s.fault("update", id, err)
	}
	return p, nil
}

// SaveFiles replaces the project's whole file map
func (s *ProjectService) SaveFiles(ctx context.Context, id string, files map[string]string) (*domain.Project, error) {
	if files == nil {
		return nil, domain.NewValidationError("Files data is required")
	}

	p, err := s.store.ReplaceFiles(ctx, id, files)
	if err != nil {
		return nil, s.fault("save_files", id, err)
	}
	return p, nil
}

// Delete removes a project permanently
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return s.fault("delete", id, err)
	}
	s.logger.Debug("project deleted", zap.String("project_id", id))
	return nil
}

// Preview builds the sandbox bundle for a project
func (s *ProjectService) Preview(ctx context.Context, id string) (*preview.Bundle, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	b := preview.NewBundle(p.Files)
	return &b, nil
}

func (s *ProjectService) fault(op, id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
		return err
	}
	s.logger.Error("project store failure",
		zap.String("op", op),
		zap.String("backend", s.store.Backend()),
		zap.String("project_id", id),
		zap.Error(err),
	)
	return err
}
