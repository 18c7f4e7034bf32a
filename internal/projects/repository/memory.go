package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/cipherstudio/ide-backend/internal/projects/domain"
)

// MemoryStore keeps projects in a process-local table. Records are copied on
// every read and write so callers never share maps with the table.
type MemoryStore struct {
	base

	mu       sync.RWMutex
	projects map[string]*domain.Project
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		base:     newBase(opts),
		projects: make(map[string]*domain.Project),
	}
}

func (s *MemoryStore) Backend() string { return "memory" }

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) List(ctx context.Context) ([]domain.Summary, error) {
	s.mu.RLock()
	out := make([]domain.Summary, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Summary())
	}
	s.mu.RUnlock()

	sortSummaries(out)
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, in domain.CreateInput) (*domain.Project, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < maxCreateAttempts; i++ {
		id := s.newID()
		if _, taken := s.projects[id]; taken {
			continue
		}
		p := domain.NewProject(id, in, s.now())
		s.projects[id] = p
		return p.Clone(), nil
	}
	return nil, fmt.Errorf("failed to generate unique project id")
}

func (s *MemoryStore) Update(ctx context.Context, id string, in domain.UpdateInput) (*domain.Project, error) {
	if err := validateUpdate(in); err != nil {
		return nil, err
	}
	return s.mutate(id, func(p *domain.Project) {
		p.Apply(in, s.now())
	})
}

func (s *MemoryStore) ReplaceFiles(ctx context.Context, id string, files map[string]string) (*domain.Project, error) {
	if err := validateFiles(files); err != nil {
		return nil, err
	}
	return s.mutate(id, func(p *domain.Project) {
		p.Apply(domain.UpdateInput{Files: &files}, s.now())
	})
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.projects, id)
	return nil
}

func (s *MemoryStore) mutate(id string, fn func(*domain.Project)) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := existing.Clone()
	fn(next)
	s.projects[id] = next
	return next.Clone(), nil
}
