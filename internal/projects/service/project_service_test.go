package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cipherstudio/ide-backend/internal/projects/domain"
	"github.com/cipherstudio/ide-backend/internal/projects/repository"
)

// failingStore reports a storage fault for every operation.
type failingStore struct {
	err error
}

func (f failingStore) List(context.Context) ([]domain.Summary, error) { return nil, f.err }
func (f failingStore) Get(context.Context, string) (*domain.Project, error) {
	return nil, f.err
}
func (f failingStore) Create(context.Context, domain.CreateInput) (*domain.Project, error) {
	return nil, f.err
}
func (f failingStore) Update(context.Context, string, domain.UpdateInput) (*domain.Project, error) {
	return nil, f.err
}
func (f failingStore) ReplaceFiles(context.Context, string, map[string]string) (*domain.Project, error) {
	return nil, f.err
}
func (f failingStore) Delete(context.Context, string) error { return f.err }
func (f failingStore) Backend() string                      { return "failing" }
func (f failingStore) Ping(context.Context) error           { return f.err }

func newObservedService(store repository.Store) (*ProjectService, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewProjectService(store, zap.New(core)), logs
}

func TestCreate_ValidatesNameAndStoresItAsSupplied(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewProjectService(store, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateInput{Name: "   "})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Project name is required", ve.Message)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	p, err := svc.Create(ctx, domain.CreateInput{Name: "  Demo  ", Files: map[string]string{"App.js": "x"}})
	require.NoError(t, err)
	assert.Equal(t, "  Demo  ", p.Name)
	assert.Equal(t, "x", p.Files["App.js"])

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "  Demo  ", got.Name)
	assert.False(t, p.Metadata.IsPublic)
}

func TestUpdate_BlankNameIsIgnored(t *testing.T) {
	svc := NewProjectService(repository.NewMemoryStore(), nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, domain.CreateInput{Name: "Demo"})
	require.NoError(t, err)

	blank := "  "
	updated, err := svc.Update(ctx, p.ID, domain.UpdateInput{Name: &blank})
	require.NoError(t, err)
	assert.Equal(t, "Demo", updated.Name)
	assert.True(t, updated.UpdatedAt.After(p.UpdatedAt))

	padded := " New "
	updated, err = svc.Update(ctx, p.ID, domain.UpdateInput{Name: &padded})
	require.NoError(t, err)
	assert.Equal(t, " New ", updated.Name)
}

func TestSaveFiles(t *testing.T) {
	svc := NewProjectService(repository.NewMemoryStore(), nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, domain.CreateInput{Name: "Demo", Files: map[string]string{"a.js": "1"}})
	require.NoError(t, err)

	_, err = svc.SaveFiles(ctx, p.ID, nil)
	require.ErrorIs(t, err, domain.ErrValidation)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.js": "1"}, got.Files)

	saved, err := svc.SaveFiles(ctx, p.ID, map[string]string{"b.js": "2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b.js": "2"}, saved.Files)

	_, err = svc.SaveFiles(ctx, "missing", map[string]string{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteThenGet(t *testing.T) {
	svc := NewProjectService(repository.NewMemoryStore(), nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, domain.CreateInput{Name: "Demo"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPreview(t *testing.T) {
	svc := NewProjectService(repository.NewMemoryStore(), nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, domain.CreateInput{Name: "Demo", Files: map[string]string{"App.js": "x"}})
	require.NoError(t, err)

	b, err := svc.Preview(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "/App.js", b.Entry)
	assert.Equal(t, "x", b.Files["/App.js"])

	_, err = svc.Preview(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreFaultsAreLogged(t *testing.T) {
	boom := errors.New("connection refused")
	svc, logs := newObservedService(failingStore{err: boom})
	ctx := context.Background()

	_, err := svc.Get(ctx, "p-1")
	require.ErrorIs(t, err, boom)

	entries := logs.FilterMessage("project store failure").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "get", fields["op"])
	assert.Equal(t, "p-1", fields["project_id"])
	assert.Equal(t, "failing", fields["backend"])
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestNotFoundIsNotLoggedAsFault(t *testing.T) {
	svc, logs := newObservedService(repository.NewMemoryStore())

	_, err := svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, logs.FilterMessage("project store failure").Len())
}

func TestBackendAndPing(t *testing.T) {
	svc := NewProjectService(repository.NewMemoryStore(), nil)
	assert.Equal(t, "memory", svc.Backend())
	assert.NoError(t, svc.Ping(context.Background()))
}
