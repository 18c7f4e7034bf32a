package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/cipherstudio/ide-backend/internal/projects/domain"
)

const uniqueViolation = "23505"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL CHECK (name <> ''),
	files      JSONB NOT NULL DEFAULT '{}'::jsonb,
	metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CHECK (updated_at >= created_at)
);
CREATE INDEX IF NOT EXISTS projects_updated_at_idx ON projects (updated_at DESC);
`

// PostgresStore persists projects as JSONB documents in a single table.
// It works with either the lib/pq ("postgres") or pgx ("pgx") database/sql driver.
type PostgresStore struct {
	base
	db *sql.DB
}

func NewPostgresStore(db *sql.DB, opts ...Option) *PostgresStore {
	return &PostgresStore{base: newBase(opts), db: db}
}

func (s *PostgresStore) Backend() string { return "postgres" }

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates the projects table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure projects schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.Summary, error) {
	const q = `
SELECT id, name, metadata, created_at, updated_at
FROM projects
ORDER BY updated_at DESC, id;
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Summary, 0, 16)
	for rows.Next() {
		var (
			sm   domain.Summary
			meta []byte
		)
		if err := rows.Scan(&sm.ID, &sm.Name, &meta, &sm.CreatedAt, &sm.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		if err := json.Unmarshal(meta, &sm.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of %s: %w", sm.ID, err)
		}
		sm.Metadata = sm.Metadata.Normalize()
		sm.CreatedAt = sm.CreatedAt.UTC()
		sm.UpdatedAt = sm.UpdatedAt.UTC()
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Project, error) {
	const q = `
SELECT id, name, files, metadata, created_at, updated_at
FROM projects
WHERE id = $1;
`
	return s.scanProject(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) Create(ctx context.Context, in domain.CreateInput) (*domain.Project, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	const q = `
INSERT INTO projects (id, name, files, metadata, created_at, updated_at)
VALUES ($1, $2, $3::jsonb, $4::jsonb, $5, $6);
`
	for i := 0; i < maxCreateAttempts; i++ {
		p := domain.NewProject(s.newID(), in, s.now())

		files, meta, err := encodeDocument(p.Files, p.Metadata)
		if err != nil {
			return nil, err
		}

		_, err = s.db.ExecContext(ctx, q, p.ID, p.Name, files, meta, p.CreatedAt, p.UpdatedAt)
		if err == nil {
			return p, nil
		}

		// unique violation on id → retry
		if isUniqueViolation(err) {
			continue
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return nil, fmt.Errorf("failed to generate unique project id")
}

func (s *PostgresStore) Update(ctx context.Context, id string, in domain.UpdateInput) (*domain.Project, error) {
	if err := validateUpdate(in); err != nil {
		return nil, err
	}

	var name, files, meta sql.NullString
	if in.Name != nil {
		name = sql.NullString{String: *in.Name, Valid: true}
	}
	if in.Files != nil {
		b, err := json.Marshal(domain.CloneFiles(*in.Files))
		if err != nil {
			return nil, fmt.Errorf("failed to encode files: %w", err)
		}
		files = sql.NullString{String: string(b), Valid: true}
	}
	if in.Metadata != nil {
		b, err := json.Marshal(in.Metadata.Normalize())
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	const q = `
UPDATE projects
SET name = COALESCE($2, name),
    files = COALESCE($3::jsonb, files),
    metadata = COALESCE($4::jsonb, metadata),
    updated_at = GREATEST($5::timestamptz, updated_at + interval '1 microsecond')
WHERE id = $1
RETURNING id, name, files, metadata, created_at, updated_at;
`
	p, err := s.scanProject(s.db.QueryRowContext(ctx, q, id, name, files, meta, domain.Stamp(s.now())))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return p, err
}

func (s *PostgresStore) ReplaceFiles(ctx context.Context, id string, files map[string]string) (*domain.Project, error) {
	if err := validateFiles(files); err != nil {
		return nil, err
	}
	return s.Update(ctx, id, domain.UpdateInput{Files: &files})
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) scanProject(row *sql.Row) (*domain.Project, error) {
	var (
		p           domain.Project
		files, meta []byte
	)
	err := row.Scan(&p.ID, &p.Name, &files, &meta, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	p.Files = map[string]string{}
	if err := json.Unmarshal(files, &p.Files); err != nil {
		return nil, fmt.Errorf("failed to decode files of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(meta, &p.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata of %s: %w", p.ID, err)
	}
	p.Metadata = p.Metadata.Normalize()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func encodeDocument(files map[string]string, meta domain.Metadata) (string, string, error) {
	f, err := json.Marshal(files)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode files: %w", err)
	}
	m, err := json.Marshal(meta)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(f), string(m), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
