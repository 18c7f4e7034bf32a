package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cipherstudio/ide-backend/internal/projects/domain"
)

const (
	projectKeyPrefix = "ide:project:" // Key prefix for project documents: ide:project:{id}
	projectIndexKey  = "ide:projects" // Sorted set of project ids scored by updatedAt (unix micros)
	maxTxRetries     = 10             // WATCH conflicts tolerated before giving up
)

// RedisStore keeps each project as a JSON document plus a sorted-set index.
type RedisStore struct {
	base
	client *redis.Client
}

func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	return &RedisStore{base: newBase(opts), client: client}
}

func (s *RedisStore) Backend() string { return "redis" }

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) List(ctx context.Context) ([]domain.Summary, error) {
	ids, err := s.client.ZRevRange(ctx, projectIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Summary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = projectKey(id)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	out := make([]domain.Summary, 0, len(vals))
	for i, v := range vals {
		// deleted between ZREVRANGE and MGET
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var p domain.Project
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to decode project %s: %w", ids[i], err)
		}
		out = append(out, p.Summary())
	}

	sortSummaries(out)
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Project, error) {
	data, err := s.client.Get(ctx, projectKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return decodeProject(data)
}

func (s *RedisStore) Create(ctx context.Context, in domain.CreateInput) (*domain.Project, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	for i := 0; i < maxCreateAttempts; i++ {
		p := domain.NewProject(s.newID(), in, s.now())

		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal project: %w", err)
		}

		created, err := s.client.SetNX(ctx, projectKey(p.ID), data, 0).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to create project: %w", err)
		}
		// id already taken → retry
		if !created {
			continue
		}

		if err := s.client.ZAdd(ctx, projectIndexKey, indexEntry(p)).Err(); err != nil {
			// an unindexed document would be readable but never listed
			if delErr := s.client.Del(ctx, projectKey(p.ID)).Err(); delErr != nil {
				return nil, fmt.Errorf("failed to index project: %w (cleanup: %v)", err, delErr)
			}
			return nil, fmt.Errorf("failed to index project: %w", err)
		}
		return p, nil
	}

	return nil, fmt.Errorf("failed to generate unique project id")
}

func (s *RedisStore) Update(ctx context.Context, id string, in domain.UpdateInput) (*domain.Project, error) {
	if err := validateUpdate(in); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(p *domain.Project) {
		p.Apply(in, s.now())
	})
}

func (s *RedisStore) ReplaceFiles(ctx context.Context, id string, files map[string]string) (*domain.Project, error) {
	if err := validateFiles(files); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(p *domain.Project) {
		p.Apply(domain.UpdateInput{Files: &files}, s.now())
	})
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, projectKey(id))
		pipe.ZRem(ctx, projectIndexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if del.Val() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// mutate runs fn against the stored project under WATCH, so a concurrent
// writer forces a re-read instead of being silently overwritten mid-update.
func (s *RedisStore) mutate(ctx context.Context, id string, fn func(*domain.Project)) (*domain.Project, error) {
	key := projectKey(id)

	var out *domain.Project
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		p, err := decodeProject(data)
		if err != nil {
			return err
		}
		fn(p)

		next, err := json.Marshal(p)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			pipe.ZAdd(ctx, projectIndexKey, indexEntry(p))
			return nil
		})
		if err == nil {
			out = p
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, domain.ErrNotFound):
			return nil, err
		default:
			return nil, fmt.Errorf("failed to update project: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to update project %s: too many concurrent writers", id)
}

func decodeProject(data []byte) (*domain.Project, error) {
	var p domain.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project: %w", err)
	}
	if p.Files == nil {
		p.Files = map[string]string{}
	}
	p.Metadata = p.Metadata.Normalize()
	return &p, nil
}

func indexEntry(p *domain.Project) redis.Z {
	return redis.Z{Score: float64(p.UpdatedAt.UnixMicro()), Member: p.ID}
}

func projectKey(id string) string {
	return projectKeyPrefix + id
}
