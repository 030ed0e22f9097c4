package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisStateRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisStateRepository(client *redis.Client) ports.StateRepository {
	return &RedisStateRepository{
		client: client,
		prefix: "playgrid:state:",
	}
}

func (r *RedisStateRepository) stateKey(id domain.StreamID) string {
	return r.prefix + string(id)
}

func (r *RedisStateRepository) indexKey() string {
	return r.prefix + "index"
}

func (r *RedisStateRepository) Create(ctx context.Context, state *domain.StreamState) error {
	exists, err := r.client.Exists(ctx, r.stateKey(state.StreamID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check state existence: %w", err)
	}
	if exists > 0 {
		return domain.ErrStreamExists
	}
	return r.write(ctx, state)
}

func (r *RedisStateRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.StreamState, error) {
	data, err := r.client.Get(ctx, r.stateKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrStreamNotFound
		}
		return nil, fmt.Errorf("failed to get state from Redis: %w", err)
	}

	var state domain.StreamState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

func (r *RedisStateRepository) Update(ctx context.Context, state *domain.StreamState) error {
	exists, err := r.client.Exists(ctx, r.stateKey(state.StreamID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check state existence: %w", err)
	}
	if exists == 0 {
		return domain.ErrStreamNotFound
	}
	return r.write(ctx, state)
}

func (r *RedisStateRepository) Delete(ctx context.Context, id domain.StreamID) error {
	deleted, err := r.client.Del(ctx, r.stateKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete state from Redis: %w", err)
	}
	if deleted == 0 {
		return domain.ErrStreamNotFound
	}
	if err := r.client.SRem(ctx, r.indexKey(), string(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove state from index: %w", err)
	}
	return nil
}

func (r *RedisStateRepository) List(ctx context.Context) ([]*domain.StreamState, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list state index: %w", err)
	}

	states := make([]*domain.StreamState, 0, len(ids))
	for _, id := range ids {
		state, err := r.GetByID(ctx, domain.StreamID(id))
		if err != nil {
			if errors.Is(err, domain.ErrStreamNotFound) {
				// Index can lag behind deletes; skip stale entries.
				continue
			}
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

func (r *RedisStateRepository) write(ctx context.Context, state *domain.StreamState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.stateKey(state.StreamID), data, 0)
	pipe.SAdd(ctx, r.indexKey(), string(state.StreamID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write state to Redis: %w", err)
	}
	return nil
}
