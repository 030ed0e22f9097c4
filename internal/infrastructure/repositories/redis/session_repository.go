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

type RedisSessionRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionRepository(client *redis.Client) ports.SessionRepository {
	return &RedisSessionRepository{
		client: client,
		prefix: "playgrid:session:",
	}
}

func (r *RedisSessionRepository) sessionKey(id domain.StreamID) string {
	return r.prefix + string(id)
}

func (r *RedisSessionRepository) Put(ctx context.Context, session *domain.StreamSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.sessionKey(session.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set session in Redis: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.StreamSession, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrStreamNotFound
		}
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session domain.StreamSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id domain.StreamID) error {
	deleted, err := r.client.Del(ctx, r.sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	if deleted == 0 {
		return domain.ErrStreamNotFound
	}
	return nil
}

func (r *RedisSessionRepository) UpdateViewerCount(ctx context.Context, id domain.StreamID, viewers int) error {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	session.ViewerCount = viewers
	return r.Put(ctx, session)
}
