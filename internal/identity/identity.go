package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Provider exposes the stable subject identifier for a session. An empty
// subject with a nil error means the session is anonymous. Token expiry and
// refresh belong to the external identity service, not this core.
type Provider interface {
	CurrentSubject(ctx context.Context, session string) (string, error)
	SignIn(ctx context.Context, session, subject string) error
	SignOut(ctx context.Context, session string) error
}

// RedisProvider keeps one subject marker key per session.
type RedisProvider struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProvider(client *redis.Client) *RedisProvider {
	return &RedisProvider{
		client: client,
		ttl:    30 * 24 * time.Hour,
	}
}

func (p *RedisProvider) CurrentSubject(ctx context.Context, session string) (string, error) {
	subject, err := p.client.Get(ctx, subjectKey(session)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read subject marker: %w", err)
	}
	return subject, nil
}

func (p *RedisProvider) SignIn(ctx context.Context, session, subject string) error {
	if err := p.client.Set(ctx, subjectKey(session), subject, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store subject marker: %w", err)
	}
	return nil
}

func (p *RedisProvider) SignOut(ctx context.Context, session string) error {
	if err := p.client.Del(ctx, subjectKey(session)).Err(); err != nil {
		return fmt.Errorf("failed to clear subject marker: %w", err)
	}
	return nil
}

func subjectKey(session string) string {
	return fmt.Sprintf("subject:%s", session)
}
