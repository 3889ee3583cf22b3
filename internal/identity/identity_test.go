package identity

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestProvider(t *testing.T) *RedisProvider {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisProvider(client)
}

func TestCurrentSubject_AnonymousByDefault(t *testing.T) {
	sut := setupTestProvider(t)

	subject, err := sut.CurrentSubject(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, subject)
}

func TestSignInSignOut(t *testing.T) {
	sut := setupTestProvider(t)
	ctx := context.Background()

	require.NoError(t, sut.SignIn(ctx, "s1", "subj1"))

	subject, err := sut.CurrentSubject(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "subj1", subject)

	// other sessions are unaffected
	subject, err = sut.CurrentSubject(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, subject)

	require.NoError(t, sut.SignOut(ctx, "s1"))
	subject, err = sut.CurrentSubject(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, subject)
}
