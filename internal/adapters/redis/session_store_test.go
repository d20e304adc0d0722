package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/courselens/courselens-api/internal/domain/auth"
	"github.com/courselens/courselens-api/internal/testutil"
)

func testSession(token, userID string, ttl time.Duration) domainauth.Session {
	return domainauth.Session{
		Token: token,
		Identity: domainauth.Identity{
			ID:          userID,
			Email:       userID + "@example.com",
			DisplayName: "Test User",
		},
		ExpiresAt: time.Now().Add(ttl),
	}
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	sess := testSession("tok-1", "user-1", time.Hour)
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.Identity.ID)
	assert.Equal(t, "tok-1", got.Token)

	// Redis TTL tracks the session expiry.
	ttl, err := client.TTL(ctx, "session:tok-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 55*time.Minute)
}

func TestSessionStore_SaveRejectsExpired(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)

	err := store.Save(context.Background(), testSession("tok-1", "user-1", -time.Minute))
	require.Error(t, err)
}

func TestSessionStore_GetCleansUpExpiredRecord(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)

	// Redis TTL has not fired yet but the embedded expiry is in the past,
	// the state a clock-skewed writer leaves behind. Write the record
	// directly so Save's TTL guard cannot reject it.
	sess := testSession("tok-1", "user-1", -time.Minute)
	data, err := json.Marshal(sess)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "session:tok-1", data, time.Hour).Err())
	require.NoError(t, client.SAdd(ctx, "session:user:user-1", "tok-1").Err())

	// Bound the call so a cleanup cycle cannot stall the test.
	getCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err = store.Get(getCtx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Both the record and its index entry are gone.
	exists, err := client.Exists(ctx, "session:tok-1").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
	isMember, err := client.SIsMember(ctx, "session:user:user-1", "tok-1").Result()
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestSessionStore_GetMissingToken(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)

	_, err := store.Get(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStore_Delete(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("tok-1", "user-1", time.Hour)))
	require.NoError(t, store.Delete(ctx, "tok-1"))

	_, err := store.Get(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an unknown token is not an error.
	assert.NoError(t, store.Delete(ctx, "tok-1"))
}

func TestSessionStore_DeleteByUser(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("tok-1", "user-1", time.Hour)))
	require.NoError(t, store.Save(ctx, testSession("tok-2", "user-1", time.Hour)))
	require.NoError(t, store.Save(ctx, testSession("tok-3", "user-2", time.Hour)))

	n, err := store.DeleteByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = store.Get(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "tok-2")
	assert.ErrorIs(t, err, ErrNotFound)

	// The other identity's session survives.
	got, err := store.Get(ctx, "tok-3")
	require.NoError(t, err)
	assert.Equal(t, "user-2", got.Identity.ID)

	// Revoking again is a no-op.
	n, err = store.DeleteByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
