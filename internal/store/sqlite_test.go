package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "Ada", "ada@example.com", "hash")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	byEmail, err := s.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, "Ada", byEmail.Name)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := s.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "ada@example.com", byID.Email)
}

func TestGetUserMissing(t *testing.T) {
	s := newTestStore(t)

	u, err := s.GetUserByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = s.GetUserByID(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "Ada", "ada@example.com", "hash")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "Other Ada", "ada@example.com", "hash2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestBlobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.GetBlob(ctx, "chats:ada@example.com")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.PutBlob(ctx, "chats:ada@example.com", []byte(`[1]`)))
	require.NoError(t, s.PutBlob(ctx, "chats:ada@example.com", []byte(`[1,2]`)))

	v, err = s.GetBlob(ctx, "chats:ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(v))

	require.NoError(t, s.DeleteBlob(ctx, "chats:ada@example.com"))
	v, err = s.GetBlob(ctx, "chats:ada@example.com")
	require.NoError(t, err)
	assert.Nil(t, v)
}
