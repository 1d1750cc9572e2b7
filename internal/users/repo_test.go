package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizdm/studio-backend/internal/database"
	"github.com/wizdm/studio-backend/internal/database/memory"
)

func TestRepo_EnsureUserAndGet(t *testing.T) {
	ctx := context.Background()
	store := database.New(memory.New())
	repo := NewRepo(store)

	u, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, u)

	require.NoError(t, repo.EnsureUser(ctx, UpsertUser{FirebaseUID: "u1", Email: "a@b.c", DisplayName: "Ada"}))
	require.NoError(t, store.Merge(ctx, "/users/u1", database.Fields{"lang": "it"}))

	// A later login without a display name keeps the stored one.
	require.NoError(t, repo.EnsureUser(ctx, UpsertUser{FirebaseUID: "u1", Email: "new@b.c"}))

	u, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "Ada", u.DisplayName)
	assert.Equal(t, "new@b.c", u.Email)
	assert.Equal(t, "it", u.Lang)
}

func TestRepo_EnsureUserRequiresUID(t *testing.T) {
	repo := NewRepo(database.New(memory.New()))
	assert.Error(t, repo.EnsureUser(context.Background(), UpsertUser{FirebaseUID: "  "}))
}

func TestPath(t *testing.T) {
	assert.Equal(t, "/users/abc", Path("abc"))
}
