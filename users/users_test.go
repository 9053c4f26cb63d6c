package users_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pressline/go-content-server/users"
	fakeuserrepo "github.com/pressline/go-content-server/users/repofake"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := users.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse battery staple", hash)

	require.True(t, users.CheckPasswordHash("correct horse battery staple", hash))
	require.False(t, users.CheckPasswordHash("wrong password", hash))
}

func TestRepoAssignsIDAndIndexesEmail(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()

	user := &users.User{Email: "jane@example.com", Name: "Jane"}
	require.NoError(t, repo.Upsert(user))
	require.NotEmpty(t, user.ID)

	byEmail, err := repo.GetByEmail("jane@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, byEmail.ID)

	byID, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	require.Equal(t, "Jane", byID.Name)
}
