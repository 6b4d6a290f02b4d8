package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/luma-identity/internal/domain"
	"github.com/prn-tf/luma-identity/internal/repository"
)

func TestUserService_List(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	for _, name := range []string{"alice", "bob", "carol"} {
		env.member(name)
	}

	out, err := env.users.List(ctx, ListUsersInput{Count: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Total)
	assert.Equal(t, 2, out.Count)
	require.Len(t, out.Users, 2)
	assert.Equal(t, "alice", out.Users[0].Username)

	out, err = env.users.List(ctx, ListUsersInput{Page: 1, Count: 2})
	require.NoError(t, err)
	require.Len(t, out.Users, 1)
	assert.Equal(t, "carol", out.Users[0].Username)

	out, err = env.users.List(ctx, ListUsersInput{})
	require.NoError(t, err)
	assert.Equal(t, 25, out.Count)

	out, err = env.users.List(ctx, ListUsersInput{Count: 500})
	require.NoError(t, err)
	assert.Equal(t, 100, out.Count)

	invalid := []ListUsersInput{
		{Page: -1},
		{Count: -5},
		{Column: "password"},
		{Column: "bio"},
		{Filters: map[string]string{"password": "x"}},
		{Filters: map[string]string{"gid": "root"}},
		{Filters: map[string]string{"can_msg": "sometimes"}},
	}
	for _, in := range invalid {
		_, err := env.users.List(ctx, in)
		require.ErrorIs(t, err, ErrInvalidInput, "%+v", in)
	}
}

func TestUserService_ListBuildsRepositoryOptions(t *testing.T) {
	repo := &FailingUserRepository{}
	want := repository.UserListOptions{
		ListOptions: repository.ListOptions{Offset: 20, Limit: 10, OrderBy: domain.FieldUsername, Descending: true},
		Filters: []domain.FieldValue{
			{Field: domain.FieldCanMsg, Value: false},
			{Field: domain.FieldEmail, Value: "a@x.com"},
			{Field: domain.FieldGID, Value: int64(3)},
		},
	}
	repo.On("List", mock.Anything, want).Return(&repository.ListResult[domain.User]{Total: 0}, nil)
	env := buildEnv(t, repo, &fakeHasher{})

	_, err := env.users.List(context.Background(), ListUsersInput{
		Page:       2,
		Count:      10,
		Column:     domain.FieldUsername,
		Descending: true,
		Filters: map[string]string{
			"gid":     "3",
			"email":   " A@X.com ",
			"can_msg": "false",
		},
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestUserService_ListRejectsOverflowingPage(t *testing.T) {
	repo := &FailingUserRepository{}
	env := buildEnv(t, repo, &fakeHasher{})

	_, err := env.users.List(context.Background(), ListUsersInput{Page: math.MaxInt, Count: 10})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.users.List(context.Background(), ListUsersInput{Page: math.MaxInt/25 + 1})
	require.ErrorIs(t, err, ErrInvalidInput)

	repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestUserService_Get(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.member("alice")

	profile, err := env.users.Get(ctx, alice.UID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)

	_, err = env.users.Get(ctx, 404)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_GetStoreFailure(t *testing.T) {
	repo := &FailingUserRepository{}
	repo.On("GetProfile", mock.Anything, int64(1)).Return(nil, errors.New("timeout"))
	env := buildEnv(t, repo, &fakeHasher{})

	_, err := env.users.Get(context.Background(), 1)
	require.ErrorIs(t, err, ErrInternalError)
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.member("alice")
	staff := env.withGroup("staffer", 2)
	root := env.withGroup("rooty", 1)

	require.ErrorIs(t, env.users.Delete(ctx, nil, alice.UID), ErrNotAuthenticated)

	for _, actor := range []*domain.User{alice, staff} {
		err := env.users.Delete(ctx, actor.Actor(), alice.UID)
		var perr *PermissionError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, domain.ReasonRootOnly, perr.Reason)
	}

	require.NoError(t, env.users.Delete(ctx, root.Actor(), alice.UID))
	require.ErrorIs(t, env.users.Delete(ctx, root.Actor(), alice.UID), ErrUserNotFound)

	_, err := env.users.Get(ctx, alice.UID)
	require.ErrorIs(t, err, ErrUserNotFound)
}
