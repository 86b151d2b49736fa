package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dco5/users-service/internal/cache"
	"github.com/dco5/users-service/internal/metrics"
	"github.com/dco5/users-service/internal/model"
	"github.com/dco5/users-service/internal/testutil"
)

type fakeCache struct {
	users map[int64]*model.User
	err   error
	sets  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{users: make(map[int64]*model.User)}
}

func (c *fakeCache) GetUser(ctx context.Context, id int64) (*model.User, error) {
	if c.err != nil {
		return nil, c.err
	}
	u, ok := c.users[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	cp := *u
	return &cp, nil
}

func (c *fakeCache) SetUser(ctx context.Context, user *model.User) error {
	c.sets++
	if c.err != nil {
		return c.err
	}
	cp := *user
	c.users[user.ID] = &cp
	return nil
}

func newTestService(t *testing.T) (*UserService, *testutil.UserStore, *metrics.InMemoryRecorder) {
	t.Helper()
	store := testutil.NewUserStore()
	recorder := metrics.NewInMemory()
	return NewUserService(store, nil, recorder), store, recorder
}

func TestCreateUser_ThenGet(t *testing.T) {
	svc, _, recorder := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, CreateUserInput{Username: "jaime", Email: "jaime@mail.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.True(t, created.Active)

	got, err := svc.GetUser(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "jaime", got.Username)
	assert.Equal(t, "jaime@mail.com", got.Email)
	assert.True(t, got.Active)

	assert.Equal(t, uint64(1), recorder.Snapshot().UsersCreated)
}

func TestCreateUser_DuplicateEmailPreCheck(t *testing.T) {
	svc, store, recorder := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserInput{Username: "jaime", Email: "jaime@mail.com"})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, CreateUserInput{Username: "jaime", Email: "jaime@mail.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, uint64(1), recorder.Snapshot().UserRejectsDuplicateEmail)
}

func TestCreateUser_DuplicateEmailRaceFallback(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserInput{Username: "jaime", Email: "jaime@mail.com"})
	require.NoError(t, err)

	// The pre-check misses, as if the first insert committed after it ran.
	store.SkipEmailIndex = true

	_, err = svc.CreateUser(ctx, CreateUserInput{Username: "other", Email: "jaime@mail.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.Equal(t, 1, store.Len())
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	svc, _, recorder := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserInput{Username: "justatest", Email: "mail@test.com"})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, CreateUserInput{Username: "justatest", Email: "mail@test2.com"})
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	assert.Equal(t, uint64(1), recorder.Snapshot().UserRejectsDuplicateUsername)
}

func TestCreateUser_StoreRejectsMissingEmail(t *testing.T) {
	svc, store, recorder := newTestService(t)

	input, err := ValidateCreateUser(strPtr("jaime"), nil)
	require.NoError(t, err)

	_, err = svc.CreateUser(context.Background(), input)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Zero(t, store.Len())
	assert.Equal(t, uint64(1), recorder.Snapshot().UserRejectsInvalidPayload)
}

func TestCreateUser_StoreRejectsLongUsername(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateUser(context.Background(), CreateUserInput{
		Username: strings.Repeat("a", model.MaxUsernameLength+1),
		Email:    "mail@test.com",
	})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestCreateUser_StoreFailure(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.Err = errors.New("connection refused")

	_, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "jaime", Email: "jaime@mail.com"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidPayload)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGetUser_NotFound(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	for _, raw := range []string{"blah", "999", "", "0", "-1", "1.5", "99999999999999999999"} {
		t.Run(raw, func(t *testing.T) {
			_, err := svc.GetUser(ctx, raw)
			assert.ErrorIs(t, err, ErrUserNotFound)
		})
	}
	assert.Zero(t, store.Len())
}

func TestListUsers_InsertionOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = svc.CreateUser(ctx, CreateUserInput{Username: "jaime", Email: "jaime@mail.com"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, CreateUserInput{Username: "carlos", Email: "carlos@mail.com"})
	require.NoError(t, err)

	users, err = svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "jaime", users[0].Username)
	assert.Equal(t, "carlos", users[1].Username)
}

func TestGetUser_CacheReadThrough(t *testing.T) {
	store := testutil.NewUserStore()
	userCache := newFakeCache()
	recorder := metrics.NewInMemory()
	svc := NewUserService(store, userCache, recorder)
	ctx := context.Background()

	seeded := model.NewUser("jaime", "jaime@mail.com")
	require.NoError(t, store.CreateUser(ctx, seeded))

	got, err := svc.GetUser(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "jaime", got.Username)

	snap := recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.UserCacheMisses)
	assert.Equal(t, uint64(0), snap.UserCacheHits)
	assert.Contains(t, userCache.users, int64(1))

	// Served from cache even when the store is unavailable.
	store.Err = errors.New("db down")
	got, err = svc.GetUser(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "jaime@mail.com", got.Email)
	assert.Equal(t, uint64(1), recorder.Snapshot().UserCacheHits)
	assert.Equal(t, uint64(2), recorder.Snapshot().UserLookupDurationCount)
}

func TestGetUser_CacheErrorFallsBackToStore(t *testing.T) {
	store := testutil.NewUserStore()
	userCache := newFakeCache()
	userCache.err = errors.New("redis down")
	svc := NewUserService(store, userCache, nil)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, model.NewUser("jaime", "jaime@mail.com")))

	got, err := svc.GetUser(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "jaime", got.Username)
}

func TestCreateUser_WarmsCache(t *testing.T) {
	store := testutil.NewUserStore()
	userCache := newFakeCache()
	svc := NewUserService(store, userCache, nil)

	created, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "jaime", Email: "jaime@mail.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, userCache.sets)
	assert.Contains(t, userCache.users, created.ID)
}
