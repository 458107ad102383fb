package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/blog_auth/internal/models"
)

type refreshStore interface {
	Put(ctx context.Context, ownerID uuid.UUID, token string) error
	FindByOwnerAndToken(ctx context.Context, ownerID uuid.UUID, token string) (*models.RefreshToken, error)
	Rotate(ctx context.Context, ownerID uuid.UUID, oldToken, newToken string) error
	DeleteByToken(ctx context.Context, token string) error
}

func InitTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "failed to connect to in-memory db")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshToken{}), "failed to migrate tables")
	return db
}

func newRedisRepo(t *testing.T) (*RedisRefreshRepo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisRefreshRepo(rdb, "test", time.Hour), mr
}

func newUser(username, email string) *models.User {
	return &models.User{
		Username:     username,
		Email:        email,
		Name:         "Alice",
		PasswordHash: "hash",
	}
}

func TestGormRepo_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	r := NewGormRepo(InitTestDB(t))

	u := newUser("alice01", "alice@example.com")
	require.NoError(t, r.Create(ctx, u))
	require.NotEqual(t, uuid.Nil, u.ID)

	byName, err := r.FindByUsername(ctx, "alice01")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
	assert.Equal(t, "alice@example.com", byName.Email)

	byID, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice01", byID.Username)

	_, err = r.FindByUsername(ctx, "bob0001")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := r.ExistsByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.ExistsByUsername(ctx, "alice01")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.ExistsByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGormRepo_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	db := InitTestDB(t)
	r := NewGormRepo(db)

	require.NoError(t, r.Create(ctx, newUser("alice01", "alice@example.com")))

	err := r.Create(ctx, newUser("alice01", "other@example.com"))
	assert.ErrorIs(t, err, ErrDuplicate)

	err = r.Create(ctx, newUser("alice02", "alice@example.com"))
	assert.ErrorIs(t, err, ErrDuplicate)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRefreshStores(t *testing.T) {
	stores := map[string]func(t *testing.T) refreshStore{
		"gorm": func(t *testing.T) refreshStore { return NewGormRepo(InitTestDB(t)) },
		"redis": func(t *testing.T) refreshStore {
			r, _ := newRedisRepo(t)
			return r
		},
	}

	for name, mk := range stores {
		mk := mk
		t.Run(name, func(t *testing.T) {
			t.Run("put overwrites", func(t *testing.T) {
				ctx := context.Background()
				s := mk(t)
				owner := uuid.New()

				require.NoError(t, s.Put(ctx, owner, "token-1"))
				rec, err := s.FindByOwnerAndToken(ctx, owner, "token-1")
				require.NoError(t, err)
				assert.Equal(t, owner, rec.UserID)
				assert.Equal(t, Sha256Hex("token-1"), rec.TokenHash)

				require.NoError(t, s.Put(ctx, owner, "token-2"))
				require.NoError(t, s.Put(ctx, owner, "token-2"))

				_, err = s.FindByOwnerAndToken(ctx, owner, "token-1")
				assert.ErrorIs(t, err, ErrNotFound)
				_, err = s.FindByOwnerAndToken(ctx, owner, "token-2")
				require.NoError(t, err)
			})

			t.Run("owners are independent", func(t *testing.T) {
				ctx := context.Background()
				s := mk(t)
				a, b := uuid.New(), uuid.New()

				require.NoError(t, s.Put(ctx, a, "token-a"))
				require.NoError(t, s.Put(ctx, b, "token-b"))

				_, err := s.FindByOwnerAndToken(ctx, a, "token-b")
				assert.ErrorIs(t, err, ErrNotFound)
				_, err = s.FindByOwnerAndToken(ctx, b, "token-b")
				require.NoError(t, err)
			})

			t.Run("rotate is compare and swap", func(t *testing.T) {
				ctx := context.Background()
				s := mk(t)
				owner := uuid.New()

				require.NoError(t, s.Put(ctx, owner, "old"))
				require.NoError(t, s.Rotate(ctx, owner, "old", "new"))

				err := s.Rotate(ctx, owner, "old", "newer")
				assert.ErrorIs(t, err, ErrNotFound)

				_, err = s.FindByOwnerAndToken(ctx, owner, "new")
				require.NoError(t, err)
				_, err = s.FindByOwnerAndToken(ctx, owner, "old")
				assert.ErrorIs(t, err, ErrNotFound)

				err = s.Rotate(ctx, uuid.New(), "new", "x")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				ctx := context.Background()
				s := mk(t)
				owner := uuid.New()

				require.NoError(t, s.Put(ctx, owner, "token-1"))
				require.NoError(t, s.DeleteByToken(ctx, "token-1"))
				require.NoError(t, s.DeleteByToken(ctx, "token-1"))
				require.NoError(t, s.DeleteByToken(ctx, "never-stored"))

				_, err := s.FindByOwnerAndToken(ctx, owner, "token-1")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("delete of stale token keeps live one", func(t *testing.T) {
				ctx := context.Background()
				s := mk(t)
				owner := uuid.New()

				require.NoError(t, s.Put(ctx, owner, "old"))
				require.NoError(t, s.Put(ctx, owner, "new"))
				require.NoError(t, s.DeleteByToken(ctx, "old"))

				_, err := s.FindByOwnerAndToken(ctx, owner, "new")
				require.NoError(t, err)
			})
		})
	}
}

func TestRedisRefreshRepo_TTL(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisRepo(t)
	owner := uuid.New()

	require.NoError(t, r.Put(ctx, owner, "token-1"))
	assert.Equal(t, time.Hour, mr.TTL(r.ownerKey(owner)))
	assert.Equal(t, time.Hour, mr.TTL(r.tokenPrefix()+Sha256Hex("token-1")))

	mr.FastForward(time.Hour + time.Second)
	_, err := r.FindByOwnerAndToken(ctx, owner, "token-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRefreshRepo_PutDropsPreviousTokenIndex(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisRepo(t)
	owner := uuid.New()

	require.NoError(t, r.Put(ctx, owner, "old"))
	require.NoError(t, r.Put(ctx, owner, "new"))

	assert.False(t, mr.Exists(r.tokenPrefix()+Sha256Hex("old")))
	assert.True(t, mr.Exists(r.tokenPrefix()+Sha256Hex("new")))
}

func TestRedisRefreshRepo_Unavailable(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisRepo(t)
	mr.Close()

	require.Error(t, r.Put(ctx, uuid.New(), "token"))
	_, err := r.FindByOwnerAndToken(ctx, uuid.New(), "token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRedisRefreshRepo_KeyLayout(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisRepo(t)
	alice, bob := uuid.New(), uuid.New()

	require.NoError(t, r.Put(ctx, alice, "a-1"))
	require.NoError(t, r.Put(ctx, bob, "b-1"))
	require.NoError(t, r.Rotate(ctx, alice, "a-1", "a-2"))

	assert.ElementsMatch(t, []string{
		r.ownerKey(alice),
		r.ownerKey(bob),
		r.tokenPrefix() + Sha256Hex("a-2"),
		r.tokenPrefix() + Sha256Hex("b-1"),
	}, mr.Keys())

	require.NoError(t, r.DeleteByToken(ctx, "a-2"))
	assert.ElementsMatch(t, []string{
		r.ownerKey(bob),
		r.tokenPrefix() + Sha256Hex("b-1"),
	}, mr.Keys())
}
