package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/pairchat/internal/model"
)

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	s.storage = NewWithClient(client, DefaultConfig())
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) TestCreateAndGetUser() {
	user := &model.User{
		Username:     "alice",
		PasswordHash: "hash123",
		CreatedAt:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	err := s.storage.CreateUser(s.ctx, user)
	s.Require().NoError(err)

	retrieved, err := s.storage.GetUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(user.Username, retrieved.Username)
	s.Equal(user.PasswordHash, retrieved.PasswordHash)
	s.True(user.CreatedAt.Equal(retrieved.CreatedAt))
}

func (s *StorageSuite) TestGetUserNotFound() {
	_, err := s.storage.GetUser(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *StorageSuite) TestCreateUserRejectsDuplicate() {
	_ = s.storage.CreateUser(s.ctx, &model.User{Username: "alice", PasswordHash: "first"})

	err := s.storage.CreateUser(s.ctx, &model.User{Username: "alice", PasswordHash: "second"})
	s.ErrorIs(err, model.ErrUserExists)

	retrieved, err := s.storage.GetUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("first", retrieved.PasswordHash)
}

func (s *StorageSuite) TestUserHasNoTTL() {
	_ = s.storage.CreateUser(s.ctx, &model.User{Username: "alice"})

	ttl := s.mini.TTL(userKey("alice"))
	s.Equal(time.Duration(0), ttl, "Users should not have TTL")
}

func (s *StorageSuite) TestUsersIndexTracksRegistrations() {
	_ = s.storage.CreateUser(s.ctx, &model.User{Username: "alice"})
	_ = s.storage.CreateUser(s.ctx, &model.User{Username: "bob"})
	_ = s.storage.CreateUser(s.ctx, &model.User{Username: "alice"})

	members, err := s.mini.Members(usersIndexKey())
	s.Require().NoError(err)
	s.ElementsMatch([]string{"alice", "bob"}, members)

	count, err := s.storage.CountUsers(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *StorageSuite) TestConcurrentCreateOnlyOneSucceeds() {
	var wg sync.WaitGroup
	var successes atomic.Int32

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.storage.CreateUser(s.ctx, &model.User{Username: "alice"}); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
}

func (s *StorageSuite) TestNewFailsWithBadURL() {
	_, err := New(Config{URL: "not a url"})
	s.Error(err)
}

func (s *StorageSuite) TestNewConnectsToServer() {
	cfg := DefaultConfig()
	cfg.URL = "redis://" + s.mini.Addr()

	store, err := New(cfg)
	s.Require().NoError(err)
	defer store.Close()

	s.Require().NoError(store.CreateUser(s.ctx, &model.User{Username: "carol"}))
}
