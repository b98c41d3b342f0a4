package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/pairchat/internal/model"
)

type StorageSuite struct {
	suite.Suite
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage = New()
	s.ctx = context.Background()
}

func (s *StorageSuite) TestCreateAndGetUser() {
	user := &model.User{
		Username:     "alice",
		PasswordHash: "hash123",
		CreatedAt:    time.Now(),
	}

	err := s.storage.CreateUser(s.ctx, user)
	s.Require().NoError(err)

	retrieved, err := s.storage.GetUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", retrieved.Username)
	s.Equal("hash123", retrieved.PasswordHash)
}

func (s *StorageSuite) TestGetUserNotFound() {
	_, err := s.storage.GetUser(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *StorageSuite) TestCreateUserRejectsDuplicate() {
	_ = s.storage.CreateUser(s.ctx, &model.User{Username: "alice", PasswordHash: "first"})

	err := s.storage.CreateUser(s.ctx, &model.User{Username: "alice", PasswordHash: "second"})
	s.ErrorIs(err, model.ErrUserExists)

	// Original record is never mutated
	retrieved, _ := s.storage.GetUser(s.ctx, "alice")
	s.Equal("first", retrieved.PasswordHash)
}

func (s *StorageSuite) TestReturnedUserIsACopy() {
	_ = s.storage.CreateUser(s.ctx, &model.User{Username: "alice", PasswordHash: "hash"})

	retrieved, _ := s.storage.GetUser(s.ctx, "alice")
	retrieved.PasswordHash = "tampered"

	again, _ := s.storage.GetUser(s.ctx, "alice")
	s.Equal("hash", again.PasswordHash)
}

func (s *StorageSuite) TestConcurrentCreateOnlyOneSucceeds() {
	var wg sync.WaitGroup
	var successes atomic.Int32

	for i := 0; i < 50; i++ {
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

func (s *StorageSuite) TestCountUsers() {
	count, err := s.storage.CountUsers(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, count)

	_ = s.storage.CreateUser(s.ctx, &model.User{Username: "alice"})
	_ = s.storage.CreateUser(s.ctx, &model.User{Username: "bob"})

	count, err = s.storage.CountUsers(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, count)
}
