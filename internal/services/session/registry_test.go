package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/pairchat/internal/model"
	"github.com/mcoot/pairchat/internal/testutil"
)

type RegistrySuite struct {
	suite.Suite
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.registry = NewRegistry(testutil.NopLogger())
}

// login is a helper that logs a connection in and fails the test otherwise
func (s *RegistrySuite) login(id model.ConnID, username string) {
	s.Require().NoError(s.registry.TryLogin(id, username))
}

// TryLogin tests

func (s *RegistrySuite) TestTryLoginSucceeds() {
	err := s.registry.TryLogin("c1", "alice")
	s.Require().NoError(err)

	username, ok := s.registry.Username("c1")
	s.True(ok)
	s.Equal("alice", username)
}

func (s *RegistrySuite) TestTryLoginRejectsSecondConnectionForSameUser() {
	s.login("c1", "alice")

	err := s.registry.TryLogin("c2", "alice")
	s.ErrorIs(err, ErrAlreadyLoggedIn)

	_, ok := s.registry.Username("c2")
	s.False(ok, "conflicting login must not mutate the registry")
}

func (s *RegistrySuite) TestTryLoginRejectsRelogOnSameConnection() {
	s.login("c1", "alice")

	err := s.registry.TryLogin("c1", "bob")
	s.ErrorIs(err, ErrAlreadyLoggedIn)

	username, _ := s.registry.Username("c1")
	s.Equal("alice", username)
}

func (s *RegistrySuite) TestUsernameAvailableAfterRemove() {
	s.login("c1", "alice")
	s.registry.Remove("c1")

	_, ok := s.registry.Username("c1")
	s.False(ok)
	s.NoError(s.registry.TryLogin("c2", "alice"))
}

func (s *RegistrySuite) TestRemoveUnknownIsNoop() {
	s.NotPanics(func() {
		s.registry.Remove("missing")
	})
}

func (s *RegistrySuite) TestConcurrentLoginsOnlyOneSucceeds() {
	var wg sync.WaitGroup
	var successes atomic.Int32

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := model.ConnID(fmt.Sprintf("c%d", i))
			if s.registry.TryLogin(id, "alice") == nil {
				successes.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(1, s.registry.Stats().Sessions)
}

// Release tests

func (s *RegistrySuite) TestReleaseRemovesSessionAndBothPairEntries() {
	s.login("a", "alice")
	s.login("b", "bob")
	_, _, _ = s.registry.EnterPool("a")
	_, _, _ = s.registry.EnterPool("b")

	partner, ok := s.registry.Release("a")
	s.True(ok)
	s.Equal(model.ConnID("b"), partner)

	_, ok = s.registry.Username("a")
	s.False(ok)
	_, ok = s.registry.Partner("a")
	s.False(ok)
	_, ok = s.registry.Partner("b")
	s.False(ok, "partner entry pointing back at a released connection must be retracted")

	// The partner keeps its session until its own teardown
	username, ok := s.registry.Username("b")
	s.True(ok)
	s.Equal("bob", username)
}

func (s *RegistrySuite) TestReleaseIsIdempotent() {
	s.login("a", "alice")
	s.login("b", "bob")
	_, _, _ = s.registry.EnterPool("a")
	_, _, _ = s.registry.EnterPool("b")

	_, _ = s.registry.Release("a")
	before := s.registry.Stats()

	partner, ok := s.registry.Release("a")
	s.False(ok)
	s.Equal(model.NoConn, partner)
	s.Equal(before, s.registry.Stats())
}

func (s *RegistrySuite) TestReleaseWaitingConnectionLeavesPool() {
	s.login("a", "alice")
	_, _, _ = s.registry.EnterPool("a")

	_, ok := s.registry.Release("a")
	s.False(ok)

	s.login("b", "bob")
	_, paired, err := s.registry.EnterPool("b")
	s.Require().NoError(err)
	s.False(paired, "a released connection must never be matched")
}

func (s *RegistrySuite) TestStats() {
	s.login("a", "alice")
	s.login("b", "bob")
	s.login("c", "carol")
	_, _, _ = s.registry.EnterPool("a")
	_, _, _ = s.registry.EnterPool("b")
	_, _, _ = s.registry.EnterPool("c")

	s.Equal(Stats{Sessions: 3, Waiting: 1, Paired: 1}, s.registry.Stats())
}
