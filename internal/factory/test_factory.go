package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/pairchat/internal/dependencies/mocks"
	"github.com/mcoot/pairchat/internal/relay"
	"github.com/mcoot/pairchat/internal/services/auth"
	"github.com/mcoot/pairchat/internal/storage/memory"
	"github.com/mcoot/pairchat/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// Password hashing uses the minimum bcrypt cost to keep tests fast.
func NewTestApp(relayCfg relay.Config) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	app := newWithDependencies(store, mockClock, auth.Config{BcryptCost: bcrypt.MinCost}, relayCfg, nil, testutil.NopLogger())

	return &TestApp{
		App:       app,
		MockClock: mockClock,
	}
}
