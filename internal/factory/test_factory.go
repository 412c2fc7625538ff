package factory

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/typerace-go/internal/dependencies/mocks"
	"github.com/mcoot/typerace-go/internal/services/quote"
	"github.com/mcoot/typerace-go/internal/services/race"
	"github.com/mcoot/typerace-go/internal/storage/memory"
	"github.com/mcoot/typerace-go/internal/testutil"
	"github.com/mcoot/typerace-go/internal/transport/ws"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	FakeClock  *clockwork.FakeClock
	MockRandom *mocks.MockRandom
	Quotes     *quote.StaticProvider
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// Passages come from the built-in provider so no network is involved.
func NewTestApp() *TestApp {
	store := memory.New()
	fakeClock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	quotes := quote.NewStaticProvider(mockRandom)

	app := newWithDependencies(store, fakeClock, mockRandom, quotes, race.DefaultConfig(), ws.DefaultConfig(), testutil.NopLogger())

	return &TestApp{
		App:        app,
		FakeClock:  fakeClock,
		MockRandom: mockRandom,
		Quotes:     quotes,
	}
}
