package factory

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/typerace-go/internal/dependencies/random"
	"github.com/mcoot/typerace-go/internal/services/quote"
	"github.com/mcoot/typerace-go/internal/services/race"
	"github.com/mcoot/typerace-go/internal/services/registry"
	"github.com/mcoot/typerace-go/internal/storage"
	"github.com/mcoot/typerace-go/internal/storage/memory"
	redisstorage "github.com/mcoot/typerace-go/internal/storage/redis"
	"github.com/mcoot/typerace-go/internal/transport/ws"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// The hub is the coordinator's relay, and the coordinator is the
// transport's dispatcher
var (
	_ race.Relay    = (*ws.Hub)(nil)
	_ ws.Dispatcher = (*race.Coordinator)(nil)
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clockwork.Clock
	Random random.Random

	// Components
	Registry    *registry.Registry
	Hub         *ws.Hub
	Coordinator *race.Coordinator
	WSHandler   *ws.Handler
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// QuoteAPIURL is the base URL of the passage API
	QuoteAPIURL string
	// QuoteTimeout bounds each passage fetch (optional, defaults to 10s)
	QuoteTimeout time.Duration
	// RaceConfig holds countdown settings (optional)
	// If zero value, defaults to race.DefaultConfig()
	RaceConfig race.Config
	// WSConfig holds websocket connection settings (optional)
	// If zero value, defaults to ws.DefaultConfig()
	WSConfig ws.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	clk := clockwork.NewRealClock()
	rnd := random.New()

	quoteTimeout := cfg.QuoteTimeout
	if quoteTimeout == 0 {
		quoteTimeout = 10 * time.Second
	}
	quotes := quote.NewHTTPProvider(cfg.QuoteAPIURL, quoteTimeout, logger)

	return newWithDependencies(store, clk, rnd, quotes, cfg.RaceConfig, cfg.WSConfig, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clockwork.Clock,
	rnd random.Random,
	quotes quote.Provider,
	raceCfg race.Config,
	wsCfg ws.Config,
	logger *slog.Logger,
) *App {
	if raceCfg.CountdownTicks == 0 {
		raceCfg = race.DefaultConfig()
	}
	if wsCfg.SendBufferSize == 0 {
		wsCfg = ws.DefaultConfig()
	}

	reg := registry.New(store, rnd, clk, logger)
	hub := ws.NewHub(logger)
	fallback := quote.NewStaticProvider(rnd)
	coordinator := race.New(reg, hub, quotes, fallback, clk, raceCfg, logger)
	wsHandler := ws.NewHandler(hub, coordinator, wsCfg, logger)

	return &App{
		Storage:     store,
		Clock:       clk,
		Random:      rnd,
		Registry:    reg,
		Hub:         hub,
		Coordinator: coordinator,
		WSHandler:   wsHandler,
	}
}
