package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// RoomTTL bounds how long an abandoned room can linger. Rooms are
	// deleted explicitly on departure; the TTL is a backstop.
	RoomTTL time.Duration

	// ConnectionTTL bounds connection index entries the same way
	ConnectionTTL time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:           "redis://localhost:6379",
		PoolSize:      10,
		MinIdleConns:  2,
		RoomTTL:       6 * time.Hour,
		ConnectionTTL: 6 * time.Hour,
	}
}
