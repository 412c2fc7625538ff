package redis

import (
	"fmt"

	"github.com/mcoot/typerace-go/internal/model"
)

// Key prefix for all race-related data
const keyPrefix = "typerace"

// roomKey returns the Redis key for a Room
func roomKey(code model.RoomCode) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, code)
}

// connectionKey returns the Redis key for the connection -> room code index
func connectionKey(conn model.ConnectionID) string {
	return fmt.Sprintf("%s:idx:conn:%s", keyPrefix, conn)
}
