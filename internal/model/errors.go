package model

import "errors"

// Common errors used across the application
var (
	// Room errors
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")

	// Connection index errors
	ErrConnectionNotInRoom = errors.New("connection is not in a room")

	// Quote errors
	ErrNoQuote = errors.New("no quote available")
)
