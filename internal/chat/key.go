package chat

import (
	"errors"
	"strings"
)

// ErrBadRoomKey indicates a room identifier that does not name two users.
var ErrBadRoomKey = errors.New("invalid room key")

// RoomKey returns the canonical key for the two-party room: the
// lexicographically larger id first, comma separated. Both participants
// resolve to the same room regardless of argument order.
func RoomKey(a, b string) string {
	if a > b {
		return a + "," + b
	}
	return b + "," + a
}

// ParseRoomKey splits a room key back into its two participant ids.
func ParseRoomKey(key string) (string, string, error) {
	parts := strings.Split(key, ",")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrBadRoomKey
	}
	return parts[0], parts[1], nil
}
