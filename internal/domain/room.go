package domain

import (
	"errors"
	"strings"
)

const MaxRoomIDLen = 64

var (
	ErrEmptyRoomID   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
)

// RoomID is a short case-insensitive room key. Always normalized upper-case.
type RoomID string

// NormalizeRoomID folds case and trims whitespace. Length is not fixed.
func NormalizeRoomID(raw string) (RoomID, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if id == "" {
		return "", ErrEmptyRoomID
	}
	if len(id) > MaxRoomIDLen {
		return "", ErrRoomIDTooLong
	}
	return RoomID(id), nil
}
