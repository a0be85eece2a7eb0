// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen = 128
	MaxAvatarLen = 512
)

var (
	ErrEmptyUserID   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
	ErrAvatarTooLong = errors.New("avatar too long")
)

type UserID string

// User is the identity an upstream collaborator asserted for a connection.
// Avatar is opaque display metadata (usually an image hash or URL).
type User struct {
	ID     UserID `json:"id"`
	Avatar string `json:"avatar,omitempty"`
}

// NewUser validates the identity carried by a join message.
func NewUser(id, avatar string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrEmptyUserID
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	if len(avatar) > MaxAvatarLen {
		return nil, ErrAvatarTooLong
	}
	return &User{ID: UserID(id), Avatar: avatar}, nil
}
