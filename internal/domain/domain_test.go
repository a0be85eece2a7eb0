package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRoomID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    RoomID
		wantErr error
	}{
		{name: "upper stays", raw: "AB12", want: "AB12"},
		{name: "lower folds", raw: "ab12", want: "AB12"},
		{name: "trimmed", raw: "  xY9z \n", want: "XY9Z"},
		{name: "longer key allowed", raw: "room-with-long-key", want: "ROOM-WITH-LONG-KEY"},
		{name: "empty", raw: "   ", wantErr: ErrEmptyRoomID},
		{name: "too long", raw: strings.Repeat("a", MaxRoomIDLen+1), wantErr: ErrRoomIDTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRoomID(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewUser(t *testing.T) {
	u, err := NewUser(" u1 ", "hash")
	require.NoError(t, err)
	assert.Equal(t, UserID("u1"), u.ID)
	assert.Equal(t, "hash", u.Avatar)

	_, err = NewUser("", "")
	assert.ErrorIs(t, err, ErrEmptyUserID)

	_, err = NewUser(strings.Repeat("x", MaxUserIDLen+1), "")
	assert.ErrorIs(t, err, ErrUserIDTooLong)

	_, err = NewUser("u1", strings.Repeat("x", MaxAvatarLen+1))
	assert.ErrorIs(t, err, ErrAvatarTooLong)
}
