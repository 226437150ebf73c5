package events

import (
	"strings"

	"github.com/google/uuid"
)

const (
	userChannelPrefix = "channel:user:"

	// UserChannelPattern matches every per-user channel.
	UserChannelPattern = userChannelPrefix + "*"
)

// UserChannel names the broadcast channel every live connection of userID joins.
func UserChannel(userID uuid.UUID) string {
	return userChannelPrefix + userID.String()
}

// ParseUserChannel is the inverse of UserChannel.
func ParseUserChannel(channel string) (uuid.UUID, bool) {
	if !strings.HasPrefix(channel, userChannelPrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(channel, userChannelPrefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
