package user

import (
	"strings"

	"github.com/google/uuid"
)

// Profile is the read-only slice of a user the messaging pipeline needs.
// Identity itself is owned elsewhere; the profiles table is a projection.
type Profile struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	DisplayName string    `gorm:"not null"`
	Email       string
}

func (Profile) TableName() string {
	return "profiles"
}

func (p Profile) HasEmail() bool {
	return strings.TrimSpace(p.Email) != ""
}

// Name falls back to a neutral label when the display name is blank.
func (p Profile) Name() string {
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}
	return "Someone"
}
