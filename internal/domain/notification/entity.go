package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeMessage        Type = "message"
	TypeListingSold    Type = "listing_sold"
	TypeListingExpired Type = "listing_expired"
	TypeNoteApproved   Type = "note_approved"
	TypeNoteRejected   Type = "note_rejected"
	TypeSystem         Type = "system"
)

func (t Type) Valid() bool {
	switch t {
	case TypeMessage, TypeListingSold, TypeListingExpired, TypeNoteApproved, TypeNoteRejected, TypeSystem:
		return true
	}
	return false
}

// Notification represents the notifications table
type Notification struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index:idx_notifications_user,priority:1"`
	Type        Type      `gorm:"type:varchar(32);not null"`
	Title       string    `gorm:"not null"`
	Message     string    `gorm:"type:text;not null"`
	Read        bool      `gorm:"column:is_read;not null;default:false;index:idx_notifications_user,priority:2"`
	RelatedID   uuid.NullUUID
	RelatedType string `gorm:"type:varchar(32)"`
	Metadata    datatypes.JSON
	CreatedAt   time.Time
}

func (Notification) TableName() string {
	return "notifications"
}
