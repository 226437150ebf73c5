package message

import (
	"database/sql"
	"time"
	"unicode/utf8"

	"campus-relay/internal/domain"

	"github.com/google/uuid"
)

// Message represents the messages table
type Message struct {
	ID                      uuid.UUID         `gorm:"type:uuid;primaryKey"`
	SenderID                uuid.UUID         `gorm:"type:uuid;not null;index:idx_messages_thread,priority:1"`
	ReceiverID              uuid.UUID         `gorm:"type:uuid;not null;index:idx_messages_thread,priority:2;index:idx_messages_unread,priority:1"`
	Context                 domain.ContextRef `gorm:"embedded;embeddedPrefix:context_"`
	Text                    string            `gorm:"type:text;not null"`
	Read                    bool              `gorm:"column:is_read;not null;default:false;index:idx_messages_unread,priority:2"`
	EmailNotificationSent   bool              `gorm:"not null;default:false;index:idx_messages_escalation,priority:1"`
	EmailNotificationSentAt sql.NullTime
	// EscalationClaimedAt is set by the sweep that is about to email this message.
	EscalationClaimedAt sql.NullTime
	CreatedAt           time.Time `gorm:"not null;index:idx_messages_escalation,priority:2"`
}

func (Message) TableName() string {
	return "messages"
}

// Between reports whether the message was exchanged by a and b in either direction.
func (m Message) Between(a, b uuid.UUID) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// DueForEscalation reports whether the message is still unread, not yet
// emailed and was created at or before cutoff.
func (m Message) DueForEscalation(cutoff time.Time) bool {
	return !m.Read && !m.EmailNotificationSent && !m.CreatedAt.After(cutoff)
}

// Preview cuts the text to limit runes, marking the cut with "...".
func (m Message) Preview(limit int) string {
	if utf8.RuneCountInString(m.Text) <= limit {
		return m.Text
	}
	return string([]rune(m.Text)[:limit]) + "..."
}
