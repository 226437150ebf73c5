package httpdto

import (
	"encoding/json"
	"time"

	"campus-relay/internal/domain/notification"
)

type NotificationResponse struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Message     string          `json:"message"`
	Read        bool            `json:"read"`
	RelatedID   string          `json:"relatedId,omitempty"`
	RelatedType string          `json:"relatedType,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func NewNotificationResponse(n notification.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:          n.ID.String(),
		Type:        string(n.Type),
		Title:       n.Title,
		Message:     n.Message,
		Read:        n.Read,
		RelatedType: n.RelatedType,
		CreatedAt:   n.CreatedAt,
	}
	if n.RelatedID.Valid {
		resp.RelatedID = n.RelatedID.UUID.String()
	}
	if len(n.Metadata) > 0 {
		resp.Metadata = json.RawMessage(n.Metadata)
	}
	return resp
}

func NewNotificationResponses(items []notification.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, NewNotificationResponse(n))
	}
	return out
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
