package events

// Outbound events pushed to live connections.
const (
	EventMessageNew      = "message.new"
	EventNotificationNew = "notification.new"
	EventMessageRead     = "message.read"
	EventMessageSent     = "message.sent"
	EventMessageReadAck  = "message.read.ack"
	EventError           = "error"
	EventPong            = "pong"
)

// Inbound events accepted from live connections.
const (
	EventMessageSend = "message.send"
	EventPing        = "ping"
)
