package repository

import (
	"fmt"

	"campus-relay/internal/domain/catalog"
	"campus-relay/internal/domain/conversation"
	"campus-relay/internal/domain/message"
	"campus-relay/internal/domain/notification"
	"campus-relay/internal/domain/user"

	"gorm.io/gorm"
)

// Models lists every table owned by the relay, in dependency order.
func Models() []any {
	return []any{
		&user.Profile{},
		&catalog.Listing{},
		&catalog.Textbook{},
		&catalog.Note{},
		&message.Message{},
		&conversation.Conversation{},
		&notification.Notification{},
	}
}

// InitSchema creates extensions, runs gorm auto-migration and adds the
// constraints gorm cannot express through struct tags.
func InitSchema(db *gorm.DB) error {
	// gen_random_uuid() for ad-hoc inserts; requires the extension on older postgres.
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`).Error; err != nil {
		return fmt.Errorf("failed to create extension: %w", err)
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	// One conversation per (sorted pair, context). The upsert in
	// ConversationRepository targets exactly these columns.
	constraints := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_conversations_pair_context
			ON conversations (participant_a, participant_b, context_kind, context_id);`,
		`DO $$ BEGIN
			ALTER TABLE conversations
				ADD CONSTRAINT ck_conversations_sorted_pair CHECK (participant_a < participant_b);
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE messages
				ADD CONSTRAINT ck_messages_no_self_send CHECK (sender_id <> receiver_id);
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
	}
	for _, stmt := range constraints {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to apply constraint: %w", err)
		}
	}
	return nil
}

// SchemaStatus reports, per table, whether it currently exists.
func SchemaStatus(db *gorm.DB) (map[string]bool, error) {
	status := make(map[string]bool)
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parse model: %w", err)
		}
		status[stmt.Schema.Table] = db.Migrator().HasTable(model)
	}
	return status, nil
}
