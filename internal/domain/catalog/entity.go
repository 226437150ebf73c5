package catalog

import "github.com/google/uuid"

// Listing, Textbook and Note are the marketplace subjects a conversation can
// be about. Only the title is read here.

type Listing struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title string    `gorm:"not null"`
}

func (Listing) TableName() string { return "listings" }

type Textbook struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title string    `gorm:"not null"`
}

func (Textbook) TableName() string { return "textbooks" }

type Note struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title string    `gorm:"not null"`
}

func (Note) TableName() string { return "notes" }
