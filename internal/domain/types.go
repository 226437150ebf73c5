package domain

import (
	"strings"

	relay_errors "campus-relay/pkg/errors"

	"github.com/google/uuid"
)

// ContextKind names the kind of subject a message or conversation is about.
type ContextKind string

const (
	ContextListing  ContextKind = "listing"
	ContextTextbook ContextKind = "textbook"
	ContextNote     ContextKind = "note"
)

func (k ContextKind) Valid() bool {
	switch k {
	case ContextListing, ContextTextbook, ContextNote:
		return true
	}
	return false
}

// ContextRef points at exactly one listing, textbook or note.
type ContextRef struct {
	Kind ContextKind `gorm:"type:varchar(16);not null"`
	ID   uuid.UUID   `gorm:"type:uuid;not null"`
}

func ListingRef(id uuid.UUID) ContextRef  { return ContextRef{Kind: ContextListing, ID: id} }
func TextbookRef(id uuid.UUID) ContextRef { return ContextRef{Kind: ContextTextbook, ID: id} }
func NoteRef(id uuid.UUID) ContextRef     { return ContextRef{Kind: ContextNote, ID: id} }

func (c ContextRef) IsZero() bool {
	return c.Kind == "" && c.ID == uuid.Nil
}

func (c ContextRef) Validate() error {
	if !c.Kind.Valid() || c.ID == uuid.Nil {
		return relay_errors.ErrMissingContext
	}
	return nil
}

func (c ContextRef) String() string {
	return string(c.Kind) + ":" + c.ID.String()
}

// ContextFromFields builds a ContextRef from the three optional request fields.
// Exactly one of them must be set.
func ContextFromFields(listingID, textbookID, noteID string) (ContextRef, error) {
	var (
		ref ContextRef
		set int
	)
	for _, candidate := range []struct {
		kind  ContextKind
		value string
	}{
		{ContextListing, listingID},
		{ContextTextbook, textbookID},
		{ContextNote, noteID},
	} {
		value := strings.TrimSpace(candidate.value)
		if value == "" {
			continue
		}
		set++
		id, err := uuid.Parse(value)
		if err != nil {
			return ContextRef{}, relay_errors.ErrMalformedID
		}
		ref = ContextRef{Kind: candidate.kind, ID: id}
	}
	if set != 1 {
		return ContextRef{}, relay_errors.ErrMissingContext
	}
	return ref, nil
}

// Fields is the inverse of ContextFromFields.
func (c ContextRef) Fields() (listingID, textbookID, noteID string) {
	switch c.Kind {
	case ContextListing:
		listingID = c.ID.String()
	case ContextTextbook:
		textbookID = c.ID.String()
	case ContextNote:
		noteID = c.ID.String()
	}
	return
}

// ParseID parses a user supplied identifier.
func ParseID(value string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, relay_errors.ErrMalformedID
	}
	return id, nil
}
