package repository

import (
	"context"
	"fmt"

	"campus-relay/internal/domain"
	"campus-relay/internal/domain/catalog"
	"campus-relay/internal/domain/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostgresDirectory reads profile and subject projections kept in the relay database.
type PostgresDirectory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (r *PostgresDirectory) GetProfile(ctx context.Context, id uuid.UUID) (user.Profile, error) {
	var p user.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return user.Profile{}, translateError(err)
	}
	return p, nil
}

// UpsertProfile is used by the seed command and by profile sync.
func (r *PostgresDirectory) UpsertProfile(ctx context.Context, p user.Profile) error {
	return translateError(r.db.WithContext(ctx).Save(&p).Error)
}

func (r *PostgresDirectory) GetSubjectTitle(ctx context.Context, ref domain.ContextRef) (string, error) {
	var model any
	switch ref.Kind {
	case domain.ContextListing:
		model = &catalog.Listing{}
	case domain.ContextTextbook:
		model = &catalog.Textbook{}
	case domain.ContextNote:
		model = &catalog.Note{}
	default:
		return "", fmt.Errorf("unknown context kind %q", ref.Kind)
	}

	var title string
	err := r.db.WithContext(ctx).
		Model(model).
		Select("title").
		Where("id = ?", ref.ID).
		Take(&title).Error
	if err != nil {
		return "", translateError(err)
	}
	return title, nil
}

// UpsertSubject stores a listing, textbook or note title.
func (r *PostgresDirectory) UpsertSubject(ctx context.Context, ref domain.ContextRef, title string) error {
	var model any
	switch ref.Kind {
	case domain.ContextListing:
		model = &catalog.Listing{ID: ref.ID, Title: title}
	case domain.ContextTextbook:
		model = &catalog.Textbook{ID: ref.ID, Title: title}
	case domain.ContextNote:
		model = &catalog.Note{ID: ref.ID, Title: title}
	default:
		return fmt.Errorf("unknown context kind %q", ref.Kind)
	}
	return translateError(r.db.WithContext(ctx).Save(model).Error)
}
