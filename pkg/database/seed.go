package database

import (
	"context"
	"fmt"

	"campus-relay/internal/domain"
	"campus-relay/internal/domain/user"
	"campus-relay/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Fixed ids so local clients and tokens survive a re-seed.
var (
	SeedSellerID  = uuid.MustParse("00000000-0000-4000-8000-000000000001")
	SeedBuyerID   = uuid.MustParse("00000000-0000-4000-8000-000000000002")
	SeedNoEmailID = uuid.MustParse("00000000-0000-4000-8000-000000000003")

	SeedListing  = domain.ListingRef(uuid.MustParse("00000000-0000-4000-8000-0000000000a1"))
	SeedTextbook = domain.TextbookRef(uuid.MustParse("00000000-0000-4000-8000-0000000000b1"))
	SeedNote     = domain.NoteRef(uuid.MustParse("00000000-0000-4000-8000-0000000000c1"))
)

// SeedResult lists what SeedDev wrote.
type SeedResult struct {
	Profiles []user.Profile
	Subjects map[domain.ContextRef]string
}

// SeedDev upserts a small fixture set for local development: two users with
// email, one without, and one listing, textbook and note. It is idempotent.
func SeedDev(ctx context.Context, db *gorm.DB) (*SeedResult, error) {
	dir := repository.NewDirectory(db)
	result := &SeedResult{
		Profiles: []user.Profile{
			{ID: SeedSellerID, DisplayName: "Sam Seller", Email: "sam.seller@campus.test"},
			{ID: SeedBuyerID, DisplayName: "Bea Buyer", Email: "bea.buyer@campus.test"},
			{ID: SeedNoEmailID, DisplayName: "Quinn Quiet"},
		},
		Subjects: map[domain.ContextRef]string{
			SeedListing:  "Desk lamp, barely used",
			SeedTextbook: "Linear Algebra Done Right (3rd ed.)",
			SeedNote:     "CS101 midterm review notes",
		},
	}

	for _, p := range result.Profiles {
		if err := dir.UpsertProfile(ctx, p); err != nil {
			return nil, fmt.Errorf("seed profile %s: %w", p.DisplayName, err)
		}
	}
	for ref, title := range result.Subjects {
		if err := dir.UpsertSubject(ctx, ref, title); err != nil {
			return nil, fmt.Errorf("seed %s: %w", ref, err)
		}
	}
	return result, nil
}
