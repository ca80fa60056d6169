package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/dirt2meme/internal/domain"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no meme matches a lookup.
var ErrNotFound = errors.New("meme not found")

// MemeRepository handles meme data operations.
type MemeRepository struct {
	db *gorm.DB
}

// NewMemeRepository creates a new MemeRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *MemeRepository: repository instance bound to db.
func NewMemeRepository(db *gorm.DB) *MemeRepository {
	return &MemeRepository{db: db}
}

// Create inserts a new meme record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - meme: meme record to persist.
//
// Returns:
//   - error: non-nil if the insert fails.
func (r *MemeRepository) Create(ctx context.Context, meme *domain.Meme) error {
	return r.db.WithContext(ctx).Create(meme).Error
}

// GetByID retrieves a meme by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: meme ID.
//
// Returns:
//   - *domain.Meme: meme record if found.
//   - error: ErrNotFound if no record matches, other non-nil values if lookup fails.
func (r *MemeRepository) GetByID(ctx context.Context, id string) (*domain.Meme, error) {
	var meme domain.Meme
	err := r.db.WithContext(ctx).First(&meme, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meme %s: %w", id, err)
	}
	return &meme, nil
}

// List retrieves memes newest first with pagination.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filter: optional narrowing of the result set.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
//
// Returns:
//   - []domain.Meme: matching meme records.
//   - error: non-nil if the query fails.
func (r *MemeRepository) List(ctx context.Context, filter domain.MemeFilter, limit, offset int) ([]domain.Meme, error) {
	var memes []domain.Meme
	if err := r.filtered(ctx, filter).
		Order("created_at DESC").
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&memes).Error; err != nil {
		return nil, fmt.Errorf("failed to list memes: %w", err)
	}
	return memes, nil
}

// Count counts memes matching filter.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - filter: optional narrowing of the result set.
//
// Returns:
//   - int64: number of matching records.
//   - error: non-nil if the query fails.
func (r *MemeRepository) Count(ctx context.Context, filter domain.MemeFilter) (int64, error) {
	var count int64
	if err := r.filtered(ctx, filter).Model(&domain.Meme{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count memes: %w", err)
	}
	return count, nil
}

func (r *MemeRepository) filtered(ctx context.Context, filter domain.MemeFilter) *gorm.DB {
	query := r.db.WithContext(ctx)
	if filter.FaceDetected != nil {
		query = query.Where("face_detected = ?", *filter.FaceDetected)
	}
	return query
}
