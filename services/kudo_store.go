package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/cppla/pacts/models"
)

// KudoStore is the persistence surface the toggle engine needs.
// CreateKudo must rely on the (user_id, check_in_id) unique index.
type KudoStore interface {
	FindCheckIn(ctx context.Context, id uint) (*models.CheckIn, error)
	FindKudo(ctx context.Context, userID, checkInID uint) (*models.Kudo, error)
	CreateKudo(ctx context.Context, kudo *models.Kudo) error
	DeleteKudo(ctx context.Context, id uint) error
	CountKudos(ctx context.Context, checkInID uint) (int64, error)
}

type gormKudoStore struct {
	db *gorm.DB
}

// NewKudoStore returns a KudoStore backed by db.
func NewKudoStore(db *gorm.DB) KudoStore {
	return &gormKudoStore{db: db}
}

// FindCheckIn returns ErrNotFound when no check-in has id.
func (s *gormKudoStore) FindCheckIn(ctx context.Context, id uint) (*models.CheckIn, error) {
	var ci models.CheckIn
	if err := s.db.WithContext(ctx).Take(&ci, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ci, nil
}

// FindKudo returns nil, nil when the user has not kudoed the check-in.
func (s *gormKudoStore) FindKudo(ctx context.Context, userID, checkInID uint) (*models.Kudo, error) {
	var k models.Kudo
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND check_in_id = ?", userID, checkInID).
		Take(&k).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *gormKudoStore) CreateKudo(ctx context.Context, kudo *models.Kudo) error {
	return s.db.WithContext(ctx).Create(kudo).Error
}

// DeleteKudo deletes by primary key. Deleting an already removed row is not an error.
func (s *gormKudoStore) DeleteKudo(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.Kudo{}, id).Error
}

func (s *gormKudoStore) CountKudos(ctx context.Context, checkInID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Kudo{}).Where("check_in_id = ?", checkInID).Count(&n).Error
	return n, err
}
