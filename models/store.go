package models

import (
	"context"
	"time"

	"github.com/forecourtlabs/pos_backend/config"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Store struct {
	ID        uuid.UUID `gorm:"type:char(36);primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Timezone  string    `gorm:"size:64;default:'UTC'" json:"timezone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStore struct {
	Name     string `json:"name" binding:"required"`
	Timezone string `json:"timezone"`
}

func (s *Store) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func CreateStore(ctx context.Context, input *NewStore) (*Store, error) {
	store := Store{
		Name:     input.Name,
		Timezone: input.Timezone,
	}
	if store.Timezone == "" {
		store.Timezone = "UTC"
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func GetStoreById(ctx context.Context, storeId uuid.UUID) (*Store, error) {
	var store Store
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", storeId).First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}
