package models

import (
	"context"
	"time"

	"github.com/forecourtlabs/pos_backend/config"
	"github.com/forecourtlabs/pos_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Device struct {
	ID          uuid.UUID  `gorm:"type:char(36);primary_key" json:"id"`
	StoreId     uuid.UUID  `gorm:"type:char(36);index;not null" json:"store_id"`
	Name        string     `gorm:"size:100;not null" json:"name" binding:"required"`
	ApiKeyHash  string     `gorm:"type:char(64);not null" json:"-"`
	ApiKeyLast4 string     `gorm:"size:4" json:"api_key_last4"`
	LastSeenAt  *time.Time `json:"last_seen_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

type NewDevice struct {
	StoreId uuid.UUID `json:"store_id" binding:"required"`
	Name    string    `json:"name" binding:"required"`
}

func (d *Device) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// CreateDevice registers a gateway device and returns the generated API key.
// The key is returned exactly once; only its SHA-256 digest is persisted.
func CreateDevice(ctx context.Context, input *NewDevice) (*Device, string, error) {
	apiKey, apiKeyHash, last4, err := utils.GenerateDeviceKey()
	if err != nil {
		return nil, "", err
	}

	device := Device{
		StoreId:     input.StoreId,
		Name:        input.Name,
		ApiKeyHash:  apiKeyHash,
		ApiKeyLast4: last4,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&device).Error; err != nil {
		return nil, "", err
	}
	return &device, apiKey, nil
}

func GetDeviceForStore(ctx context.Context, deviceId uuid.UUID, storeId uuid.UUID) (*Device, error) {
	var device Device
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("id = ? AND store_id = ?", deviceId, storeId).
		First(&device).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

// Authenticate verifies a presented API key against the stored digest.
func (d *Device) Authenticate(apiKey string) bool {
	return utils.CompareDeviceKey(d.ApiKeyHash, apiKey)
}

func (d *Device) TouchLastSeen(ctx context.Context) error {
	now := time.Now()
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(d).Update("last_seen_at", now).Error; err != nil {
		return err
	}
	d.LastSeenAt = &now
	return nil
}
