package models

import (
	"context"
	"time"

	"github.com/forecourtlabs/pos_backend/config"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Alert struct {
	ID         uuid.UUID     `gorm:"type:char(36);primary_key" json:"id"`
	StoreId    uuid.UUID     `gorm:"type:char(36);index;not null" json:"store_id"`
	ShiftId    *uuid.UUID    `gorm:"type:char(36);index" json:"shift_id"`
	Severity   AlertSeverity `gorm:"type:enum('info','warn','critical');not null" json:"severity"`
	Type       string        `gorm:"size:50;not null" json:"type"`
	Title      string        `gorm:"size:200;not null" json:"title"`
	Message    string        `gorm:"size:1000" json:"message"`
	CreatedAt  time.Time     `gorm:"autoCreateTime" json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at"`
}

type NewAlert struct {
	StoreId  uuid.UUID
	ShiftId  *uuid.UUID
	Severity AlertSeverity
	Type     string
	Title    string
	Message  string
}

func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func CreateAlert(ctx context.Context, input *NewAlert) (*Alert, error) {
	alert := Alert{
		StoreId:  input.StoreId,
		ShiftId:  input.ShiftId,
		Severity: input.Severity,
		Type:     input.Type,
		Title:    input.Title,
		Message:  input.Message,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func GetAlertsForShift(ctx context.Context, shiftId uuid.UUID) ([]Alert, error) {
	var alerts []Alert
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("shift_id = ?", shiftId).
		Order("created_at ASC").
		Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}
