package models

import (
	"context"
	"time"

	"github.com/forecourtlabs/pos_backend/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Shift is one point-of-sale operating period's aggregated figures, derived
// from exactly one parsed RawSubmission.
type Shift struct {
	ID                    uuid.UUID       `gorm:"type:char(36);primary_key" json:"id"`
	StoreId               uuid.UUID       `gorm:"type:char(36);index;not null" json:"store_id"`
	RegisterId            *string         `gorm:"size:100" json:"register_id"`
	OperatorId            *string         `gorm:"size:100" json:"operator_id"`
	StartAt               *time.Time      `gorm:"index" json:"start_at"`
	EndAt                 *time.Time      `json:"end_at"`
	TotalSales            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_sales"`
	FuelSales             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"fuel_sales"`
	NonFuelSales          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"non_fuel_sales"`
	Refunds               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"refunds"`
	VoidCount             int             `gorm:"not null;default:0" json:"void_count"`
	DiscountTotal         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_total"`
	TaxTotal              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_total"`
	CustomerCount         *int            `json:"customer_count"`
	SourceRawSubmissionId uuid.UUID       `gorm:"type:char(36);index;not null" json:"source_raw_submission_id"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`

	DepartmentSales []DepartmentSale `gorm:"foreignKey:ShiftId" json:"department_sales"`
}

// DepartmentSale belongs to exactly one Shift and is created with it.
type DepartmentSale struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ShiftId        uuid.UUID       `gorm:"type:char(36);index;not null" json:"shift_id"`
	DepartmentName string          `gorm:"size:255;not null" json:"department_name"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
}

type NewShift struct {
	StoreId               uuid.UUID
	RegisterId            *string
	OperatorId            *string
	StartAt               *time.Time
	EndAt                 *time.Time
	TotalSales            decimal.Decimal
	FuelSales             decimal.Decimal
	NonFuelSales          decimal.Decimal
	Refunds               decimal.Decimal
	VoidCount             int
	DiscountTotal         decimal.Decimal
	TaxTotal              decimal.Decimal
	CustomerCount         *int
	SourceRawSubmissionId uuid.UUID
	DepartmentSales       []NewDepartmentSale
}

type NewDepartmentSale struct {
	DepartmentName string
	Amount         decimal.Decimal
}

func (s *Shift) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// CreateShiftWithDepartments creates the shift and its department rows in one
// transaction; a failure partway leaves neither behind.
func CreateShiftWithDepartments(ctx context.Context, input *NewShift) (*Shift, error) {
	shift := Shift{
		StoreId:               input.StoreId,
		RegisterId:            input.RegisterId,
		OperatorId:            input.OperatorId,
		StartAt:               input.StartAt,
		EndAt:                 input.EndAt,
		TotalSales:            input.TotalSales,
		FuelSales:             input.FuelSales,
		NonFuelSales:          input.NonFuelSales,
		Refunds:               input.Refunds,
		VoidCount:             input.VoidCount,
		DiscountTotal:         input.DiscountTotal,
		TaxTotal:              input.TaxTotal,
		CustomerCount:         input.CustomerCount,
		SourceRawSubmissionId: input.SourceRawSubmissionId,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&shift).Error; err != nil {
			return err
		}
		if len(input.DepartmentSales) == 0 {
			return nil
		}
		departments := make([]DepartmentSale, 0, len(input.DepartmentSales))
		for _, dept := range input.DepartmentSales {
			departments = append(departments, DepartmentSale{
				ShiftId:        shift.ID,
				DepartmentName: dept.DepartmentName,
				Amount:         dept.Amount,
			})
		}
		if err := tx.Create(&departments).Error; err != nil {
			return err
		}
		shift.DepartmentSales = departments
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func GetShiftById(ctx context.Context, id uuid.UUID) (*Shift, error) {
	var shift Shift
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Preload("DepartmentSales").
		Where("id = ?", id).
		First(&shift).Error; err != nil {
		return nil, err
	}
	return &shift, nil
}

// RecentShiftsWithStart returns the store's most recent shifts that carry a
// known start time, newest first, excluding the given shift.
func RecentShiftsWithStart(ctx context.Context, storeId uuid.UUID, excludeShiftId uuid.UUID, limit int) ([]Shift, error) {
	var shifts []Shift
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("store_id = ? AND start_at IS NOT NULL AND id <> ?", storeId, excludeShiftId).
		Order("start_at DESC").
		Limit(limit).
		Find(&shifts).Error; err != nil {
		return nil, err
	}
	return shifts, nil
}
