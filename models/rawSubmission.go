package models

import (
	"context"
	"errors"
	"time"

	"github.com/forecourtlabs/pos_backend/config"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RawSubmission is the durable record of one accepted upload, kept whether or
// not extraction succeeded. Dedup per store is enforced by the composite
// unique index, not by application-level locking.
type RawSubmission struct {
	ID          uuid.UUID        `gorm:"type:char(36);primary_key" json:"id"`
	StoreId     uuid.UUID        `gorm:"type:char(36);not null;uniqueIndex:uq_store_content_hash" json:"store_id"`
	DeviceId    uuid.UUID        `gorm:"type:char(36);index;not null" json:"device_id"`
	Filename    string           `gorm:"size:255;not null" json:"filename"`
	ContentHash string           `gorm:"type:char(64);not null;uniqueIndex:uq_store_content_hash" json:"content_hash"`
	SizeBytes   int64            `gorm:"not null" json:"size_bytes"`
	Status      SubmissionStatus `gorm:"type:enum('RECEIVED','PARSED','ERROR','DUPLICATE');default:'RECEIVED'" json:"status"`
	RawXML      string           `gorm:"type:longtext" json:"-"`
	ReportType  *string          `gorm:"size:100" json:"report_type"`
	Error       *string          `gorm:"size:500" json:"error"`
	ParsedAt    *time.Time       `json:"parsed_at"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

type NewRawSubmission struct {
	StoreId     uuid.UUID
	DeviceId    uuid.UUID
	Filename    string
	ContentHash string
	SizeBytes   int64
	RawXML      string
}

func (r *RawSubmission) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

const mysqlDuplicateEntry = 1062

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

// CreateRawSubmission inserts a RECEIVED submission. When identical bytes for
// the same store already exist -- including when a concurrent request wins the
// insert race -- the surviving row is returned with duplicated=true.
func CreateRawSubmission(ctx context.Context, input *NewRawSubmission) (*RawSubmission, bool, error) {
	submission := RawSubmission{
		StoreId:     input.StoreId,
		DeviceId:    input.DeviceId,
		Filename:    input.Filename,
		ContentHash: input.ContentHash,
		SizeBytes:   input.SizeBytes,
		Status:      SubmissionStatusReceived,
		RawXML:      input.RawXML,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Create(&submission).Error
	if err == nil {
		return &submission, false, nil
	}
	if !isDuplicateKeyError(err) {
		return nil, false, err
	}

	existing, lookupErr := GetRawSubmissionByStoreAndHash(ctx, input.StoreId, input.ContentHash)
	if lookupErr != nil {
		return nil, false, lookupErr
	}
	return existing, true, nil
}

func GetRawSubmissionByStoreAndHash(ctx context.Context, storeId uuid.UUID, contentHash string) (*RawSubmission, error) {
	var submission RawSubmission
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("store_id = ? AND content_hash = ?", storeId, contentHash).
		First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func GetRawSubmissionById(ctx context.Context, id uuid.UUID) (*RawSubmission, error) {
	var submission RawSubmission
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", id).First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

// MarkParsed stamps the RECEIVED -> PARSED transition with the detected
// report-type label, if any.
func (r *RawSubmission) MarkParsed(ctx context.Context, reportType *string) error {
	now := time.Now()
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(r).Updates(map[string]interface{}{
		"status":      SubmissionStatusParsed,
		"parsed_at":   now,
		"report_type": reportType,
	}).Error; err != nil {
		return err
	}
	r.Status = SubmissionStatusParsed
	r.ParsedAt = &now
	r.ReportType = reportType
	return nil
}

// MarkError stamps the RECEIVED -> ERROR transition; the raw bytes stay in
// place for manual re-parsing.
func (r *RawSubmission) MarkError(ctx context.Context, reason string) error {
	now := time.Now()
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(r).Updates(map[string]interface{}{
		"status":    SubmissionStatusError,
		"parsed_at": now,
		"error":     reason,
	}).Error; err != nil {
		return err
	}
	r.Status = SubmissionStatusError
	r.ParsedAt = &now
	r.Error = &reason
	return nil
}

// MarkDuplicate records that byte-identical content arrived again for the
// same store. The original parse outcome is not reopened.
func (r *RawSubmission) MarkDuplicate(ctx context.Context) error {
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(r).Update("status", SubmissionStatusDuplicate).Error; err != nil {
		return err
	}
	r.Status = SubmissionStatusDuplicate
	return nil
}
