package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/forecourtlabs/pos_backend/alerts"
	"github.com/forecourtlabs/pos_backend/config"
	"github.com/forecourtlabs/pos_backend/models"
	"github.com/forecourtlabs/pos_backend/parser"
	"github.com/forecourtlabs/pos_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// requestFields carries the request's identity into every log line so one
// upload can be traced across retries.
func requestFields(ctx context.Context) logrus.Fields {
	fields := logrus.Fields{}
	if storeId, ok := utils.GetStoreIdFromContext(ctx); ok {
		fields["storeId"] = storeId
	}
	if deviceId, ok := utils.GetDeviceIdFromContext(ctx); ok {
		fields["deviceId"] = deviceId
	}
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		fields["correlationId"] = correlationId
	}
	return fields
}

type ingestForm struct {
	StoreId  string `form:"storeId"`
	DeviceId string `form:"deviceId"`
	Filename string `form:"filename"`
	Sha256   string `form:"sha256"`
}

// ingestXmlHandler accepts one gateway export file per request. Every accepted
// payload becomes a RawSubmission before any parsing happens, so a crash after
// this point never loses bytes. Auth failures leave no trace at all.
func ingestXmlHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		apiKey := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing device API key"})
			return
		}

		var form ingestForm
		if err := c.ShouldBind(&form); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
			return
		}
		fileHeader, err := c.FormFile("file")
		if form.StoreId == "" || form.DeviceId == "" || form.Filename == "" || form.Sha256 == "" || err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
			return
		}
		if fileHeader.Size > config.IngestMaxSizeBytes() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "File exceeds maximum allowed size"})
			return
		}

		storeId, storeErr := uuid.Parse(form.StoreId)
		deviceId, deviceErr := uuid.Parse(form.DeviceId)
		if storeErr != nil || deviceErr != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid device"})
			return
		}

		ctx := utils.SetStoreIdInContext(c.Request.Context(), form.StoreId)
		ctx = utils.SetDeviceIdInContext(ctx, form.DeviceId)

		device, err := models.GetDeviceForStore(ctx, deviceId, storeId)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid device"})
				return
			}
			config.LogError(logger, "ingest.go", "ingestXmlHandler", "GetDeviceForStore", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if !device.Authenticate(apiKey) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid device key"})
			return
		}

		// Content dedup per store. Identical bytes arriving again stamp the
		// surviving row DUPLICATE without reopening its parse outcome.
		existing, err := models.GetRawSubmissionByStoreAndHash(ctx, storeId, form.Sha256)
		if err == nil {
			if markErr := existing.MarkDuplicate(ctx); markErr != nil {
				config.LogError(logger, "ingest.go", "ingestXmlHandler", "MarkDuplicate", nil, markErr)
			}
			c.JSON(http.StatusOK, gin.H{"accepted": true, "duplicate": true, "submissionId": existing.ID})
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			config.LogError(logger, "ingest.go", "ingestXmlHandler", "GetRawSubmissionByStoreAndHash", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file upload"})
			return
		}
		raw, err := io.ReadAll(io.LimitReader(file, config.IngestMaxSizeBytes()+1))
		_ = file.Close()
		if err != nil || int64(len(raw)) > config.IngestMaxSizeBytes() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file upload"})
			return
		}

		submission, duplicated, err := models.CreateRawSubmission(ctx, &models.NewRawSubmission{
			StoreId:     storeId,
			DeviceId:    device.ID,
			Filename:    form.Filename,
			ContentHash: form.Sha256,
			SizeBytes:   fileHeader.Size,
			RawXML:      string(raw),
		})
		if err != nil {
			config.LogError(logger, "ingest.go", "ingestXmlHandler", "CreateRawSubmission", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if duplicated {
			// Lost the insert race against a concurrent upload of the same
			// bytes; resolve exactly like the lookup-hit path.
			if markErr := submission.MarkDuplicate(ctx); markErr != nil {
				config.LogError(logger, "ingest.go", "ingestXmlHandler", "MarkDuplicate", nil, markErr)
			}
			c.JSON(http.StatusOK, gin.H{"accepted": true, "duplicate": true, "submissionId": submission.ID})
			return
		}

		parsed, err := parser.ParseShiftReport(raw)
		if err != nil {
			if markErr := submission.MarkError(ctx, "Unable to parse shift data"); markErr != nil {
				config.LogError(logger, "ingest.go", "ingestXmlHandler", "MarkError", nil, markErr)
			}
			logger.WithFields(requestFields(ctx)).WithFields(logrus.Fields{
				"submissionId": submission.ID.String(),
			}).Info("submission stored but not parseable")
			c.JSON(http.StatusOK, gin.H{"accepted": true, "submissionId": submission.ID, "parsed": false})
			return
		}

		departments := make([]models.NewDepartmentSale, 0, len(parsed.DepartmentSales))
		for _, dept := range parsed.DepartmentSales {
			departments = append(departments, models.NewDepartmentSale{
				DepartmentName: dept.Name,
				Amount:         dept.Amount,
			})
		}
		shift, err := models.CreateShiftWithDepartments(ctx, &models.NewShift{
			StoreId:               storeId,
			RegisterId:            parsed.RegisterId,
			OperatorId:            parsed.OperatorId,
			StartAt:               parsed.StartAt,
			EndAt:                 parsed.EndAt,
			TotalSales:            parsed.TotalSales,
			FuelSales:             parsed.FuelSales,
			NonFuelSales:          parsed.NonFuelSales,
			Refunds:               parsed.Refunds,
			VoidCount:             parsed.VoidCount,
			DiscountTotal:         parsed.DiscountTotal,
			TaxTotal:              parsed.TaxTotal,
			CustomerCount:         parsed.CustomerCount,
			SourceRawSubmissionId: submission.ID,
			DepartmentSales:       departments,
		})
		if err != nil {
			config.LogError(logger, "ingest.go", "ingestXmlHandler", "CreateShiftWithDepartments", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		// Cash-short is reported on the payload, not the shift row, so the
		// ingest path raises it directly before the shift-level rules run.
		if parsed.CashShort.IsPositive() {
			hit := alerts.CashShortHit(parsed.CashShort)
			shiftId := shift.ID
			if _, alertErr := models.CreateAlert(ctx, &models.NewAlert{
				StoreId:  storeId,
				ShiftId:  &shiftId,
				Severity: hit.Severity,
				Type:     hit.Type,
				Title:    hit.Title,
				Message:  hit.Message,
			}); alertErr != nil {
				config.LogError(logger, "ingest.go", "ingestXmlHandler", "CreateAlert", nil, alertErr)
			}
		}
		if _, alertErr := alerts.EvaluateAndPersist(ctx, shift); alertErr != nil {
			// Alerting is advisory; a failure here must not fail the upload.
			config.LogError(logger, "ingest.go", "ingestXmlHandler", "EvaluateAndPersist", nil, alertErr)
		}

		if err := submission.MarkParsed(ctx, parsed.ReportType); err != nil {
			config.LogError(logger, "ingest.go", "ingestXmlHandler", "MarkParsed", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		if err := device.TouchLastSeen(ctx); err != nil {
			config.LogError(logger, "ingest.go", "ingestXmlHandler", "TouchLastSeen", nil, err)
		}

		logger.WithFields(requestFields(ctx)).WithFields(logrus.Fields{
			"submissionId": submission.ID.String(),
			"shiftId":      shift.ID.String(),
		}).Info("shift report ingested")
		c.JSON(http.StatusOK, gin.H{"accepted": true, "submissionId": submission.ID, "parsed": true})
	}
}
