package models

import "errors"

type SubmissionStatus string

const (
	SubmissionStatusReceived  SubmissionStatus = "RECEIVED"
	SubmissionStatusParsed    SubmissionStatus = "PARSED"
	SubmissionStatusError     SubmissionStatus = "ERROR"
	SubmissionStatusDuplicate SubmissionStatus = "DUPLICATE"
)

func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionStatusReceived, SubmissionStatusParsed, SubmissionStatusError, SubmissionStatusDuplicate:
		return true
	}
	return false
}

type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarn     AlertSeverity = "warn"
	AlertSeverityCritical AlertSeverity = "critical"
)

func ParseAlertSeverity(s string) (AlertSeverity, error) {
	switch s {
	case "info":
		return AlertSeverityInfo, nil
	case "warn":
		return AlertSeverityWarn, nil
	case "critical":
		return AlertSeverityCritical, nil
	}
	return "", errors.New("invalid alert severity")
}
