package models

import "testing"

func TestSubmissionStatusValid(t *testing.T) {
	for _, s := range []SubmissionStatus{
		SubmissionStatusReceived, SubmissionStatusParsed,
		SubmissionStatusError, SubmissionStatusDuplicate,
	} {
		if !s.Valid() {
			t.Fatalf("%s reported invalid", s)
		}
	}
	if SubmissionStatus("PENDING").Valid() {
		t.Fatal("unknown status reported valid")
	}
}

func TestParseAlertSeverity(t *testing.T) {
	if sev, err := ParseAlertSeverity("critical"); err != nil || sev != AlertSeverityCritical {
		t.Fatalf("ParseAlertSeverity(critical) = %v, %v", sev, err)
	}
	if _, err := ParseAlertSeverity("fatal"); err == nil {
		t.Fatal("expected an error for an unknown severity")
	}
}
