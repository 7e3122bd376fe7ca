package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(serverURL string) *Client {
	return NewClient(&Config{
		BackendURL:   serverURL,
		IngestPath:   "/ingest/xml",
		DeviceApiKey: "test-key",
	})
}

func TestClientUpload_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/ingest/xml" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer key, got %q", r.Header.Get("Authorization"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if r.FormValue("storeId") != "store-1" || r.FormValue("sha256") != "deadbeef" {
			t.Errorf("unexpected form values: %v", r.MultipartForm.Value)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
		} else {
			_ = file.Close()
			if header.Filename != "shift1.xml" {
				t.Errorf("filename = %q", header.Filename)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accepted":true,"submissionId":"sub-1","parsed":true}`))
	}))
	defer server.Close()

	result, err := testClient(server.URL).Upload(context.Background(), "store-1", "device-1", "shift1.xml", "deadbeef", []byte("<x/>"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !result.Accepted || result.SubmissionId != "sub-1" || !result.Parsed || result.Duplicate {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClientUpload_DuplicateIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accepted":true,"duplicate":true,"submissionId":"sub-1"}`))
	}))
	defer server.Close()

	result, err := testClient(server.URL).Upload(context.Background(), "store-1", "device-1", "a.xml", "abc", nil)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !result.Duplicate {
		t.Fatal("expected duplicate=true")
	}
}

func TestClientUpload_AuthFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Invalid device key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Upload(context.Background(), "store-1", "device-1", "a.xml", "abc", nil)
	var fatal *FatalUploadError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalUploadError, got %v", err)
	}
	if fatal.StatusCode != http.StatusUnauthorized {
		t.Fatalf("StatusCode = %d", fatal.StatusCode)
	}
}

func TestClientUpload_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Upload(context.Background(), "store-1", "device-1", "a.xml", "abc", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	var fatal *FatalUploadError
	if errors.As(err, &fatal) {
		t.Fatal("5xx must not be fatal")
	}
}

func TestClientHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := testClient(server.URL).Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestRetryDelay_Bounds(t *testing.T) {
	retry := RetryConfig{MaxAttempts: 10, BaseDelayMs: 1000, MaxDelayMs: 30000}
	for attempt := 1; attempt <= 10; attempt++ {
		delay := retryDelay(retry, attempt)
		if delay <= 0 {
			t.Fatalf("attempt %d: non-positive delay %s", attempt, delay)
		}
		if delay > 30*time.Second {
			t.Fatalf("attempt %d: delay %s exceeds the cap", attempt, delay)
		}
	}

	// Early attempts stay exponential: attempt 1 is ~2x the base.
	if d := retryDelay(retry, 1); d < 2*time.Second || d >= 2500*time.Millisecond {
		t.Fatalf("attempt 1 delay out of range: %s", d)
	}
	// Attempt 5 would be 32s raw; the cap brings it back to 30s.
	if d := retryDelay(retry, 5); d != 30*time.Second {
		t.Fatalf("attempt 5 delay = %s, want 30s", d)
	}
}
