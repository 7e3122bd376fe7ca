package agent

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testRuntime(t *testing.T, serverURL string) *Runtime {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &Config{
		BackendURL:        serverURL,
		IngestPath:        "/ingest/xml",
		DeviceApiKey:      "test-key",
		StoreId:           "store-1",
		DeviceId:          "device-1",
		WatchPath:         t.TempDir(),
		FileGlob:          "*.xml",
		PollIntervalMs:    50,
		StabilityWindowMs: 5,
		MaxFileSizeBytes:  1 << 20,
		Concurrency:       1,
		StatePath:         filepath.Join(t.TempDir(), "state.json"),
		Retry:             RetryConfig{MaxAttempts: 3, BaseDelayMs: 1, MaxDelayMs: 5},
	}
	return NewRuntime(cfg, logger)
}

func writeExport(t *testing.T, rt *Runtime, name string, content string) string {
	t.Helper()
	path := filepath.Join(rt.Config.WatchPath, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func okResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"accepted":true,"submissionId":"sub-1","parsed":true}`))
}

func TestProcessFile_UploadsAndRecords(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		okResponse(w)
	}))
	defer server.Close()

	rt := testRuntime(t, server.URL)
	path := writeExport(t, rt, "shift1.xml", "<ShiftReport><TotalSales>100</TotalSales></ShiftReport>")

	if err := rt.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("requests = %d, want 1", got)
	}

	// Same bytes again: the ledger short-circuits before any request.
	if err := rt.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile (second): %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("requests after re-process = %d, want 1", got)
	}

	// Changed bytes are a new upload.
	if err := os.WriteFile(path, []byte("<ShiftReport><TotalSales>200</TotalSales></ShiftReport>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := rt.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile (modified): %v", err)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("requests after modify = %d, want 2", got)
	}
}

func TestProcessFile_RetriesThenSucceeds(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		okResponse(w)
	}))
	defer server.Close()

	rt := testRuntime(t, server.URL)
	path := writeExport(t, rt, "shift1.xml", "<x/>")

	if err := rt.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if got := requests.Load(); got != 3 {
		t.Fatalf("requests = %d, want 3", got)
	}
}

func TestProcessFile_FatalRejectionDoesNotRetry(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, `{"error":"Invalid device key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	rt := testRuntime(t, server.URL)
	path := writeExport(t, rt, "shift1.xml", "<x/>")

	if err := rt.ProcessFile(context.Background(), path); err == nil {
		t.Fatal("expected an error for a 401 rejection")
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("requests = %d, want 1", got)
	}
	if rt.Ledger.Len() != 0 {
		t.Fatal("failed upload must not be recorded")
	}
}

func TestProcessFile_ExhaustedRetriesLeavePending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	rt := testRuntime(t, server.URL)
	path := writeExport(t, rt, "shift1.xml", "<x/>")

	if err := rt.ProcessFile(context.Background(), path); err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if rt.Ledger.Len() != 0 {
		t.Fatal("pending file must not be recorded")
	}
}

func TestProcessFile_UnstableFileNotUploaded(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		okResponse(w)
	}))
	defer server.Close()

	rt := testRuntime(t, server.URL)
	rt.Config.StabilityWindowMs = 50
	path := writeExport(t, rt, "shift1.xml", "<ShiftReport>")

	// Keep the file growing while ProcessFile samples its size.
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			default:
			}
			f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
			if err == nil {
				_, _ = f.WriteString("<TotalSales>100</TotalSales>")
				_ = f.Close()
			}
			time.Sleep(time.Millisecond)
		}
	}()

	if err := rt.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	close(done)
	<-stopped

	if requests.Load() != 0 {
		t.Fatal("a file still being written must not be uploaded")
	}
	if rt.Ledger.Len() != 0 {
		t.Fatal("a file still being written must not be recorded")
	}

	// Once writes stop, the next cycle uploads it.
	if err := rt.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile (settled): %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("requests after settle = %d, want 1", got)
	}
}

func TestProcessFile_MissingFileSkipped(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		okResponse(w)
	}))
	defer server.Close()

	rt := testRuntime(t, server.URL)
	path := filepath.Join(rt.Config.WatchPath, "renamed-away.xml")

	// A rename between detection and processing leaves a stale path; that is
	// not an upload failure.
	if err := rt.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if requests.Load() != 0 {
		t.Fatal("missing file must not trigger an upload")
	}
}

func TestProcessFile_OversizedFileSkipped(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		okResponse(w)
	}))
	defer server.Close()

	rt := testRuntime(t, server.URL)
	rt.Config.MaxFileSizeBytes = 4
	path := writeExport(t, rt, "shift1.xml", "definitely more than four bytes")

	if err := rt.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if requests.Load() != 0 {
		t.Fatal("oversized file must not be uploaded")
	}
}

func TestMatchesGlob(t *testing.T) {
	cases := []struct {
		glob string
		path string
		want bool
	}{
		{"*.xml", "/exports/shift1.xml", true},
		{"*.xml", "/exports/nested/shift1.xml", true},
		{"*.xml", "/exports/shift1.txt", false},
		{"shift-*.xml", "/exports/shift-7.xml", true},
		{"", "/exports/anything", true},
	}
	for _, tc := range cases {
		if got := matchesGlob(tc.glob, tc.path); got != tc.want {
			t.Fatalf("matchesGlob(%q, %q) = %v, want %v", tc.glob, tc.path, got, tc.want)
		}
	}
}
