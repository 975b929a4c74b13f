package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestOCR(baseURL string) *OCRProvider {
	return &OCRProvider{
		apiKey:       "test-key",
		baseURL:      baseURL,
		client:       &http.Client{},
		pollInterval: 5 * time.Millisecond,
		logger:       slog.New(slog.DiscardHandler),
	}
}

func TestOCRUploadPollFetch(t *testing.T) {
	// WHAT: The full protocol round-trip: multipart upload yields a job id,
	// polling waits out PENDING, SUCCESS triggers the result fetch.
	// WHY: This is the provider's entire contract with the remote service.
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if r.FormValue("result_type") != "markdown" {
				http.Error(w, "bad result_type", http.StatusBadRequest)
				return
			}
			if _, _, err := r.FormFile("file"); err != nil {
				http.Error(w, "no file", http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "job-42"})
		case r.URL.Path == "/job/job-42":
			status := "PENDING"
			if polls.Add(1) >= 3 {
				status = "SUCCESS"
			}
			json.NewEncoder(w).Encode(map[string]string{"status": status})
		case r.URL.Path == "/job/job-42/result/markdown":
			json.NewEncoder(w).Encode(map[string]string{"markdown": "# Parsed\n\nScanned content.\n"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	o := newTestOCR(srv.URL)
	content, tool, err := o.Convert(context.Background(), writeTestPDF(t))
	if err != nil {
		t.Fatal(err)
	}
	if tool != "ocr" {
		t.Errorf("tool = %q, want ocr", tool)
	}
	if !strings.Contains(content, "# Parsed") {
		t.Errorf("content = %q", content)
	}
	if polls.Load() < 3 {
		t.Errorf("polled %d times, want at least 3", polls.Load())
	}
}

func TestOCRNoAPIKey(t *testing.T) {
	// WHAT: A missing key makes the tier unavailable, which the chain skips.
	cfg := DefaultConfig()
	cfg.OCRAPIKey = ""
	cfg.Logger = slog.New(slog.DiscardHandler)

	_, _, err := NewOCRProvider(cfg).Convert(context.Background(), writeTestPDF(t))
	if !errors.Is(err, ErrNotAvailable) {
		t.Errorf("err = %v, want ErrNotAvailable", err)
	}
}

func TestOCRRemoteJobError(t *testing.T) {
	// WHAT: A job the service marks ERROR is a provider failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/upload":
			json.NewEncoder(w).Encode(map[string]string{"id": "job-9"})
		case r.URL.Path == "/job/job-9":
			json.NewEncoder(w).Encode(map[string]string{"status": "ERROR"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	_, _, err := newTestOCR(srv.URL).Convert(context.Background(), writeTestPDF(t))
	if !errors.Is(err, ErrProvider) {
		t.Errorf("err = %v, want ErrProvider", err)
	}
}

func TestOCRPollTimeout(t *testing.T) {
	// WHAT: A job that never finishes is cut off by the attempt context
	// deadline and reported as a timeout.
	// WHY: The poll loop's only exit on a hung job is the chain's deadline.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/upload":
			json.NewEncoder(w).Encode(map[string]string{"id": "job-slow"})
		default:
			json.NewEncoder(w).Encode(map[string]string{"status": "PENDING"})
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := newTestOCR(srv.URL).Convert(ctx, writeTestPDF(t))
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestOCRUploadRejected(t *testing.T) {
	// WHAT: A non-200 upload response is a provider failure with the status.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, _, err := newTestOCR(srv.URL).Convert(context.Background(), writeTestPDF(t))
	if !errors.Is(err, ErrProvider) {
		t.Errorf("err = %v, want ErrProvider", err)
	}
	if !strings.Contains(err.Error(), fmt.Sprint(http.StatusTooManyRequests)) {
		t.Errorf("err %q should carry the status code", err)
	}
}
