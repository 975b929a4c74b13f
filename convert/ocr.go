package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OCRProvider converts scanned or otherwise unextractable documents through
// a remote OCR-capable parsing service. The protocol is upload → job id →
// poll until the job finishes → fetch the Markdown result. It is the last,
// most expensive tier of the chain.
type OCRProvider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewOCRProvider builds the provider from config.
func NewOCRProvider(cfg *Config) *OCRProvider {
	return &OCRProvider{
		apiKey:       cfg.OCRAPIKey,
		baseURL:      strings.TrimRight(cfg.OCRBaseURL, "/"),
		client:       &http.Client{},
		pollInterval: 2 * time.Second,
		logger:       cfg.logger(),
	}
}

func (o *OCRProvider) Name() string       { return "ocr" }
func (o *OCRProvider) Kind() ProviderKind { return KindOCR }

func (o *OCRProvider) Supports(f Format) bool {
	return f == FormatPDF || f == FormatDocx || f == FormatHTML || f == FormatImage
}

// Convert uploads the file and polls for the parsed Markdown.
func (o *OCRProvider) Convert(ctx context.Context, path string) (string, string, error) {
	if o.apiKey == "" {
		return "", "", notAvailablef("ocr: API key not configured")
	}

	jobID, err := o.upload(ctx, path)
	if err != nil {
		return "", "", err
	}
	o.logger.Debug("ocr job submitted", "path", path, "job", jobID)

	content, err := o.poll(ctx, jobID)
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", "", providerErrf("ocr: job %s returned empty content", jobID)
	}
	return content, o.Name(), nil
}

// upload submits the file for parsing and returns the job ID.
func (o *OCRProvider) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", invalidInputf("ocr: open %s", path)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", providerErrf("ocr: build form: %v", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", providerErrf("ocr: copy file: %v", err)
	}
	w.WriteField("result_type", "markdown")
	w.WriteField("parsing_instruction", "Extract all content as markdown. Preserve tables and structure.")
	if err := w.Close(); err != nil {
		return "", providerErrf("ocr: close form: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/upload", &buf)
	if err != nil {
		return "", providerErrf("ocr: build request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", o.classify(err, "upload")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", providerErrf("ocr: upload status %d", resp.StatusCode)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", providerErrf("ocr: decode upload response: %v", err)
	}
	if out.ID == "" {
		return "", providerErrf("ocr: upload returned no job id")
	}
	return out.ID, nil
}

// poll waits for the job to finish and fetches the Markdown result.
// The overall wait is bounded by the attempt context.
func (o *OCRProvider) poll(ctx context.Context, jobID string) (string, error) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		status, err := o.jobStatus(ctx, jobID)
		if err != nil {
			return "", err
		}
		switch status {
		case "SUCCESS":
			return o.fetchResult(ctx, jobID)
		case "ERROR":
			return "", providerErrf("ocr: job %s failed remotely", jobID)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", timeoutf("ocr: job %s", jobID)
			}
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *OCRProvider) jobStatus(ctx context.Context, jobID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := o.getJSON(ctx, fmt.Sprintf("%s/job/%s", o.baseURL, jobID), &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (o *OCRProvider) fetchResult(ctx context.Context, jobID string) (string, error) {
	var out struct {
		Markdown string `json:"markdown"`
	}
	if err := o.getJSON(ctx, fmt.Sprintf("%s/job/%s/result/markdown", o.baseURL, jobID), &out); err != nil {
		return "", err
	}
	return out.Markdown, nil
}

func (o *OCRProvider) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return providerErrf("ocr: build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return o.classify(err, "poll")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return providerErrf("ocr: status %d for %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return providerErrf("ocr: decode response: %v", err)
	}
	return nil
}

func (o *OCRProvider) classify(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutf("ocr: %s", op)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return notAvailablef("ocr: %s unreachable: %v", op, err)
}
