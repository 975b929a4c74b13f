package convert

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// mimeTypes maps file extensions to the MIME type sent to the provider.
var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".html": "text/html",
	".htm":  "text/html",
}

const conversionPrompt = `Convert this document to clean, well-structured Markdown.

RULES:
1. Preserve all content accurately - do NOT summarize or omit
2. Use proper heading hierarchy (# for main title, ## for sections, etc.)
3. Format tables using Markdown table syntax
4. Keep original numbering and bullet points
5. For Vietnamese text: maintain diacritics and special characters
6. Output ONLY Markdown, no explanations or code blocks wrapping

START CONVERSION NOW:`

// GenerativeProvider converts documents through a generative text API
// behind a proxy endpoint. It carries an ordered model-priority list,
// cheapest first; on a model failure the next one is tried.
type GenerativeProvider struct {
	proxyURL    string
	accessToken string
	models      []string
	temperature float64
	maxTokens   int
	client      *http.Client
	logger      *slog.Logger
}

// NewGenerativeProvider builds the provider from config. The HTTP client
// carries no timeout of its own: each attempt is bounded by the chain's
// per-attempt context.
func NewGenerativeProvider(cfg *Config) *GenerativeProvider {
	return &GenerativeProvider{
		proxyURL:    strings.TrimRight(cfg.ProxyURL, "/"),
		accessToken: cfg.AccessToken,
		models:      cfg.Models,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
		client:      &http.Client{},
		logger:      cfg.logger(),
	}
}

func (g *GenerativeProvider) Name() string       { return "gemini" }
func (g *GenerativeProvider) Kind() ProviderKind { return KindGenerative }

func (g *GenerativeProvider) Supports(f Format) bool {
	return f == FormatPDF || f == FormatDocx || f == FormatImage
}

// Convert sends the file inline to each model in priority order and
// returns the first non-empty response.
func (g *GenerativeProvider) Convert(ctx context.Context, path string) (string, string, error) {
	if g.proxyURL == "" || len(g.models) == 0 {
		return "", "", notAvailablef("gemini: no proxy endpoint configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", invalidInputf("gemini: read %s", path)
	}
	if len(data) == 0 {
		return "", "", invalidInputf("gemini: empty file %s", path)
	}

	mime := mimeTypes[strings.ToLower(filepath.Ext(path))]
	if mime == "" {
		mime = "application/octet-stream"
	}

	var lastErr error
	for _, model := range g.models {
		content, err := g.generate(ctx, model, data, mime)
		if err != nil {
			if !retryable(err) || ctx.Err() != nil {
				return "", "", err
			}
			g.logger.Debug("model failed, trying next", "model", model, "error", err)
			lastErr = err
			continue
		}
		if strings.TrimSpace(content) == "" {
			lastErr = providerErrf("gemini: model %s returned empty content", model)
			continue
		}
		return stripCodeFence(content), g.Name() + "/" + model, nil
	}

	if lastErr == nil {
		lastErr = providerErrf("gemini: all models failed")
	}
	return "", "", lastErr
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig generationConfig  `json:"generationConfig"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generatePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// generate performs one generateContent call against one model.
func (g *GenerativeProvider) generate(ctx context.Context, model string, data []byte, mime string) (string, error) {
	payload := generateRequest{
		Contents: []generateContent{{
			Parts: []generatePart{
				{Text: conversionPrompt},
				{InlineData: &inlineData{
					MimeType: mime,
					Data:     base64.StdEncoding.EncodeToString(data),
				}},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:     g.temperature,
			MaxOutputTokens: g.maxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", providerErrf("gemini: marshal request: %v", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.proxyURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", providerErrf("gemini: build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.accessToken)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", timeoutf("gemini: model %s", model)
		}
		return "", notAvailablef("gemini: %s unreachable: %v", g.proxyURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", providerErrf("gemini: model %s: status %d: %s", model, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", providerErrf("gemini: decode response: %v", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// stripCodeFence unwraps output a model wrapped in a ```markdown fence.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return content
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 3 || strings.TrimSpace(lines[len(lines)-1]) != "```" {
		return content
	}
	return strings.Join(lines[1:len(lines)-1], "\n") + "\n"
}
