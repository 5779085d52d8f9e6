// Package ocr talks to the handwriting OCR service. The service takes an
// image as a multipart upload and answers with the extracted text.
package ocr

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

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

// ErrUploadFailed wraps every error returned by Extract.
var ErrUploadFailed = errors.New("upload failed")

const (
	DefaultEndpoint   = "http://127.0.0.1:8000/api/upload/"
	DefaultField      = "image"
	DefaultTimeout    = 60 * time.Second
	DefaultAttempts   = 3
	DefaultRetryDelay = time.Second

	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 16 << 20
)

// Config holds configuration for the OCR client.
type Config struct {
	Endpoint   string
	Field      string // multipart form field carrying the image
	Timeout    time.Duration
	Attempts   uint
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client uploads images to the OCR service.
type Client struct {
	endpoint string
	field    string
	attempts uint
	delay    time.Duration
	client   *http.Client
	log      *slog.Logger
}

// Result is a successful OCR response.
type Result struct {
	ImageURL string
	Text     string
}

type response struct {
	ImageURL      string  `json:"image_url"`
	ExtractedText *string `json:"extracted_text"`
	Error         string  `json:"error"`
}

// NewClient creates a new OCR client.
func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Field == "" {
		cfg.Field = DefaultField
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		endpoint: cfg.Endpoint,
		field:    cfg.Field,
		attempts: cfg.Attempts,
		delay:    cfg.RetryDelay,
		client:   cfg.HTTPClient,
		log:      cfg.Logger,
	}
}

// Endpoint returns the upload URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// ExtractFile uploads the image at path.
func (c *Client) ExtractFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	return c.Extract(ctx, filepath.Base(path), data)
}

// Extract uploads image data and returns the recognized text. Transport
// errors and 5xx responses are retried; any other failure is returned
// immediately.
func (c *Client) Extract(ctx context.Context, filename string, image []byte) (*Result, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUploadFailed)
	}

	requestID := uuid.NewString()
	start := time.Now()
	var result *Result
	attempt := 0

	err := retry.Do(
		func() error {
			attempt++
			r, err := c.post(ctx, requestID, filename, image)
			if err != nil {
				c.log.Debug("ocr attempt failed", "request_id", requestID, "attempt", attempt, "err", err)
				return err
			}
			result = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	c.log.Info("ocr complete",
		"request_id", requestID,
		"file", filename,
		"chars", len(result.Text),
		"attempts", attempt,
		"elapsed", time.Since(start))
	return result, nil
}

func (c *Client) post(ctx context.Context, requestID, filename string, image []byte) (*Result, error) {
	body, contentType, err := c.form(filename, image)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed response
	jsonErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if jsonErr == nil && parsed.Error != "" {
			msg = parsed.Error
		}
		err := fmt.Errorf("status %d: %s", resp.StatusCode, msg)
		if resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, retry.Unrecoverable(err)
	}

	if jsonErr != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("decode response: %w", jsonErr))
	}
	if parsed.ExtractedText == nil {
		msg := "response has no extracted_text"
		if parsed.Error != "" {
			msg = parsed.Error
		}
		return nil, retry.Unrecoverable(errors.New(msg))
	}
	return &Result{ImageURL: parsed.ImageURL, Text: *parsed.ExtractedText}, nil
}

// form builds a fresh multipart body for one attempt.
func (c *Client) form(filename string, image []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(c.field, filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("write form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
