// Package media downloads MMS attachments and gates them by content type.
package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/crowdgauge/internal/utils"
)

// Defaults for Config.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 10 << 20
)

// DefaultAcceptedTypes lists the photo formats the detector is trained on.
var DefaultAcceptedTypes = []string{"image/jpeg", "image/png"}

// FetchError reports a failed download: a transport failure when StatusCode
// is zero, otherwise a non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UnsupportedTypeError reports media outside the accepted content types.
type UnsupportedTypeError struct {
	ContentType string
	Accepted    []string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported media type %q (accepted: %s)", e.ContentType, strings.Join(e.Accepted, ", "))
}

// ErrTooLarge is returned when the body exceeds MaxBytes.
var ErrTooLarge = errors.New("media exceeds size limit")

// Config controls the fetcher.
type Config struct {
	Timeout       time.Duration
	MaxBytes      int64
	AcceptedTypes []string
	// Username and Password, when set, are sent as basic auth. Twilio media
	// URLs take the account SID and auth token.
	Username string
	Password string
}

// DefaultConfig returns the fetcher defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:       DefaultTimeout,
		MaxBytes:      DefaultMaxBytes,
		AcceptedTypes: slices.Clone(DefaultAcceptedTypes),
	}
}

// Media is a downloaded and decoded attachment.
type Media struct {
	Data        []byte
	ContentType string
	Image       image.Image
}

// Fetcher downloads media over HTTP.
type Fetcher struct {
	cfg    Config
	client *http.Client
}

// NewFetcher builds a fetcher. A nil client uses a dedicated http.Client.
func NewFetcher(cfg Config, client *http.Client) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if len(cfg.AcceptedTypes) == 0 {
		cfg.AcceptedTypes = slices.Clone(DefaultAcceptedTypes)
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{cfg: cfg, client: client}
}

// Fetch downloads url, checks its content type and decodes the image.
// Download failures are *FetchError; a disallowed type is
// *UnsupportedTypeError. Decode failures are returned wrapped as-is.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Media, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if f.cfg.Username != "" {
		req.SetBasicAuth(f.cfg.Username, f.cfg.Password)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("%w (%d bytes)", ErrTooLarge, f.cfg.MaxBytes)}
	}

	contentType := resolveContentType(resp.Header.Get("Content-Type"), data)
	if !slices.Contains(f.cfg.AcceptedTypes, contentType) {
		return nil, &UnsupportedTypeError{ContentType: contentType, Accepted: f.cfg.AcceptedTypes}
	}

	img, _, err := utils.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}

	slog.Debug("Media fetched", "url", url, "content_type", contentType,
		"bytes", len(data), "duration_ms", time.Since(start).Milliseconds())
	return &Media{Data: data, ContentType: contentType, Image: img}, nil
}

// resolveContentType prefers the declared type and sniffs the body when the
// header is missing or generic.
func resolveContentType(header string, data []byte) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
			return strings.ToLower(mt)
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}
