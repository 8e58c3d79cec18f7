// Package logging provides the shared logrus setup, request ID plumbing and
// optional on-disk request logging for API exchanges.
package logging

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
)

var requestLogID atomic.Uint64

// FileRequestLogger records one file per API exchange under a logs directory.
// Exchanges are written after the response body has been read, with the
// Authorization header masked and compressed bodies expanded.
type FileRequestLogger struct {
	// enabled gates all writes; it can be flipped at runtime
	enabled atomic.Bool
	// logsDir is the directory log files are written to
	logsDir string
}

// NewFileRequestLogger creates a file-based request logger. A relative
// logsDir is resolved against configDir.
//
// Parameters:
//   - enabled: Whether exchange logging starts enabled
//   - logsDir: The directory for log files
//   - configDir: The directory of the configuration file
//
// Returns:
//   - *FileRequestLogger: The logger, never nil
func NewFileRequestLogger(enabled bool, logsDir string, configDir string) *FileRequestLogger {
	if !filepath.IsAbs(logsDir) && configDir != "" {
		logsDir = filepath.Join(configDir, logsDir)
	}
	l := &FileRequestLogger{logsDir: logsDir}
	l.enabled.Store(enabled)
	return l
}

// IsEnabled reports whether exchange logging is currently enabled.
func (l *FileRequestLogger) IsEnabled() bool {
	return l.enabled.Load()
}

// SetEnabled flips exchange logging at runtime.
func (l *FileRequestLogger) SetEnabled(enabled bool) {
	l.enabled.Store(enabled)
}

// LogExchange writes a complete request/response cycle to its own file.
//
// Parameters:
//   - req: The outbound request, already performed
//   - reqBody: The request body bytes, nil when the request had none
//   - resp: The response received
//   - respBody: The response body bytes
//   - requestID: The request ID used in the file name, may be empty
//   - started: When the request was sent
//   - finished: When the response arrived
//
// Returns:
//   - error: An error if the log file cannot be written, nil otherwise
func (l *FileRequestLogger) LogExchange(req *http.Request, reqBody []byte, resp *http.Response, respBody []byte, requestID string, started, finished time.Time) error {
	if !l.IsEnabled() {
		return nil
	}
	if err := os.MkdirAll(l.logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	decompressed, decompressErr := decompressBody(resp.Header.Get("Content-Encoding"), respBody)
	if decompressErr != nil {
		decompressed = respBody
	}

	var content strings.Builder
	content.WriteString("=== REQUEST ===\n")
	content.WriteString(fmt.Sprintf("URL: %s\n", req.URL.String()))
	content.WriteString(fmt.Sprintf("Method: %s\n", req.Method))
	content.WriteString(fmt.Sprintf("Timestamp: %s\n", started.Format(time.RFC3339Nano)))
	content.WriteString("\n=== REQUEST HEADERS ===\n")
	writeHeaders(&content, req.Header, true)
	content.WriteString("\n=== REQUEST BODY ===\n")
	content.Write(reqBody)
	content.WriteString("\n\n=== RESPONSE ===\n")
	content.WriteString(fmt.Sprintf("Status: %d\n", resp.StatusCode))
	content.WriteString(fmt.Sprintf("Duration: %s\n", finished.Sub(started).Truncate(time.Millisecond)))
	content.WriteString("\n=== RESPONSE HEADERS ===\n")
	writeHeaders(&content, resp.Header, false)
	content.WriteString("\n=== RESPONSE BODY ===\n")
	content.Write(decompressed)
	if decompressErr != nil {
		content.WriteString(fmt.Sprintf("\n[DECOMPRESSION ERROR: %v]", decompressErr))
	}
	content.WriteString("\n")

	filename := generateLogFilename(req.URL.Path, requestID)
	if err := os.WriteFile(filepath.Join(l.logsDir, filename), []byte(content.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}
	return nil
}

// Transport is an http.RoundTripper that records each exchange through a
// FileRequestLogger. When the logger is disabled it adds no overhead beyond
// a nil check.
type Transport struct {
	// Base performs the actual round trip; nil selects http.DefaultTransport
	Base http.RoundTripper
	// Logger receives completed exchanges
	Logger *FileRequestLogger
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Logger == nil || !t.Logger.IsEnabled() {
		return t.base().RoundTrip(req)
	}

	var reqBody []byte
	outbound := req
	if req.Body != nil {
		var errRead error
		reqBody, errRead = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if errRead != nil {
			return nil, fmt.Errorf("request logger: reading request body: %w", errRead)
		}
		outbound = req.Clone(req.Context())
		outbound.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	started := time.Now()
	resp, err := t.base().RoundTrip(outbound)
	if err != nil {
		return resp, err
	}

	respBody, errRead := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if errRead != nil {
		return nil, fmt.Errorf("request logger: reading response body: %w", errRead)
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	if errLog := t.Logger.LogExchange(outbound, reqBody, resp, respBody, GetRequestID(req.Context()), started, time.Now()); errLog != nil {
		log.WithError(errLog).Warn("failed to write request log")
	}
	return resp, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// writeHeaders renders headers one per line, masking credentials on the
// request side.
func writeHeaders(w *strings.Builder, headers http.Header, mask bool) {
	for key, values := range headers {
		for _, value := range values {
			if mask {
				value = maskHeaderValue(key, value)
			}
			w.WriteString(fmt.Sprintf("%s: %s\n", key, value))
		}
	}
}

// maskHeaderValue hides most of a credential-bearing header value, keeping
// just enough of both ends to correlate logs.
func maskHeaderValue(key, value string) string {
	switch strings.ToLower(key) {
	case "authorization", "proxy-authorization", "cookie":
		if len(value) <= 16 {
			return "***"
		}
		return value[:10] + "..." + value[len(value)-4:]
	default:
		return value
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[<>:"|?*\s]`)
	repeatedHyphens     = regexp.MustCompile(`-+`)
)

// generateLogFilename builds a file name from the URL path, a timestamp and
// the request ID. Format: balance-2026-08-22T102030-a1b2c3d4.log
func generateLogFilename(path string, requestID string) string {
	sanitized := strings.Trim(path, "/")
	sanitized = strings.ReplaceAll(sanitized, "/", "-")
	sanitized = strings.ReplaceAll(sanitized, ":", "-")
	sanitized = unsafeFilenameChars.ReplaceAllString(sanitized, "-")
	sanitized = repeatedHyphens.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		sanitized = "root"
	}

	idPart := requestID
	if idPart == "" {
		idPart = fmt.Sprintf("%d", requestLogID.Add(1))
	}
	return fmt.Sprintf("%s-%s-%s.log", sanitized, time.Now().Format("2006-01-02T150405"), idPart)
}

// decompressBody expands a response body according to its Content-Encoding.
// Unknown encodings are returned unchanged.
func decompressBody(contentEncoding string, body []byte) ([]byte, error) {
	if len(body) == 0 {
		return body, nil
	}
	switch strings.ToLower(contentEncoding) {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer func() { _ = reader.Close() }()
		return io.ReadAll(reader)
	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer func() { _ = reader.Close() }()
		return io.ReadAll(reader)
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
	case "zstd":
		decoder, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer decoder.Close()
		return io.ReadAll(decoder)
	default:
		return body, nil
	}
}
