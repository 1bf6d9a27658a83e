package analysis

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
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/audiolibrelab/soundcheck/internal/config"
)

var ErrNoEndpoint = errors.New("analysis endpoint not configured; set api.base_url or SOUNDCHECK_API_URL")

// StatusError is returned when the service answers with anything but 200
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis service returned status %d", e.Code)
}

// Upload describes the file to send
type Upload struct {
	URI      string
	FileName string
}

type Client struct {
	url  string
	http *http.Client
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.API.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url:  cfg.ProcessURL(),
		http: &http.Client{Timeout: timeout},
	}
}

// URL is the endpoint uploads are posted to
func (c *Client) URL() string {
	return c.url
}

// ContentSubtype is the text after the last "." of name, or the whole name when there is none
func ContentSubtype(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// MIMEType is the declared content type of an upload
func MIMEType(name string) string {
	return "audio/x-" + ContentSubtype(name)
}

// Process uploads the file as multipart field "file" and decodes the result
func (c *Client) Process(ctx context.Context, u Upload) (*Result, error) {
	if c.url == "" {
		return nil, ErrNoEndpoint
	}

	body, contentType, err := buildMultipart(u)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	slog.Debug("Uploading audio for analysis", "url", c.url, "file", u.FileName, "size", body.Len())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(detail)}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("invalid analysis response: %w", err)
	}

	slog.Debug("Analysis result received", "class", result.Class, "points", len(result.AudioData))
	return &result, nil
}

func buildMultipart(u Upload) (*bytes.Buffer, string, error) {
	f, err := os.Open(u.URI)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, u.FileName))
	header.Set("Content-Type", MIMEType(u.FileName))

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to read audio file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return &buf, mw.FormDataContentType(), nil
}
