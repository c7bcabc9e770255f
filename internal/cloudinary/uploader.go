// Package cloudinary uploads images to Cloudinary with an unsigned upload preset.
package cloudinary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

const (
	// DefaultAPIBase is the public upload API host.
	DefaultAPIBase = "https://api.cloudinary.com"

	// ClientTimeout is the total upload timeout.
	ClientTimeout = 60 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second

	// fallbackMessage is reported when the host's error payload has no message.
	fallbackMessage = "image upload failed"

	maxResponseBody = 1 << 20
)

// Sentinel errors for uploads.
var (
	ErrNotConfigured = errors.New("cloudinary: cloud name and upload preset are required")
	ErrEmptyURI      = errors.New("cloudinary: image uri is empty")
)

// UploadError is a non-2xx answer from the upload API.
type UploadError struct {
	Status  int
	Message string
}

func (e *UploadError) Error() string {
	return e.Message
}

// Uploader posts local images to the upload endpoint of one cloud.
type Uploader struct {
	apiBase  string
	endpoint string
	preset   string
	http     *http.Client
	logger   *slog.Logger
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(u *Uploader) { u.http = hc }
}

// WithAPIBase points the uploader at another host (tests, proxies).
func WithAPIBase(base string) Option {
	return func(u *Uploader) { u.apiBase = strings.TrimSuffix(base, "/") }
}

// WithLogger sets the uploader logger.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) { u.logger = logger }
}

// New creates an Uploader for cloudName using the unsigned preset.
func New(cloudName, preset string, opts ...Option) (*Uploader, error) {
	if strings.TrimSpace(cloudName) == "" || strings.TrimSpace(preset) == "" {
		return nil, ErrNotConfigured
	}

	u := &Uploader{
		apiBase: DefaultAPIBase,
		preset:  preset,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.apiBase == "" {
		u.apiBase = DefaultAPIBase
	}
	u.endpoint = fmt.Sprintf("%s/v1_1/%s/image/upload", u.apiBase, url.PathEscape(cloudName))
	if u.http == nil {
		u.http = NewHTTPClient()
	}
	if u.logger == nil {
		u.logger = slog.Default()
	}
	u.logger = u.logger.With("component", "cloudinary")
	return u, nil
}

// NewHTTPClient creates an HTTP client for uploads. It does not follow redirects.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Endpoint returns the upload URL.
func (u *Uploader) Endpoint() string {
	return u.endpoint
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends the image at localURI and returns its hosted secure URL.
// localURI is a filesystem path or a file:// URI. The file is always
// declared as JPEG.
func (u *Uploader) Upload(ctx context.Context, localURI string) (string, error) {
	filePath, err := localPath(localURI)
	if err != nil {
		return "", err
	}

	body, contentType, err := u.buildForm(filePath)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := u.http.Do(req)
	if err != nil {
		u.logger.Error("image upload failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}

	var payload uploadResponse
	decodeErr := json.Unmarshal(raw, &payload)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fallbackMessage
		if decodeErr == nil && payload.Error != nil && payload.Error.Message != "" {
			msg = payload.Error.Message
		}
		u.logger.Error("image upload rejected",
			slog.Int("status_code", resp.StatusCode),
			slog.String("error", msg),
		)
		return "", &UploadError{Status: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return "", fmt.Errorf("decode upload response: %w", decodeErr)
	}
	if payload.SecureURL == "" {
		return "", &UploadError{Status: resp.StatusCode, Message: fallbackMessage}
	}

	u.logger.Debug("image uploaded",
		slog.String("file", path.Base(filePath)),
		slog.Duration("duration", time.Since(start)),
	)
	return payload.SecureURL, nil
}

func (u *Uploader) buildForm(filePath string) (io.Reader, string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName(filePath)))
	header.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}

	if err := w.WriteField("upload_preset", u.preset); err != nil {
		return nil, "", fmt.Errorf("write preset field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// localPath turns a plain path or file:// URI into a filesystem path.
func localPath(uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", ErrEmptyURI
	}
	if !strings.HasPrefix(uri, "file:") {
		return uri, nil
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse image uri: %w", err)
	}
	if parsed.Path == "" {
		return "", fmt.Errorf("parse image uri: no path in %q", uri)
	}
	return parsed.Path, nil
}

// fileName is the last path segment of the image location.
func fileName(p string) string {
	name := path.Base(strings.ReplaceAll(p, `\`, "/"))
	if name == "." || name == "/" {
		return "image.jpg"
	}
	return name
}
