package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/serialscan/internal/imaging"
	"github.com/sells-group/serialscan/internal/resilience"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTP calls the remote serial-OCR service: a multipart POST with the label as
// a JPEG in the "file" field, answered by {"serial_number", "confidence"}.
type HTTP struct {
	endpoint    string
	apiKey      string
	jpegQuality int
	client      *http.Client
}

// HTTPOption configures the HTTP provider.
type HTTPOption func(*HTTP)

// WithAPIKey sends a bearer token with every request.
func WithAPIKey(key string) HTTPOption {
	return func(h *HTTP) { h.apiKey = key }
}

// WithTimeout overrides the 10s request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		if d > 0 {
			h.client.Timeout = d
		}
	}
}

// WithJPEGQuality sets the upload JPEG quality.
func WithJPEGQuality(q int) HTTPOption {
	return func(h *HTTP) { h.jpegQuality = q }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// NewHTTP creates the remote OCR provider.
func NewHTTP(endpoint string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		endpoint:    endpoint,
		jpegQuality: imaging.DefaultJPEGQuality,
		client:      &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements Provider.
func (h *HTTP) Name() string { return "http" }

type scanResponse struct {
	SerialNumber *string  `json:"serial_number"`
	Confidence   *float64 `json:"confidence"`
}

// Read implements Provider.
func (h *HTTP) Read(ctx context.Context, img image.Image) (Reading, error) {
	data, err := imaging.EncodeJPEG(img, h.jpegQuality)
	if err != nil {
		return Reading{}, eris.Wrap(err, "ocr: encode upload")
	}

	body, contentType, err := multipartJPEG(data)
	if err != nil {
		return Reading{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, body)
	if err != nil {
		return Reading{}, eris.Wrap(err, "ocr: create request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Reading{}, eris.Wrap(err, "ocr: call service")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Reading{}, eris.Wrap(err, "ocr: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Reading{}, eris.Wrap(&resilience.StatusError{
			Service:    "ocr",
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}, "ocr: call service")
	}

	var sr scanResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return Reading{}, eris.Wrap(err, "ocr: unmarshal response")
	}

	var r Reading
	if sr.SerialNumber != nil {
		r.Serial = *sr.SerialNumber
	}
	if sr.Confidence != nil {
		r.Confidence = *sr.Confidence
	}
	return r, nil
}

func multipartJPEG(data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	hdr.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(hdr)
	if err != nil {
		return nil, "", eris.Wrap(err, "ocr: create multipart part")
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", eris.Wrap(err, "ocr: write multipart part")
	}
	if err := w.Close(); err != nil {
		return nil, "", eris.Wrap(err, "ocr: close multipart writer")
	}
	return &buf, w.FormDataContentType(), nil
}
