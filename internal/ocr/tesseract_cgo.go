//go:build cgo

package ocr

import (
	"context"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/serialscan/internal/imaging"
)

// Tesseract recognises label text locally with the Tesseract engine.
// gosseract clients are not safe for concurrent use, so reads are serialised.
type Tesseract struct {
	mu       sync.Mutex
	language string
}

// NewTesseract creates a local Tesseract provider.
func NewTesseract(language string) (*Tesseract, error) {
	if language == "" {
		language = "eng"
	}
	return &Tesseract{language: language}, nil
}

// Name implements Provider.
func (t *Tesseract) Name() string { return "tesseract" }

// Read implements Provider.
func (t *Tesseract) Read(ctx context.Context, img image.Image) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, eris.Wrap(err, "ocr: tesseract")
	}

	data, err := imaging.EncodePNG(preprocess(img))
	if err != nil {
		return Reading{}, eris.Wrap(err, "ocr: tesseract encode")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	client := gosseract.NewClient()
	defer client.Close() //nolint:errcheck

	if err := client.SetLanguage(t.language); err != nil {
		return Reading{}, eris.Wrap(err, "ocr: tesseract set language")
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return Reading{}, eris.Wrap(err, "ocr: tesseract set image")
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Reading{}, eris.Wrap(err, "ocr: tesseract bounding boxes")
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		words = append(words, Word{Text: b.Word, Confidence: b.Confidence / 100.0})
	}
	return ParseLabel(words), nil
}
