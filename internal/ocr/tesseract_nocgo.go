//go:build !cgo

package ocr

import (
	"context"
	"image"

	"github.com/rotisserie/eris"
)

// Tesseract is unavailable in builds without cgo.
type Tesseract struct{}

// NewTesseract reports that this binary was built without Tesseract support.
func NewTesseract(string) (*Tesseract, error) {
	return nil, eris.New("ocr: tesseract provider requires a cgo build")
}

// Name implements Provider.
func (t *Tesseract) Name() string { return "tesseract" }

// Read implements Provider.
func (t *Tesseract) Read(context.Context, image.Image) (Reading, error) {
	return Reading{}, eris.New("ocr: tesseract provider requires a cgo build")
}
