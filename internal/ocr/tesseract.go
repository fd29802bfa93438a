package ocr

import (
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
)

// labelContrast boosts faded or glossy label prints before recognition.
const labelContrast = 0.3

// preprocess converts img to a high-contrast grayscale image.
func preprocess(img image.Image) image.Image {
	return adjust.Contrast(effect.Grayscale(img), labelContrast)
}
