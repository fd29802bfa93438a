// Package imaging decodes, resizes and re-encodes label photographs for the
// OCR and vision-model stages.
package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/rotisserie/eris"
)

// DefaultJPEGQuality is used when a caller passes a quality outside 1..100.
const DefaultJPEGQuality = 90

// Decode reads a JPEG, PNG or GIF image, applying EXIF orientation so phone
// photographs arrive upright.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, eris.Wrap(err, "imaging: decode")
	}
	return img, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, eris.New("imaging: empty image")
	}
	return Decode(bytes.NewReader(data))
}

// Open decodes the image file at path.
func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, eris.Wrapf(err, "imaging: open %s", path)
	}
	return img, nil
}

// Fit downscales img so neither side exceeds maxDim, keeping the aspect
// ratio. Smaller images and a non-positive maxDim return img unchanged.
func Fit(img image.Image, maxDim int) image.Image {
	if maxDim <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}

// EncodeJPEG encodes img as JPEG at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, eris.Wrap(err, "imaging: encode jpeg")
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, eris.Wrap(err, "imaging: encode png")
	}
	return buf.Bytes(), nil
}

// Base64PNG returns img as base64-encoded PNG, the form vision models accept
// inline.
func Base64PNG(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// SaveJPEG writes img to path as JPEG.
func SaveJPEG(img image.Image, path string, quality int) error {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return eris.Wrapf(err, "imaging: save %s", path)
	}
	return nil
}
