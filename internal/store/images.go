package store

import (
	"image"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/serialscan/internal/imaging"
)

// ImageQuality is the JPEG quality of stored case images.
const ImageQuality = 92

// ImageDir writes case images as <id>.jpg under a directory.
type ImageDir struct {
	dir string
}

// NewImageDir creates an ImageDir rooted at dir.
func NewImageDir(dir string) *ImageDir {
	return &ImageDir{dir: dir}
}

// SaveImage encodes img as JPEG and returns the written path.
func (d *ImageDir) SaveImage(id string, img image.Image) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "store: create image dir %s", d.dir)
	}
	path := filepath.Join(d.dir, id+".jpg")
	if err := imaging.SaveJPEG(img, path, ImageQuality); err != nil {
		return "", eris.Wrapf(err, "store: save image %s", id)
	}
	return path, nil
}
