package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp"}

// Output formats accepted by EncodeImage.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
)

// DefaultQuality is used for lossy encoders when no quality is given.
const DefaultQuality = 90

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// FormatFromPath derives an output format from a file extension, defaulting to PNG.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".webp":
		return FormatWebP
	default:
		return FormatPNG
	}
}

// NormalizeFormat validates a user-supplied format name.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// ContentType returns the MIME type for an output format.
func ContentType(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path        string
	Format      string
	SizeBytes   int64
	Width       int
	Height      int
	AspectRatio float64
}

// LoadImage opens and decodes an image file, returning the image and metadata.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		err := &ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
		return nil, ImageMetadata{}, err
	}
	if !IsSupportedImage(path) {
		err := &ImageProcessingError{Operation: "load", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
		return nil, ImageMetadata{}, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: err}
	}

	img, format, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, ImageMetadata{}, err
	}

	b := img.Bounds()
	meta := ImageMetadata{
		Path:        path,
		Format:      format,
		SizeBytes:   int64(len(data)),
		Width:       b.Dx(),
		Height:      b.Dy(),
		AspectRatio: float64(b.Dx()) / float64(b.Dy()),
	}
	return img, meta, nil
}

// DecodeImage decodes any registered image format from r.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", &ImageProcessingError{Operation: "decode", Err: err}
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", &ImageProcessingError{Operation: "decode", Err: errors.New("image has zero size")}
	}
	return img, format, nil
}

// EncodeImage writes img to w in the given format. Quality applies to JPEG
// and WebP; WebP with quality 100 is encoded lossless.
func EncodeImage(w io.Writer, img image.Image, format string, quality int) error {
	if quality <= 0 {
		quality = DefaultQuality
	}
	quality = clampInt(quality, 1, 100)

	var err error
	switch format {
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case FormatWebP:
		err = webp.Encode(w, img, &webp.Options{Lossless: quality == 100, Quality: float32(quality)})
	case FormatPNG, "":
		err = png.Encode(w, img)
	default:
		err = fmt.Errorf("unsupported output format: %s", format)
	}
	if err != nil {
		return &ImageProcessingError{Operation: "encode", Err: err}
	}
	return nil
}

// SaveImage encodes img to path, choosing the format from the extension.
func SaveImage(path string, img image.Image, quality int) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return &ImageProcessingError{Operation: "save", Err: err}
		}
	}
	var buf bytes.Buffer
	if err := EncodeImage(&buf, img, FormatFromPath(path), quality); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	return nil
}
