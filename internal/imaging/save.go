package imaging

import (
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// DefaultQuality is the JPEG/WebP quality used when none is configured.
const DefaultQuality = 95

// CanEncode reports whether Encode can write the format implied by ext
// (with or without the leading dot).
func CanEncode(ext string) bool {
	ext = NormalizeExt(ext)
	if ext == ".webp" {
		return true
	}
	_, err := imaging.FormatFromExtension(ext)
	return err == nil
}

// Encode writes img to w in the format implied by ext. Quality applies to
// JPEG and lossy WebP; values outside 1-100 fall back to DefaultQuality.
func Encode(w io.Writer, img image.Image, ext string, quality int) error {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	ext = NormalizeExt(ext)
	if ext == ".webp" {
		if err := webp.Encode(w, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return fmt.Errorf("failed to encode webp: %w", err)
		}
		return nil
	}

	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return fmt.Errorf("unsupported output format %q: %w", ext, err)
	}
	if err := imaging.Encode(w, img, format, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("failed to encode %s: %w", ext, err)
	}
	return nil
}

// ExtFor returns the extension an output derived from name should use: the
// source extension when it can be encoded, fallback otherwise.
func ExtFor(name, fallback string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != "" && CanEncode(ext) {
		return ext
	}
	return NormalizeExt(fallback)
}

// NormalizeExt lowercases ext and adds the leading dot when missing.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
