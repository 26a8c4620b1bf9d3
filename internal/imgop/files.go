package imgop

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff"

	"docauto/internal/render"
)

// Load decodes a PNG, JPEG or TIFF image from path.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// SavePNG writes img to path as PNG, creating the parent directory.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// SuffixPath inserts suffix before the extension of path: a/b.png -> a/b_crop.png.
func SuffixPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// outputOrDefault returns out, or a PNG path next to in carrying suffix.
func outputOrDefault(in, out, suffix string) string {
	if out != "" {
		return out
	}
	p := SuffixPath(in, suffix)
	return strings.TrimSuffix(p, filepath.Ext(p)) + ".png"
}

// TransparentFile converts white pixels of the image at in to transparency and saves the
// result as PNG. An empty out writes next to the input with a "_trans" suffix. It returns
// the output path.
func TransparentFile(in, out string, threshold uint8) (string, error) {
	img, err := Load(in)
	if err != nil {
		return "", err
	}
	out = outputOrDefault(in, out, "_trans")
	return out, SavePNG(out, WhiteToTransparent(img, threshold))
}

// MergeFiles merges two image files and saves the lossless result to out.
func MergeFiles(transparentPath, backgroundPath, out string, opts MergeOptions) error {
	fg, err := Load(transparentPath)
	if err != nil {
		return err
	}
	bg, err := Load(backgroundPath)
	if err != nil {
		return err
	}
	return SavePNG(out, Merge(fg, bg, opts))
}

// CropFile crops the image at in by margins. An empty out writes next to the input with
// a "_crop" suffix. It returns the output path.
func CropFile(in, out string, m render.Margins) (string, error) {
	img, err := Load(in)
	if err != nil {
		return "", err
	}
	cropped, err := render.Crop(img, m)
	if err != nil {
		return "", err
	}
	out = outputOrDefault(in, out, "_crop")
	return out, SavePNG(out, cropped)
}

// OverlayRectangleFile paints the margin box on the image at in. An empty out writes next
// to the input with an "_overlay" suffix. It returns the output path.
func OverlayRectangleFile(in, out string, m render.Margins, debug bool) (string, error) {
	img, err := Load(in)
	if err != nil {
		return "", err
	}
	painted, err := OverlayRectangle(img, m, debug)
	if err != nil {
		return "", err
	}
	out = outputOrDefault(in, out, "_overlay")
	return out, SavePNG(out, painted)
}
