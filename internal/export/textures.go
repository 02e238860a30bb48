package export

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"

	"z64import/internal/texel"
)

// TexturesDir is the subdirectory textures are written to.
const TexturesDir = "textures"

// Supported texture file formats.
const (
	FormatTGA  = "tga"
	FormatWebP = "webp"
)

// TextureFile returns the path, relative to the output directory, of the
// file img is written to. Fallback textures get "fallback_" inserted after
// prefix so they can be found and fixed by hand.
func TextureFile(img *texel.Image, prefix, format string) string {
	name := img.Name
	if img.Fallback {
		name = prefix + "fallback_" + strings.TrimPrefix(name, prefix)
	}
	return filepath.Join(TexturesDir, sanitize(name)+"."+format)
}

// sanitize maps characters that are not portable in file names.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

// EncodeTexture writes img in the given format.
func EncodeTexture(w io.Writer, img image.Image, format string) error {
	switch format {
	case FormatTGA:
		return tga.Encode(w, img)
	case FormatWebP:
		return nativewebp.Encode(w, img, nil)
	}
	return fmt.Errorf("export: unknown texture format %q", format)
}

// WriteTexture encodes img under dir and returns its relative path.
func WriteTexture(dir string, img *texel.Image, prefix, format string) (string, error) {
	rel := TextureFile(img, prefix, format)
	outPath := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return "", err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := EncodeTexture(f, img.Pix, format); err != nil {
		return "", fmt.Errorf("export: encode %s: %w", rel, err)
	}
	return rel, nil
}
