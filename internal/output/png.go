package output

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bryanchriswhite/AlphaShot/internal/config"
	"github.com/bryanchriswhite/AlphaShot/internal/logger"
	"github.com/bryanchriswhite/AlphaShot/internal/matte"
)

// DefaultName is used when a window title has no usable characters.
const DefaultName = "AlphaShot"

// maxSuffix is the last collision suffix tried before giving up.
const maxSuffix = 9998

var (
	// ErrNoFreeName is returned when every suffixed file name is taken.
	ErrNoFreeName = errors.New("no free file name")

	flattenColor = color.RGBA{255, 255, 255, 255}
)

// Saved lists the files written for one capture.
type Saved struct {
	Path     string `json:"path"`
	FlatPath string `json:"flat_path,omitempty"`
}

// Writer saves captures as PNG files.
type Writer struct {
	dir       string
	flattened bool
}

// NewWriter creates a writer for the configured directory.
func NewWriter(cfg config.OutputConfig) *Writer {
	return &Writer{
		dir:       cfg.Directory,
		flattened: cfg.WriteFlattened,
	}
}

// Dir returns the output directory
func (w *Writer) Dir() string {
	return w.dir
}

// Save writes img under a name derived from title. Images carrying
// transparency also get an opaque companion, flattened over white, when the
// writer is configured for it.
func (w *Writer) Save(title string, img *image.NRGBA) (*Saved, error) {
	log := logger.WithComponent("output")

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	name := FileName(title)
	path, err := createUnique(w.dir, name, ".png", func(f io.Writer) error { return Encode(f, img) })
	if err != nil {
		return nil, err
	}
	saved := &Saved{Path: path}

	if w.flattened && !img.Opaque() {
		flatName := strings.TrimSuffix(filepath.Base(path), ".png") + " (flat)"
		flat, err := createUnique(w.dir, flatName, ".png", func(f io.Writer) error { return encodeFlat(f, img) })
		if err != nil {
			// Either both files exist or neither does.
			os.Remove(path)
			return nil, err
		}
		saved.FlatPath = flat
	}

	log.Info().
		Str("path", saved.Path).
		Str("flat_path", saved.FlatPath).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("Saved capture")
	return saved, nil
}

// createUnique creates dir/name+ext, or the first free "name N"+ext, and
// fills it with encode. Names taken by a concurrent writer are skipped.
func createUnique(dir, name, ext string, encode func(io.Writer) error) (string, error) {
	for i := 0; i <= maxSuffix; i++ {
		path := candidate(dir, name, ext, i)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := encode(f); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("failed to encode %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("%w for %q in %s", ErrNoFreeName, name, dir)
}

func candidate(dir, name, ext string, i int) string {
	if i == 0 {
		return filepath.Join(dir, name+ext)
	}
	return filepath.Join(dir, name+" "+strconv.Itoa(i)+ext)
}

// Encode writes img as a lossless RGBA PNG.
func Encode(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, img)
}

// encodeFlat is swapped out by tests.
var encodeFlat = EncodeFlat

// EncodeFlat writes img composited over white as an opaque PNG, for
// consumers that cannot handle transparency.
func EncodeFlat(w io.Writer, img *image.NRGBA) error {
	return Encode(w, matte.Flatten(img, flattenColor))
}

// EncodeThumbnail writes img scaled down to fit maxW x maxH.
func EncodeThumbnail(w io.Writer, img image.Image, maxW, maxH int) error {
	return Encode(w, matte.Fit(img, maxW, maxH))
}

// FileName turns a window title into a file name: characters that are
// invalid in file names on any supported system are dropped, surrounding
// space trimmed, and DefaultName used when nothing is left.
func FileName(title string) string {
	name := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(`<>:"/\|?*`, r) {
			return -1
		}
		return r
	}, title)
	name = strings.TrimSpace(name)
	// A trailing dot or space is silently stripped by Windows.
	name = strings.TrimRight(name, ". ")
	if name == "" {
		return DefaultName
	}
	return name
}
