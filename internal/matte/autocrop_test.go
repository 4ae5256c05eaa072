package matte

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func fillNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestCropTransparent(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 6, 5))
	img.SetNRGBA(2, 1, color.NRGBA{10, 10, 10, 1})
	img.SetNRGBA(4, 3, color.NRGBA{200, 0, 0, 255})

	out, r, err := Crop(img, Transparent)
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	if want := image.Rect(2, 1, 5, 4); r != want {
		t.Fatalf("expected crop rect %v, got %v", want, r)
	}
	if out.Bounds() != image.Rect(0, 0, 3, 3) {
		t.Fatalf("expected zero-origin 3x3 image, got %v", out.Bounds())
	}
	if got := out.NRGBAAt(2, 2); got != (color.NRGBA{200, 0, 0, 255}) {
		t.Errorf("expected bottom-right content pixel preserved, got %v", got)
	}
}

func TestCropIsIdempotent(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	img.SetNRGBA(1, 6, color.NRGBA{1, 2, 3, 255})
	img.SetNRGBA(5, 2, color.NRGBA{4, 5, 6, 128})

	once, _, err := Crop(img, Transparent)
	if err != nil {
		t.Fatalf("first Crop: %v", err)
	}
	twice, r, err := Crop(once, Transparent)
	if err != nil {
		t.Fatalf("second Crop: %v", err)
	}
	if r != once.Bounds() {
		t.Fatalf("expected second crop to keep %v, got %v", once.Bounds(), r)
	}
	if string(once.Pix) != string(twice.Pix) {
		t.Fatalf("second crop changed pixel data")
	}
}

func TestCropSolidBorder(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	img := fillNRGBA(30, 30, color.NRGBA{255, 0, 0, 255})
	for y := 10; y < 20; y++ {
		for x := 10; x < 20; x++ {
			img.SetNRGBA(x, y, color.NRGBA{10, 200, 30, 255})
		}
	}

	out, r, err := Crop(img, Solid(red))
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	if want := image.Rect(10, 10, 20, 20); r != want {
		t.Fatalf("expected crop rect %v, got %v", want, r)
	}
	if s := out.Bounds().Size(); s != image.Pt(10, 10) {
		t.Fatalf("expected 10x10 result, got %v", s)
	}
}

func TestSolidRequiresEveryChannelToDiffer(t *testing.T) {
	bg := Solid(color.RGBA{255, 0, 0, 255})
	cases := []struct {
		r, g, b uint8
		matches bool
	}{
		{255, 0, 0, true},
		{255, 10, 10, true},
		{0, 0, 255, true},
		{0, 255, 255, false},
		{10, 200, 30, false},
	}
	for _, tc := range cases {
		if got := bg.Matches(tc.r, tc.g, tc.b, 255); got != tc.matches {
			t.Errorf("Matches(%d,%d,%d): expected %v, got %v", tc.r, tc.g, tc.b, tc.matches, got)
		}
	}
}

func TestCropAllBackground(t *testing.T) {
	if _, _, err := Crop(image.NewNRGBA(image.Rect(0, 0, 4, 4)), Transparent); !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent for transparent image, got %v", err)
	}
	blue := fillNRGBA(3, 3, color.NRGBA{0, 0, 255, 255})
	if _, _, err := Crop(blue, Solid(color.RGBA{0, 0, 255, 255})); !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent for solid image, got %v", err)
	}
}

func TestBoundsSinglePixel(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 5, 5))
	img.SetNRGBA(4, 4, color.NRGBA{0, 0, 0, 255})

	r, ok := Bounds(img, Transparent)
	if !ok {
		t.Fatalf("expected content to be found")
	}
	if want := image.Rect(4, 4, 5, 5); r != want {
		t.Fatalf("expected %v, got %v", want, r)
	}
}
