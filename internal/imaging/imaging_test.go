package imaging_test

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"matte/internal/imaging"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestDecodeSupportedFormats(t *testing.T) {
	dir := t.TempDir()
	src := solidImage(8, 6, color.NRGBA{R: 200, G: 10, B: 10, A: 255})

	writers := map[string]func(*os.File) error{
		"sample.png":  func(f *os.File) error { return png.Encode(f, src) },
		"sample.jpg":  func(f *os.File) error { return jpeg.Encode(f, src, nil) },
		"sample.bmp":  func(f *os.File) error { return bmp.Encode(f, src) },
		"sample.tiff": func(f *os.File) error { return tiff.Encode(f, src, nil) },
	}

	for name, write := range writers {
		path := filepath.Join(dir, name)
		file, err := os.Create(path)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if err := write(file); err != nil {
			t.Fatalf("encode %s: %v", name, err)
		}
		if err := file.Close(); err != nil {
			t.Fatalf("close %s: %v", name, err)
		}

		img, err := imaging.Decode(path)
		if err != nil {
			t.Fatalf("Decode(%s) returned error: %v", name, err)
		}
		if got := img.Bounds(); got.Dx() != 8 || got.Dy() != 6 {
			t.Fatalf("Decode(%s) bounds = %v, want 8x6", name, got)
		}
	}
}

func TestDecodeCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(path, []byte("this is not an image"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := imaging.Decode(path); err == nil {
		t.Fatal("expected decode error for corrupt file")
	}
}

func TestDecodeMissingFile(t *testing.T) {
	if _, err := imaging.Decode(filepath.Join(t.TempDir(), "absent.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestResizeWithinDownscales(t *testing.T) {
	src := solidImage(800, 600, color.NRGBA{A: 255})
	out := imaging.ResizeWithin(src, 400)
	b := out.Bounds()
	if b.Dx() != 400 || b.Dy() != 300 {
		t.Fatalf("bounds = %dx%d, want 400x300", b.Dx(), b.Dy())
	}
}

func TestResizeWithinNeverUpscales(t *testing.T) {
	src := solidImage(300, 200, color.NRGBA{A: 255})
	out := imaging.ResizeWithin(src, 400)
	if out != image.Image(src) {
		t.Fatal("image within bound should be returned unchanged")
	}
}

func TestResizeWithinDisabled(t *testing.T) {
	src := solidImage(800, 600, color.NRGBA{A: 255})
	if out := imaging.ResizeWithin(src, 0); out != image.Image(src) {
		t.Fatal("maxDim <= 0 should disable resizing")
	}
}

func TestResizeWithinKeepsExtremeAspectRatios(t *testing.T) {
	src := solidImage(2000, 2, color.NRGBA{A: 255})
	out := imaging.ResizeWithin(src, 400)
	b := out.Bounds()
	if b.Dx() != 400 {
		t.Fatalf("width = %d, want 400", b.Dx())
	}
	if b.Dy() < 1 {
		t.Fatalf("height collapsed to %d", b.Dy())
	}
}

func TestToNRGBAConvertsAndPreservesPixels(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	want := color.NRGBA{R: 10, G: 20, B: 30, A: 255}
	src.Set(2, 2, want)

	out := imaging.ToNRGBA(src)
	if _, ok := interface{}(out).(*image.NRGBA); !ok {
		t.Fatal("expected NRGBA output")
	}
	if got := out.NRGBAAt(2, 2); got != want {
		t.Fatalf("pixel = %+v, want %+v", got, want)
	}
}

func TestToNRGBAPassthrough(t *testing.T) {
	src := solidImage(2, 2, color.NRGBA{A: 255})
	if out := imaging.ToNRGBA(src); out != src {
		t.Fatal("NRGBA input should be returned unchanged")
	}
}

func TestEncodePNGRoundTrip(t *testing.T) {
	src := solidImage(5, 5, color.NRGBA{R: 1, G: 2, B: 3, A: 128})
	data, err := imaging.EncodePNGBytes(src)
	if err != nil {
		t.Fatalf("EncodePNGBytes returned error: %v", err)
	}
	decoded, err := imaging.DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes returned error: %v", err)
	}
	got := imaging.ToNRGBA(decoded).NRGBAAt(3, 3)
	if got != (color.NRGBA{R: 1, G: 2, B: 3, A: 128}) {
		t.Fatalf("round trip pixel = %+v", got)
	}
}
