package rembg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"strings"
	"testing"

	"matte/internal/services"
)

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 120, G: 30, B: 30, A: 255})
		}
	}
	return img
}

func stubCommand(t *testing.T, mode string, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append([]string(nil), args...)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "REMBG_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestNewCLIDefaults(t *testing.T) {
	cli := NewCLI()
	if cli.binary != "rembg" {
		t.Fatalf("binary = %q, want rembg", cli.binary)
	}
	if cli.model != "isnet-general-use" {
		t.Fatalf("model = %q, want isnet-general-use", cli.model)
	}
}

func TestNewCLIOptions(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/rembg"), WithModel("u2net"))
	if cli.binary != "/opt/rembg" {
		t.Fatalf("binary override not applied: %q", cli.binary)
	}
	if cli.model != "u2net" {
		t.Fatalf("model override not applied: %q", cli.model)
	}
}

func TestCLIRemovePassesModelAndReturnsBytes(t *testing.T) {
	var args []string
	stubCommand(t, "success", &args)

	cli := NewCLI(WithModel("u2net"))
	result, err := cli.Remove(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if len(result.Raw) == 0 {
		t.Fatal("expected raw bytes from backend")
	}
	if result.Img != nil {
		t.Fatal("CLI backend should return raw bytes, not a decoded image")
	}

	img, err := result.Image()
	if err != nil {
		t.Fatalf("Image normalization failed: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Fatalf("unexpected normalized bounds: %v", img.Bounds())
	}

	want := []string{"i", "-m", "u2net"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestCLIRemoveFailureIsTransformError(t *testing.T) {
	stubCommand(t, "failure", nil)

	cli := NewCLI()
	_, err := cli.Remove(context.Background(), testImage())
	if !errors.Is(err, services.ErrTransform) {
		t.Fatalf("expected transform error, got %v", err)
	}
	if !strings.Contains(err.Error(), "model load failed") {
		t.Fatalf("expected stderr detail in error, got %q", err.Error())
	}
}

func TestCLIRemoveEmptyOutputIsTransformError(t *testing.T) {
	stubCommand(t, "empty", nil)

	cli := NewCLI()
	_, err := cli.Remove(context.Background(), testImage())
	if !errors.Is(err, services.ErrTransform) {
		t.Fatalf("expected transform error for empty output, got %v", err)
	}
}

func TestCLICheckMissingBinaryIsConfigurationError(t *testing.T) {
	cli := NewCLI(WithBinary("matte-test-no-such-binary"))
	err := cli.Check(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestResultPrefersDecodedImage(t *testing.T) {
	img := testImage()
	result := Result{Img: img, Raw: []byte("ignored")}
	got, err := result.Image()
	if err != nil {
		t.Fatalf("Image returned error: %v", err)
	}
	if got != image.Image(img) {
		t.Fatal("expected decoded image to take precedence over raw bytes")
	}
}

func TestResultEmptyIsError(t *testing.T) {
	if _, err := (Result{}).Image(); err == nil {
		t.Fatal("expected error for empty result")
	}
}

func TestResultRejectsGarbageBytes(t *testing.T) {
	if _, err := (Result{Raw: []byte("not an image")}).Image(); err == nil {
		t.Fatal("expected decode error for garbage bytes")
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("REMBG_HELPER_MODE") {
	case "success":
		img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
		if err := png.Encode(os.Stdout, img); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "model load failed")
		os.Exit(1)
	case "empty":
		os.Exit(0)
	default:
		os.Exit(0)
	}
}
