package services_test

import (
	"errors"
	"strings"
	"testing"

	"matte/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrDecode, "transformer", "decode", "unreadable", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transformer", "decode", "unreadable"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransform(t *testing.T) {
	err := services.Wrap(nil, "backend", "remove", "no data", nil)
	if !errors.Is(err, services.ErrTransform) {
		t.Fatalf("expected transform marker fallback, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.FailureKind
	}{
		{"nil", nil, services.FailureUnknown},
		{"configuration", services.Wrap(services.ErrConfiguration, "resolver", "discover", "missing", nil), services.FailureConfiguration},
		{"decode", services.Wrap(services.ErrDecode, "transformer", "decode", "corrupt", nil), services.FailureDecode},
		{"transform", services.Wrap(services.ErrTransform, "backend", "remove", "exit 1", nil), services.FailureTransform},
		{"write", services.Wrap(services.ErrWrite, "transformer", "encode", "disk full", nil), services.FailureWrite},
		{"untagged", errors.New("plain"), services.FailureUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Classify(tc.err); got != tc.want {
				t.Fatalf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	fatal := services.Wrap(services.ErrConfiguration, "resolver", "discover", "not a directory", nil)
	if !services.IsFatal(fatal) {
		t.Fatalf("expected configuration error to be fatal: %v", fatal)
	}
	item := services.Wrap(services.ErrWrite, "transformer", "encode", "denied", nil)
	if services.IsFatal(item) {
		t.Fatalf("write error must stay item-scoped: %v", item)
	}
}
