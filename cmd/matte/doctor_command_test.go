package main

import (
	"testing"
)

func TestDoctorAllChecksPass(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	requireContains(t, out, "All checks passed")
	requireContains(t, out, "Backend (cli)")
	requireContains(t, out, "rembg")
}

func TestDoctorReportsMissingBackend(t *testing.T) {
	env := setupCLITestEnv(t)
	// Drop the stub from PATH so the backend binary cannot resolve.
	t.Setenv("PATH", t.TempDir())

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err == nil {
		t.Fatal("expected doctor to fail without the backend binary")
	}
	requireContains(t, err.Error(), "checks failed")
	requireContains(t, out, "FAIL")
}
