//go:build blackbox

package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var fxpilotBin string

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "fxpilot-blackbox-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmp)

	fxpilotBin = filepath.Join(tmp, "fxpilot")

	// Build the binary once for all tests.
	cmd := exec.Command("go", "build", "-o", fxpilotBin, ".")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

func run(t *testing.T, args ...string) string {
	t.Helper()

	cmd := exec.Command(fxpilotBin, args...)
	cmd.Env = append(os.Environ(), "OANDA_TOKEN=", "OANDA_ACCOUNT_ID=")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("command failed: %v\nargs: %v\noutput:\n%s", err, args, string(out))
	}
	return string(out)
}

func TestConfigInitValidateAndPreview(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fxpilot.yaml")

	out := run(t, "config", "init", "-o", path)
	if !strings.Contains(out, "Created default configuration") {
		t.Fatalf("unexpected init output:\n%s", out)
	}

	out = run(t, "config", "validate", "-f", path)
	if !strings.Contains(out, "Configuration valid") || !strings.Contains(out, "Exit mode: bracket") {
		t.Fatalf("unexpected validate output:\n%s", out)
	}

	out = run(t, "signals", "-f", path, "--plan")
	for _, want := range []string{"EUR_USD", "BUY", "GBP_USD", "SELL", "TARGET"} {
		if !strings.Contains(out, want) {
			t.Fatalf("signals output missing %q:\n%s", want, out)
		}
	}
}

func TestVersion(t *testing.T) {
	out := run(t, "version")
	if !strings.Contains(out, "fxpilot version") {
		t.Fatalf("unexpected version output:\n%s", out)
	}
}
