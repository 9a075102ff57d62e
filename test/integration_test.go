// ABOUTME: Integration tests for full workflow
// ABOUTME: Builds the CLI and drives it end-to-end against a temp data dir

package test

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

type servedPosition struct {
	Coords struct {
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		Accuracy  *float64 `json:"accuracy"`
	} `json:"coords"`
}

func TestFullWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	projectRoot, err := filepath.Abs("..")
	if err != nil {
		t.Fatalf("Failed to get project root: %v", err)
	}

	binary := filepath.Join(t.TempDir(), "locguard")
	buildCmd := exec.Command("go", "build", "-o", binary, "./cmd/locguard")
	buildCmd.Dir = projectRoot
	buildOutput, err := buildCmd.CombinedOutput()
	if err != nil {
		t.Fatalf("Failed to build: %v\nOutput: %s", err, buildOutput)
	}

	home := t.TempDir()
	run := func(args ...string) (string, error) {
		cmd := exec.Command(binary, args...)
		cmd.Env = append(os.Environ(),
			"XDG_CONFIG_HOME="+filepath.Join(home, "config"),
			"XDG_DATA_HOME="+filepath.Join(home, "data"),
			"LOCGUARD_BACKEND=sqlite",
			"LOCGUARD_LOG_LEVEL=warn",
		)
		output, err := cmd.CombinedOutput()
		return string(output), err
	}

	locate := func(url string) servedPosition {
		t.Helper()
		output, err := run("locate", url, "--lat", "41.8781", "--lng", "-87.6298", "--accuracy", "20", "--json")
		if err != nil {
			t.Fatalf("Failed to locate: %v\n%s", err, output)
		}
		var pos servedPosition
		if err := json.Unmarshal([]byte(output), &pos); err != nil {
			t.Fatalf("locate output is not JSON: %v\n%s", err, output)
		}
		return pos
	}

	// Default level perturbs and caches.
	first := locate("https://news.example/")
	if first.Coords.Latitude == 41.8781 && first.Coords.Longitude == -87.6298 {
		t.Error("expected a noisy position at the default level")
	}
	if first.Coords.Accuracy == nil || *first.Coords.Accuracy <= 20 {
		t.Errorf("expected inflated accuracy, got %v", first.Coords.Accuracy)
	}
	second := locate("https://other.example/")
	if second.Coords.Latitude != first.Coords.Latitude || second.Coords.Longitude != first.Coords.Longitude {
		t.Error("expected the cached position for the same level")
	}

	// A real domain gets the true position.
	if output, err := run("level", "set", "maps.example", "real"); err != nil {
		t.Fatalf("Failed to set level: %v\n%s", err, output)
	}
	exact := locate("https://maps.example/route")
	if exact.Coords.Latitude != 41.8781 || exact.Coords.Longitude != -87.6298 {
		t.Errorf("expected the real position, got %+v", exact.Coords)
	}

	// Frames are never allowed the real location.
	output, err := run("allowed", "https://widget.example/", "--frame", "--top-url", "https://maps.example/")
	if err != nil {
		t.Fatalf("Failed to check allowed: %v\n%s", err, output)
	}
	if !strings.Contains(output, "denied") {
		t.Errorf("expected frame to be denied, got %q", output)
	}

	// Invalid levels are rejected.
	if output, err := run("level", "default", "bogus"); err == nil {
		t.Errorf("expected bogus level to fail, got %q", output)
	}

	output, err = run("status")
	if err != nil {
		t.Fatalf("Failed to get status: %v\n%s", err, output)
	}
	if !strings.Contains(output, "medium") {
		t.Errorf("expected cached medium level in status, got %q", output)
	}

	output, err = run("history", "--geojson")
	if err != nil {
		t.Fatalf("Failed to get history: %v\n%s", err, output)
	}
	if !strings.Contains(output, "FeatureCollection") || !strings.Contains(output, "maps.example") {
		t.Errorf("unexpected history output %q", output)
	}

	t.Log("Integration test passed!")
}
