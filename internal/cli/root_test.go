package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"dicomvol/internal/dicomtest"
	"dicomvol/pkg/dicomio"
	"dicomvol/pkg/transfer"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(&out, &errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func decodeJSON(t *testing.T, s string) transfer.Pair {
	t.Helper()
	var p transfer.Pair
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, s)
	}
	return p
}

func TestSetVersion(t *testing.T) {
	oldVersion, oldCommit := version, commit
	t.Cleanup(func() { SetVersion(oldVersion, oldCommit) })

	SetVersion("1.2.0", "abc123")
	out, _, err := execute(t, "--version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "dicomvol 1.2.0") || !strings.Contains(out, "commit: abc123") {
		t.Errorf("version output = %q", out)
	}
}

func TestRootRequiresDirectory(t *testing.T) {
	if _, _, err := execute(t); err == nil {
		t.Error("expected error without a directory argument")
	}
}

func TestRootNoImages(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	_, _, err := execute(t, dir)
	if !errors.Is(err, dicomio.ErrNoImages) {
		t.Errorf("error = %v, want ErrNoImages", err)
	}
}

func TestRootMissingDirectory(t *testing.T) {
	if _, _, err := execute(t, filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func writeSeries(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := dicomtest.WriteAll(dir, dicomtest.Series()); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRootLoadsSeries(t *testing.T) {
	dir := writeSeries(t)

	tests := []struct {
		args      []string
		preset    string
		low, high float64
	}{
		// Intercept -1024 shifts every landmark up by 1024.
		{[]string{dir, "--format", "json"}, "soft", 864, 1264},
		{[]string{dir, "--preset", "lung", "--format", "json"}, "lung", -326, 1174},
		{[]string{dir, "--bone-only", "--format", "json"}, "bone-only", 1274, 4024},
	}
	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			out, logs, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("execute: %v\n%s", err, logs)
			}
			p := decodeJSON(t, out)
			if p.Preset != tt.preset {
				t.Errorf("preset = %q, want %q", p.Preset, tt.preset)
			}
			if lo, hi := p.Color[0].Scalar, p.Color[len(p.Color)-1].Scalar; lo != tt.low || hi != tt.high {
				t.Errorf("colour range = [%g, %g], want [%g, %g]", lo, hi, tt.low, tt.high)
			}
			if !strings.Contains(logs, "loaded DICOM volume") {
				t.Errorf("expected load summary in logs, got %q", logs)
			}
		})
	}
}

func TestRootTruncatedSeriesFails(t *testing.T) {
	dir := writeSeries(t)
	path := filepath.Join(dir, "IM1.dcm")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, info.Size()-4); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, dir, "--format", "json")
	if err == nil {
		t.Fatalf("expected error for truncated image, got output %s", out)
	}
	if !strings.Contains(err.Error(), "IM1.dcm") {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestPreviewWritesSlice(t *testing.T) {
	dir := writeSeries(t)
	outDir := filepath.Join(t.TempDir(), "previews")

	out, logs, err := execute(t, "preview", dir, "--preset", "bone", "--out", outDir)
	if err != nil {
		t.Fatalf("execute: %v\n%s", err, logs)
	}
	want := filepath.Join(outDir, "slice_z_001.png")
	if strings.TrimSpace(out) != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("preview not written: %v", err)
	}
}

func TestTFPresets(t *testing.T) {
	tests := []struct {
		args      []string
		preset    string
		low, high float64
	}{
		{[]string{"tf", "--format", "json"}, "soft", -160, 240},
		{[]string{"tf", "--preset", "bone", "--format", "json"}, "bone", -450, 1050},
		{[]string{"tf", "--preset=lung", "--format=json"}, "lung", -1350, 150},
		{[]string{"tf", "--preset", "soft", "--intercept=-1024", "--format", "json"}, "soft", 864, 1264},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			p := decodeJSON(t, out)
			if p.Preset != tt.preset {
				t.Errorf("preset = %q, want %q", p.Preset, tt.preset)
			}
			if lo, hi := p.Color[0].Scalar, p.Color[len(p.Color)-1].Scalar; lo != tt.low || hi != tt.high {
				t.Errorf("colour range = [%g, %g], want [%g, %g]", lo, hi, tt.low, tt.high)
			}
		})
	}
}

func TestTFBoneOnlyFlagWins(t *testing.T) {
	out, _, err := execute(t, "tf", "--preset=lung", "--bone-only", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	if p := decodeJSON(t, out); p.Preset != transfer.PresetBoneOnly {
		t.Errorf("preset = %q, want bone-only", p.Preset)
	}
}

func TestTFUnknownPresetWarns(t *testing.T) {
	out, logs, err := execute(t, "tf", "--preset", "xyz", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	if p := decodeJSON(t, out); p.Preset != transfer.PresetSoft {
		t.Errorf("preset = %q, want soft", p.Preset)
	}
	if !strings.Contains(logs, "unknown preset") {
		t.Errorf("expected warning in logs, got %q", logs)
	}
}

func TestTFTable(t *testing.T) {
	out, _, err := execute(t, "tf", "--preset", "cinematic")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"cinematic", "colour", "opacity", "-1000.00", "3000.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestTFYAML(t *testing.T) {
	out, _, err := execute(t, "tf", "--bone-only", "--bone-only-variant", "dense", "--format", "yaml")
	if err != nil {
		t.Fatal(err)
	}
	var p transfer.Pair
	if err := yaml.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, out)
	}
	if p.Opacity[0].Scalar != 180 || p.Opacity[len(p.Opacity)-1].Opacity != 0.98 {
		t.Errorf("dense variant not applied: %+v", p.Opacity)
	}
}

func TestTFInvalidFormat(t *testing.T) {
	if _, _, err := execute(t, "tf", "--format", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestPresetsCommand(t *testing.T) {
	out, _, err := execute(t, "presets")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"soft", "bone", "lung", "bone-only", "cinematic", "[-160, 240] HU"} {
		if !strings.Contains(out, want) {
			t.Errorf("presets output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigFileWindows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dicomvol.yaml")
	data := "preset:\n  windows:\n    brain: {center: 40, width: 80}\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, "--config", path, "tf", "--preset", "brain", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	p := decodeJSON(t, out)
	if p.Preset != "brain" || p.Color[0].Scalar != 0 || p.Color[3].Scalar != 80 {
		t.Errorf("brain window not applied: %+v", p.Color)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dicomvol.toml")
	if _, _, err := execute(t, "config", "init", path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, _, err := execute(t, "config", "init", path); err == nil {
		t.Error("expected error when the file exists")
	}
	if _, _, err := execute(t, "--config", path, "tf", "--format", "json"); err != nil {
		t.Errorf("generated config does not load: %v", err)
	}
}

func TestPreviewRequiresDirectory(t *testing.T) {
	if _, _, err := execute(t, "preview"); err == nil {
		t.Error("expected error without a directory argument")
	}
	if _, _, err := execute(t, "preview", t.TempDir(), "--axis", "w"); err == nil {
		t.Error("expected error for invalid axis")
	}
}

func TestMiddleIndex(t *testing.T) {
	if got := middleIndex(10, 20, 31, "x"); got != 5 {
		t.Errorf("x = %d", got)
	}
	if got := middleIndex(10, 20, 31, "y"); got != 10 {
		t.Errorf("y = %d", got)
	}
	if got := middleIndex(10, 20, 31, "z"); got != 15 {
		t.Errorf("z = %d", got)
	}
}
