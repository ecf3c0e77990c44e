package transfer

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

// stackTracer is implemented by errors created with github.com/pkg/errors.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

func quietBuilder(buf *bytes.Buffer) *Builder {
	return NewBuilder(nil, BoneOnlyStandard, log.NewWithOptions(buf, log.Options{Level: log.DebugLevel}))
}

func TestHUToScalarInverse(t *testing.T) {
	cals := []Calibration{
		{Slope: 1, Intercept: 0},
		{Slope: 1, Intercept: -1024},
		{Slope: 2.5, Intercept: -1000},
		{Slope: 0.5, Intercept: 12},
		{Slope: -1, Intercept: 100},
	}
	scalars := []float64{-3000, -1024, -1, 0, 1, 40, 1023.5, 4095}

	for _, cal := range cals {
		for _, s := range scalars {
			hu := s*cal.Slope + cal.Intercept
			got := cal.HUToScalar(hu)
			if math.Abs(got-s) > 1e-9 {
				t.Errorf("%+v: HUToScalar(%g) = %g, want %g", cal, hu, got, s)
			}
			if back := cal.ScalarToHU(got); math.Abs(back-hu) > 1e-9 {
				t.Errorf("%+v: ScalarToHU(%g) = %g, want %g", cal, got, back, hu)
			}
		}
	}
}

func TestZeroSlopeActsAsOne(t *testing.T) {
	zero := Calibration{Slope: 0, Intercept: -1024}
	one := Calibration{Slope: 1, Intercept: -1024}

	for _, hu := range []float64{-1000, -160, 0, 240, 3000} {
		if a, b := zero.HUToScalar(hu), one.HUToScalar(hu); a != b {
			t.Errorf("HUToScalar(%g) with slope 0 = %g, want %g", hu, a, b)
		}
	}

	p := NamedWindow{Label: PresetSoft, Window: WindowLevel{Center: 40, Width: 400}}
	if diff := cmp.Diff(p.Build(one), p.Build(zero)); diff != "" {
		t.Errorf("slope 0 pair differs from slope 1 (-want +got):\n%s", diff)
	}
}

func TestWindowPresetBounds(t *testing.T) {
	tests := []struct {
		preset    string
		low, high float64
	}{
		{PresetSoft, -160, 240},
		{PresetBone, -450, 1050},
		{PresetLung, -1350, 150},
	}

	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			p := Resolve(tt.preset, false)
			nw, ok := p.(NamedWindow)
			if !ok {
				t.Fatalf("Resolve(%q) = %T, want NamedWindow", tt.preset, p)
			}
			low, high := nw.Window.Bounds()
			if low != tt.low || high != tt.high {
				t.Errorf("Bounds() = (%g, %g), want (%g, %g)", low, high, tt.low, tt.high)
			}

			pair := p.Build(Identity)
			if got := pair.Color[0].Scalar; got != tt.low {
				t.Errorf("first colour point at %g, want %g", got, tt.low)
			}
			if got := pair.Color[len(pair.Color)-1].Scalar; got != tt.high {
				t.Errorf("last colour point at %g, want %g", got, tt.high)
			}
			if got := pair.Opacity[1].Scalar; got != tt.low {
				t.Errorf("opacity floor at %g, want %g", got, tt.low)
			}
		})
	}
}

func TestBuildWindowSoft(t *testing.T) {
	got := BuildWindow(PresetSoft, WindowLevel{Center: 40, Width: 400}, Identity)
	want := Pair{
		Preset: PresetSoft,
		Color: []ColorPoint{
			{Scalar: -160, R: 0, G: 0, B: 0},
			{Scalar: -60, R: 0.5, G: 0.5, B: 0.5},
			{Scalar: 140, R: 0.8, G: 0.8, B: 0.8},
			{Scalar: 240, R: 1, G: 1, B: 1},
		},
		Opacity: []OpacityPoint{
			{Scalar: -360, Opacity: 0},
			{Scalar: -160, Opacity: 0.02},
			{Scalar: -60, Opacity: 0.10},
			{Scalar: 140, Opacity: 0.35},
			{Scalar: 240, Opacity: 0.80},
			{Scalar: 740, Opacity: 0.95},
		},
	}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("BuildWindow() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildWindowRescaled(t *testing.T) {
	cal := Calibration{Slope: 1, Intercept: -1024}
	got := BuildWindow(PresetSoft, WindowLevel{Center: 40, Width: 400}, cal)

	if got.Color[0].Scalar != 864 || got.Color[3].Scalar != 1264 {
		t.Errorf("colour range = [%g, %g], want [864, 1264]", got.Color[0].Scalar, got.Color[3].Scalar)
	}
}

func TestWidthClamped(t *testing.T) {
	for _, width := range []float64{0, -5, 0.25} {
		w := WindowLevel{Center: 100, Width: width}
		low, high := w.Bounds()
		if low != 99.5 || high != 100.5 {
			t.Errorf("width %g: Bounds() = (%g, %g), want (99.5, 100.5)", width, low, high)
		}
		if err := BuildWindow("narrow", w, Identity).Validate(); err != nil {
			t.Errorf("width %g: %v", width, err)
		}
	}
}

func TestStrictlyIncreasing(t *testing.T) {
	presets := []Preset{
		Resolve(PresetSoft, false),
		Resolve(PresetBone, false),
		Resolve(PresetLung, false),
		BoneOnly{Variant: BoneOnlyStandard},
		BoneOnly{Variant: BoneOnlyDense},
		Cinematic{},
		NamedWindow{Label: "degenerate", Window: WindowLevel{Center: 0, Width: 0}},
	}
	cals := []Calibration{
		Identity,
		{Slope: 1, Intercept: -1024},
		{Slope: 0, Intercept: -1024},
		{Slope: 0.25, Intercept: -8192},
		{Slope: -2, Intercept: 50},
	}

	for _, p := range presets {
		for _, cal := range cals {
			pair := p.Build(cal)
			if err := pair.Validate(); err != nil {
				t.Errorf("%s %+v: %v", p.Name(), cal, err)
			}
		}
	}
}

func TestNegativeSlopeReversesOrder(t *testing.T) {
	pair := BuildWindow(PresetSoft, WindowLevel{Center: 40, Width: 400}, Calibration{Slope: -1})

	// Scalar -240 is HU 240, the window ceiling.
	if pair.Color[0].Scalar != -240 || pair.Color[0].R != 1 {
		t.Errorf("first colour point = %+v, want white at -240", pair.Color[0])
	}
	if last := pair.Opacity[len(pair.Opacity)-1]; last.Scalar != 360 || last.Opacity != 0 {
		t.Errorf("last opacity point = %+v, want 0 at 360", last)
	}
}

func TestUnknownPresetFallsBackToSoft(t *testing.T) {
	var buf bytes.Buffer
	b := quietBuilder(&buf)

	got := b.Build(b.Resolve("xyz", false), Identity)
	want := BuildWindow(PresetSoft, WindowLevel{Center: 40, Width: 400}, Identity)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fallback mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), "unknown preset") {
		t.Errorf("expected warning, log was %q", buf.String())
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		boneOnly bool
		want     string
	}{
		{"soft", false, PresetSoft},
		{"bone", false, PresetBone},
		{"lung", false, PresetLung},
		{"bone-only", false, PresetBoneOnly},
		{"cinematic", false, PresetCinematic},
		{"", false, PresetSoft},
		{"Soft", false, PresetSoft},
		{"soft", true, PresetBoneOnly},
		{"lung", true, PresetBoneOnly},
		{"cinematic", true, PresetBoneOnly},
		{"xyz", true, PresetBoneOnly},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		got := quietBuilder(&buf).Resolve(tt.name, tt.boneOnly)
		if got.Name() != tt.want {
			t.Errorf("Resolve(%q, %v) = %s, want %s", tt.name, tt.boneOnly, got.Name(), tt.want)
		}
	}
}

func TestBoneOnlyFlagOverridesPreset(t *testing.T) {
	want := BuildBoneOnly(BoneOnlyStandard, Identity)
	for _, name := range []string{"soft", "bone", "lung", "cinematic", "xyz"} {
		var buf bytes.Buffer
		b := quietBuilder(&buf)
		got := b.Build(b.Resolve(name, true), Identity)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("--preset=%s --bone-only mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	b := quietBuilder(&buf)
	cal := Calibration{Slope: 2, Intercept: -1024}
	for _, name := range []string{"soft", "bone-only", "cinematic", "nope"} {
		first := b.Build(b.Resolve(name, false), cal)
		second := b.Build(b.Resolve(name, false), cal)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("%s: repeated build differs:\n%s", name, diff)
		}
	}
}

func TestBuildBoneOnly(t *testing.T) {
	tests := []struct {
		variant BoneOnlyVariant
		opacity []OpacityPoint
	}{
		{BoneOnlyStandard, []OpacityPoint{
			{Scalar: 150, Opacity: 0}, {Scalar: 250, Opacity: 0.02}, {Scalar: 700, Opacity: 0.35},
			{Scalar: 1500, Opacity: 0.85}, {Scalar: 3000, Opacity: 0.95},
		}},
		{BoneOnlyDense, []OpacityPoint{
			{Scalar: 180, Opacity: 0}, {Scalar: 250, Opacity: 0.02}, {Scalar: 700, Opacity: 0.50},
			{Scalar: 1500, Opacity: 0.92}, {Scalar: 3000, Opacity: 0.98},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.variant.String(), func(t *testing.T) {
			pair := BuildBoneOnly(tt.variant, Identity)
			if diff := cmp.Diff(tt.opacity, pair.Opacity); diff != "" {
				t.Errorf("opacity mismatch (-want +got):\n%s", diff)
			}
			first := pair.Color[0]
			if first.Scalar != 250 || first.R != 0.85 || first.G != 0.82 || first.B != 0.78 {
				t.Errorf("first colour point = %+v, want warm white at 250", first)
			}
			last := pair.Color[len(pair.Color)-1]
			if last.R != 1 || last.G != 1 || last.B != 1 {
				t.Errorf("last colour point = %+v, want white", last)
			}
		})
	}
}

func TestBuildCinematic(t *testing.T) {
	pair := BuildCinematic(Identity)
	if len(pair.Color) != 8 || len(pair.Opacity) != 8 {
		t.Fatalf("got %d colour and %d opacity points, want 8 each", len(pair.Color), len(pair.Opacity))
	}
	if pair.Opacity[0].Scalar != -1000 || pair.Opacity[0].Opacity != 0 || pair.Opacity[1].Opacity != 0 {
		t.Errorf("air and fat should be transparent: %+v", pair.Opacity[:2])
	}
	wantBone := []float64{0.35, 0.80, 0.95, 0.98}
	for i, want := range wantBone {
		if got := pair.Opacity[4+i].Opacity; got != want {
			t.Errorf("bone opacity %d = %g, want %g", i, got, want)
		}
	}
	for i := 1; i < len(pair.Opacity); i++ {
		if pair.Opacity[i].Opacity < pair.Opacity[i-1].Opacity {
			t.Errorf("opacity decreases at %d", i)
		}
	}
}

func TestParseBoneOnlyVariant(t *testing.T) {
	for in, want := range map[string]BoneOnlyVariant{"": BoneOnlyStandard, "standard": BoneOnlyStandard, "dense": BoneOnlyDense} {
		got, err := ParseBoneOnlyVariant(in)
		if err != nil || got != want {
			t.Errorf("ParseBoneOnlyVariant(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	_, err := ParseBoneOnlyVariant("heavy")
	if err == nil {
		t.Fatal("expected error for unknown variant")
	}
	if _, ok := err.(stackTracer); !ok {
		t.Errorf("error %v carries no stack trace", err)
	}
}

func TestCustomCatalog(t *testing.T) {
	var buf bytes.Buffer
	b := NewBuilder(Catalog{
		"brain":         {Center: 40, Width: 80},
		PresetCinematic: {Center: 1, Width: 1},
		PresetSoft:      {Center: 50, Width: 350},
	}, BoneOnlyDense, log.New(&buf))

	if p := b.Resolve("brain", false); p.Name() != "brain" {
		t.Errorf("Resolve(brain) = %s", p.Name())
	}
	if _, ok := b.Resolve(PresetCinematic, false).(Cinematic); !ok {
		t.Error("reserved name must not be shadowed by a window")
	}
	if nw := b.Resolve(PresetSoft, false).(NamedWindow); nw.Window.Center != 50 {
		t.Errorf("soft override not applied: %+v", nw.Window)
	}
	if bo := b.Resolve("", true).(BoneOnly); bo.Variant != BoneOnlyDense {
		t.Errorf("variant = %v, want dense", bo.Variant)
	}
	if got, want := b.Catalog().Names(), []string{"bone", "brain", "lung", "soft"}; !cmp.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestBuildLogsCorrections(t *testing.T) {
	var buf bytes.Buffer
	b := quietBuilder(&buf)
	b.Build(NamedWindow{Label: "flat", Window: WindowLevel{Center: 0, Width: 0}}, Calibration{})

	out := buf.String()
	if !strings.Contains(out, "slope is zero") {
		t.Errorf("missing zero-slope warning in %q", out)
	}
	if !strings.Contains(out, "width too small") {
		t.Errorf("missing width warning in %q", out)
	}
}

func TestEvaluator(t *testing.T) {
	pair := BuildWindow(PresetSoft, WindowLevel{Center: 40, Width: 400}, Identity)
	e, err := pair.Evaluator()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		scalar  float64
		grey    float64
		opacity float64
	}{
		{-5000, 0, 0},
		{-360, 0, 0},
		{-260, 0, 0.01},
		{-160, 0, 0.02},
		{-110, 0.25, 0.06},
		{240, 1, 0.80},
		{740, 1, 0.95},
		{9000, 1, 0.95},
	}
	for _, tt := range tests {
		r, g, b := e.Color(tt.scalar)
		if math.Abs(r-tt.grey) > 1e-9 || r != g || g != b {
			t.Errorf("Color(%g) = (%g, %g, %g), want grey %g", tt.scalar, r, g, b, tt.grey)
		}
		if a := e.Opacity(tt.scalar); math.Abs(a-tt.opacity) > 1e-9 {
			t.Errorf("Opacity(%g) = %g, want %g", tt.scalar, a, tt.opacity)
		}
	}
}

func TestEvaluatorSinglePoint(t *testing.T) {
	pair := Pair{
		Preset:  "flat",
		Color:   []ColorPoint{{Scalar: 0, R: 0.2, G: 0.4, B: 0.6}},
		Opacity: []OpacityPoint{{Scalar: 0, Opacity: 0.5}},
	}
	e, err := pair.Evaluator()
	if err != nil {
		t.Fatal(err)
	}
	if r, g, b := e.Color(100); r != 0.2 || g != 0.4 || b != 0.6 {
		t.Errorf("Color = (%g, %g, %g)", r, g, b)
	}
	if a := e.Opacity(-100); a != 0.5 {
		t.Errorf("Opacity = %g", a)
	}
}

func TestValidateRejectsUnordered(t *testing.T) {
	tests := []Pair{
		{Preset: "empty"},
		{Preset: "dup", Color: []ColorPoint{{Scalar: 1}, {Scalar: 1}}, Opacity: []OpacityPoint{{Scalar: 0}}},
		{Preset: "desc", Color: []ColorPoint{{Scalar: 0}}, Opacity: []OpacityPoint{{Scalar: 2}, {Scalar: 1}}},
	}
	for _, p := range tests {
		err := p.Validate()
		if err == nil {
			t.Errorf("%s: expected error", p.Preset)
		} else if _, ok := err.(stackTracer); !ok {
			t.Errorf("%s: error %v carries no stack trace", p.Preset, err)
		}
		if _, err := p.Evaluator(); err == nil {
			t.Errorf("%s: Evaluator() expected error", p.Preset)
		}
	}
}
