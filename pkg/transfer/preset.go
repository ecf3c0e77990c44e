package transfer

import (
	"sort"

	"github.com/charmbracelet/log"
)

// Preset names understood by Resolve.
const (
	PresetSoft      = "soft"
	PresetBone      = "bone"
	PresetLung      = "lung"
	PresetBoneOnly  = "bone-only"
	PresetCinematic = "cinematic"

	DefaultPreset = PresetSoft
)

// Preset is a resolved visual mapping. It is one of NamedWindow, BoneOnly or
// Cinematic.
type Preset interface {
	Name() string
	Build(cal Calibration) Pair
}

// NamedWindow is a standard CT window preset.
type NamedWindow struct {
	Label  string
	Window WindowLevel
}

// Name returns the window label.
func (n NamedWindow) Name() string { return n.Label }

// Build builds the window ramps for cal.
func (n NamedWindow) Build(cal Calibration) Pair { return BuildWindow(n.Label, n.Window, cal) }

// BoneOnly shows bone and hides all soft tissue.
type BoneOnly struct {
	Variant BoneOnlyVariant
}

// Name returns PresetBoneOnly.
func (BoneOnly) Name() string { return PresetBoneOnly }

// Build builds the bone-only ramps of the selected variant for cal.
func (b BoneOnly) Build(cal Calibration) Pair { return BuildBoneOnly(b.Variant, cal) }

// Cinematic is the stylised skull preset.
type Cinematic struct{}

// Name returns PresetCinematic.
func (Cinematic) Name() string { return PresetCinematic }

// Build builds the cinematic ramps for cal.
func (Cinematic) Build(cal Calibration) Pair { return BuildCinematic(cal) }

// Catalog maps window preset names to their windows.
type Catalog map[string]WindowLevel

// DefaultCatalog returns the built-in CT windows.
func DefaultCatalog() Catalog {
	return Catalog{
		PresetSoft: {Center: 40, Width: 400},
		PresetBone: {Center: 300, Width: 1500},
		PresetLung: {Center: -600, Width: 1500},
	}
}

// Names returns the window names in sorted order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsReserved reports whether name selects one of the exclusive modes and so
// cannot be used for a window.
func IsReserved(name string) bool {
	return name == PresetBoneOnly || name == PresetCinematic
}

// Builder resolves preset names and builds their transfer functions, logging
// every input it has to correct.
type Builder struct {
	catalog Catalog
	variant BoneOnlyVariant
	logger  *log.Logger
}

// NewBuilder returns a Builder over the built-in windows extended by catalog.
// Entries in catalog replace built-in windows of the same name; reserved
// names are ignored. A nil logger means log.Default().
func NewBuilder(catalog Catalog, variant BoneOnlyVariant, logger *log.Logger) *Builder {
	merged := DefaultCatalog()
	for name, w := range catalog {
		if IsReserved(name) {
			continue
		}
		merged[name] = w
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Builder{catalog: merged, variant: variant, logger: logger}
}

// Catalog returns the windows known to b.
func (b *Builder) Catalog() Catalog { return b.catalog }

// Resolve selects a preset. The bone-only flag and the name "bone-only" both
// select BoneOnly, "cinematic" selects Cinematic, and either wins over the
// window presets. Unknown names fall back to DefaultPreset with a warning.
func (b *Builder) Resolve(name string, boneOnly bool) Preset {
	switch {
	case boneOnly || name == PresetBoneOnly:
		if boneOnly && name != "" && name != PresetBoneOnly {
			b.logger.Debug("bone-only flag overrides preset", "preset", name)
		}
		return BoneOnly{Variant: b.variant}
	case name == PresetCinematic:
		return Cinematic{}
	}
	if w, ok := b.catalog[name]; ok {
		return NamedWindow{Label: name, Window: w}
	}
	b.logger.Warn("unknown preset, using default", "preset", name, "default", DefaultPreset)
	return NamedWindow{Label: DefaultPreset, Window: b.catalog[DefaultPreset]}
}

// Build builds the transfer functions of p for calibration cal.
func (b *Builder) Build(p Preset, cal Calibration) Pair {
	if cal.Slope == 0 {
		b.logger.Warn("rescale slope is zero, using 1", "intercept", cal.Intercept)
	}
	if nw, ok := p.(NamedWindow); ok && nw.Window.Width < MinWindowWidth {
		b.logger.Warn("window width too small, clamping",
			"preset", nw.Label, "width", nw.Window.Width, "min", MinWindowWidth)
	}
	pair := p.Build(cal)
	b.logger.Debug("built transfer functions", "preset", pair.Preset,
		"color", len(pair.Color), "opacity", len(pair.Opacity))
	return pair
}

// Resolve selects a preset from the default catalog using the standard
// bone-only variant.
func Resolve(name string, boneOnly bool) Preset {
	return NewBuilder(nil, BoneOnlyStandard, nil).Resolve(name, boneOnly)
}
